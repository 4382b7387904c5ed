package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tachyon-launcher/internal/hostapi"
)

func (s *Server) handleAddDownload(w http.ResponseWriter, r *http.Request) {
	var req hostapi.AddDownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	task, err := s.facade.AddDownload(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.facade.ListDownloads())
}

func (s *Server) handleDownloadStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.facade.DownloadStats())
}

func (s *Server) handleGetDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	task, ok := s.facade.GetDownload(id)
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleRemoveDownload(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.facade.Remove(id); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.simpleTaskOp(w, r, s.facade.Pause)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.simpleTaskOp(w, r, s.facade.Resume)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.simpleTaskOp(w, r, s.facade.Cancel)
}

func (s *Server) handleRetryFailed(w http.ResponseWriter, r *http.Request) {
	s.simpleTaskOp(w, r, s.facade.RetryFailed)
}

func (s *Server) simpleTaskOp(w http.ResponseWriter, r *http.Request, op func(id string) error) {
	id := chi.URLParam(r, "id")
	if err := op(id); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleVerifyFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := s.facade.VerifyFile(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePauseAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"count": s.facade.PauseAll()})
}

func (s *Server) handleResumeAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"count": s.facade.ResumeAll()})
}

func (s *Server) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"count": s.facade.CancelAll()})
}

func (s *Server) handleClearFinished(w http.ResponseWriter, r *http.Request) {
	n, err := s.facade.ClearFinished()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func (s *Server) handleRetryAllFailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"count": s.facade.RetryAllFailed()})
}

type speedLimitRequest struct {
	BytesPerSec int `json:"bytes_per_sec"`
}

func (s *Server) handleSetSpeedLimit(w http.ResponseWriter, r *http.Request) {
	var req speedLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.facade.SetSpeedLimit(req.BytesPerSec); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type maxConcurrentRequest struct {
	Max int `json:"max"`
}

func (s *Server) handleSetMaxConcurrent(w http.ResponseWriter, r *http.Request) {
	var req maxConcurrentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.facade.SetMaxConcurrent(req.Max); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if err := s.facade.Shutdown(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
