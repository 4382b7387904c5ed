package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleListEnvironments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.facade.ListEnvironments(r.Context()))
}

func (s *Server) handleGetEnvironment(w http.ResponseWriter, r *http.Request) {
	envType := chi.URLParam(r, "type")
	writeJSON(w, http.StatusOK, s.facade.GetEnvironment(r.Context(), envType))
}

func (s *Server) handleCheckAllUpdates(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.facade.CheckAllUpdates(r.Context()))
}

func (s *Server) handleDetectAll(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("dir")
	if dir == "" {
		writeError(w, http.StatusBadRequest, errMissingDir)
		return
	}
	writeJSON(w, http.StatusOK, s.facade.DetectAll(dir))
}

func (s *Server) handleDetectOne(w http.ResponseWriter, r *http.Request) {
	envType := chi.URLParam(r, "type")
	dir := r.URL.Query().Get("dir")
	if dir == "" {
		writeError(w, http.StatusBadRequest, errMissingDir)
		return
	}
	result, ok := s.facade.DetectEnvironment(envType, dir)
	if !ok {
		http.Error(w, "no version detected", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAvailableVersions(w http.ResponseWriter, r *http.Request) {
	envType := chi.URLParam(r, "type")
	versions, err := s.facade.AvailableVersions(r.Context(), envType, r.URL.Query().Get("provider"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

func (s *Server) handleResolveAlias(w http.ResponseWriter, r *http.Request) {
	envType := chi.URLParam(r, "type")
	q := r.URL.Query()
	resolved, err := s.facade.ResolveAlias(r.Context(), envType, q.Get("provider"), q.Get("alias"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, resolved)
}

type envVersionRequest struct {
	Provider string `json:"provider"`
	Version  string `json:"version"`
	Dir      string `json:"dir"`
}

func (s *Server) handleInstallEnvironment(w http.ResponseWriter, r *http.Request) {
	envType := chi.URLParam(r, "type")
	var req envVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.facade.InstallEnvironment(r.Context(), envType, req.Provider, req.Version); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUninstallEnvironment(w http.ResponseWriter, r *http.Request) {
	envType := chi.URLParam(r, "type")
	var req envVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.facade.UninstallEnvironment(r.Context(), envType, req.Provider, req.Version); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUseGlobal(w http.ResponseWriter, r *http.Request) {
	envType := chi.URLParam(r, "type")
	var req envVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.facade.UseGlobal(r.Context(), envType, req.Provider, req.Version); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleUseLocal(w http.ResponseWriter, r *http.Request) {
	envType := chi.URLParam(r, "type")
	var req envVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Dir == "" {
		writeError(w, http.StatusBadRequest, errMissingDir)
		return
	}
	if err := s.facade.UseLocal(r.Context(), envType, req.Provider, req.Version, req.Dir); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type cleanupVersionsRequest struct {
	Keep []string `json:"keep"`
}

func (s *Server) handleCleanupVersions(w http.ResponseWriter, r *http.Request) {
	envType := chi.URLParam(r, "type")
	var req cleanupVersionsRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	removed, err := s.facade.CleanupVersions(r.Context(), envType, req.Keep)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"removed": removed})
}
