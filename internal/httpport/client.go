// Package httpport is the HTTP port of §4.1/§4.4: the only path by which
// the Engine and providers reach the network. It is grounded on the
// teacher's internal/engine (http.go, manager.go's transport) but
// generalized from a download-only client into the shared port other
// components (provider update checks) also use.
package httpport

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tachyon-launcher/internal/storage"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36"

// Client wraps a shared, concurrency-safe *http.Client configured the way
// the teacher's NewEngine configures its transport: connection reuse,
// proxy-from-environment, no forced compression (raw byte counting must
// stay accurate for progress/rate-limiting).
type Client struct {
	http      *http.Client
	userAgent string
}

// New builds a Client with the teacher's connection-pool tuning.
func New(userAgent string) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   32,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		DisableCompression:    true,
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{
		http:      &http.Client{Transport: transport, Timeout: 0},
		userAgent: userAgent,
	}
}

// NewRequest builds a request for method carrying the task's ordered headers
// plus the standard browser-like identity headers (§4.1).
func (c *Client) NewRequest(ctx context.Context, method, url string, headers []storage.HeaderPair) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Connection", "keep-alive")
	for _, h := range headers {
		req.Header.Set(h.Name, h.Value)
	}
	return req, nil
}

// Do issues a ranged GET: resumeFrom > 0 adds `Range: bytes=<P>-`.
func (c *Client) Do(ctx context.Context, url string, headers []storage.HeaderPair, resumeFrom int64) (*http.Response, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, url, headers)
	if err != nil {
		return nil, err
	}
	if resumeFrom > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeFrom))
	}
	return c.http.Do(req)
}

// ProbeResult is the metadata a zero-byte range probe returns (§4.4 /
// §6 wire contracts).
type ProbeResult struct {
	Size         int64
	Filename     string
	Status       int
	AcceptRanges bool
	ETag         string
	LastModified string
}

// Probe issues `Range: bytes=0-0` to learn size/filename/capabilities
// without transferring the body, the teacher's ProbeURL technique.
func (c *Client) Probe(ctx context.Context, url string, headers []storage.HeaderPair) (*ProbeResult, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := c.NewRequest(probeCtx, http.MethodGet, url, headers)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusPartialContent {
		return &ProbeResult{Status: resp.StatusCode}, nil
	}

	filename := ParseContentDispositionFilename(resp.Header.Get("Content-Disposition"))
	if filename == "" {
		filename = filepath.Base(resp.Request.URL.Path)
		if filename == "." || filename == "/" {
			filename = ""
		}
	}

	acceptRanges := resp.Header.Get("Accept-Ranges") == "bytes"
	size := resp.ContentLength

	if resp.StatusCode == http.StatusPartialContent {
		acceptRanges = true
		if total, ok := ParseContentRangeTotal(resp.Header.Get("Content-Range")); ok {
			size = total
		}
	}

	return &ProbeResult{
		Size:         size,
		Filename:     filename,
		Status:       resp.StatusCode,
		AcceptRanges: acceptRanges,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}

// ParseContentDispositionFilename parses a Content-Disposition header
// into a filename, tolerant of quoted or unquoted forms and extra
// parameters (S5, §6).
func ParseContentDispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(header); err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
	}
	// mime.ParseMediaType is strict about quoting; fall back to a
	// tolerant manual scan for unquoted filename=value forms.
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "filename=") {
			return strings.Trim(strings.TrimPrefix(part, "filename="), `"`)
		}
	}
	return ""
}

// ParseContentRangeTotal parses "bytes 0-0/123456" into 123456.
func ParseContentRangeTotal(headerValue string) (int64, bool) {
	if headerValue == "" {
		return 0, false
	}
	parts := strings.Split(headerValue, "/")
	if len(parts) != 2 {
		return 0, false
	}
	total, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return total, true
}

// RateLimitInfo is the parsed pair of X-RateLimit-* headers (§4.4 step 6).
type RateLimitInfo struct {
	Remaining int64
	Reset     time.Time
	HasReset  bool
}

// ParseRateLimitHeaders extracts X-RateLimit-Remaining / X-RateLimit-Reset
// from a response's headers.
func ParseRateLimitHeaders(h http.Header) RateLimitInfo {
	var info RateLimitInfo
	if v := h.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			info.Remaining = n
		}
	}
	if v := h.Get("X-RateLimit-Reset"); v != "" {
		if epoch, err := strconv.ParseInt(v, 10, 64); err == nil {
			info.Reset = time.Unix(epoch, 0)
			info.HasReset = true
		}
	}
	return info
}

// HeadersToJSON/HeadersFromJSON round-trip the ordered header list
// through the task's persisted HeadersJSON column.
func HeadersToJSON(headers []storage.HeaderPair) (string, error) {
	if len(headers) == 0 {
		return "", nil
	}
	b, err := json.Marshal(headers)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func HeadersFromJSON(raw string) ([]storage.HeaderPair, error) {
	if raw == "" {
		return nil, nil
	}
	var headers []storage.HeaderPair
	if err := json.Unmarshal([]byte(raw), &headers); err != nil {
		return nil, err
	}
	return headers, nil
}
