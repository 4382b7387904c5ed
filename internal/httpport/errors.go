package httpport

import (
	"fmt"
	"strings"
)

// FriendlyError converts a transport-level error into the human-readable
// message the §7 Network error carries, grounded on the teacher's
// friendlyError (internal/engine/http.go).
func FriendlyError(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no such host"):
		return "Server not found. Check the URL is correct."
	case strings.Contains(msg, "connection refused"):
		return "Server is offline or unreachable."
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return "Connection timed out. Try again later."
	case strings.Contains(msg, "certificate"):
		return "SSL certificate error. The website may not be secure."
	case strings.Contains(msg, "network is unreachable"):
		return "No internet connection."
	default:
		return "Connection failed. Check your internet."
	}
}

// FriendlyHTTPError converts an HTTP status code into the human-readable
// message the §7 HttpError carries, grounded on the teacher's
// friendlyHTTPError.
func FriendlyHTTPError(status int) string {
	switch status {
	case 404:
		return "File not found on server (404)"
	case 403:
		return "Access denied by server (403)"
	case 401:
		return "Authentication required (401)"
	case 500, 502, 503:
		return fmt.Sprintf("Server error. Try again later (%d)", status)
	case 429:
		return "Too many requests. Wait and try again."
	default:
		return fmt.Sprintf("Server returned error %d", status)
	}
}

// IsRetryableStatus reports whether an HTTP status should be retried per
// §4.4 retry policy ("retry iff 5xx or 408/429").
func IsRetryableStatus(status int) bool {
	if status >= 500 {
		return true
	}
	return status == 408 || status == 429
}
