package httpport

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseContentDispositionFilenameQuoted(t *testing.T) {
	name := ParseContentDispositionFilename(`attachment; filename="report.pdf"; size=12345`)
	require.Equal(t, "report.pdf", name)
}

func TestParseContentDispositionFilenameUnquoted(t *testing.T) {
	name := ParseContentDispositionFilename(`attachment; filename=my-file.zip`)
	require.Equal(t, "my-file.zip", name)
}

func TestParseContentRangeTotal(t *testing.T) {
	total, ok := ParseContentRangeTotal("bytes 0-0/123456")
	require.True(t, ok)
	require.Equal(t, int64(123456), total)

	_, ok = ParseContentRangeTotal("")
	require.False(t, ok)
}

func TestFriendlyHTTPError(t *testing.T) {
	require.Equal(t, "File not found on server (404)", FriendlyHTTPError(404))
	require.Equal(t, "Too many requests. Wait and try again.", FriendlyHTTPError(429))
}

func TestIsRetryableStatus(t *testing.T) {
	require.True(t, IsRetryableStatus(503))
	require.True(t, IsRetryableStatus(429))
	require.True(t, IsRetryableStatus(408))
	require.False(t, IsRetryableStatus(404))
	require.False(t, IsRetryableStatus(403))
}

func TestHeadersFromJSONEmpty(t *testing.T) {
	headers, err := HeadersFromJSON("")
	require.NoError(t, err)
	require.Nil(t, headers)
}

func TestRateLimitInfoReset(t *testing.T) {
	now := time.Now().Add(30 * time.Second).Unix()
	h := map[string][]string{
		"X-Ratelimit-Remaining": {"0"},
		"X-Ratelimit-Reset":     {strconv.FormatInt(now, 10)},
	}
	info := ParseRateLimitHeaders(h)
	require.True(t, info.HasReset)
	require.Equal(t, int64(0), info.Remaining)
}
