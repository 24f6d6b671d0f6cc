package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// newTestClient builds a client pointed at a test server with rate
// limiting disabled.
func newTestClient(serverURL string) Client {
	c := NewClient(WithBaseURL(serverURL)).(*client)
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

func TestSearchMatch(t *testing.T) {
	var gotQuery, gotFormat, gotLimit, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotFormat = r.URL.Query().Get("format")
		gotLimit = r.URL.Query().Get("limit")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"41.58683456","lon":"-93.62501234","display_name":"Des Moines, Polk County, Iowa"}]`))
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Search(context.Background(), "Des Moines, IA")
	require.NoError(t, err)
	require.True(t, result.Matched)

	assert.Equal(t, "Des Moines, IA", gotQuery)
	assert.Equal(t, "json", gotFormat)
	assert.Equal(t, "1", gotLimit)
	assert.Equal(t, "BasisTracker/1.0", gotUA)

	assert.InDelta(t, 41.586835, result.Lat, 1e-9, "rounded to six decimals")
	assert.InDelta(t, -93.625012, result.Lng, 1e-9)
	assert.Equal(t, "Des Moines, Polk County, Iowa", result.DisplayName)
}

func TestSearchNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).Search(context.Background(), "xyzzy nowhere")
	require.NoError(t, err, "unmatched query is not an error")
	assert.False(t, result.Matched)
}

func TestSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Search(context.Background(), "Des Moines, IA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestSearchBadCoordinates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":"not-a-number","lon":"-93.6"}]`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Search(context.Background(), "Des Moines, IA")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse lat")
}

func TestSearchCustomUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithUserAgent("CustomAgent/2.0"), WithRateLimit(100)).(*client)
	_, err := c.Search(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "CustomAgent/2.0", gotUA)
}
