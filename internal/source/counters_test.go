package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clickServer(t *testing.T, body string) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/system/resource/code/news/click/dynclicks.jsp", r.URL.Path)
		assert.Equal(t, "45421", r.URL.Query().Get("clickid"))
		assert.Equal(t, "1728834619", r.URL.Query().Get("owner"))
		assert.Equal(t, "wbnews", r.URL.Query().Get("clicktype"))
		_, _ = w.Write([]byte(body))
	}))
}

func TestClickCountCorrection(t *testing.T) {
	t.Parallel()

	// The crawler's own visit bumps the counter, so anything above one is
	// corrected down by exactly one.
	tests := []struct {
		raw  string
		want int64
	}{
		{raw: "1", want: 0},
		{raw: "500", want: 499},
		{raw: "0", want: 0},
		{raw: "2", want: 1},
	}

	for _, tc := range tests {
		t.Run(tc.raw, func(t *testing.T) {
			server := clickServer(t, tc.raw)
			defer server.Close()

			site := NewSite(newTestClient(), server.URL, 492)

			got, err := site.ClickCount(context.Background(), `("wbnews", 1728834619, 45421)`)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClickCountRejectsNonNumericBody(t *testing.T) {
	t.Parallel()

	server := clickServer(t, "<html>error</html>")
	defer server.Close()

	site := NewSite(newTestClient(), server.URL, 492)

	_, err := site.ClickCount(context.Background(), `("wbnews", 1728834619, 45421)`)

	var formatErr *CountFormatError
	require.True(t, errors.As(err, &formatErr))
}

func TestClickCountRejectsShortArgumentList(t *testing.T) {
	t.Parallel()

	site := NewSite(newTestClient(), "http://unused.invalid", 492)

	_, err := site.ClickCount(context.Background(), `("wbnews")`)

	var formatErr *CountFormatError
	require.True(t, errors.As(err, &formatErr))
}

func TestClickCountUnreachableCounterIsZero(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	site := NewSite(newTestClient(), server.URL, 492)

	got, err := site.ClickCount(context.Background(), `("wbnews", 1728834619, 45421)`)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestDownloadCount(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/system/resource/code/news/click/clicktimes.jsp", r.URL.Path)
		assert.Equal(t, "6582534", r.URL.Query().Get("wbnewsid"))
		assert.Equal(t, "1728834619", r.URL.Query().Get("owner"))
		_, _ = w.Write([]byte(`{"wbshowtimes": 12}`))
	}))
	defer server.Close()

	site := NewSite(newTestClient(), server.URL, 492)

	got, err := site.DownloadCount(context.Background(), `(6582534,1728834619,"wbnewsfile","attach")`)
	require.NoError(t, err)
	assert.Equal(t, int64(12), got)
}

func TestDownloadCountMissingField(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"something": 1}`))
	}))
	defer server.Close()

	site := NewSite(newTestClient(), server.URL, 492)

	_, err := site.DownloadCount(context.Background(), `(6582534,1728834619,"wbnewsfile","attach")`)

	var formatErr *CountFormatError
	require.True(t, errors.As(err, &formatErr))
}
