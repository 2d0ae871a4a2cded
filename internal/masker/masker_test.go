package masker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMask(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "联系电话13800000000", payload["text"])

		_, _ = w.Write([]byte(`{"data": {"masked_text": "联系电话138****0000"}}`))
	}))
	defer server.Close()

	client := New(server.URL)

	got := client.Mask(context.Background(), "联系电话13800000000")
	assert.Equal(t, "联系电话138****0000", got)
}

func TestMaskServiceUnavailableKeepsOriginal(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(server.URL)

	assert.Equal(t, "original", client.Mask(context.Background(), "original"))
}

func TestMaskUnreachableServiceKeepsOriginal(t *testing.T) {
	t.Parallel()

	client := New("http://127.0.0.1:1")

	assert.Equal(t, "original", client.Mask(context.Background(), "original"))
}

func TestMaskEmptyResponseKeepsOriginal(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": {}}`))
	}))
	defer server.Close()

	client := New(server.URL)

	assert.Equal(t, "original", client.Mask(context.Background(), "original"))
}
