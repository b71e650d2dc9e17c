package utils

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg-bytes"))
	}))
	defer srv.Close()

	body, contentType, err := Download(context.Background(), srv.Client(), srv.URL+"/cover.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), body)
	assert.Equal(t, "image/jpeg", contentType)

	_, _, err = Download(context.Background(), srv.Client(), srv.URL+"/missing.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestDownload_RejectsOversizedBody(t *testing.T) {
	limit := MaxDownloadBytes
	MaxDownloadBytes = 8
	t.Cleanup(func() { MaxDownloadBytes = limit })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		if r.URL.Path == "/exact.png" {
			_, _ = w.Write([]byte("12345678"))
			return
		}
		_, _ = w.Write([]byte(strings.Repeat("x", 1<<20)))
	}))
	defer srv.Close()

	body, _, err := Download(context.Background(), srv.Client(), srv.URL+"/exact.png")
	require.NoError(t, err)
	assert.Len(t, body, 8)

	body, _, err = Download(context.Background(), srv.Client(), srv.URL+"/huge.png")
	require.Error(t, err)
	assert.Nil(t, body)
	assert.Contains(t, err.Error(), "exceeds 8 bytes")
}
