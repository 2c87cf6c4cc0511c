package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3StorageExists(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch r.URL.Path {
		case "/archive/midtrans/TRX-1/settlement-1f2e3d4c.json":
			w.WriteHeader(http.StatusOK)
		case "/archive/midtrans/TRX-2/settlement-0a0b0c0d.json":
			w.WriteHeader(http.StatusForbidden)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s, err := NewS3Storage(context.Background(), Config{
		S3Endpoint:  srv.URL,
		S3Region:    "ap-southeast-1",
		S3Bucket:    "archive",
		S3AccessKey: "key",
		S3SecretKey: "secret",
	})
	require.NoError(t, err)

	ok, err := s.Exists(context.Background(), "midtrans/TRX-1/settlement-1f2e3d4c.json")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(context.Background(), "midtrans/TRX-9/expire-99aa88bb.json")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Exists(context.Background(), "midtrans/TRX-2/settlement-0a0b0c0d.json")
	assert.Error(t, err)

	// path-style addressing against a custom endpoint
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, paths, "HEAD /archive/midtrans/TRX-1/settlement-1f2e3d4c.json")
}

func TestNewS3StorageRequiresBucket(t *testing.T) {
	_, err := NewS3Storage(context.Background(), Config{S3Region: "ap-southeast-1"})
	assert.Error(t, err)
}
