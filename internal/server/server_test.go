package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigkaa/goartstore/file-manager/internal/config"
)

type testRoutes struct{}

func (testRoutes) Register(r chi.Router) {
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/api/v1/files", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
}

func denyAll(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
}

func TestAuthWithExclusions(t *testing.T) {
	router := NewRouter(testRoutes{}, AuthWithExclusions(denyAll, "/health/", "/metrics"))

	tests := []struct {
		path string
		want int
	}{
		{"/health/live", http.StatusOK},
		{"/api/v1/files", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.want, rec.Code, tt.path)
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	cfg := &config.Config{Port: 0, ShutdownTimeout: time.Second}
	srv := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), testRoutes{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("сервер не остановился после отмены контекста")
	}
}
