package httpserver

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/metadata-governance-backend/api"
	"github.com/ruteri/metadata-governance-backend/interfaces"
	"github.com/ruteri/metadata-governance-backend/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(r chi.Router) {
	r.Get("/api/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})
}

type unavailableRepository struct {
	interfaces.MetadataRepository
}

func (unavailableRepository) Available(ctx context.Context) bool { return false }
func (unavailableRepository) Name() string                       { return "unavailable" }

func newTestServer(t *testing.T, repo interfaces.MetadataRepository) *Server {
	t.Helper()
	srv, err := New(&api.HTTPServerConfig{
		ListenAddr: "127.0.0.1:0",
		Log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, pingRoutes{}, repo)
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t, nil)

	w := get(t, srv, "/api/v1/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	w = get(t, srv, "/livez")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"alive"}`, w.Body.String())

	w = get(t, srv, "/debug/pprof/")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_DrainAndUndrain(t *testing.T) {
	repo := repository.NewMemoryRepository(slog.Default())
	srv := newTestServer(t, repo)

	assert.Equal(t, http.StatusOK, get(t, srv, "/readyz").Code)

	w := get(t, srv, "/drain")
	assert.JSONEq(t, `{"status":"draining"}`, w.Body.String())
	w = get(t, srv, "/drain")
	assert.JSONEq(t, `{"status":"already draining"}`, w.Body.String())
	assert.Equal(t, http.StatusServiceUnavailable, get(t, srv, "/readyz").Code)

	w = get(t, srv, "/undrain")
	assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())
	w = get(t, srv, "/undrain")
	assert.JSONEq(t, `{"status":"already ready"}`, w.Body.String())
	assert.Equal(t, http.StatusOK, get(t, srv, "/readyz").Code)
}

func TestServer_ReadinessFollowsRepository(t *testing.T) {
	srv := newTestServer(t, unavailableRepository{})

	w := get(t, srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"repository unavailable"}`, w.Body.String())
}
