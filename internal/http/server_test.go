package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/thinkd/internal/catalog"
	"github.com/fyrsmithlabs/thinkd/internal/config"
	"github.com/fyrsmithlabs/thinkd/internal/orchestrator"
	"github.com/fyrsmithlabs/thinkd/internal/session"
)

func newTestServer(t *testing.T) (*Server, *orchestrator.Engine) {
	t.Helper()
	cat, err := catalog.Load()
	require.NoError(t, err)
	engine, err := orchestrator.NewEngine(nil, cat, session.NewMemStore(), zap.NewNop())
	require.NoError(t, err)

	srv, err := NewServer(engine, zap.NewNop(), config.ServerConfig{Host: "localhost", Port: 0},
		prometheus.NewRegistry())
	require.NoError(t, err)
	return srv, engine
}

func doRequest(srv *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func planOne(t *testing.T, engine *orchestrator.Engine) string {
	t.Helper()
	resp, err := engine.Plan(context.Background(), &orchestrator.PlanRequest{
		Problem:      "api test",
		TechniqueIDs: []string{"six_hats"},
		TimeBudget:   session.BudgetQuick,
	})
	require.NoError(t, err)
	return resp.SessionID
}

func TestNewServer_RequiresEngine(t *testing.T) {
	_, err := NewServer(nil, zap.NewNop(), config.ServerConfig{}, prometheus.NewRegistry())
	assert.Error(t, err)
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(srv, http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListSessions(t *testing.T) {
	srv, engine := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/v1/sessions")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sessions":[]}`, rec.Body.String())

	id := planOne(t, engine)
	rec = doRequest(srv, http.MethodGet, "/api/v1/sessions")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp SessionListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{id}, resp.Sessions)
}

func TestGetSession(t *testing.T) {
	srv, engine := newTestServer(t)
	id := planOne(t, engine)

	rec := doRequest(srv, http.MethodGet, "/api/v1/sessions/"+id)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), id)
	assert.Contains(t, rec.Body.String(), "not_started")

	rec = doRequest(srv, http.MethodGet, "/api/v1/sessions/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportSession(t *testing.T) {
	srv, engine := newTestServer(t)
	id := planOne(t, engine)

	rec := doRequest(srv, http.MethodGet, "/api/v1/sessions/"+id+"/export")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echoHeaderContentType), "application/json")

	rec = doRequest(srv, http.MethodGet, "/api/v1/sessions/"+id+"/export?format=csv")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echoHeaderContentType), "text/csv")

	rec = doRequest(srv, http.MethodGet, "/api/v1/sessions/"+id+"/export?format=xml")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	srv, engine := newTestServer(t)
	id := planOne(t, engine)

	rec := doRequest(srv, http.MethodDelete, "/api/v1/sessions/"+id)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(srv, http.MethodDelete, "/api/v1/sessions/"+id)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doRequest(srv, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

const echoHeaderContentType = "Content-Type"
