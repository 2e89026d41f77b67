package app

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/renderloop/internal/testutil"
)

func newTestReportServer(t *testing.T, total int) *reportServer {
	t.Helper()
	out := &testutil.SafeBuffer{}
	return &reportServer{app: &App{outW: out, logger: newLogger("debug", "text", out)}, total: total}
}

func getReport(t *testing.T, rs *reportServer) runReport {
	t.Helper()
	rec := httptest.NewRecorder()
	rs.handleReport(rec, httptest.NewRequest("GET", "/report", nil))
	require.Equal(t, 200, rec.Code)
	var got runReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	return got
}

func TestReportServer_HealthEndpoint(t *testing.T) {
	rs := newTestReportServer(t, 1)

	rec := httptest.NewRecorder()
	rs.handleHealth(rec, httptest.NewRequest("GET", "/healthz", nil))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "OK")
}

func TestReportServer_ReportIncompleteBeforeAnyRouteFinishes(t *testing.T) {
	rs := newTestReportServer(t, 2)

	got := getReport(t, rs)
	assert.False(t, got.Complete)
	assert.Empty(t, got.Routes)
}

func TestReportServer_PublishesRoutesAsTheyComplete(t *testing.T) {
	rs := newTestReportServer(t, 2)

	rs.publish(&RouteReport{Route: "/docs", Classification: "static", StaticBytes: 42})
	got := getReport(t, rs)
	assert.False(t, got.Complete)
	require.Len(t, got.Routes, 1)
	assert.Equal(t, "/docs", got.Routes[0].Route)

	rs.publish(&RouteReport{Route: "/feed", Classification: "dynamic-data", DynamicAccesses: []string{"headers"}})
	got = getReport(t, rs)
	assert.True(t, got.Complete)
	require.Len(t, got.Routes, 2)
	assert.Equal(t, "dynamic-data", got.Routes[1].Classification)
	assert.Equal(t, []string{"headers"}, got.Routes[1].DynamicAccesses)
}
