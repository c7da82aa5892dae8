package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"cu-planner/core/engine"
	"cu-planner/core/output"
	"cu-planner/core/scenario"
	"cu-planner/internal/errors"
	"cu-planner/internal/metrics"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	eng := engine.NewEngine(scenario.GetDefault(), engine.DefaultEngineConfig(),
		engine.WithLogger(zap.NewNop()),
		engine.WithMetrics(metrics.NewPrometheus(reg, "test")))

	s := NewServer(eng, ServerConfig{Version: "test", MaxBodyBytes: 1 << 16, Gatherer: reg})
	s.logger = zap.NewNop()

	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, ts *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeError(t *testing.T, resp *http.Response) ErrorDetail {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error
}

func TestPlanEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts, "/plan", `{"costs": [5, 500, 5], "budget": {"max_units": 100, "security_padding": 0}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var report output.PlanReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, []int{1, 1, 1}, report.Result.WindowSizes)
	assert.Equal(t, []int{1}, report.Result.OversizedSteps)
	assert.Equal(t, int64(95), report.Result.RemainingCapacity)
	assert.Equal(t, "test", report.Metadata.Version)
}

func TestPlanEndpointScenario(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts, "/plan", `{"scenario": "miller-loop"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report output.PlanReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, 43, report.Result.WindowCount)
	assert.Equal(t, int64(264659), report.Result.RemainingCapacity)
}

func TestPlanEndpointYAML(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts, "/plan?format=yaml", `{"costs": [10, 10, 10]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))

	var decoded struct {
		Result struct {
			WindowSizes []int `yaml:"window_sizes"`
		} `yaml:"result"`
	}
	require.NoError(t, yaml.NewDecoder(resp.Body).Decode(&decoded))
	assert.Equal(t, []int{3}, decoded.Result.WindowSizes)
}

func TestPlanEndpointErrors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
		code   string
	}{
		{name: "malformed json", path: "/plan", body: `{"costs": [1,`, status: http.StatusBadRequest, code: "INVALID_JSON"},
		{name: "unknown field", path: "/plan", body: `{"cost": [1]}`, status: http.StatusBadRequest, code: "INVALID_JSON"},
		{
			name:   "invalid configuration",
			path:   "/plan",
			body:   `{"costs": [1], "budget": {"max_units": 1000, "margin": 1000}}`,
			status: http.StatusBadRequest,
			code:   string(errors.TypeInvalidConfiguration),
		},
		{name: "negative cost", path: "/plan", body: `{"costs": [1, -2]}`, status: http.StatusBadRequest, code: string(errors.TypeInput)},
		{name: "unknown scenario", path: "/plan", body: `{"scenario": "nope"}`, status: http.StatusNotFound, code: string(errors.TypeNotFound)},
		{name: "unknown format", path: "/plan?format=html", body: `{"costs": [1]}`, status: http.StatusBadRequest, code: string(errors.TypeInput)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, ts, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			detail := decodeError(t, resp)
			assert.Equal(t, tt.code, detail.Code)
			assert.NotEmpty(t, detail.Message)
		})
	}
}

func TestPlanEndpointBodyLimit(t *testing.T) {
	ts := newTestServer(t)

	costs := strings.Repeat("1,", 1<<15)
	resp := post(t, ts, "/plan", fmt.Sprintf(`{"costs": [%s1]}`, costs))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_JSON", decodeError(t, resp).Code)
}

func TestSweepEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts, "/sweep", `{"scenario": "final-exponentiation", "idle_from": 0, "idle_to": 40000, "idle_step": 10000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report output.SweepReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	require.Len(t, report.Rows, 5)
	assert.Equal(t, int64(30000), report.Rows[3].IdleUnits)
	assert.Equal(t, 20, report.Rows[3].WindowCount)

	resp = post(t, ts, "/sweep", `{"costs": [1], "idle_step": 0}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogDeltaEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts, "/log-delta", `{"log": "100\n40\n100\n70\n1\n", "source": "cu.log"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report output.LogDeltaReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, "cu.log", report.Source)
	assert.Equal(t, []int64{60, 30}, report.Analysis.Deltas())
	assert.Equal(t, int64(45), report.Analysis.Average)
	assert.True(t, report.Analysis.Unpaired)

	resp = post(t, ts, "/log-delta", `{"log": "only text"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, string(errors.TypeInput), decodeError(t, resp).Code)
}

func TestScenarioEndpoints(t *testing.T) {
	ts := newTestServer(t)

	resp := get(t, ts, "/scenarios")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list ScenarioList
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, 4, list.Count)
	assert.Equal(t, "miller-loop", list.Scenarios[0].Name)

	resp = get(t, ts, "/scenarios/prepare-inputs")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sc struct {
		Name  string `json:"name"`
		Steps []struct {
			Cost int64 `json:"cost"`
		} `json:"steps"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sc))
	assert.Equal(t, "prepare-inputs", sc.Name)
	assert.Len(t, sc.Steps, 13)

	resp = get(t, ts, "/scenarios/nope")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthVersionMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp := get(t, ts, "/health")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var health map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "test", health["version"])

	resp = get(t, ts, "/version")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var version map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&version))
	assert.Equal(t, "cu-planner", version["engine"])

	// produce at least one sample before scraping
	post(t, ts, "/plan", `{"costs": [1]}`)
	resp = get(t, ts, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sb bytes.Buffer
	_, err := sb.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), "test_planner_plans_total")

	resp = post(t, ts, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.InvalidConfiguration("x"), http.StatusBadRequest},
		{errors.Input("x"), http.StatusBadRequest},
		{errors.Parsing("x", nil), http.StatusBadRequest},
		{errors.NotFound("scenario", "x"), http.StatusNotFound},
		{errors.Internal("x", nil), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", context.Canceled), http.StatusServiceUnavailable},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), "%v", tt.err)
	}
}
