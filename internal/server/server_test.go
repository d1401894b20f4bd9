package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/factgate/internal/errors"
	"github.com/ppiankov/factgate/internal/metrics"
	"github.com/ppiankov/factgate/internal/model"
	"github.com/ppiankov/factgate/internal/pipeline"
	"github.com/ppiankov/factgate/internal/provider"
)

func writeExtraction(t *testing.T, root, claimID, docType string, facts map[string]any) {
	t.Helper()
	dir := filepath.Join(provider.ClaimDir(root, claimID), "extractions", "run-1")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	list := make([]map[string]any, 0, len(facts))
	for name, value := range facts {
		list = append(list, map[string]any{"name": name, "value": value})
	}
	data, err := json.Marshal(map[string]any{
		"document_id":       docType + "-1",
		"document_type":     docType,
		"extraction_run_id": "run-1",
		"extracted_at":      "2024-03-01T09:00:00Z",
		"facts":             list,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, docType+"-1.json"), data, 0o644))
}

type fixture struct {
	root    string
	server  *Server
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()

	// CLM-1 passes; CLM-2 lacks a loss amount and fails
	writeExtraction(t, root, "CLM-1", "claim_form", map[string]any{
		"policy_number": "POL-1", "incident_date": "2024-02-28", "loss_amount": "1200.00",
	})
	writeExtraction(t, root, "CLM-2", "claim_form", map[string]any{
		"policy_number": "POL-2", "incident_date": "2024-02-28",
	})

	cfg := model.DefaultConfig()
	cfg.Workspace = root
	src := provider.NewWorkspaceProvider(root)
	m := metrics.New()
	p, err := pipeline.New(cfg, src, nil, pipeline.WithRecorder(m))
	require.NoError(t, err)

	s, err := New(Config{
		Workers:    2,
		Reconciler: p,
		Store:      p.Store(),
		Claims:     src,
		Metrics:    m.Handler(),
	})
	require.NoError(t, err)
	return &fixture{root: root, server: s, metrics: m}
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestReconcileClaimThenReport(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/claims/CLM-1/reconcile")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report model.ReconciliationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "CLM-1", report.ClaimID)
	assert.Equal(t, model.GatePass, report.Gate.Status)

	rec = f.do(t, http.MethodGet, "/v1/claims/CLM-1/report")
	require.Equal(t, http.StatusOK, rec.Code)
	var stored model.ReconciliationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stored))
	assert.Equal(t, report.Gate.Status, stored.Gate.Status)
}

func TestReconcileClaimDryRunDoesNotPersist(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/claims/CLM-2/reconcile?dry_run=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"FAIL"`)

	rec = f.do(t, http.MethodGet, "/v1/claims/CLM-2/report")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReconcileClaimErrors(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		target string
		status int
		kind   errors.Kind
	}{
		{"/v1/claims/CLM-1/reconcile?policy=best-per-doc", http.StatusNotImplemented, errors.KindUnsupportedPolicy},
		{"/v1/claims/CLM-1/reconcile?policy=newest", http.StatusBadRequest, errors.KindConfig},
		{"/v1/claims/CLM-1/reconcile?dry_run=maybe", http.StatusBadRequest, errors.KindInputDefect},
		{"/v1/claims/..%2Fetc/reconcile", http.StatusBadRequest, errors.KindInputDefect},
	}
	for _, tc := range cases {
		t.Run(tc.target, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tc.target)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.kind, body.Kind)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestReconcileAllAndSummary(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/reconcile")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"total":2,"passed":1,"warned":0,"failed":1,"errors":0}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/v1/summary?top_n=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var eval model.ReconciliationRunEval
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eval))
	assert.Equal(t, 2, eval.Summary.TotalClaims)
	assert.Equal(t, 50.0, eval.Summary.PassRatePercent)
	require.Len(t, eval.TopMissingFacts, 1)
	assert.Equal(t, model.FactFrequency{FactName: "loss_amount", Count: 1}, eval.TopMissingFacts[0])

	rec = f.do(t, http.MethodGet, "/v1/summary?top_n=ten")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/v1/claims/CLM-2/reconcile")

	rec := f.do(t, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `factgate_reconciliations_total{status="FAIL"} 1`), rec.Body.String())
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, errors.ErrConfig)

	f := newFixture(t)
	_, err = New(Config{
		Schedule:   "every tuesday",
		Reconciler: f.server.cfg.Reconciler,
		Store:      f.server.cfg.Store,
		Claims:     f.server.cfg.Claims,
	})
	assert.ErrorIs(t, err, errors.ErrConfig)
}

func TestListenAndServeShutsDown(t *testing.T) {
	f := newFixture(t)
	f.server.cfg.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.server.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
