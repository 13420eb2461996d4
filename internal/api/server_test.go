package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadscore/internal/cfg"
	"leadscore/internal/features"
	"leadscore/internal/metrics"
	"leadscore/internal/model"
	"leadscore/internal/scoring"
)

const featureList = `["marketing_to_headcount_ratio","marketing_headcount","log_people_count","log_company_revenue","is_b2b"]`

const classifierJSON = `{
  "version": "v3_simplified",
  "kind": "classifier",
  "features": ` + featureList + `,
  "nodes": [
    {"feature": 0, "threshold": 0.07, "left": 1, "right": 4},
    {"feature": 2, "threshold": 6.0, "left": 2, "right": 3},
    {"leaf": true, "value": [0.72, 0.28]},
    {"leaf": true, "value": [0.86, 0.14]},
    {"feature": 0, "threshold": 0.19, "left": 5, "right": 6},
    {"leaf": true, "value": [0.18, 0.82]},
    {"leaf": true, "value": [0.45, 0.55]}
  ]
}`

const regressorJSON = `{
  "version": "v3_simplified",
  "kind": "regressor",
  "features": ` + featureList + `,
  "nodes": [
    {"feature": 3, "threshold": 18.2, "left": 1, "right": 2},
    {"leaf": true, "value": 12500},
    {"leaf": true, "value": 28400}
  ]
}`

func testSettings() cfg.Settings {
	return cfg.Settings{
		Port:         8080,
		ACVMin:       5000,
		ACVMax:       40000,
		BatchMaxSize: 100,
		BatchWorkers: 4,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	clf, err := model.ParseClassifier([]byte(classifierJSON))
	require.NoError(t, err)
	reg, err := model.ParseRegressor([]byte(regressorJSON))
	require.NoError(t, err)

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	scorer := scoring.New(clf, reg, scoring.Config{
		ACVMin:          5000,
		ACVMax:          40000,
		IdealThreshold:  0.70,
		GoodThreshold:   0.50,
		MediumThreshold: 0.30,
		Defaults:        features.Defaults{CompanyRevenue: 80_000_000, IsB2B: 1},
		BatchWorkers:    4,
	}, m)

	s := NewServer(scorer, nil, m, testSettings())
	ts := httptest.NewServer(s.server.Handler)
	t.Cleanup(ts.Close)
	return s, ts
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHandleScore_Success(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/score", `{
		"company_name": "Acme Corp",
		"domain": "acme.com",
		"marketing_headcount": 42,
		"people_count": 376,
		"company_revenue": 142174379
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out ScoreResponse
	decodeBody(t, resp, &out)

	assert.Equal(t, "Acme Corp", out.CompanyName)
	assert.Equal(t, "acme.com", out.Domain)
	assert.Equal(t, 0.82, out.CloseScore)
	assert.Equal(t, "82.0%", out.CloseScorePercent)
	assert.Equal(t, 28400.0, out.PredictedACV)
	assert.Equal(t, 23288.0, out.ExpectedValue)
	assert.Equal(t, scoring.SegmentIdeal, out.Segment)
	assert.Equal(t, 0.1117, out.MarketingRatio)
	assert.Equal(t, "11.17%", out.MarketingRatioPercent)

	require.NotNil(t, out.InputsUsed)
	assert.Equal(t, 42.0, out.InputsUsed.MarketingHeadcount)
	assert.Equal(t, 142174379.0, out.InputsUsed.CompanyRevenue)
	assert.Equal(t, 1, out.InputsUsed.IsB2B)
}

func TestHandleScore_DefaultRevenueApplied(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/score", `{"marketing_headcount": 3, "people_count": 1000}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out ScoreResponse
	decodeBody(t, resp, &out)

	require.NotNil(t, out.InputsUsed)
	assert.Equal(t, 80_000_000.0, out.InputsUsed.CompanyRevenue)
	// ln(1+80M) just under the 18.2 revenue split, so the low-ACV leaf.
	assert.Equal(t, 12500.0, out.PredictedACV)
}

func TestHandleScore_NoMarketingTeam(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/score", `{
		"company_name": "Shopless",
		"marketing_headcount": 0,
		"people_count": 500
	}`)
	// Per-item rejections are data, not transport failures.
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out ErrorResponse
	decodeBody(t, resp, &out)

	assert.Equal(t, "Shopless", out.CompanyName)
	assert.Contains(t, out.Error, "marketing_headcount")
	assert.Equal(t, scoring.SegmentNotApplicable, out.Segment)
}

func TestHandleScore_MissingPeopleCountHasNoSegment(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/score", `{"marketing_headcount": 5}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out ErrorResponse
	decodeBody(t, resp, &out)

	assert.Contains(t, out.Error, "people_count")
	assert.Empty(t, out.Segment)
}

func TestHandleScore_MalformedJSON(t *testing.T) {
	_, ts := newTestServer(t)
	resp := postJSON(t, ts.URL+"/score", `{not json`)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleScore_MethodNotAllowed(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/score")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHandleBatch(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postJSON(t, ts.URL+"/batch", `{"companies": [
		{"company_name": "a", "marketing_headcount": 42, "people_count": 376, "company_revenue": 142174379},
		{"company_name": "b", "marketing_headcount": 0, "people_count": 500},
		{"company_name": "c", "marketing_headcount": 3, "people_count": 1000, "company_revenue": 50000000}
	]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out BatchResponse
	decodeBody(t, resp, &out)

	assert.Equal(t, 3, out.TotalCompanies)
	assert.Equal(t, 2, out.SuccessfulPredictions)
	assert.Equal(t, 1, out.FailedPredictions)
	require.Len(t, out.Results, 3)

	var first ScoreResponse
	require.NoError(t, json.Unmarshal(out.Results[0], &first))
	assert.Equal(t, "a", first.CompanyName)
	assert.Equal(t, scoring.SegmentIdeal, first.Segment)

	var second ErrorResponse
	require.NoError(t, json.Unmarshal(out.Results[1], &second))
	assert.Equal(t, "b", second.CompanyName)
	assert.Equal(t, scoring.SegmentNotApplicable, second.Segment)

	var third ScoreResponse
	require.NoError(t, json.Unmarshal(out.Results[2], &third))
	assert.Equal(t, "c", third.CompanyName)
	assert.Equal(t, scoring.SegmentLow, third.Segment)

	require.NotNil(t, out.SummaryStats)
	assert.Equal(t, 1, out.SummaryStats.IdealTargets)
	assert.Equal(t, 1, out.SummaryStats.LowPriority)
	assert.InDelta(t, (0.82+0.14)/2, out.SummaryStats.AvgCloseScore, 0.0001)
}

func TestHandleBatch_EmptyAndMissing(t *testing.T) {
	_, ts := newTestServer(t)

	for _, body := range []string{`{}`, `{"companies": []}`} {
		resp := postJSON(t, ts.URL+"/batch", body)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	}
}

func TestHandleBatch_TooLarge(t *testing.T) {
	_, ts := newTestServer(t)

	var b bytes.Buffer
	b.WriteString(`{"companies": [`)
	for i := 0; i < 101; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"marketing_headcount": 5, "people_count": 100}`)
	}
	b.WriteString(`]}`)

	resp := postJSON(t, ts.URL+"/batch", b.String())
	defer resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestHandleHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	decodeBody(t, resp, &out)
	assert.Equal(t, "healthy", out["status"])
	assert.Equal(t, "v3_simplified", out["model"])
	assert.Equal(t, float64(features.Dim), out["features"])
}

func TestHandleRoot(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	decodeBody(t, resp, &out)
	assert.Equal(t, ServiceName, out["name"])

	required, ok := out["required_inputs"].([]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"marketing_headcount", "people_count"}, required)
}

func TestHandleModelInfo(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/model/info")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	decodeBody(t, resp, &out)
	assert.Equal(t, "v3_simplified", out["version"])
	assert.Equal(t, float64(features.Dim), out["feature_count"])
}

func TestHandleMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRounding(t *testing.T) {
	assert.Equal(t, 0.1117, round4(42.0/376.0))
	assert.Equal(t, 23288.0, round2(0.82*28400))
	assert.Equal(t, 3.14, round2(3.14159))
}
