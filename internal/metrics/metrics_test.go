package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentHandler_UsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(InstrumentHandler)
	router.HandleFunc("/v1/users/{userId}/summary", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}).Methods(http.MethodGet)

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/v1/users/{userId}/summary", "418"))

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/users/"+id+"/summary", nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/v1/users/{userId}/summary", "418"))
	assert.Equal(t, 3.0, after-before)
}

func TestRecordAccrualTick(t *testing.T) {
	partialBefore := testutil.ToFloat64(accrualTicks.WithLabelValues("partial"))
	creditedBefore := testutil.ToFloat64(accrualCredited)
	forfeitedBefore := testutil.ToFloat64(accrualCycles.WithLabelValues("forfeited"))

	RecordAccrualTick(TickResult{
		Processed: 3,
		Failed:    1,
		Cycles:    2,
		Forfeited: 1,
		Credited:  decimal.RequireFromString("45.50"),
	}, 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(accrualTicks.WithLabelValues("partial"))-partialBefore)
	assert.InDelta(t, 45.5, testutil.ToFloat64(accrualCredited)-creditedBefore, 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(accrualCycles.WithLabelValues("forfeited"))-forfeitedBefore)
}

func TestHandler_ExposesLedgerMetrics(t *testing.T) {
	RecordOperationError("INSUFFICIENT_FUNDS")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `investment_ledger_api_errors_total{code="INSUFFICIENT_FUNDS"}`))
	assert.True(t, strings.Contains(body, "investment_ledger_accrual_ticks_total") || strings.Contains(body, "go_goroutines"))
}
