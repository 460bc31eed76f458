// AngelaMos | 2026
// metrics_test.go

package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestInstrumentHandlerUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/v1/requests/{requestID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/v1/requests/{requestID}", "418"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/requests/abc", nil))

	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/v1/requests/{requestID}", "418"))
	assert.Equal(t, before+1, after)
}

func TestRecordLedgerUsesAbsoluteAmount(t *testing.T) {
	before := testutil.ToFloat64(ledgerAmount.WithLabelValues("user", "service_charge"))

	RecordLedger("user", "service_charge", decimal.NewFromInt(-350))

	after := testutil.ToFloat64(ledgerAmount.WithLabelValues("user", "service_charge"))
	assert.InDelta(t, 350, after-before, 0.001)
}

func TestHandlerServesRegistry(t *testing.T) {
	RecordAnalysis("success")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "musicdesk_analysis_requests_total")
}
