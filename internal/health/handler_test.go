// AngelaMos | 2026
// handler_test.go

package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ok(context.Context) error { return nil }

func failing(context.Context) error { return errors.New("down") }

func readiness(h *Handler) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	return rec
}

func TestReadinessAllHealthy(t *testing.T) {
	h := NewHandler(
		Check{Name: "database", Checker: CheckerFunc(ok), Critical: true},
		Check{Name: "redis", Checker: CheckerFunc(ok), Critical: true},
	)

	rec := readiness(h)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestReadinessCriticalFailure(t *testing.T) {
	h := NewHandler(
		Check{Name: "database", Checker: CheckerFunc(failing), Critical: true},
		Check{Name: "redis", Checker: CheckerFunc(ok), Critical: true},
	)

	rec := readiness(h)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"unavailable"`)
}

func TestReadinessDegradedStaysInRotation(t *testing.T) {
	h := NewHandler(
		Check{Name: "database", Checker: CheckerFunc(ok), Critical: true},
		Check{Name: "storage", Checker: CheckerFunc(failing)},
	)

	rec := readiness(h)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
	assert.Contains(t, rec.Body.String(), `"message":"ping failed"`)
}

func TestShutdownFailsLiveness(t *testing.T) {
	h := NewHandler()
	h.SetShutdown(true)

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
