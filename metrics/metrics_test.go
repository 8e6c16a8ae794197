package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	m := New(prometheus.NewRegistry())

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/surveys/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/surveys/"+id, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestCounter.WithLabelValues("GET", "/surveys/{id}", "404")))
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ResponseSubmitted()
	m.Synced(SyncOK)
	m.Synced(SyncFailed)
	m.Synced(SyncFailed)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Responses))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Syncs.WithLabelValues(SyncFailed)))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.ResponseSubmitted()
		nilMetrics.Synced(SyncOK)
	})
}
