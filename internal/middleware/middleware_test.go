package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(reg prometheus.Registerer) (*gin.Engine, *PrometheusMiddleware) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	pm := NewPrometheusMiddleware("test", reg)
	r.Use(NewRequestLogger().Handler())
	r.Use(pm.Handler())
	r.GET("/ok", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	r.GET("/fail", func(c *gin.Context) { c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"}) })
	return r, pm
}

func serve(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestPrometheusMiddleware_BasicMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	r, pm := newRouter(registry)

	assert.Equal(t, http.StatusOK, serve(r, "/ok").Code)
	assert.Equal(t, http.StatusInternalServerError, serve(r, "/fail").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, "/nowhere").Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(pm.Errors().WithLabelValues("GET", "/fail", "500")))
	assert.Equal(t, float64(1), testutil.ToFloat64(pm.Errors().WithLabelValues("GET", "unmatched", "404")),
		"неизвестные пути сводятся к одной метке")

	families, err := registry.Gather()
	require.NoError(t, err)
	var durationFound bool
	for _, mf := range families {
		if mf.GetName() == "test_http_request_duration_seconds" {
			durationFound = true
			assert.Len(t, mf.Metric, 3)
		}
	}
	assert.True(t, durationFound, "метрика длительности не найдена")
}

func TestPrometheusMiddleware_NilRegistererDoesNotPanic(t *testing.T) {
	r, _ := newRouter(nil)
	assert.Equal(t, http.StatusOK, serve(r, "/ok").Code)

	// повторное создание без реестра не конфликтует
	assert.NotPanics(t, func() { NewPrometheusMiddleware("test", nil) })
}

func TestRequestLogger_SetsTraceID(t *testing.T) {
	r, _ := newRouter(nil)
	var seen string
	r.GET("/trace", func(c *gin.Context) {
		seen = c.GetString(TraceIDKey)
		c.Status(http.StatusNoContent)
	})

	w := serve(r, "/trace")
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Trace-Id"))

	other := serve(r, "/trace")
	assert.NotEqual(t, w.Header().Get("X-Trace-Id"), other.Header().Get("X-Trace-Id"), "у каждого запроса свой trace-id")
}

func TestMetricsHandler_ServesGatherer(t *testing.T) {
	registry := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "tileworld_sample_total", Help: "sample"})
	registry.MustRegister(c)
	c.Inc()

	w := serve(MetricsHandler(registry), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tileworld_sample_total 1")
}
