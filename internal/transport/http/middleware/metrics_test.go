package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMetricsRecordsLockCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)

	registry := prometheus.NewRegistry()
	metrics := NewHTTPMetrics(HTTPMetricsOptions{Registerer: registry})

	router := gin.New()
	router.Use(metrics.Handler())
	router.GET("/api/v1/sessions/:session_id/lock", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/7b1d60cc-9aa5-4f2b-9f3a-6c1f1f6f2a99/lock", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	labels := prometheus.Labels{
		"method": http.MethodGet,
		"route":  "/api/v1/sessions/:session_id/lock",
		"status": "200",
	}
	if got := testutil.ToFloat64(metrics.Requests().With(labels)); got != 1 {
		t.Fatalf("request counter = %f, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.InFlight()); got != 0 {
		t.Fatalf("in-flight gauge = %f, want 0 after completion", got)
	}
}

func TestHTTPMetricsNilHandlerPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use((*HTTPMetrics)(nil).Handler())
	router.POST("/api/v1/attempts", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/attempts", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
