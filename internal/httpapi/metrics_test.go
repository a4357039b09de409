package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	h := NewMux(&mockService{}, Options{})
	if w := serve(h, http.MethodPost, "/models/metrics_probe/load"); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}

	w := serve(h, http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", w.Code)
	}
	body := w.Body.Bytes()
	if !bytes.Contains(body, []byte(`strbackend_http_requests_total{method="POST",path="/models/{id}/load",status="200"}`)) {
		t.Fatalf("route pattern label missing from metrics")
	}
	if bytes.Contains(body, []byte("metrics_probe")) {
		t.Fatalf("raw path leaked into metric labels")
	}
}

func TestMetricsHandlerOverride(t *testing.T) {
	custom := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("custom"))
	})
	w := httptest.NewRecorder()
	NewMux(&mockService{}, Options{Metrics: custom}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Body.String() != "custom" {
		t.Fatalf("body=%q", w.Body.String())
	}
}
