package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type fixedStatus map[string]any

func (f fixedStatus) Status() map[string]any { return f }

func TestStatusRouterEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := StatusRouter("systolictl", zerolog.Nop(), fixedStatus{"dimension": 4, "mode": "vector"})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("health status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status code=%d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if body["mode"] != "vector" {
		t.Fatalf("unexpected status body: %#v", body)
	}

	RecordSyncChunk("router", "aligned")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "systolink_sync_chunks_total") {
		t.Fatalf("metrics missing protocol counters: code=%d", rr.Code)
	}
}

func TestStatusRouterWithoutSource(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := StatusRouter("systolictl", zerolog.Nop(), nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestStatusRouterCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := StatusRouter("systolictl", zerolog.Nop(), fixedStatus{}, "http://localhost:3000")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow-origin=%q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("foreign origin status=%d", rr.Code)
	}
}
