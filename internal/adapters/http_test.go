package adapters

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ArashiWander/Argus-sub001/internal/ingest"
	"github.com/ArashiWander/Argus-sub001/internal/security"
	"github.com/ArashiWander/Argus-sub001/internal/storage"
)

func newHTTPFixture(t *testing.T) (*HTTPAdapter, *storage.MemoryStorage) {
	t.Helper()
	store := storage.NewMemoryStorage()
	logger := slog.New(slog.NewTextHandler(testWriter{t}, nil))
	service := ingest.NewService(store, security.NewRiskScorer(), nil, logger)
	return NewHTTPAdapter(":0", service, logger), store
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleMetricAccepts(t *testing.T) {
	adapter, _ := newHTTPFixture(t)

	rec := postJSON(t, adapter.handleMetric, `{"name":"cpu.usage","service":"api","value":42}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["id"] == "" {
		t.Fatalf("expected an id in the response")
	}
}

func TestHandleMetricValidationIs400(t *testing.T) {
	adapter, _ := newHTTPFixture(t)

	rec := postJSON(t, adapter.handleMetric, `{"service":"api","value":42}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] == "" {
		t.Fatalf("expected an error message")
	}
}

func TestHandleMetricMalformedBodyIs400(t *testing.T) {
	adapter, _ := newHTTPFixture(t)

	rec := postJSON(t, adapter.handleMetric, `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestHandleLogAccepts(t *testing.T) {
	adapter, _ := newHTTPFixture(t)

	rec := postJSON(t, adapter.handleLog, `{"level":"error","message":"boom","service":"api"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandleBulkLogsPartialFailure(t *testing.T) {
	adapter, _ := newHTTPFixture(t)

	body := `[
		{"level":"error","message":"boom","service":"api"},
		{"level":"error","message":"no service"},
		{"level":"info","message":"fine","service":"api"}
	]`
	rec := postJSON(t, adapter.handleBulkLogs, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Stored int      `json:"stored"`
		Failed int      `json:"failed"`
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Stored != 2 || resp.Failed != 1 {
		t.Fatalf("expected 2 stored / 1 failed, got %+v", resp)
	}
	if len(resp.Errors) != 1 || !strings.Contains(resp.Errors[0], "entry 1") {
		t.Fatalf("expected the failing index in errors, got %v", resp.Errors)
	}
}

func TestHandleSpanDerivesIDs(t *testing.T) {
	adapter, _ := newHTTPFixture(t)

	rec := postJSON(t, adapter.handleSpan, `{"operation":"GET /users","service":"api"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["trace_id"] == "" || resp["span_id"] == "" {
		t.Fatalf("expected generated ids, got %v", resp)
	}
}

func TestHandleSecurityEventReturnsRiskScore(t *testing.T) {
	adapter, _ := newHTTPFixture(t)

	rec := postJSON(t, adapter.handleSecurityEvent,
		`{"event_type":"authentication","severity":"medium","action":"login","outcome":"failure"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		ID        string  `json:"id"`
		RiskScore float64 `json:"risk_score"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.RiskScore != 60 {
		t.Fatalf("expected risk score 60, got %f", resp.RiskScore)
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
