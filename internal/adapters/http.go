package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ArashiWander/Argus-sub001/internal/ingest"
	"github.com/ArashiWander/Argus-sub001/internal/utils"
)

// HTTPAdapter accepts JSON telemetry over HTTP POST endpoints.
type HTTPAdapter struct {
	address string
	service *ingest.Service
	logger  *slog.Logger
	server  *http.Server
}

// NewHTTPAdapter constructs the HTTP ingestion listener.
func NewHTTPAdapter(address string, service *ingest.Service, logger *slog.Logger) *HTTPAdapter {
	return &HTTPAdapter{
		address: address,
		service: service,
		logger:  utils.ComponentLogger(logger, "http-adapter"),
	}
}

// Name identifies the adapter.
func (a *HTTPAdapter) Name() string { return "http" }

// Start binds the listener and serves in the background.
func (a *HTTPAdapter) Start(_ context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /metrics", a.handleMetric)
	mux.HandleFunc("POST /logs", a.handleLog)
	mux.HandleFunc("POST /logs/bulk", a.handleBulkLogs)
	mux.HandleFunc("POST /traces", a.handleSpan)
	mux.HandleFunc("POST /events", a.handleSecurityEvent)

	listener, err := net.Listen("tcp", a.address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.address, err)
	}

	a.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		if err := a.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http listener exited", slog.Any("error", err))
		}
	}()
	a.logger.Info("http adapter listening", slog.String("address", a.address))
	return nil
}

// Stop shuts the server down gracefully, letting in-flight requests finish.
func (a *HTTPAdapter) Stop(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

func (a *HTTPAdapter) handleMetric(w http.ResponseWriter, r *http.Request) {
	var in ingest.MetricInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	metric, err := a.service.IngestMetric(r.Context(), in)
	if err != nil {
		a.reject(w, "metric", err)
		return
	}
	ingest.CountIngest("http", "metric")
	writeJSON(w, http.StatusCreated, map[string]string{"id": metric.ID})
}

func (a *HTTPAdapter) handleLog(w http.ResponseWriter, r *http.Request) {
	var in ingest.LogInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	entry, err := a.service.IngestLog(r.Context(), in)
	if err != nil {
		a.reject(w, "log", err)
		return
	}
	ingest.CountIngest("http", "log")
	writeJSON(w, http.StatusCreated, map[string]string{"id": entry.ID})
}

// handleBulkLogs processes each element independently: one malformed entry is
// reported and skipped, it never aborts the batch.
func (a *HTTPAdapter) handleBulkLogs(w http.ResponseWriter, r *http.Request) {
	var batch []ingest.LogInput
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	stored := 0
	var failures []string
	for i, in := range batch {
		if _, err := a.service.IngestLog(r.Context(), in); err != nil {
			ingest.CountRejection("log")
			a.logger.Warn("bulk log entry skipped",
				slog.Int("index", i), slog.Any("error", err))
			failures = append(failures, fmt.Sprintf("entry %d: %v", i, err))
			continue
		}
		ingest.CountIngest("http", "log")
		stored++
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"stored": stored,
		"failed": len(failures),
		"errors": failures,
	})
}

func (a *HTTPAdapter) handleSpan(w http.ResponseWriter, r *http.Request) {
	var in ingest.SpanInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	span, err := a.service.IngestSpan(r.Context(), in)
	if err != nil {
		a.reject(w, "span", err)
		return
	}
	ingest.CountIngest("http", "span")
	writeJSON(w, http.StatusCreated, map[string]string{"trace_id": span.TraceID, "span_id": span.SpanID})
}

func (a *HTTPAdapter) handleSecurityEvent(w http.ResponseWriter, r *http.Request) {
	var in ingest.SecurityEventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	event, err := a.service.IngestSecurityEvent(r.Context(), in)
	if err != nil {
		a.reject(w, "security_event", err)
		return
	}
	ingest.CountIngest("http", "security_event")
	writeJSON(w, http.StatusCreated, map[string]any{"id": event.ID, "risk_score": event.RiskScore})
}

func (a *HTTPAdapter) reject(w http.ResponseWriter, recordType string, err error) {
	if utils.IsValidation(err) {
		ingest.CountRejection(recordType)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	a.logger.Warn("ingestion failed", slog.String("type", recordType), slog.Any("error", err))
	writeError(w, http.StatusServiceUnavailable, err)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
