// Package gateway exposes the inbound webhook the messaging channel posts
// to, plus the health and metrics endpoints. Signature verification is
// pluggable; the channel provider owns the scheme.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/clearrail/claimflow/conversation"
	"github.com/clearrail/claimflow/logger"
)

const maxBodyBytes = 256 << 10 // 256 KiB

// Processor handles one inbound message. Satisfied by
// conversation.Engine.
type Processor interface {
	Process(ctx context.Context, req conversation.Request) ([]string, error)
}

// inboundMessage is the webhook request body.
type inboundMessage struct {
	Identity  string `json:"identity"`
	Text      string `json:"text"`
	MediaURL  string `json:"media_url,omitempty"`
	MessageID string `json:"message_id"`
}

// webhookResponse is the reply body returned to the channel.
type webhookResponse struct {
	Replies []string `json:"replies"`
}

// Server is the HTTP surface of the service.
type Server struct {
	processor Processor
	verifier  Verifier
	http      *http.Server
}

// New builds a Server listening on addr.
func New(addr string, processor Processor, verifier Verifier) *Server {
	s := &Server{
		processor: processor,
		verifier:  verifier,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	s.http = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	return s
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := s.verifier.Verify(r, maxBodyBytes)
	if err != nil {
		metricWebhook.WithLabelValues("unauthorized").Inc()
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var msg inboundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		metricWebhook.WithLabelValues("bad_request").Inc()
		http.Error(w, "malformed body", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(msg.Identity) == "" {
		metricWebhook.WithLabelValues("bad_request").Inc()
		http.Error(w, "identity is required", http.StatusBadRequest)
		return
	}

	// The channel's correlation id, or a fresh one, rides the context
	// through every log line and downstream call for this message.
	correlationID := r.Header.Get("X-Correlation-Id")
	if correlationID == "" {
		correlationID = uuid.New().String()
	}
	ctx := logger.WithCorrelationID(r.Context(), correlationID)

	replies, err := s.processor.Process(ctx, conversation.Request{
		Identity:  msg.Identity,
		Text:      msg.Text,
		MediaURL:  msg.MediaURL,
		MessageID: msg.MessageID,
	})
	if err != nil {
		logger.Get(ctx).Error("processing inbound message", "error", err)
		metricWebhook.WithLabelValues("error").Inc()
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Correlation-Id", correlationID)
	if err := json.NewEncoder(w).Encode(webhookResponse{Replies: replies}); err != nil {
		logger.Get(ctx).Error("writing webhook response", "error", err)
	}

	metricWebhook.WithLabelValues("ok").Inc()
	metricWebhookDuration.Observe(time.Since(start).Seconds())
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
