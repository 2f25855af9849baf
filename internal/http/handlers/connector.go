package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/gmx-sms-connector/internal/connector"
	"github.com/wolfman30/gmx-sms-connector/internal/gateway"
	"github.com/wolfman30/gmx-sms-connector/internal/queue"
	"github.com/wolfman30/gmx-sms-connector/internal/transliterate"
	"github.com/wolfman30/gmx-sms-connector/pkg/logging"
)

const maxBodyBytes = 64 << 10

type connectorService interface {
	Status(ctx context.Context) (connector.Info, error)
	Measure(text string) transliterate.Length
	Bootstrap(ctx context.Context) error
	Update(ctx context.Context) (string, error)
	Send(ctx context.Context, msg gateway.OutgoingMessage) (*connector.SendResult, error)
}

// ConnectorHandler exposes the connector operations over HTTP.
type ConnectorHandler struct {
	connector connectorService
	outbox    queue.Client
	logger    *logging.Logger
}

type ConnectorHandlerConfig struct {
	Connector connectorService
	// Outbox is optional; without it POST /outbox answers 503.
	Outbox queue.Client
	Logger *logging.Logger
}

func NewConnectorHandler(cfg ConnectorHandlerConfig) *ConnectorHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &ConnectorHandler{
		connector: cfg.Connector,
		outbox:    cfg.Outbox,
		logger:    cfg.Logger,
	}
}

type messageRequest struct {
	Kind         string     `json:"kind,omitempty"`
	Text         string     `json:"text"`
	Recipients   []string   `json:"recipients"`
	CustomSender string     `json:"custom_sender,omitempty"`
	SendAt       *time.Time `json:"send_at,omitempty"`
}

func (m messageRequest) message() gateway.OutgoingMessage {
	return gateway.OutgoingMessage{
		Text:         m.Text,
		Recipients:   m.Recipients,
		CustomSender: m.CustomSender,
		SendAt:       m.SendAt,
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Outcome string `json:"outcome,omitempty"`
}

// Status reports readiness, balance and host cursor.
func (h *ConnectorHandler) Status(w http.ResponseWriter, r *http.Request) {
	info, err := h.connector.Status(r.Context())
	if err != nil {
		h.fail(w, "status", err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *ConnectorHandler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	if err := h.connector.Bootstrap(r.Context()); err != nil {
		h.fail(w, "bootstrap", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"bootstrapped": true})
}

func (h *ConnectorHandler) Update(w http.ResponseWriter, r *http.Request) {
	balance, err := h.connector.Update(r.Context())
	if err != nil {
		h.fail(w, "update", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"balance": balance})
}

// Send delivers a message synchronously.
func (h *ConnectorHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.connector.Send(r.Context(), req.message())
	if err != nil {
		h.fail(w, "send", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Length measures a text after transliteration.
func (h *ConnectorHandler) Length(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.connector.Measure(req.Text))
}

// Enqueue publishes a job for the worker and answers 202.
func (h *ConnectorHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	if h.outbox == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "outbox disabled"})
		return
	}
	var req messageRequest
	if !decodeBody(w, r, &req) {
		return
	}
	job := queue.Job{Kind: gateway.Operation(strings.ToLower(strings.TrimSpace(req.Kind)))}
	switch job.Kind {
	case "":
		job.Kind = gateway.OpSend
		fallthrough
	case gateway.OpSend:
		if strings.TrimSpace(req.Text) == "" || len(req.Recipients) == 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "text and recipients are required"})
			return
		}
		msg := req.message()
		job.Message = &msg
	case gateway.OpUpdate, gateway.OpBootstrap:
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unknown kind"})
		return
	}
	job, err := queue.Publish(r.Context(), h.outbox, job)
	if err != nil {
		h.logger.Error("enqueue sms job failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "failed to enqueue job"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": job.ID, "kind": job.Kind})
}

func (h *ConnectorHandler) fail(w http.ResponseWriter, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("connector operation failed", "op", op, "error", err)
	} else {
		h.logger.Warn("connector operation rejected", "op", op, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: gateway.Reason(err), Outcome: gateway.Outcome(err)})
}

// StatusFor maps connector and gateway errors to HTTP statuses.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, connector.ErrInvalidMessage):
		return http.StatusBadRequest
	case errors.Is(err, connector.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, gateway.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, gateway.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, gateway.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	case errors.Is(err, gateway.ErrHTTP), errors.Is(err, gateway.ErrMalformedResponse), errors.Is(err, gateway.ErrUnclassified):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid json"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
