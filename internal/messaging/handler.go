package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/odonto-agent/internal/agent"
	"github.com/wolfman30/odonto-agent/internal/events"
	"github.com/wolfman30/odonto-agent/internal/observability/metrics"
	"github.com/wolfman30/odonto-agent/pkg/logging"
)

var twilioTracer = otel.Tracer("odonto.internal.messaging.twilio")

// ErrorReply is sent when the turn could not be computed.
const ErrorReply = "Ops, tive um problema temporário. Tente novamente em instantes 🙏"

const (
	providerTwilio = "twilio"
	providerMeta   = "meta"
)

// TurnHandler runs one conversation turn.
type TurnHandler interface {
	HandleTurn(ctx context.Context, in agent.Inbound) (agent.Outcome, error)
}

// HandlerConfig configures the Twilio WhatsApp webhook.
type HandlerConfig struct {
	// AuthToken enables X-Twilio-Signature validation when set.
	AuthToken string
	// PublicBaseURL is the externally visible origin used to rebuild the
	// signed URL behind proxies. Empty means derive it from the request.
	PublicBaseURL string
	// Channel tags leads confirmed through this webhook.
	Channel string
}

// Handler handles the Twilio WhatsApp webhook.
type Handler struct {
	cfg     HandlerConfig
	turns   TurnHandler
	dedup   events.Deduper
	metrics *metrics.ConversationMetrics
	logger  *logging.Logger
}

// NewHandler creates the Twilio handler. dedup and m may be nil.
func NewHandler(cfg HandlerConfig, turns TurnHandler, dedup events.Deduper, m *metrics.ConversationMetrics, logger *logging.Logger) *Handler {
	if turns == nil {
		panic("messaging: turn handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{cfg: cfg, turns: turns, dedup: dedup, metrics: m, logger: logger}
}

// TwilioWhatsApp handles POST /twilio/whatsapp and answers with TwiML.
func (h *Handler) TwilioWhatsApp(w http.ResponseWriter, r *http.Request) {
	ctx, span := twilioTracer.Start(r.Context(), "messaging.twilio.whatsapp")
	defer span.End()

	if h.cfg.AuthToken != "" {
		if !ValidateTwilioSignature(r, h.cfg.AuthToken, h.signedURL(r)) {
			h.logger.Warn("invalid twilio signature")
			h.metrics.ObserveInbound(providerTwilio, "unauthorized")
			span.RecordError(errors.New("invalid twilio signature"))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	msg, err := ParseTwilioWhatsApp(r)
	if err != nil {
		h.logger.Error("failed to parse twilio webhook", "error", err)
		h.metrics.ObserveInbound(providerTwilio, "bad_request")
		span.RecordError(err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	userID := UserIDFromSender(msg.From)
	if userID == "" {
		userID = agent.AnonymousUser
	}
	span.SetAttributes(
		attribute.String("odonto.twilio.message_sid", msg.MessageSid),
		attribute.String("odonto.user_id", userID),
	)

	if h.isDuplicate(ctx, providerTwilio, msg.MessageSid) {
		writeTwiML(w, "")
		return
	}

	out, err := h.turns.HandleTurn(ctx, agent.Inbound{
		UserID:    userID,
		RawSender: msg.From,
		Text:      msg.Body,
		Channel:   h.cfg.Channel,
	})
	if err != nil {
		h.logger.Error("turn failed", "error", err, "user_id", userID, "message_sid", msg.MessageSid)
		releaseDuplicate(ctx, h.dedup, h.logger, providerTwilio, msg.MessageSid)
		h.metrics.ObserveInbound(providerTwilio, "error")
		span.RecordError(err)
		writeTwiML(w, ErrorReply)
		return
	}

	h.metrics.ObserveInbound(providerTwilio, "ok")
	writeTwiML(w, out.Reply)
}

// isDuplicate reports a redelivered message id. Dedup failures let the message through.
func (h *Handler) isDuplicate(ctx context.Context, provider, id string) bool {
	return checkDuplicate(ctx, h.dedup, h.metrics, h.logger, provider, id)
}

func checkDuplicate(ctx context.Context, dedup events.Deduper, m *metrics.ConversationMetrics, logger *logging.Logger, provider, id string) bool {
	if dedup == nil || id == "" {
		return false
	}
	first, err := dedup.MarkProcessed(ctx, provider, id)
	if err != nil {
		logger.Warn("webhook dedup unavailable", "error", err, "provider", provider)
		return false
	}
	if !first {
		logger.Info("duplicate webhook dropped", "provider", provider, "message_id", id)
		m.ObserveDuplicate(provider)
		return true
	}
	return false
}

// releaseDuplicate forgets an id whose turn failed so a retry is handled.
func releaseDuplicate(ctx context.Context, dedup events.Deduper, logger *logging.Logger, provider, id string) {
	if dedup == nil || id == "" {
		return
	}
	if err := dedup.Forget(ctx, provider, id); err != nil {
		logger.Warn("webhook dedup release failed", "error", err, "provider", provider)
	}
}

func (h *Handler) signedURL(r *http.Request) string {
	if base := strings.TrimRight(h.cfg.PublicBaseURL, "/"); base != "" {
		return base + r.URL.RequestURI()
	}
	return buildAbsoluteURL(r)
}

// HealthCheck answers GET /health.
func HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func buildAbsoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}
