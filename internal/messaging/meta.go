package messaging

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/odonto-agent/internal/agent"
	"github.com/wolfman30/odonto-agent/internal/events"
	"github.com/wolfman30/odonto-agent/internal/observability/metrics"
	"github.com/wolfman30/odonto-agent/pkg/logging"
)

var metaTracer = otel.Tracer("odonto.internal.messaging.meta")

// NonTextPlaceholder stands in for media, location and other non-text messages.
const NonTextPlaceholder = "(mensagem não textual)"

const maxMetaBody = 1 << 20

// TextSender delivers an outbound reply.
type TextSender interface {
	SendText(ctx context.Context, to, text string) error
}

// MetaConfig configures the Cloud API webhook.
type MetaConfig struct {
	VerifyToken string
	// AppSecret enables X-Hub-Signature-256 validation when set.
	AppSecret string
	Channel   string
	// SendTimeout bounds the outbound reply.
	SendTimeout time.Duration
}

// MetaHandler serves the WhatsApp Cloud API webhook.
type MetaHandler struct {
	cfg     MetaConfig
	turns   TurnHandler
	sender  TextSender
	dedup   events.Deduper
	metrics *metrics.ConversationMetrics
	logger  *logging.Logger
}

// NewMetaHandler creates the Meta handler. sender may be nil, in which case
// replies are computed and logged but not delivered.
func NewMetaHandler(cfg MetaConfig, turns TurnHandler, sender TextSender, dedup events.Deduper, m *metrics.ConversationMetrics, logger *logging.Logger) *MetaHandler {
	if turns == nil {
		panic("messaging: turn handler cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 15 * time.Second
	}
	if cfg.Channel == "" {
		cfg.Channel = "meta-cloud"
	}
	return &MetaHandler{cfg: cfg, turns: turns, sender: sender, dedup: dedup, metrics: m, logger: logger}
}

// Verify handles the GET subscription challenge.
func (h *MetaHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && h.cfg.VerifyToken != "" && q.Get("hub.verify_token") == h.cfg.VerifyToken {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, q.Get("hub.challenge"))
		return
	}
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// MetaWebhookPayload mirrors the parts of the Cloud API notification we read.
type MetaWebhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []MetaMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// MetaMessage is one inbound Cloud API message.
type MetaMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			Title string `json:"title"`
		} `json:"button_reply,omitempty"`
		ListReply *struct {
			Title string `json:"title"`
		} `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`
}

// FirstMessage returns entry[0].changes[0].value.messages[0].
func (p MetaWebhookPayload) FirstMessage() (MetaMessage, bool) {
	if len(p.Entry) == 0 || len(p.Entry[0].Changes) == 0 || len(p.Entry[0].Changes[0].Value.Messages) == 0 {
		return MetaMessage{}, false
	}
	return p.Entry[0].Changes[0].Value.Messages[0], true
}

// TextContent extracts what the user typed or tapped.
func (m MetaMessage) TextContent() string {
	if m.Text != nil {
		return m.Text.Body
	}
	if m.Interactive != nil {
		if m.Interactive.ButtonReply != nil {
			return m.Interactive.ButtonReply.Title
		}
		if m.Interactive.ListReply != nil {
			return m.Interactive.ListReply.Title
		}
	}
	return NonTextPlaceholder
}

// Receive handles POST notifications. It always answers 200 once the
// request is authentic so Meta does not retry.
func (h *MetaHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx, span := metaTracer.Start(r.Context(), "messaging.meta.webhook")
	defer span.End()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxMetaBody))
	if err != nil {
		h.metrics.ObserveInbound(providerMeta, "bad_request")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if h.cfg.AppSecret != "" && !VerifyMetaSignature(h.cfg.AppSecret, body, r.Header.Get("X-Hub-Signature-256")) {
		h.logger.Warn("invalid meta signature")
		h.metrics.ObserveInbound(providerMeta, "unauthorized")
		span.RecordError(errors.New("invalid meta signature"))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var payload MetaWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("unparseable meta payload", "error", err)
		h.metrics.ObserveInbound(providerMeta, "ignored")
		writeOK(w)
		return
	}
	msg, ok := payload.FirstMessage()
	if !ok {
		// Status callbacks (delivered, read) carry no messages.
		h.metrics.ObserveInbound(providerMeta, "ignored")
		writeOK(w)
		return
	}

	userID := UserIDFromSender(msg.From)
	if userID == "" {
		userID = agent.AnonymousUser
	}
	span.SetAttributes(
		attribute.String("odonto.meta.message_id", msg.ID),
		attribute.String("odonto.user_id", userID),
	)

	if checkDuplicate(ctx, h.dedup, h.metrics, h.logger, providerMeta, msg.ID) {
		writeOK(w)
		return
	}

	out, err := h.turns.HandleTurn(ctx, agent.Inbound{
		UserID:    userID,
		RawSender: msg.From,
		Text:      msg.TextContent(),
		Channel:   h.cfg.Channel,
	})
	reply := out.Reply
	if err != nil {
		h.logger.Error("turn failed", "error", err, "user_id", userID)
		releaseDuplicate(ctx, h.dedup, h.logger, providerMeta, msg.ID)
		h.metrics.ObserveInbound(providerMeta, "error")
		span.RecordError(err)
		reply = ErrorReply
	} else {
		h.metrics.ObserveInbound(providerMeta, "ok")
	}

	h.deliver(ctx, msg.From, reply)
	writeOK(w)
}

func (h *MetaHandler) deliver(ctx context.Context, to, reply string) {
	if h.sender == nil {
		h.logger.Warn("meta sender not configured, reply dropped", "to", to)
		h.metrics.ObserveOutbound(providerMeta, "skipped")
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.SendTimeout)
	defer cancel()
	if err := h.sender.SendText(sendCtx, to, reply); err != nil {
		h.logger.Error("meta send failed", "error", err, "to", to)
		h.metrics.ObserveOutbound(providerMeta, "failed")
		return
	}
	h.metrics.ObserveOutbound(providerMeta, "sent")
}

// VerifyMetaSignature checks the "sha256=<hex>" HMAC of the raw body.
func VerifyMetaSignature(appSecret string, body []byte, signature string) bool {
	const prefix = "sha256="
	if appSecret == "" || !strings.HasPrefix(signature, prefix) {
		return false
	}
	got, err := hex.DecodeString(signature[len(prefix):])
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// SignMetaBody produces the X-Hub-Signature-256 value for body.
func SignMetaBody(appSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}

func writeOK(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "ok")
}
