// Package agent runs one conversation turn end to end: it serializes the
// turn on the user's session, steps the dialogue engine and hands confirmed
// bookings to the lead sink.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/odonto-agent/internal/dialogue"
	"github.com/wolfman30/odonto-agent/internal/observability/metrics"
	"github.com/wolfman30/odonto-agent/pkg/logging"
)

var agentTracer = otel.Tracer("odonto.internal.agent")

// AnonymousUser is used when a channel delivers a message without a sender.
const AnonymousUser = "anonymous"

const defaultSinkTimeout = 5 * time.Second

// ErrTurnFailed wraps unexpected failures while computing a turn.
var ErrTurnFailed = errors.New("agent: turn failed")

// SessionStore is the part of session.MemoryStore the service depends on.
type SessionStore interface {
	Update(userID string, fn func(dialogue.Session) dialogue.Session) dialogue.Session
}

// LeadSink receives confirmed bookings.
type LeadSink interface {
	Append(ctx context.Context, rec dialogue.LeadRecord) error
}

// Inbound is one message as seen by a channel adapter.
type Inbound struct {
	UserID    string
	RawSender string
	Text      string
	// Channel tags the lead, for example "twilio-sandbox" or "meta-cloud".
	Channel string
}

// Outcome is the reply for the channel plus what happened on the turn.
type Outcome struct {
	Reply   string
	State   dialogue.State
	Lead    *dialogue.LeadRecord
	Handoff bool
	// LeadErr is set when the booking was confirmed but the sink failed.
	LeadErr error
}

// Service wires the engine to session storage and lead persistence.
type Service struct {
	engine      *dialogue.Engine
	sessions    SessionStore
	sink        LeadSink
	metrics     *metrics.ConversationMetrics
	logger      *logging.Logger
	now         func() time.Time
	sinkTimeout time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithLeadSink sets where confirmed bookings go.
func WithLeadSink(sink LeadSink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithMetrics records turn counters and latency.
func WithMetrics(m *metrics.ConversationMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSinkTimeout bounds each lead sink call.
func WithSinkTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sinkTimeout = d
		}
	}
}

// NewService creates the turn service. engine and sessions are required.
func NewService(engine *dialogue.Engine, sessions SessionStore, opts ...Option) *Service {
	if engine == nil {
		panic("agent: engine required")
	}
	if sessions == nil {
		panic("agent: session store required")
	}
	s := &Service{
		engine:      engine,
		sessions:    sessions,
		logger:      logging.Default(),
		now:         time.Now,
		sinkTimeout: defaultSinkTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine exposes the engine for adapters that need its static texts.
func (s *Service) Engine() *dialogue.Engine { return s.engine }

// HandleTurn processes one inbound message. Turns for the same user are
// serialized; the session is committed before the lead sink runs, so a sink
// failure never rolls back the conversation.
func (s *Service) HandleTurn(ctx context.Context, in Inbound) (out Outcome, err error) {
	ctx, span := agentTracer.Start(ctx, "agent.handle_turn")
	defer span.End()
	start := s.now()

	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		userID = AnonymousUser
	}
	span.SetAttributes(attribute.String("agent.user_id", userID))

	var (
		res  dialogue.Result
		prev dialogue.State
	)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTurnFailed, r)
			span.RecordError(err)
			span.SetStatus(codes.Error, "panic")
			s.logger.Error("turn panicked", "user_id", userID, "panic", r)
		}
	}()

	s.sessions.Update(userID, func(cur dialogue.Session) dialogue.Session {
		prev = cur.State
		res = s.engine.Step(cur, dialogue.Turn{
			Text:      in.Text,
			RawSender: in.RawSender,
			At:        s.now(),
			Channel:   in.Channel,
		})
		return res.Session
	})

	out = Outcome{
		Reply:   res.Reply,
		State:   res.Session.State,
		Lead:    res.Lead,
		Handoff: res.Handoff,
	}
	span.SetAttributes(
		attribute.String("agent.from_state", prev.String()),
		attribute.String("agent.to_state", out.State.String()),
	)
	if res.Handoff {
		s.metrics.ObserveHandoff()
	}

	if res.Lead != nil {
		out.LeadErr = s.persistLead(ctx, *res.Lead)
		if out.LeadErr != nil {
			span.RecordError(out.LeadErr)
		}
	}

	s.metrics.ObserveTurn(prev.String(), out.State.String(), s.now().Sub(start).Seconds())
	s.logger.Debug("turn handled",
		"user_id", userID,
		"from_state", prev.String(),
		"to_state", out.State.String(),
		"handoff", res.Handoff,
	)
	return out, nil
}

func (s *Service) persistLead(ctx context.Context, rec dialogue.LeadRecord) error {
	if s.sink == nil {
		s.metrics.ObserveLead("skipped")
		s.logger.Warn("lead confirmed but no sink configured", "user_id", rec.UserID)
		return nil
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.sinkTimeout)
	defer cancel()

	if err := s.sink.Append(ctx, rec); err != nil {
		s.metrics.ObserveLead("failed")
		s.logger.Error("failed to persist lead", "error", err, "user_id", rec.UserID)
		return err
	}
	s.metrics.ObserveLead("persisted")
	s.logger.Info("lead persisted", "user_id", rec.UserID, "period", string(rec.Period), "channel", rec.Channel)
	return nil
}
