package messaging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wolfman30/odonto-agent/internal/agent"
	"github.com/wolfman30/odonto-agent/internal/dialogue"
	"github.com/wolfman30/odonto-agent/internal/session"
)

type stubTurns struct {
	mu    sync.Mutex
	calls []agent.Inbound
	reply string
	err   error
}

func (s *stubTurns) HandleTurn(_ context.Context, in agent.Inbound) (agent.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, in)
	if s.err != nil {
		return agent.Outcome{}, s.err
	}
	return agent.Outcome{Reply: s.reply}, nil
}

type stubSender struct {
	mu   sync.Mutex
	sent map[string][]string
	err  error
}

func (s *stubSender) SendText(_ context.Context, to, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.sent == nil {
		s.sent = make(map[string][]string)
	}
	s.sent[to] = append(s.sent[to], text)
	return nil
}

type failingDedup struct{}

func (failingDedup) MarkProcessed(context.Context, string, string) (bool, error) {
	return false, errors.New("redis down")
}

func (failingDedup) Forget(context.Context, string, string) error {
	return errors.New("redis down")
}

func newAgentService() *agent.Service {
	engine := dialogue.NewEngine(dialogue.Config{HandoffLink: "https://wa.me/5532991413852"})
	return agent.NewService(engine, session.NewMemoryStore(), agent.WithClock(func() time.Time {
		return time.Date(2025, 8, 20, 16, 3, 52, 0, time.UTC)
	}))
}
