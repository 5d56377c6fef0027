package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/odonto-agent/internal/dialogue"
	"github.com/wolfman30/odonto-agent/internal/observability/metrics"
	"github.com/wolfman30/odonto-agent/internal/session"
)

type captureSink struct {
	mu       sync.Mutex
	records  []dialogue.LeadRecord
	err      error
	deadline bool
}

func (c *captureSink) Append(ctx context.Context, rec dialogue.LeadRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, c.deadline = ctx.Deadline()
	c.records = append(c.records, rec)
	return c.err
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

type panicStore struct{}

func (panicStore) Update(string, func(dialogue.Session) dialogue.Session) dialogue.Session {
	panic("store exploded")
}

var fixedNow = time.Date(2025, 8, 20, 16, 3, 52, 0, time.UTC)

func newTestService(t *testing.T, sink LeadSink, opts ...Option) (*Service, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore()
	engine := dialogue.NewEngine(dialogue.Config{HandoffLink: "https://wa.me/5500000000000"})
	base := []Option{WithClock(func() time.Time { return fixedNow })}
	if sink != nil {
		base = append(base, WithLeadSink(sink))
	}
	return NewService(engine, store, append(base, opts...)...), store
}

func converse(t *testing.T, svc *Service, userID string, texts ...string) Outcome {
	t.Helper()
	var out Outcome
	for _, text := range texts {
		var err error
		out, err = svc.HandleTurn(context.Background(), Inbound{UserID: userID, RawSender: "whatsapp:" + userID, Text: text})
		require.NoError(t, err)
	}
	return out
}

func TestHandleTurn_BookingPersistsLead(t *testing.T) {
	sink := &captureSink{}
	svc, store := newTestService(t, sink)

	out := converse(t, svc, "+5532991413852", "oi", "1", "tarde", "2", "Maria Silva", "confirmar")

	assert.Equal(t, dialogue.StateMenu, out.State)
	require.NotNil(t, out.Lead)
	assert.NoError(t, out.LeadErr)
	require.Equal(t, 1, sink.count())
	rec := sink.records[0]
	assert.Equal(t, "Maria Silva", rec.PatientName)
	assert.Equal(t, dialogue.PeriodAfternoon, rec.Period)
	assert.Equal(t, "Sexta 16:30 – Dr. Paulo", rec.SlotChoice)
	assert.Equal(t, "whatsapp:+5532991413852", rec.RawSender)
	assert.Equal(t, fixedNow, rec.Timestamp)
	assert.True(t, sink.deadline, "sink call should be bounded by a timeout")

	sess := store.GetOrCreate("+5532991413852")
	assert.Equal(t, dialogue.StateMenu, sess.State)
	assert.Empty(t, sess.PatientName)
}

func TestHandleTurn_SinkFailureKeepsConfirmation(t *testing.T) {
	sink := &captureSink{err: errors.New("disk full")}
	reg := prometheus.NewRegistry()
	m := metrics.NewConversationMetrics(reg)
	svc, store := newTestService(t, sink, WithMetrics(m))

	out := converse(t, svc, "u1", "1", "manhã", "1", "Ana", "confirmar")

	require.NotNil(t, out.Lead)
	assert.Error(t, out.LeadErr)
	assert.Contains(t, out.Reply, "Confirmado!")
	assert.Equal(t, dialogue.StateMenu, store.GetOrCreate("u1").State)
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "odonto_leads_persisted_total"))
}

func TestHandleTurn_NoSinkConfigured(t *testing.T) {
	svc, _ := newTestService(t, nil)
	out := converse(t, svc, "u1", "1", "manhã", "1", "Ana", "confirmar")
	require.NotNil(t, out.Lead)
	assert.NoError(t, out.LeadErr)
}

func TestHandleTurn_EmptyUserIsAnonymous(t *testing.T) {
	svc, store := newTestService(t, nil)
	_, err := svc.HandleTurn(context.Background(), Inbound{Text: "1"})
	require.NoError(t, err)
	assert.Equal(t, dialogue.StateAskPeriod, store.GetOrCreate(AnonymousUser).State)
}

func TestHandleTurn_HandoffCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewConversationMetrics(reg)
	svc, _ := newTestService(t, nil, WithMetrics(m))

	out := converse(t, svc, "u1", "1", "quero falar com humano")
	assert.True(t, out.Handoff)
	assert.Equal(t, dialogue.StateAskPeriod, out.State)
	assert.Contains(t, out.Reply, "https://wa.me/5500000000000")
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "odonto_dialogue_turns_total"))
}

func TestHandleTurn_ChannelTagsLead(t *testing.T) {
	sink := &captureSink{}
	svc, _ := newTestService(t, sink)
	for _, text := range []string{"1", "manhã", "2", "Ana", "confirmar"} {
		_, err := svc.HandleTurn(context.Background(), Inbound{UserID: "u", Text: text, Channel: "meta-cloud"})
		require.NoError(t, err)
	}
	require.Equal(t, 1, sink.count())
	assert.Equal(t, "meta-cloud", sink.records[0].Channel)
}

func TestHandleTurn_ConcurrentUsersAreIsolated(t *testing.T) {
	sink := &captureSink{}
	svc, _ := newTestService(t, sink)

	users := []string{"+551100000001", "+551100000002", "+551100000003", "+551100000004"}
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			for _, text := range []string{"1", "tarde", "1", "Paciente " + u, "confirmar"} {
				_, err := svc.HandleTurn(context.Background(), Inbound{UserID: u, Text: text})
				assert.NoError(t, err)
			}
		}(u)
	}
	wg.Wait()

	require.Equal(t, len(users), sink.count())
	for _, rec := range sink.records {
		assert.Equal(t, "Paciente "+rec.UserID, rec.PatientName)
	}
}

func TestHandleTurn_SameUserTurnsSerialize(t *testing.T) {
	svc, store := newTestService(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.HandleTurn(context.Background(), Inbound{UserID: "same", Text: "xyz"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, dialogue.StateMenu, store.GetOrCreate("same").State)
}

func TestHandleTurn_RecoversPanics(t *testing.T) {
	engine := dialogue.NewEngine(dialogue.Config{})
	svc := NewService(engine, panicStore{})
	_, err := svc.HandleTurn(context.Background(), Inbound{UserID: "u", Text: "1"})
	assert.ErrorIs(t, err, ErrTurnFailed)
}

func TestNewService_RequiresDependencies(t *testing.T) {
	assert.Panics(t, func() { NewService(nil, session.NewMemoryStore()) })
	assert.Panics(t, func() { NewService(dialogue.NewEngine(dialogue.Config{}), nil) })
}
