package events

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultDedupTTL bounds how long a provider message id is remembered.
// Twilio and Meta retry for minutes, never hours.
const DefaultDedupTTL = 10 * time.Minute

// Deduper records inbound webhook ids so provider retries are answered once.
type Deduper interface {
	// MarkProcessed returns true the first time an id is seen for a provider.
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
	// Forget releases an id so a provider retry is processed again.
	Forget(ctx context.Context, provider, eventID string) error
}

// RedisDedup shares seen ids across replicas via SET NX with a TTL.
type RedisDedup struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	tracer trace.Tracer
}

// NewRedisDedup returns nil when client is nil so callers can fall back.
func NewRedisDedup(client *redis.Client, ttl time.Duration) *RedisDedup {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &RedisDedup{
		client: client,
		ttl:    ttl,
		prefix: "odonto:webhook:",
		tracer: otel.Tracer("odonto.internal.events"),
	}
}

func (d *RedisDedup) key(provider, eventID string) string {
	return d.prefix + strings.ToLower(provider) + ":" + eventID
}

// MarkProcessed implements Deduper. An empty eventID is never deduplicated.
func (d *RedisDedup) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	if strings.TrimSpace(eventID) == "" {
		return true, nil
	}
	ctx, span := d.tracer.Start(ctx, "events.dedup.mark_processed",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("webhook.provider", provider)),
	)
	defer span.End()

	ok, err := d.client.SetNX(ctx, d.key(provider, eventID), "1", d.ttl).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return ok, nil
}

// Forget implements Deduper.
func (d *RedisDedup) Forget(ctx context.Context, provider, eventID string) error {
	if strings.TrimSpace(eventID) == "" {
		return nil
	}
	if err := d.client.Del(ctx, d.key(provider, eventID)).Err(); err != nil {
		return fmt.Errorf("events: forget: %w", err)
	}
	return nil
}

// MemoryDedup is the single-process fallback used when Redis is not configured.
type MemoryDedup struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryDedup creates an in-process deduper.
func NewMemoryDedup(ttl time.Duration) *MemoryDedup {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &MemoryDedup{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

// MarkProcessed implements Deduper.
func (d *MemoryDedup) MarkProcessed(_ context.Context, provider, eventID string) (bool, error) {
	if strings.TrimSpace(eventID) == "" {
		return true, nil
	}
	key := strings.ToLower(provider) + ":" + eventID
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()
	for k, at := range d.seen {
		if now.Sub(at) >= d.ttl {
			delete(d.seen, k)
		}
	}
	if _, dup := d.seen[key]; dup {
		return false, nil
	}
	d.seen[key] = now
	return true, nil
}

// Forget implements Deduper.
func (d *MemoryDedup) Forget(_ context.Context, provider, eventID string) error {
	d.mu.Lock()
	delete(d.seen, strings.ToLower(provider)+":"+eventID)
	d.mu.Unlock()
	return nil
}
