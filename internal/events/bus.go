package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher receives events after the emitting operation committed.
type Publisher interface {
	Publish(ctx context.Context, evt Event)
}

// Sink is one destination of the bus.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, evt Event) error
}

// Bus fans events out to every sink. A failing sink is logged and skipped; it
// never changes the outcome of the operation that emitted the event.
type Bus struct {
	sinks  []Sink
	logger *zap.Logger
	now    func() time.Time

	mu   sync.Mutex
	last time.Time
}

func NewBus(logger *zap.Logger, sinks ...Sink) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{sinks: sinks, logger: logger, now: time.Now}
}

// Attach adds a sink. It must be called before the bus is shared.
func (b *Bus) Attach(sink Sink) {
	b.sinks = append(b.sinks, sink)
}

func (b *Bus) Publish(ctx context.Context, evt Event) {
	if evt.ID == uuid.Nil {
		evt.ID = uuid.New()
	}
	if evt.EmittedAt.IsZero() {
		evt.EmittedAt = b.stamp()
	}

	b.logger.Info("Event emitted",
		zap.String("type", string(evt.Type)),
		zap.String("component", evt.Component),
		zap.Any("data", evt.Data))

	for _, sink := range b.sinks {
		if err := sink.Deliver(ctx, evt); err != nil {
			b.logger.Warn("Failed to deliver event",
				zap.String("sink", sink.Name()),
				zap.String("type", string(evt.Type)),
				zap.Error(err))
		}
	}
}

// stamp returns a strictly increasing timestamp at the microsecond precision
// of the audit store, so ordering by emitted_at follows publish order.
func (b *Bus) stamp() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := b.now().UTC().Truncate(time.Microsecond)
	if !t.After(b.last) {
		t = b.last.Add(time.Microsecond)
	}
	b.last = t
	return t
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
