// Package event notifies collaborators of committed ledger, evolution, report
// and mission changes. Notifications are best-effort and never fail the
// operation that produced them.
package event

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Type string

const (
	ProfileApproved  Type = "profile.approved"
	ReportSubmitted  Type = "report.submitted"
	ReportModified   Type = "report.modified"
	EnergyCredited   Type = "energy.credited"
	EnergyDebited    Type = "energy.debited"
	GuardianUnlocked Type = "guardian.unlocked"
	GuardianEvolved  Type = "guardian.evolved"
	MissionClaimed   Type = "mission.claimed"
)

type Event struct {
	Type   Type      `json:"type"`
	UserID string    `json:"user_id"`
	At     time.Time `json:"at"`
	Data   any       `json:"data,omitempty"`
}

// Notifier receives events after their transaction committed.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// Multi fans an event out to several notifiers in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) {
	for _, n := range m {
		n.Notify(ctx, e)
	}
}

type Handler func(ctx context.Context, e Event)

// Bus delivers events synchronously to in-process subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]Handler
	next   int
	logger *zap.SugaredLogger
}

func NewBus(logger *zap.SugaredLogger) *Bus {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Bus{subs: map[int]Handler{}, logger: logger}
}

// Subscribe registers h and returns a func that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = h
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

func (b *Bus) Notify(ctx context.Context, e Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs))
	for _, h := range b.subs {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()
	for _, h := range handlers {
		b.call(ctx, h, e)
	}
}

func (b *Bus) call(ctx context.Context, h Handler, e Event) {
	defer func() {
		if p := recover(); p != nil {
			b.logger.Errorw("event subscriber panicked", "type", e.Type, "user_id", e.UserID, "panic", p)
		}
	}()
	h(ctx, e)
}

// Queue decouples producers from a slow notifier with a bounded buffer and
// one delivery goroutine. Events are dropped, with a warning, when the buffer is full.
type Queue struct {
	next   Notifier
	ch     chan Event
	done   chan struct{}
	once   sync.Once
	logger *zap.SugaredLogger
}

func NewQueue(next Notifier, size int, logger *zap.SugaredLogger) *Queue {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	q := &Queue{next: next, ch: make(chan Event, size), done: make(chan struct{}), logger: logger}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.done)
	for e := range q.ch {
		q.next.Notify(context.Background(), e)
	}
}

// Notify must not be called after Close.
func (q *Queue) Notify(_ context.Context, e Event) {
	select {
	case q.ch <- e:
	default:
		q.logger.Warnw("event queue full; dropping event", "type", e.Type, "user_id", e.UserID)
	}
}

// Close delivers what is buffered and stops the goroutine.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.ch) })
	<-q.done
}
