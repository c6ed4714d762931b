package core

// stream.go delivers pipeline output to consumers.
//
// The pipeline publishes two things: a Result for every file that made it
// through, and a Notice for every file that did not. Emitter and Notifier are
// the two sinks; ResultStream implements both and fans events out to any
// number of subscribers over channels.

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Emitter receives exactly one Result per successfully processed file.
type Emitter interface {
	Emit(ctx context.Context, r Result)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, r Result)

func (f EmitterFunc) Emit(ctx context.Context, r Result) { f(ctx, r) }

// Notice is a user-visible report of one failed file.
type Notice struct {
	Filename string      `json:"filename"`
	Category Category    `json:"category"`
	Message  UserMessage `json:"message"`
	Err      error       `json:"-"`
}

// Text renders the notice the way FormatUserError does.
func (n Notice) Text() string {
	return n.Message.Message + " (Code: " + n.Message.Code + "). " + n.Message.Action
}

// Notifier receives one Notice per failed file.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// LogNotifier writes notices to the default slog logger.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, n Notice) {
	slog.WarnContext(ctx, "file rejected",
		"file", n.Filename,
		"category", n.Category.String(),
		"code", n.Message.Code,
		"message", n.Message.Message,
		"error", n.Err,
	)
}

// EventKind distinguishes stream events.
type EventKind string

const (
	EventResult EventKind = "result"
	EventNotice EventKind = "notice"
)

// Event is one item on a ResultStream.
type Event struct {
	Kind   EventKind
	At     time.Time
	Result Result
	Notice *Notice
}

// MarshalJSON flattens the event for SSE and CLI output.
func (e Event) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"kind": e.Kind,
		"at":   e.At,
	}
	switch e.Kind {
	case EventResult:
		if e.Result != nil {
			out["category"] = e.Result.Category()
			out["result"] = e.Result
		}
	case EventNotice:
		if e.Notice != nil {
			out["category"] = e.Notice.Category
			out["notice"] = e.Notice
		}
	}
	return json.Marshal(out)
}

// DefaultStreamBuffer is the per-subscriber channel capacity.
const DefaultStreamBuffer = 64

// ResultStream broadcasts results and notices to subscribers.
// Publishing never waits on a subscriber: one whose buffer is full is
// evicted and its channel closed, so a stalled reader cannot hold up
// ingestion for everyone else.
type ResultStream struct {
	buffer int

	mu      sync.Mutex
	subs    map[uint64]chan Event
	nextID  uint64
	closed  bool
	evicted uint64
}

// NewResultStream creates a stream with the given per-subscriber buffer.
func NewResultStream(buffer int) *ResultStream {
	if buffer <= 0 {
		buffer = DefaultStreamBuffer
	}
	return &ResultStream{
		buffer: buffer,
		subs:   make(map[uint64]chan Event),
	}
}

// Subscribe returns a channel of events and a cancel func that detaches it.
// The channel is closed when the stream closes or when the subscriber falls
// a full buffer behind; cancel never closes it.
func (s *ResultStream) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, s.buffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextID
	s.nextID++
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
	return ch, cancel
}

// Emit publishes a result.
func (s *ResultStream) Emit(ctx context.Context, r Result) {
	s.publish(ctx, Event{Kind: EventResult, At: time.Now(), Result: r})
}

// Notify publishes a notice.
func (s *ResultStream) Notify(ctx context.Context, n Notice) {
	s.publish(ctx, Event{Kind: EventNotice, At: time.Now(), Notice: &n})
}

func (s *ResultStream) publish(ctx context.Context, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			close(ch)
			delete(s.subs, id)
			s.evicted++
			slog.WarnContext(ctx, "result subscriber evicted", "subscriber", id, "buffer", s.buffer)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (s *ResultStream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Evicted returns how many subscribers were dropped for falling behind.
func (s *ResultStream) Evicted() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evicted
}

// Close detaches every subscriber and closes their channels.
func (s *ResultStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
}

// Tee fans a single publish out to several emitters and notifiers.
type Tee struct {
	Emitters  []Emitter
	Notifiers []Notifier
}

func (t Tee) Emit(ctx context.Context, r Result) {
	for _, e := range t.Emitters {
		e.Emit(ctx, r)
	}
}

func (t Tee) Notify(ctx context.Context, n Notice) {
	for _, nf := range t.Notifiers {
		nf.Notify(ctx, n)
	}
}
