package helm

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/deepnoodle-ai/helm/llm"
)

// ErrStreamClosed indicates that an event stream has been closed.
var ErrStreamClosed = errors.New("event stream closed")

// EventType is the kind of progress notification emitted by a controller.
type EventType string

const (
	EventTypeToolCall      EventType = "tool_call"
	EventTypeToolResult    EventType = "tool_result"
	EventTypeAgentResponse EventType = "agent_response"
	EventTypeAgentThinking EventType = "agent_thinking"
	EventTypeMetricsUpdate EventType = "metrics_update"
	EventTypeModelCompact  EventType = "model_compact"
	EventTypeComplete      EventType = "complete"
	EventTypeStatusUpdate  EventType = "status_update"
)

func (t EventType) String() string {
	return string(t)
}

// Event is one progress notification. Events are ordered per (session id,
// run id) and delivered at least once; consumers must tolerate duplicates.
type Event struct {
	// Type of the event.
	Type EventType `json:"type"`

	// SessionID and RunID identify the run that emitted the event.
	SessionID string `json:"session_id"`
	RunID     string `json:"run_id"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// Text carries agent response text, thinking text, the compaction
	// summary, or the final status message, depending on Type.
	Text string `json:"text,omitempty"`

	// ToolCall is set for tool_call events.
	ToolCall *ToolCallRequest `json:"tool_call,omitempty"`

	// ToolResult is set for tool_result events.
	ToolResult *ToolCallResult `json:"tool_result,omitempty"`

	// Usage is set for metrics_update events.
	Usage *llm.Usage `json:"usage,omitempty"`

	// Status is set for complete and status_update events.
	Status RunStatus `json:"status,omitempty"`
}

// EventPublisher delivers progress notifications to observers. Publish is
// fire-and-forget from the controller's perspective: a publish failure is
// logged, never fatal to the run. Implementations must preserve publish
// order per (session id, run id).
type EventPublisher interface {
	// Publish sends one event.
	Publish(ctx context.Context, event *Event) error

	// Close signals that no more events will be published.
	Close()
}

// NullPublisher discards all events.
type NullPublisher struct{}

func (NullPublisher) Publish(ctx context.Context, event *Event) error { return nil }
func (NullPublisher) Close()                                          {}

// EventStream is the consumer side of an in-process event channel.
type EventStream interface {
	// Next advances to the next event. It returns false when the stream is
	// closed or the context is cancelled.
	Next(ctx context.Context) bool

	// Event returns the current event.
	Event() *Event

	// Err returns the error that terminated the stream, if any.
	Err() error

	// Close releases the consumer's interest in the stream.
	Close()
}

// NewEventStream returns a connected stream and publisher pair. The
// publisher side is safe for concurrent use; events are delivered to the
// consumer in publish order.
func NewEventStream() (EventStream, EventPublisher) {
	s := &eventStream{
		ch:   make(chan *Event, 16),
		done: make(chan struct{}),
	}
	p := &eventPublisher{stream: s}
	return s, p
}

type eventStream struct {
	ch        chan *Event
	done      chan struct{}
	curr      *Event
	err       error
	closeOnce sync.Once
}

func (s *eventStream) Next(ctx context.Context) bool {
	select {
	case event, ok := <-s.ch:
		if !ok {
			return false
		}
		s.curr = event
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		s.err = ctx.Err()
		return false
	}
}

func (s *eventStream) Event() *Event {
	return s.curr
}

func (s *eventStream) Err() error {
	return s.err
}

func (s *eventStream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

type eventPublisher struct {
	stream    *eventStream
	mutex     sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func (p *eventPublisher) Publish(ctx context.Context, event *Event) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.closed {
		return ErrStreamClosed
	}
	select {
	case p.stream.ch <- event:
		return nil
	case <-p.stream.done:
		return ErrStreamClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *eventPublisher) Close() {
	p.closeOnce.Do(func() {
		p.mutex.Lock()
		defer p.mutex.Unlock()
		p.closed = true
		close(p.stream.ch)
	})
}
