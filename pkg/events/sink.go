package events

import (
	"context"
	"encoding/json"
	"fmt"
)

// Sink receives the event stream for a single request. The workflow
// engine is the only producer; it never knows whether the sink renders
// to an HTTP SSE response, a test recorder, or anything else —
// defined as an interface here (rather than a concrete channel type)
// to avoid coupling pkg/workflow to the HTTP edge's transport, the way
// the teacher's agent.EventPublisher decouples pkg/agent from pkg/events.
type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// Encode renders an Event as a single compact JSON object, suitable
// for the body of an SSE "data:" line.
func Encode(event Event) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event.Type(), err)
	}
	return data, nil
}

// Recorder is an in-memory Sink used by tests to capture the emitted
// event sequence for assertions against the protocol grammar in
// spec.md §8 ("Event protocol well-formedness").
type Recorder struct {
	Events []Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit appends the event to the recorded sequence.
func (r *Recorder) Emit(_ context.Context, event Event) error {
	r.Events = append(r.Events, event)
	return nil
}

// Types returns the type discriminator of every recorded event, in
// emission order — a convenient shape for grammar assertions.
func (r *Recorder) Types() []string {
	types := make([]string, len(r.Events))
	for i, e := range r.Events {
		types[i] = e.Type()
	}
	return types
}

// FinalText concatenates the content of every recorded final-channel
// token event, in emission order.
func (r *Recorder) FinalText() string {
	var out string
	for _, e := range r.Events {
		if tok, ok := e.(TokenEvent); ok && tok.Channel == ChannelFinal {
			out += tok.Content
		}
	}
	return out
}

// ReasoningText concatenates the content of every recorded
// reasoning-channel token event, in emission order.
func (r *Recorder) ReasoningText() string {
	var out string
	for _, e := range r.Events {
		if tok, ok := e.(TokenEvent); ok && tok.Channel == ChannelReasoning {
			out += tok.Content
		}
	}
	return out
}
