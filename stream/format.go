package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"goa.design/runctx/mdc"
)

// ErrUnrecognizedEvent is returned by Format when the event's variant is not
// part of the known set. It indicates a static mismatch between producer and
// formatter, not a transient condition; callers must not retry.
var ErrUnrecognizedEvent = errors.New("stream: unrecognized event variant")

type (
	// Record is the two-part wire form of an event: a textual event-type
	// label and a serialized payload.
	Record struct {
		// Event is the event-type label, e.g. "output_text.delta".
		Event string
		// Data is the serialized payload.
		Data string
	}

	// MarshalFunc serializes an event payload. Format uses encoding/json
	// when nil.
	MarshalFunc func(any) ([]byte, error)
)

// Format maps an event variant to its wire record. The variant set is
// closed: an event whose concrete type matches none of the known variants
// yields an error wrapping ErrUnrecognizedEvent.
func Format(ev Event, marshal MarshalFunc) (Record, error) {
	if marshal == nil {
		marshal = json.Marshal
	}

	var payload any
	switch e := ev.(type) {
	case *OutputTextDelta:
		payload = e.Data
	case *OutputTextDone:
		payload = e.Data
	case *ToolCallArgsDelta:
		payload = e.Data
	case *Usage:
		payload = e.Data
	case *RunCompleted:
		payload = e.Data
	case *RunFailed:
		payload = e.Data
	default:
		return Record{}, fmt.Errorf("%w: %T (type %q)", ErrUnrecognizedEvent, ev, ev.Type())
	}

	data, err := marshal(payload)
	if err != nil {
		return Record{}, fmt.Errorf("stream: marshal %q payload: %w", ev.Type(), err)
	}
	return Record{Event: string(ev.Type()), Data: string(data)}, nil
}

// Format maps ev to its wire record when the profile emits its kind. The
// boolean result reports whether a record was produced; kinds the profile
// filters out return false with no error. Unrecognized variants error
// regardless of the profile.
func (p Profile) Format(ev Event, marshal MarshalFunc) (Record, bool, error) {
	rec, err := Format(ev, marshal)
	if err != nil {
		return Record{}, false, err
	}
	if !p.Emits(ev.Type()) {
		return Record{}, false, nil
	}
	return rec, true, nil
}

// NewOutputTextDelta constructs an output_text.delta event.
func NewOutputTextDelta(runID string, m mdc.Map, itemIndex int, text string) *OutputTextDelta {
	data := OutputTextDeltaPayload{ItemIndex: itemIndex, Text: text}
	return &OutputTextDelta{Base: NewBase(EventOutputTextDelta, runID, m, data), Data: data}
}

// NewOutputTextDone constructs an output_text.done event.
func NewOutputTextDone(runID string, m mdc.Map, itemIndex int, text string) *OutputTextDone {
	data := OutputTextDonePayload{ItemIndex: itemIndex, Text: text}
	return &OutputTextDone{Base: NewBase(EventOutputTextDone, runID, m, data), Data: data}
}

// NewToolCallArgsDelta constructs a tool_call_args.delta event.
func NewToolCallArgsDelta(runID string, m mdc.Map, toolCallID, toolName, delta string) *ToolCallArgsDelta {
	data := ToolCallArgsDeltaPayload{ToolCallID: toolCallID, ToolName: toolName, Delta: delta}
	return &ToolCallArgsDelta{Base: NewBase(EventToolCallArgsDelta, runID, m, data), Data: data}
}

// NewUsage constructs a usage event.
func NewUsage(runID string, m mdc.Map, input, output int) *Usage {
	data := UsagePayload{InputTokens: input, OutputTokens: output}
	return &Usage{Base: NewBase(EventUsage, runID, m, data), Data: data}
}

// NewRunCompleted constructs a run.completed event.
func NewRunCompleted(runID string, m mdc.Map, reason string) *RunCompleted {
	data := RunCompletedPayload{Reason: reason}
	return &RunCompleted{Base: NewBase(EventRunCompleted, runID, m, data), Data: data}
}

// NewRunFailed constructs a run.failed event.
func NewRunFailed(runID string, m mdc.Map, msg string, retryable bool) *RunFailed {
	data := RunFailedPayload{Error: msg, Retryable: retryable}
	return &RunFailed{Base: NewBase(EventRunFailed, runID, m, data), Data: data}
}
