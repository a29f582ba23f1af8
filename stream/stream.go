// Package stream defines the tagged union of model-output stream events and
// the formatter that maps them to wire records. Events are produced by task
// code and consumed by streaming transports (SSE, WebSockets); the transport
// itself is outside this package, which only translates an event variant
// into a textual event-type label plus a serialized payload.
//
// Events are immutable after construction and safe to share across
// goroutines.
package stream

import (
	"goa.design/runctx/mdc"
)

type (
	// Event describes a streaming event. All concrete event types embed
	// Base to provide standard metadata (type, run ID, payload). Consumers
	// that need structured field access type-assert to concrete types; use
	// Payload for generic serialization.
	Event interface {
		// Type returns the event type constant (e.g., EventOutputTextDelta).
		Type() EventType

		// RunID returns the identifier of the task run that produced this
		// event. All events within a single run share the same run ID.
		RunID() string

		// Context returns the diagnostic context attached to the event, if
		// any. Transports may surface it for correlation; the formatter
		// does not serialize it into the payload.
		Context() mdc.Map

		// Payload returns the event-specific data in a JSON-serializable
		// form.
		Payload() any
	}

	// OutputTextDelta streams an incremental fragment of model output text.
	// Clients concatenate Data.Text from sequential deltas to reconstruct
	// the full message.
	OutputTextDelta struct {
		Base
		Data OutputTextDeltaPayload
	}

	// OutputTextDone marks the completion of one output text item and
	// carries the final accumulated text.
	OutputTextDone struct {
		Base
		Data OutputTextDonePayload
	}

	// ToolCallArgsDelta streams an incremental tool-call argument fragment.
	// Fragments are not guaranteed to be valid JSON on their own.
	ToolCallArgsDelta struct {
		Base
		Data ToolCallArgsDeltaPayload
	}

	// Usage reports token usage for a model invocation.
	Usage struct {
		Base
		Data UsagePayload
	}

	// RunCompleted signals the successful end of a run. No further events
	// for the run follow it.
	RunCompleted struct {
		Base
		Data RunCompletedPayload
	}

	// RunFailed signals the unsuccessful end of a run.
	RunFailed struct {
		Base
		Data RunFailedPayload
	}

	// OutputTextDeltaPayload is the typed wire payload for output text deltas.
	OutputTextDeltaPayload struct {
		// ItemIndex identifies the output item the fragment belongs to.
		ItemIndex int `json:"item_index"`
		// Text is the raw output fragment.
		Text string `json:"text"`
	}

	// OutputTextDonePayload is the typed wire payload for completed output items.
	OutputTextDonePayload struct {
		ItemIndex int    `json:"item_index"`
		Text      string `json:"text"`
	}

	// ToolCallArgsDeltaPayload is the typed wire payload for tool-call
	// argument fragments.
	ToolCallArgsDeltaPayload struct {
		// ToolCallID identifies the tool call being streamed.
		ToolCallID string `json:"tool_call_id"`
		// ToolName is the canonical tool identifier for this delta stream.
		ToolName string `json:"tool_name"`
		// Delta is the raw argument JSON fragment emitted by the provider.
		Delta string `json:"delta"`
	}

	// UsagePayload describes token usage details.
	UsagePayload struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	}

	// RunCompletedPayload is the typed wire payload for run completion.
	RunCompletedPayload struct {
		// Reason is the terminal reason, e.g. "stop" or "max_tokens".
		Reason string `json:"reason,omitempty"`
	}

	// RunFailedPayload is the typed wire payload for run failure.
	RunFailedPayload struct {
		// Error is a user-safe error message.
		Error string `json:"error"`
		// Retryable reports whether retrying may succeed without changing
		// the request.
		Retryable bool `json:"retryable"`
	}

	// Base provides a default implementation of Event. Embed it in concrete
	// event types to inherit the Type, RunID, Context and Payload methods.
	// Field names are abbreviated since Base fields are rarely accessed
	// directly.
	Base struct {
		t EventType
		r string
		m mdc.Map
		p any
	}

	// Profile selects which event kinds a formatter emits for a particular
	// audience.
	Profile struct {
		// OutputText controls output_text.delta and output_text.done emission.
		OutputText bool
		// ToolCallArgs controls tool_call_args.delta emission.
		ToolCallArgs bool
		// Usage controls usage emission.
		Usage bool
		// Lifecycle controls run.completed and run.failed emission.
		Lifecycle bool
	}
)

// EventType enumerates stream payload flavors.
type EventType string

const (
	// EventOutputTextDelta streams an incremental model output text fragment.
	EventOutputTextDelta EventType = "output_text.delta"

	// EventOutputTextDone marks completion of one output text item.
	EventOutputTextDone EventType = "output_text.done"

	// EventToolCallArgsDelta streams an incremental tool-call argument
	// fragment as the provider constructs the final tool input JSON.
	EventToolCallArgsDelta EventType = "tool_call_args.delta"

	// EventUsage streams token usage details.
	EventUsage EventType = "usage"

	// EventRunCompleted marks the successful end of a run.
	EventRunCompleted EventType = "run.completed"

	// EventRunFailed marks the unsuccessful end of a run.
	EventRunFailed EventType = "run.failed"
)

// NewBase constructs a Base event with the given type, run ID, optional
// diagnostic context, and payload.
func NewBase(t EventType, runID string, m mdc.Map, payload any) Base {
	return Base{t: t, r: runID, m: m.Clone(), p: payload}
}

// Type implements Event.Type.
func (e Base) Type() EventType { return e.t }

// RunID implements Event.RunID.
func (e Base) RunID() string { return e.r }

// Context implements Event.Context.
func (e Base) Context() mdc.Map { return e.m.Clone() }

// Payload implements Event.Payload.
func (e Base) Payload() any { return e.p }

// DefaultProfile returns a Profile that emits all event kinds.
func DefaultProfile() Profile {
	return Profile{
		OutputText:   true,
		ToolCallArgs: true,
		Usage:        true,
		Lifecycle:    true,
	}
}

// MetricsProfile returns a Profile that emits only usage and lifecycle
// events, suitable for metrics pipelines.
func MetricsProfile() Profile {
	return Profile{Usage: true, Lifecycle: true}
}

// Emits reports whether the profile includes the given event type.
func (p Profile) Emits(t EventType) bool {
	switch t {
	case EventOutputTextDelta, EventOutputTextDone:
		return p.OutputText
	case EventToolCallArgsDelta:
		return p.ToolCallArgs
	case EventUsage:
		return p.Usage
	case EventRunCompleted, EventRunFailed:
		return p.Lifecycle
	default:
		return false
	}
}
