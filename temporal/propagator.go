// Package temporal bridges the diagnostic context into Temporal workers.
// Temporal workflows are cooperatively scheduled tasks multiplexed over a
// bounded pool of worker goroutines, with continuations that may resume on a
// different worker (or process) than the one they suspended on; the
// Propagator carries a task's mdc.Map through workflow headers so the
// context survives those hops, and Element turns the extracted map back into
// a propagation element for pool-hosted execution.
package temporal

import (
	"context"
	"fmt"

	commonpb "go.temporal.io/api/common/v1"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/workflow"

	"goa.design/runctx/mdc"
)

// headerKey is the workflow header field carrying the serialized mdc.Map.
const headerKey = "runctx-mdc"

type (
	// Propagator implements workflow.ContextPropagator for mdc.Map values.
	// It is stateless and safe for concurrent use. Register it via
	// client.Options.ContextPropagators; the SDK then invokes it on every
	// boundary crossing (workflow start, activity scheduling, child
	// workflows) so the diagnostic context follows the run.
	Propagator struct {
		dc converter.DataConverter
	}

	workflowContextKey struct{}
)

// NewPropagator constructs a context propagator using the default data
// converter for header payloads.
func NewPropagator() workflow.ContextPropagator {
	return &Propagator{dc: converter.GetDefaultDataConverter()}
}

// Inject writes the diagnostic context carried by ctx into the outbound
// headers. A context without a diagnostic map injects nothing.
func (p *Propagator) Inject(ctx context.Context, writer workflow.HeaderWriter) error {
	return p.inject(mdc.FromContext(ctx), writer)
}

// InjectFromWorkflow writes the workflow's diagnostic context into the
// outbound headers.
func (p *Propagator) InjectFromWorkflow(ctx workflow.Context, writer workflow.HeaderWriter) error {
	m, _ := ctx.Value(workflowContextKey{}).(mdc.Map)
	return p.inject(m, writer)
}

// Extract returns a context carrying the diagnostic map found in the
// inbound headers, or ctx unchanged when none is present.
func (p *Propagator) Extract(ctx context.Context, reader workflow.HeaderReader) (context.Context, error) {
	m, err := p.extract(reader)
	if err != nil {
		return ctx, err
	}
	if m == nil {
		return ctx, nil
	}
	return mdc.NewContext(ctx, m), nil
}

// ExtractToWorkflow returns a workflow context carrying the diagnostic map
// found in the inbound headers, or ctx unchanged when none is present.
func (p *Propagator) ExtractToWorkflow(ctx workflow.Context, reader workflow.HeaderReader) (workflow.Context, error) {
	m, err := p.extract(reader)
	if err != nil {
		return ctx, err
	}
	if m == nil {
		return ctx, nil
	}
	return workflow.WithValue(ctx, workflowContextKey{}, m), nil
}

func (p *Propagator) inject(m mdc.Map, writer workflow.HeaderWriter) error {
	if len(m) == 0 {
		return nil
	}
	payload, err := p.dc.ToPayload(m)
	if err != nil {
		return fmt.Errorf("temporal: encode diagnostic context: %w", err)
	}
	writer.Set(headerKey, payload)
	return nil
}

func (p *Propagator) extract(reader workflow.HeaderReader) (mdc.Map, error) {
	var payload *commonpb.Payload
	if err := reader.ForEachKey(func(key string, value *commonpb.Payload) error {
		if key == headerKey {
			payload = value
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}
	var m mdc.Map
	if err := p.dc.FromPayload(payload, &m); err != nil {
		return nil, fmt.Errorf("temporal: decode diagnostic context: %w", err)
	}
	return m, nil
}

// FromWorkflow returns the diagnostic context attached to a workflow
// context by ExtractToWorkflow, or nil when none was propagated.
func FromWorkflow(ctx workflow.Context) mdc.Map {
	m, _ := ctx.Value(workflowContextKey{}).(mdc.Map)
	return m.Clone()
}

// WithWorkflowContext returns a workflow context carrying m, for workflows
// that establish or extend a diagnostic context before calling activities
// or child workflows.
func WithWorkflowContext(ctx workflow.Context, m mdc.Map) workflow.Context {
	return workflow.WithValue(ctx, workflowContextKey{}, m.Clone())
}

// Element builds a propagation element from the diagnostic context carried
// by an activity's context. Activities that hand work to a sched.Pool use
// it to keep the propagated context visible on whichever pool worker runs
// each segment.
func Element(ctx context.Context) *mdc.Element {
	return mdc.New(mdc.FromContext(ctx))
}
