package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agentgraph-go/graphrt/engineerr"
	"github.com/agentgraph-go/graphrt/telemetry"
)

type (
	// CallRequest is a single tool invocation requested by an LLM response.
	CallRequest struct {
		ID        string
		ToolName  string
		Arguments json.RawMessage
		// Required marks a call the subgraph cannot recover from locally: a
		// validation failure for a required call fails the dispatch instead
		// of being fed back to the model as explanatory text.
		Required bool
	}

	// CallResult is the outcome of executing one CallRequest.
	CallResult struct {
		ID        string
		ToolName  string
		Result    json.RawMessage
		Err       error
		Duration  time.Duration
		Telemetry *telemetry.ToolTelemetry
	}

	// Hooks receives C3's per-call lifecycle notifications so the feature
	// pipeline can observe validation/call failures without the tools
	// package depending on the pipeline package.
	Hooks interface {
		OnToolCallStarting(ctx context.Context, call CallRequest)
		OnToolValidationFailed(ctx context.Context, call CallRequest, err error)
		OnToolCallFailed(ctx context.Context, call CallRequest, err error)
		OnToolCallCompleted(ctx context.Context, call CallRequest, result CallResult)
	}

	// NoopHooks implements Hooks with no-ops, the default when a Dispatcher
	// is constructed without one.
	NoopHooks struct{}
)

func (NoopHooks) OnToolCallStarting(context.Context, CallRequest)                  {}
func (NoopHooks) OnToolValidationFailed(context.Context, CallRequest, error)        {}
func (NoopHooks) OnToolCallFailed(context.Context, CallRequest, error)              {}
func (NoopHooks) OnToolCallCompleted(context.Context, CallRequest, CallResult)      {}

// Dispatcher executes tool calls against a Registry per the execution
// contract in spec §4.3: decode, invoke, encode, with validation and call
// failures reported through Hooks and fed back to the model as explanatory
// text rather than failing the run, unless the call is Required.
type Dispatcher struct {
	Registry *Registry
	Hooks    Hooks
	// MaxConcurrency bounds how many calls DispatchParallel runs at once.
	// Zero means unlimited.
	MaxConcurrency int
}

// NewDispatcher constructs a Dispatcher. hooks may be nil, in which case
// NoopHooks is used.
func NewDispatcher(registry *Registry, hooks Hooks) *Dispatcher {
	if hooks == nil {
		hooks = NoopHooks{}
	}
	return &Dispatcher{Registry: registry, Hooks: hooks}
}

// DispatchSingle executes exactly one call and returns its result.
func (d *Dispatcher) DispatchSingle(ctx context.Context, call CallRequest) CallResult {
	return d.execute(ctx, call)
}

// DispatchSequential executes calls one at a time, in order ("sequential
// single-run" mode), waiting for each to complete before starting the next.
// Results are returned in the same order as calls.
func (d *Dispatcher) DispatchSequential(ctx context.Context, calls []CallRequest) []CallResult {
	results := make([]CallResult, len(calls))
	for i, call := range calls {
		results[i] = d.execute(ctx, call)
	}
	return results
}

// DispatchParallel executes every call concurrently and returns results in
// input (declaration) order regardless of completion order. A failing call
// does not cancel its siblings; each failure is recorded in its own result
// and reported individually through Hooks, exactly as DispatchSingle would,
// before DispatchParallel returns.
func (d *Dispatcher) DispatchParallel(ctx context.Context, calls []CallRequest) []CallResult {
	results := make([]CallResult, len(calls))
	g, gctx := errgroup.WithContext(ctx)
	if d.MaxConcurrency > 0 {
		g.SetLimit(d.MaxConcurrency)
	}
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			// Each call's own failure is captured in its result slot, not
			// returned to the group, so siblings are never canceled by a
			// single failing tool call (errgroup.WithContext only cancels
			// gctx when a Go func returns a non-nil error).
			results[i] = d.execute(gctx, call)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (d *Dispatcher) execute(ctx context.Context, call CallRequest) CallResult {
	d.Hooks.OnToolCallStarting(ctx, call)
	start := time.Now()

	reg, ok := d.Registry.Lookup(call.ToolName)
	if !ok {
		err := fmt.Errorf("tool %q is not registered", call.ToolName)
		result := d.recoverOrFail(ctx, call, &engineerr.ToolValidationError{ToolName: call.ToolName, Reason: err.Error()})
		d.Hooks.OnToolCallCompleted(ctx, call, result)
		return result
	}

	if err := reg.ArgSpec.Validate(call.Arguments); err != nil {
		verr := &engineerr.ToolValidationError{ToolName: call.ToolName, Reason: err.Error()}
		d.Hooks.OnToolValidationFailed(ctx, call, verr)
		result := d.recoverOrFail(ctx, call, verr)
		d.Hooks.OnToolCallCompleted(ctx, call, result)
		return result
	}

	args, err := reg.ArgSpec.Codec.FromJSON(call.Arguments)
	if err != nil {
		verr := &engineerr.ToolValidationError{ToolName: call.ToolName, Reason: err.Error()}
		d.Hooks.OnToolValidationFailed(ctx, call, verr)
		result := d.recoverOrFail(ctx, call, verr)
		d.Hooks.OnToolCallCompleted(ctx, call, result)
		return result
	}

	value, err := reg.Invoke(ctx, args)
	duration := time.Since(start)
	if err != nil {
		cerr := &engineerr.ToolCallFailedError{ToolName: call.ToolName, Err: err}
		d.Hooks.OnToolCallFailed(ctx, call, cerr)
		result := d.recoverOrFail(ctx, call, cerr)
		result.Duration = duration
		d.Hooks.OnToolCallCompleted(ctx, call, result)
		return result
	}

	raw, err := reg.ResultSpec.Codec.ToJSON(value)
	if err != nil {
		cerr := &engineerr.ToolCallFailedError{ToolName: call.ToolName, Err: fmt.Errorf("encode result: %w", err)}
		d.Hooks.OnToolCallFailed(ctx, call, cerr)
		result := d.recoverOrFail(ctx, call, cerr)
		result.Duration = duration
		d.Hooks.OnToolCallCompleted(ctx, call, result)
		return result
	}

	result := CallResult{ID: call.ID, ToolName: call.ToolName, Result: raw, Duration: duration}
	d.Hooks.OnToolCallCompleted(ctx, call, result)
	return result
}

// recoverOrFail implements the "proceeds as if the tool returned an
// explanatory textual result" recovery path for non-Required calls, and
// surfaces the error untouched for Required calls so the executor can fail
// the subgraph.
func (d *Dispatcher) recoverOrFail(_ context.Context, call CallRequest, err error) CallResult {
	if call.Required {
		return CallResult{ID: call.ID, ToolName: call.ToolName, Err: err}
	}
	text, _ := json.Marshal(map[string]string{"error": err.Error()})
	return CallResult{ID: call.ID, ToolName: call.ToolName, Result: text, Err: err}
}
