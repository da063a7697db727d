package pipeline

import (
	"context"
	"sync"

	"github.com/agentgraph-go/graphrt/engineerr"
	"github.com/agentgraph-go/graphrt/environment"
)

type (
	// Handler reacts to a dispatched Event. Unlike the teacher bus's
	// Subscriber, a Handler returning an error never halts dispatch to
	// later handlers (spec §4.7: handler failures are isolated).
	Handler interface {
		HandleEvent(ctx context.Context, event Event) error
	}

	// HandlerFunc adapts a plain function to Handler.
	HandlerFunc func(ctx context.Context, event Event) error

	// EventFilter gates whether a handler participates in a given
	// dispatch. A nil filter always passes.
	EventFilter func(event Event) bool

	// EnvTransformFunc is the signature for a fold participant in the
	// environmentTransforming event: it receives the prior environment and
	// returns a (possibly new) one.
	EnvTransformFunc func(ctx context.Context, current environment.Environment) (environment.Environment, error)
)

func (fn HandlerFunc) HandleEvent(ctx context.Context, event Event) error { return fn(ctx, event) }

type registration struct {
	featureKey string
	handler    Handler
	filter     EventFilter
	forbidden  bool // Debugger: filtering is forbidden, filter is never consulted
}

type envRegistration struct {
	featureKey string
	fn         EnvTransformFunc
	filter     EventFilter
	forbidden  bool
}

// Pipeline is the event dispatch fabric connecting the engine to installed
// features (spec §4.7). The handler registry is mutated only by
// Subscribe/Unsubscribe; Dispatch and TransformEnvironment read a fixed
// snapshot, so concurrent dispatch never observes a partially updated
// registry.
type Pipeline struct {
	mu             sync.RWMutex
	handlers       []*registration
	envHandlers    []*envRegistration
	reportProblem  func(ctx context.Context, err error)
}

// New constructs an empty Pipeline. reportProblem is called (never allowed
// to panic by contract) whenever a handler fails; pass nil to discard.
func New(reportProblem func(ctx context.Context, err error)) *Pipeline {
	if reportProblem == nil {
		reportProblem = func(context.Context, error) {}
	}
	return &Pipeline{reportProblem: reportProblem}
}

// Subscribe registers handler under featureKey with an optional filter.
// Registration order determines dispatch order (spec's "sequential in
// registration order" contract).
func (p *Pipeline) Subscribe(featureKey string, handler Handler, filter EventFilter) {
	p.subscribe(&registration{featureKey: featureKey, handler: handler, filter: filter})
}

// SubscribeUnfiltered registers handler under featureKey with filtering
// forbidden, for system features like Debugger that must observe every
// event regardless of any caller-supplied filter.
func (p *Pipeline) SubscribeUnfiltered(featureKey string, handler Handler) {
	p.subscribe(&registration{featureKey: featureKey, handler: handler, forbidden: true})
}

func (p *Pipeline) subscribe(reg *registration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := make([]*registration, len(p.handlers), len(p.handlers)+1)
	copy(next, p.handlers)
	p.handlers = append(next, reg)
}

// SubscribeEnvTransform registers a fold participant for environmentTransforming.
func (p *Pipeline) SubscribeEnvTransform(featureKey string, fn EnvTransformFunc, filter EventFilter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	next := make([]*envRegistration, len(p.envHandlers), len(p.envHandlers)+1)
	copy(next, p.envHandlers)
	p.envHandlers = append(next, &envRegistration{featureKey: featureKey, fn: fn, filter: filter})
}

// Unsubscribe removes every handler (notification and fold) registered under
// featureKey, closing out that feature's participation in the pipeline.
func (p *Pipeline) Unsubscribe(featureKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kept := make([]*registration, 0, len(p.handlers))
	for _, r := range p.handlers {
		if r.featureKey != featureKey {
			kept = append(kept, r)
		}
	}
	p.handlers = kept

	keptEnv := make([]*envRegistration, 0, len(p.envHandlers))
	for _, r := range p.envHandlers {
		if r.featureKey != featureKey {
			keptEnv = append(keptEnv, r)
		}
	}
	p.envHandlers = keptEnv
}

func (p *Pipeline) snapshot() []*registration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.handlers
}

func (p *Pipeline) envSnapshot() []*envRegistration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.envHandlers
}

// Dispatch delivers event to every registered handler, sequentially, in
// registration order. A handler that returns an error is reported via
// reportProblem as a FeatureHandlerError and dispatch continues to the next
// handler; Dispatch itself never returns an error, matching the "never
// aborts dispatch" contract. The errs slice (possibly empty) is returned for
// callers that want to inspect what was reported, such as tests.
func (p *Pipeline) Dispatch(ctx context.Context, event Event) (errs []*engineerr.FeatureHandlerError) {
	for _, reg := range p.snapshot() {
		if !reg.forbidden && reg.filter != nil && !reg.filter(event) {
			continue
		}
		if err := reg.handler.HandleEvent(ctx, event); err != nil {
			ferr := &engineerr.FeatureHandlerError{FeatureKey: reg.featureKey, Event: string(event.Type()), Err: err}
			p.reportProblem(ctx, ferr)
			errs = append(errs, ferr)
		}
	}
	return errs
}

// TransformEnvironment runs the environmentTransforming fold: each
// registered transform receives the prior environment and returns the next
// one. A transform whose filter rejects the synthetic event is skipped
// (unchanged environment passed through); a transform that errors is
// reported and also skipped, keeping the prior environment. Order matters:
// the last transform to actually apply wins on conflicts.
func (p *Pipeline) TransformEnvironment(ctx context.Context, current environment.Environment) environment.Environment {
	event := newBaseEvent(EnvironmentTransforming, "", "")
	for _, reg := range p.envSnapshot() {
		if !reg.forbidden && reg.filter != nil && !reg.filter(event) {
			continue
		}
		next, err := reg.fn(ctx, current)
		if err != nil {
			ferr := &engineerr.FeatureHandlerError{FeatureKey: reg.featureKey, Event: string(EnvironmentTransforming), Err: err}
			p.reportProblem(ctx, ferr)
			continue
		}
		current = next
	}
	return current
}
