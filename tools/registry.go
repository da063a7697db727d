package tools

import (
	"context"
	"fmt"
	"sync"
)

// InvokeFunc executes a decoded tool call and returns a decoded result. It
// may suspend (block on I/O); cancellation should be honored cooperatively
// via ctx.
type InvokeFunc func(ctx context.Context, args any) (any, error)

// Registration bundles everything the registry needs to decode, invoke, and
// encode a single tool.
type Registration struct {
	Descriptor Descriptor
	ArgSpec    TypeSpec
	ResultSpec TypeSpec
	Invoke     InvokeFunc
}

// Registry maps tool name to Registration. Registry is safe for concurrent
// registration and lookup; lookups never block on in-flight invocations.
type Registry struct {
	mu   sync.RWMutex
	regs map[string]Registration
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{regs: make(map[string]Registration)}
}

// Register adds or replaces the registration for a tool name.
func (r *Registry) Register(reg Registration) error {
	if reg.Descriptor.Name == "" {
		return fmt.Errorf("tools: registration missing tool name")
	}
	if reg.Invoke == nil {
		return fmt.Errorf("tools: registration %q missing invoke function", reg.Descriptor.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs[reg.Descriptor.Name] = reg
	return nil
}

// Lookup returns the registration for name, if present.
func (r *Registry) Lookup(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.regs[name]
	return reg, ok
}

// Descriptors returns every registered tool's Descriptor, for presenting the
// current toolset to an LLM request node.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.regs))
	for _, reg := range r.regs {
		out = append(out, reg.Descriptor)
	}
	return out
}
