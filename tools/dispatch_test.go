package tools_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentgraph-go/graphrt/engineerr"
	"github.com/agentgraph-go/graphrt/tools"
)

func passthroughSpec(name string) tools.TypeSpec {
	return tools.TypeSpec{
		Name: name,
		Codec: tools.JSONCodec[any]{
			ToJSON:   func(v any) ([]byte, error) { return json.Marshal(v) },
			FromJSON: func(raw []byte) (any, error) {
				var v any
				err := json.Unmarshal(raw, &v)
				return v, err
			},
		},
	}
}

func registryWithEcho(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(tools.Registration{
		Descriptor: tools.Descriptor{Name: "echo"},
		ArgSpec:    passthroughSpec("args"),
		ResultSpec: passthroughSpec("result"),
		Invoke: func(_ context.Context, args any) (any, error) {
			return args, nil
		},
	}))
	require.NoError(t, reg.Register(tools.Registration{
		Descriptor: tools.Descriptor{Name: "boom"},
		ArgSpec:    passthroughSpec("args"),
		ResultSpec: passthroughSpec("result"),
		Invoke: func(context.Context, any) (any, error) {
			return nil, fmt.Errorf("kaboom")
		},
	}))
	return reg
}

func TestDispatchSingleSuccess(t *testing.T) {
	d := tools.NewDispatcher(registryWithEcho(t), nil)
	result := d.DispatchSingle(context.Background(), tools.CallRequest{
		ID: "1", ToolName: "echo", Arguments: json.RawMessage(`{"a":1}`),
	})
	require.NoError(t, result.Err)
	require.JSONEq(t, `{"a":1}`, string(result.Result))
}

func TestDispatchSingleUnknownToolRecovers(t *testing.T) {
	d := tools.NewDispatcher(registryWithEcho(t), nil)
	result := d.DispatchSingle(context.Background(), tools.CallRequest{
		ID: "1", ToolName: "missing", Arguments: json.RawMessage(`{}`),
	})
	require.Error(t, result.Err)
	var verr *engineerr.ToolValidationError
	require.ErrorAs(t, result.Err, &verr)
	require.NotEmpty(t, result.Result, "non-required calls get an explanatory result")
}

func TestDispatchSingleRequiredFailurePropagates(t *testing.T) {
	d := tools.NewDispatcher(registryWithEcho(t), nil)
	result := d.DispatchSingle(context.Background(), tools.CallRequest{
		ID: "1", ToolName: "boom", Arguments: json.RawMessage(`{}`), Required: true,
	})
	require.Error(t, result.Err)
	require.Nil(t, result.Result)
	var cerr *engineerr.ToolCallFailedError
	require.ErrorAs(t, result.Err, &cerr)
}

func TestDispatchSequentialPreservesOrder(t *testing.T) {
	d := tools.NewDispatcher(registryWithEcho(t), nil)
	calls := []tools.CallRequest{
		{ID: "1", ToolName: "echo", Arguments: json.RawMessage(`1`)},
		{ID: "2", ToolName: "echo", Arguments: json.RawMessage(`2`)},
		{ID: "3", ToolName: "echo", Arguments: json.RawMessage(`3`)},
	}
	results := d.DispatchSequential(context.Background(), calls)
	require.Len(t, results, 3)
	for i, r := range results {
		require.Equal(t, calls[i].ID, r.ID)
	}
}

func TestDispatchParallelPreservesDeclarationOrderAndIsolatesFailures(t *testing.T) {
	reg := registryWithEcho(t)
	d := tools.NewDispatcher(reg, nil)
	calls := []tools.CallRequest{
		{ID: "1", ToolName: "echo", Arguments: json.RawMessage(`1`)},
		{ID: "2", ToolName: "boom", Arguments: json.RawMessage(`{}`)},
		{ID: "3", ToolName: "echo", Arguments: json.RawMessage(`3`)},
	}
	results := d.DispatchParallel(context.Background(), calls)
	require.Len(t, results, 3)
	require.Equal(t, "1", results[0].ID)
	require.Equal(t, "2", results[1].ID)
	require.Equal(t, "3", results[2].ID)
	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	require.NoError(t, results[2].Err, "a sibling failure must not cancel other calls")
}

type countingHooks struct {
	mu        sync.Mutex
	started   int
	completed int
}

func (h *countingHooks) OnToolCallStarting(context.Context, tools.CallRequest) {
	h.mu.Lock()
	h.started++
	h.mu.Unlock()
}
func (h *countingHooks) OnToolValidationFailed(context.Context, tools.CallRequest, error) {}
func (h *countingHooks) OnToolCallFailed(context.Context, tools.CallRequest, error)        {}
func (h *countingHooks) OnToolCallCompleted(context.Context, tools.CallRequest, tools.CallResult) {
	h.mu.Lock()
	h.completed++
	h.mu.Unlock()
}

func TestDispatchParallelInvokesHooksForEveryCall(t *testing.T) {
	reg := registryWithEcho(t)
	hooks := &countingHooks{}
	d := tools.NewDispatcher(reg, hooks)
	calls := []tools.CallRequest{
		{ID: "1", ToolName: "echo", Arguments: json.RawMessage(`1`)},
		{ID: "2", ToolName: "echo", Arguments: json.RawMessage(`2`)},
	}
	d.DispatchParallel(context.Background(), calls)
	require.Equal(t, 2, hooks.started)
	require.Equal(t, 2, hooks.completed)
}
