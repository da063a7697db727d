// Package graph implements the compiled graph model (spec component C4):
// nodes, edges, and subgraphs addressed by qualified node paths. The package
// only stores structure and declarative payloads; interpreting a node
// (actually invoking an LLM, a tool, or a transform) is the graph executor's
// job (package executor), which switches on Node.Kind().
package graph

import (
	"context"

	"github.com/agentgraph-go/graphrt/llm"
	"github.com/agentgraph-go/graphrt/prompt"
)

// Kind discriminates the node variants from §3's "Node variants" list. Nodes
// are modeled as a tagged sum type rather than by inheritance: each variant
// carries its own payload type and the executor switches on Kind.
type Kind string

const (
	KindTransform       Kind = "transform"
	KindLLMRequest      Kind = "llm_request"
	KindToolExecute     Kind = "tool_execute"
	KindToolResultSend  Kind = "tool_result_send"
	KindHistoryCompress Kind = "history_compress"
	KindParallel        Kind = "parallel"
	KindSubgraph        Kind = "subgraph"
)

// NodePayload is implemented by every concrete per-kind payload type. Exactly
// one payload type is valid per Node; Node.Kind() derives the discriminator
// from the concrete payload, so there is no way to construct a Node whose
// Kind and Payload disagree.
type NodePayload interface {
	nodeKind() Kind
}

type (
	// TransformPayload is a pure (with respect to run context) input→output
	// function.
	TransformPayload struct {
		Fn func(ctx context.Context, input any) (any, error)
	}

	// LLMRequestPayload issues one LLM call and produces one or more
	// assistant/tool-call response messages.
	LLMRequestPayload struct {
		Model           llm.ModelID
		Tools           []llm.ToolDeclaration
		ForbidToolCalls bool
	}

	// ToolExecutePayload consumes a tool-call message from the last LLM
	// response and returns a tool result. Required marks calls whose
	// validation/invocation failures must fail the run rather than be fed
	// back to the model as explanatory text (spec §4.3).
	ToolExecutePayload struct {
		Required bool
	}

	// ToolResultSendPayload appends a tool result to the prompt and issues
	// the next LLM request against Model.
	ToolResultSendPayload struct {
		Model llm.ModelID
	}

	// HistoryCompressPayload rewrites prompt history under PolicyName using
	// Policy, a pure function over message history (spec C10). Policy is
	// invoked by the executor inside a write-session.
	HistoryCompressPayload struct {
		PolicyName string
		Policy     func(messages []prompt.Message) []prompt.Message
	}

	// ReduceKind discriminates how a Parallel node's fan-in reducer
	// combines its children's results.
	ReduceKind string

	// ParallelPayload fans out one input to each child path, awaits all
	// (concurrency and ordering are the executor's job), then reduces per
	// Reduce. Exactly one of Fold, Predicate, Score is set, matching Reduce.
	ParallelPayload struct {
		Children []Path
		Reduce   ReduceKind

		// Fold is used when Reduce == ReduceFold: a left fold over children
		// in declaration order, starting from FoldInit.
		Fold     func(ctx context.Context, acc any, child Path, value any) (any, error)
		FoldInit any

		// Predicate is used when Reduce == ReduceSelectBy: the winner is the
		// first child (in declaration order) for which Predicate is true.
		Predicate func(ctx context.Context, value any) (bool, error)

		// Score is used when Reduce == ReduceSelectByMax: the winner is the
		// child with the highest Score; ties keep the earliest in
		// declaration order.
		Score func(ctx context.Context, value any) (float64, error)
	}

	// SubgraphPayload recursively invokes a nested Subgraph.
	SubgraphPayload struct {
		Subgraph *Subgraph
	}
)

const (
	ReduceFold        ReduceKind = "fold"
	ReduceSelectBy    ReduceKind = "select_by"
	ReduceSelectByMax ReduceKind = "select_by_max"
)

func (TransformPayload) nodeKind() Kind       { return KindTransform }
func (LLMRequestPayload) nodeKind() Kind      { return KindLLMRequest }
func (ToolExecutePayload) nodeKind() Kind     { return KindToolExecute }
func (ToolResultSendPayload) nodeKind() Kind  { return KindToolResultSend }
func (HistoryCompressPayload) nodeKind() Kind { return KindHistoryCompress }
func (ParallelPayload) nodeKind() Kind        { return KindParallel }
func (SubgraphPayload) nodeKind() Kind        { return KindSubgraph }

// Node is one vertex in a Subgraph's node map. InputType/OutputType are
// reified type names (not Go types). Automatic persistence records InputType
// as a checkpoint's LastInputType; checkpoint restoration does not decode
// lastInput with it and hands the persisted value to the node as-is.
type Node struct {
	// ID is the node's short name, unique only within its own Subgraph's
	// Nodes map (the map key is the full qualified Path).
	ID         string
	InputType  string
	OutputType string
	Payload    NodePayload
}

// Kind returns the node variant, derived from the concrete Payload type.
func (n *Node) Kind() Kind {
	if n.Payload == nil {
		return ""
	}
	return n.Payload.nodeKind()
}

// IsContainer reports whether n owns sub-nodes and therefore participates in
// checkpoint execution-point enforcement (the "ExecutionPoint-bearing"
// variant in §3 is any container node, not a distinct Kind).
func (n *Node) IsContainer() bool {
	switch n.Kind() {
	case KindParallel, KindSubgraph:
		return true
	default:
		return false
	}
}

// ExecutionPoint instructs a container node which child to run next and with
// what input, per enforceExecutionPoint in §4.4/§4.6.
type ExecutionPoint struct {
	Child Path
	Input any
}
