// Package checkpoint implements checkpoint/persistence (spec component C6):
// creating, listing, and rolling back execution-state snapshots, and the
// restoration algorithm that replays a pending rollback before the next top
// level strategy execution attempt.
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/agentgraph-go/graphrt/engineerr"
	"github.com/agentgraph-go/graphrt/graph"
	"github.com/agentgraph-go/graphrt/prompt"
)

// ErrNoCheckpoint is returned by RollbackToLatestCheckpoint when agentID has
// no live checkpoint to roll back to.
var ErrNoCheckpoint = errors.New("checkpoint: no checkpoint to roll back to")

// RollbackStrategy selects how much of the run's state a rollback restores.
type RollbackStrategy string

const (
	// Default restores both the execution point (which node runs next,
	// with what input) and the message history.
	Default RollbackStrategy = "default"
	// MessageHistoryOnly restores only the prompt's message history.
	MessageHistoryOnly RollbackStrategy = "message_history_only"
)

// tombstoneNodeID marks a deleted checkpoint: no input or history, per the
// persisted checkpoint layout in spec §6.
const tombstoneNodeID = "tombstone"

// Checkpoint is a persisted execution-state snapshot for one agent.
type Checkpoint struct {
	CheckpointID              string
	AgentID                   string
	NodeID                    string // qualified short name, resolved via graph.Strategy.Resolve
	LastInput                 any
	LastInputType              string
	MessageHistory            []prompt.Message
	AdditionalRollbackActions func(ctx context.Context) error
	RollbackStrategy          RollbackStrategy
	Version                   int
	CreatedAt                 time.Time
}

// IsTombstone reports whether c is a logical-delete marker.
func (c Checkpoint) IsTombstone() bool { return c.NodeID == tombstoneNodeID }

// Tombstone builds a tombstone checkpoint for agentID at the given version.
func Tombstone(agentID string, version int, createdAt time.Time) Checkpoint {
	return Checkpoint{AgentID: agentID, NodeID: tombstoneNodeID, Version: version, CreatedAt: createdAt}
}

// AgentContextData is the transient per-run rollback request consumed
// exactly once at the start of the next top-level strategy execution
// attempt (spec §3).
type AgentContextData struct {
	NodeID                    string
	LastInput                 any
	MessageHistory            []prompt.Message
	AdditionalRollbackActions func(ctx context.Context) error
	RollbackStrategy          RollbackStrategy
}

// FromLatestCheckpoint builds the AgentContextData for rollbackToLatestCheckpoint:
// RollbackStrategy.Default against the given checkpoint.
func FromLatestCheckpoint(c Checkpoint) AgentContextData {
	return AgentContextData{
		NodeID:                    c.NodeID,
		LastInput:                 c.LastInput,
		MessageHistory:            c.MessageHistory,
		AdditionalRollbackActions: c.AdditionalRollbackActions,
		RollbackStrategy:          Default,
	}
}

// Provider is the external persistence collaborator (spec §6).
// Implementations must serialize operations per agent.
type Provider interface {
	GetCheckpoints(ctx context.Context, agentID string) ([]Checkpoint, error)
	GetLatestCheckpoint(ctx context.Context, agentID string) (Checkpoint, bool, error)
	SaveCheckpoint(ctx context.Context, c Checkpoint) error
	DeleteCheckpoints(ctx context.Context, agentID string) error
}

// RestoreTarget is the mutable surface the restoration algorithm in §4.6
// operates on: a write-session-backed prompt and a pending execution point
// slot on the active node chain.
type RestoreTarget interface {
	// ReplacePrompt atomically replaces the run's message history.
	ReplacePrompt(ctx context.Context, messages []prompt.Message) error
	// EnforceExecutionPoint routes a container node to run child next with
	// the given input.
	EnforceExecutionPoint(node *graph.Node, ep graph.ExecutionPoint) error
}

// Restore runs the restoration algorithm from spec §4.6 against data, which
// must be non-nil (callers check for a pending AgentContextData before
// calling Restore). strategy is used to resolve data.NodeID to a qualified
// path and walk the container chain down to the leaf.
func Restore(ctx context.Context, strategy *graph.Strategy, target RestoreTarget, data *AgentContextData) error {
	if data.RollbackStrategy == MessageHistoryOnly {
		return target.ReplacePrompt(ctx, data.MessageHistory)
	}

	if data.AdditionalRollbackActions != nil {
		if err := data.AdditionalRollbackActions(ctx); err != nil {
			return err
		}
	}

	path, err := strategy.Resolve(data.NodeID)
	if err != nil {
		return &engineerr.NodeNotFoundError{NodeID: data.NodeID}
	}

	chain, err := strategy.Walk(path)
	if err != nil {
		return err
	}

	if len(chain) == 0 {
		return &engineerr.NodeNotFoundError{NodeID: data.NodeID}
	}

	for i := 0; i < len(chain)-1; i++ {
		container := chain[i]
		if !container.IsContainer() {
			return &engineerr.NotAContainerError{NodePath: string(path)}
		}
		// chain[i] sits at depth i+2 (strategy name plus i+1 container
		// segments); its child chain[i+1] sits one segment deeper.
		childPath := childPathOf(path, i+3)
		if err := target.EnforceExecutionPoint(container, graph.ExecutionPoint{Child: childPath}); err != nil {
			return err
		}
	}

	leaf := chain[len(chain)-1]
	if err := target.EnforceExecutionPoint(leaf, graph.ExecutionPoint{Input: data.LastInput}); err != nil {
		return err
	}

	return target.ReplacePrompt(ctx, data.MessageHistory)
}

// RollbackSink is the mutable surface RollbackToLatestCheckpoint installs a
// rollback request onto: agent.Context satisfies this (checkpoint can't
// import agent directly, since agent already imports checkpoint).
type RollbackSink interface {
	SetPendingRollback(data *AgentContextData)
}

// RollbackToLatestCheckpoint implements rollbackToLatestCheckpoint (spec
// §4.6): it looks up agentID's latest live checkpoint, builds the
// RollbackStrategy.Default AgentContextData for it, and installs that
// request on sink so the next top-level strategy execution attempt resumes
// there. Fails with ErrNoCheckpoint if agentID has no live checkpoint.
func RollbackToLatestCheckpoint(ctx context.Context, provider Provider, sink RollbackSink, agentID string) error {
	cp, ok, err := provider.GetLatestCheckpoint(ctx, agentID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoCheckpoint
	}
	data := FromLatestCheckpoint(cp)
	sink.SetPendingRollback(&data)
	return nil
}

func childPathOf(full graph.Path, depth int) graph.Path {
	segments := full.Segments()
	if depth > len(segments) {
		depth = len(segments)
	}
	out := segments[0]
	for _, s := range segments[1:depth] {
		out += ":" + s
	}
	return graph.Path(out)
}
