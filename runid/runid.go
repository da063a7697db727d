// Package runid generates opaque identifiers for runs, tool calls, and
// checkpoints. IDs are UUIDv4-backed; all but the bare ones from New are
// prefixed with a human readable scope so logs and traces remain greppable.
package runid

import "github.com/google/uuid"

// NewRunID generates a run identifier scoped to the given agent/strategy.
func NewRunID(agentID string) string {
	return agentID + "-run-" + uuid.NewString()
}

// NewToolCallID generates an identifier for a single tool invocation.
func NewToolCallID(toolName string) string {
	return toolName + "-call-" + uuid.NewString()
}

// NewCheckpointID generates an identifier for a checkpoint snapshot.
func NewCheckpointID(agentID string) string {
	return agentID + "-chk-" + uuid.NewString()
}

// New generates a bare UUIDv4 string, useful for turn IDs and other
// identifiers that don't need a semantic prefix.
func New() string {
	return uuid.NewString()
}
