package graph

import (
	"context"
	"strconv"
	"strings"

	"github.com/agentgraph-go/graphrt/engineerr"
	"github.com/agentgraph-go/graphrt/llm"
	"github.com/agentgraph-go/graphrt/prompt"
)

// Path is a qualified, colon-separated node address
// ("strategyName:subgraphName:...:nodeName"), unique within the Subgraph
// that owns it.
type Path string

// Segments splits a Path into its colon-separated components.
func (p Path) Segments() []string {
	return strings.Split(string(p), ":")
}

// Last returns the final segment of p, the node's short name.
func (p Path) Last() string {
	segs := p.Segments()
	return segs[len(segs)-1]
}

// Edge is a guarded, transforming transition between two nodes in the same
// Subgraph. Guard inspects the last produced value and the live prompt tail;
// Transform maps that value into the next node's input.
type Edge struct {
	From, To  Path
	Guard     func(ctx context.Context, output any, tail []prompt.Message) bool
	Transform func(ctx context.Context, output any) (any, error)
}

// Subgraph is (startNode, finishNode, nodesMap, edges, toolSelectionStrategy)
// per §3's data model. A Strategy is a Subgraph whose Name is the top-level
// path segment.
type Subgraph struct {
	Name                  string
	Start                 Path
	Finish                Path
	Nodes                 map[Path]*Node
	Edges                 []*Edge
	ToolSelectionStrategy llm.ToolChoice
}

// OutgoingEdges returns every edge declared with From == from, in
// declaration order.
func (s *Subgraph) OutgoingEdges(from Path) []*Edge {
	var out []*Edge
	for _, e := range s.Edges {
		if e.From == from {
			out = append(out, e)
		}
	}
	return out
}

// SelectEdge evaluates from's outgoing edges in declaration order and
// returns the first whose guard matches. Fails with NoRouteError if none
// match.
func (s *Subgraph) SelectEdge(ctx context.Context, from Path, output any, tail []prompt.Message) (*Edge, error) {
	for _, e := range s.OutgoingEdges(from) {
		if e.Guard == nil || e.Guard(ctx, output, tail) {
			return e, nil
		}
	}
	return nil, &engineerr.NoRouteError{NodePath: string(from)}
}

// Validate checks the build-time invariants from §3/§4.4: start and finish
// must be present in Nodes, every edge must reference nodes declared in this
// same Subgraph, and nested subgraphs are validated recursively.
func (s *Subgraph) Validate() error {
	if _, ok := s.Nodes[s.Start]; !ok {
		return &engineerr.BuildError{Strategy: s.Name, Reason: "start node " + string(s.Start) + " not present in nodes map"}
	}
	if _, ok := s.Nodes[s.Finish]; !ok {
		return &engineerr.BuildError{Strategy: s.Name, Reason: "finish node " + string(s.Finish) + " not present in nodes map"}
	}
	for _, e := range s.Edges {
		if _, ok := s.Nodes[e.From]; !ok {
			return &engineerr.BuildError{Strategy: s.Name, Reason: "edge references unknown from-node " + string(e.From)}
		}
		if _, ok := s.Nodes[e.To]; !ok {
			return &engineerr.BuildError{Strategy: s.Name, Reason: "edge references unknown to-node " + string(e.To)}
		}
	}
	for _, n := range s.Nodes {
		if sp, ok := n.Payload.(*SubgraphPayload); ok {
			if sp.Subgraph == nil {
				return &engineerr.BuildError{Strategy: s.Name, Reason: "subgraph node " + n.ID + " has a nil nested subgraph"}
			}
			if err := sp.Subgraph.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Strategy is a named top-level Subgraph with declared input/output types
// (the top-level path segment is Root.Name).
type Strategy struct {
	Name string
	Root *Subgraph
}

// Validate checks the whole strategy tree and additionally rejects
// ambiguous last-segment node ids: resolve(nodeId) must match exactly one
// path anywhere in the tree.
func (s *Strategy) Validate() error {
	if err := s.Root.Validate(); err != nil {
		return err
	}
	bySegment := map[string]int{}
	walkAll(s.Root, func(_ Path, n *Node) {
		bySegment[n.ID]++
	})
	for id, count := range bySegment {
		if count > 1 {
			return &engineerr.BuildError{Strategy: s.Name, Reason: "node id " + id + " is ambiguous: matches " + strconv.Itoa(count) + " qualified paths"}
		}
	}
	return nil
}

// Resolve matches nodeID against the last segment of every qualified path in
// the strategy tree. Exactly one match is expected; Validate should already
// have rejected ambiguity, but Resolve re-checks defensively since it may be
// called against a strategy that skipped Validate.
func (s *Strategy) Resolve(nodeID string) (Path, error) {
	var matches []Path
	walkAll(s.Root, func(p Path, n *Node) {
		if n.ID == nodeID {
			matches = append(matches, p)
		}
	})
	switch len(matches) {
	case 0:
		return "", &engineerr.NodeNotFoundError{NodeID: nodeID}
	case 1:
		return matches[0], nil
	default:
		return "", &engineerr.BuildError{Strategy: s.Name, Reason: "node id " + nodeID + " is ambiguous"}
	}
}

// Walk returns the chain of nodes from the strategy root down to the node
// addressed by path, one entry per qualified-path segment count beyond the
// strategy name. Every node but the last must be a container (Subgraph
// kind); NotAContainerError is returned otherwise.
func (s *Strategy) Walk(path Path) ([]*Node, error) {
	segments := path.Segments()
	if len(segments) < 2 {
		return nil, &engineerr.NodeNotFoundError{NodeID: string(path)}
	}
	current := s.Root
	var chain []*Node
	for i := 2; i <= len(segments); i++ {
		p := Path(strings.Join(segments[:i], ":"))
		node, ok := current.Nodes[p]
		if !ok {
			return nil, &engineerr.NodeNotFoundError{NodeID: string(path)}
		}
		chain = append(chain, node)
		if i == len(segments) {
			return chain, nil
		}
		sp, ok := node.Payload.(*SubgraphPayload)
		if !ok {
			return nil, &engineerr.NotAContainerError{NodePath: string(p)}
		}
		current = sp.Subgraph
	}
	return chain, nil
}

func walkAll(s *Subgraph, visit func(Path, *Node)) {
	for p, n := range s.Nodes {
		visit(p, n)
		if sp, ok := n.Payload.(*SubgraphPayload); ok && sp.Subgraph != nil {
			walkAll(sp.Subgraph, visit)
		}
	}
}

