package graph_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentgraph-go/graphrt/engineerr"
	"github.com/agentgraph-go/graphrt/graph"
	"github.com/agentgraph-go/graphrt/prompt"
)

func simpleStrategy() *graph.Strategy {
	sub := &graph.Subgraph{
		Name:  "s1",
		Start: "s1:start",
		Finish: "s1:finish",
		Nodes: map[graph.Path]*graph.Node{
			"s1:start": {ID: "start", Payload: &graph.TransformPayload{
				Fn: func(_ context.Context, input any) (any, error) { return input, nil },
			}},
			"s1:mid": {ID: "mid", Payload: &graph.TransformPayload{
				Fn: func(_ context.Context, input any) (any, error) { return input, nil },
			}},
			"s1:finish": {ID: "finish", Payload: &graph.TransformPayload{
				Fn: func(_ context.Context, input any) (any, error) { return input, nil },
			}},
		},
		Edges: []*graph.Edge{
			{From: "s1:start", To: "s1:mid"},
			{From: "s1:mid", To: "s1:finish"},
		},
	}
	return &graph.Strategy{Name: "s1", Root: sub}
}

func TestStrategyValidateAcceptsWellFormedGraph(t *testing.T) {
	require.NoError(t, simpleStrategy().Validate())
}

func TestStrategyValidateRejectsMissingFinish(t *testing.T) {
	s := simpleStrategy()
	s.Root.Finish = "s1:nope"
	var berr *engineerr.BuildError
	require.ErrorAs(t, s.Validate(), &berr)
}

func TestStrategyValidateRejectsDanglingEdge(t *testing.T) {
	s := simpleStrategy()
	s.Root.Edges = append(s.Root.Edges, &graph.Edge{From: "s1:mid", To: "s1:ghost"})
	var berr *engineerr.BuildError
	require.ErrorAs(t, s.Validate(), &berr)
}

func TestStrategyValidateRejectsAmbiguousNodeID(t *testing.T) {
	s := simpleStrategy()
	s.Root.Nodes["s1:mid2"] = &graph.Node{ID: "mid", Payload: &graph.TransformPayload{
		Fn: func(_ context.Context, input any) (any, error) { return input, nil },
	}}
	var berr *engineerr.BuildError
	require.ErrorAs(t, s.Validate(), &berr)
}

func TestStrategyResolveFindsUniqueLastSegment(t *testing.T) {
	s := simpleStrategy()
	path, err := s.Resolve("mid")
	require.NoError(t, err)
	require.Equal(t, graph.Path("s1:mid"), path)
}

func TestStrategyResolveMissingNode(t *testing.T) {
	s := simpleStrategy()
	_, err := s.Resolve("absent")
	var nerr *engineerr.NodeNotFoundError
	require.ErrorAs(t, err, &nerr)
}

func TestStrategyWalkIntoNestedSubgraph(t *testing.T) {
	inner := &graph.Subgraph{
		Name:  "inner",
		Start: "outer:container:istart",
		Finish: "outer:container:ifinish",
		Nodes: map[graph.Path]*graph.Node{
			"outer:container:istart": {ID: "istart", Payload: &graph.TransformPayload{
				Fn: func(_ context.Context, input any) (any, error) { return input, nil },
			}},
			"outer:container:ifinish": {ID: "ifinish", Payload: &graph.TransformPayload{
				Fn: func(_ context.Context, input any) (any, error) { return input, nil },
			}},
		},
		Edges: []*graph.Edge{{From: "outer:container:istart", To: "outer:container:ifinish"}},
	}
	outer := &graph.Subgraph{
		Name:  "outer",
		Start: "outer:start",
		Finish: "outer:finish",
		Nodes: map[graph.Path]*graph.Node{
			"outer:start":     {ID: "start", Payload: &graph.TransformPayload{Fn: passthrough}},
			"outer:container":  {ID: "container", Payload: &graph.SubgraphPayload{Subgraph: inner}},
			"outer:finish":    {ID: "finish", Payload: &graph.TransformPayload{Fn: passthrough}},
		},
		Edges: []*graph.Edge{
			{From: "outer:start", To: "outer:container"},
			{From: "outer:container", To: "outer:finish"},
		},
	}
	strategy := &graph.Strategy{Name: "outer", Root: outer}
	require.NoError(t, strategy.Validate())

	chain, err := strategy.Walk("outer:container:istart")
	require.NoError(t, err)
	require.Len(t, chain, 2)
	require.Equal(t, "container", chain[0].ID)
	require.Equal(t, "istart", chain[1].ID)
}

func TestStrategyWalkThroughNonContainerFails(t *testing.T) {
	s := simpleStrategy()
	_, err := s.Walk("s1:mid:leaf")
	var cerr *engineerr.NotAContainerError
	require.ErrorAs(t, err, &cerr)
}

func TestSubgraphSelectEdgeFirstMatchWins(t *testing.T) {
	sub := simpleStrategy().Root
	sub.Edges = []*graph.Edge{
		{From: "s1:start", To: "s1:mid", Guard: func(context.Context, any, []prompt.Message) bool { return false }},
		{From: "s1:start", To: "s1:finish", Guard: func(context.Context, any, []prompt.Message) bool { return true }},
	}
	edge, err := sub.SelectEdge(context.Background(), "s1:start", nil, nil)
	require.NoError(t, err)
	require.Equal(t, graph.Path("s1:finish"), edge.To)
}

func TestSubgraphSelectEdgeNoRoute(t *testing.T) {
	sub := simpleStrategy().Root
	sub.Edges = []*graph.Edge{
		{From: "s1:start", To: "s1:mid", Guard: func(context.Context, any, []prompt.Message) bool { return false }},
	}
	_, err := sub.SelectEdge(context.Background(), "s1:start", nil, nil)
	var rerr *engineerr.NoRouteError
	require.ErrorAs(t, err, &rerr)
}

func passthrough(_ context.Context, input any) (any, error) { return input, nil }
