package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradeease/workflowgate/internal/workflowdef"
	"github.com/tradeease/workflowgate/pkg/cerr"
)

func TestCheckTiming(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	budget := 10 * time.Second

	t.Run("fresh grant passes", func(t *testing.T) {
		g := &PermissionGrant{IssuedAt: now.Add(-time.Second).UnixMilli()}
		assert.Nil(t, checkTiming(g, now, budget))
	})

	t.Run("grant at the budget boundary passes", func(t *testing.T) {
		g := &PermissionGrant{IssuedAt: now.Add(-budget).UnixMilli()}
		assert.Nil(t, checkTiming(g, now, budget))
	})

	t.Run("stale grant is rejected", func(t *testing.T) {
		g := &PermissionGrant{IssuedAt: now.Add(-budget - time.Millisecond).UnixMilli()}
		err := checkTiming(g, now, budget)
		require.NotNil(t, err)
		assert.Equal(t, cerr.KindValidation, err.Kind)
		assert.Contains(t, err.Msg, "too old")
	})

	t.Run("future grant passes", func(t *testing.T) {
		g := &PermissionGrant{IssuedAt: now.Add(time.Minute).UnixMilli()}
		assert.Nil(t, checkTiming(g, now, budget))
	})
}

func TestCheckComplexity_Depth(t *testing.T) {
	deepGraph := &workflowdef.Graph{
		Nodes: []workflowdef.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}},
		Edges: []workflowdef.Edge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "c"},
			{Source: "c", Target: "d"},
		},
	}

	c := &ContentPayload{Text: "x", Graph: deepGraph}
	err := checkComplexity(c, 3, 50, nil)
	require.NotNil(t, err)
	assert.Equal(t, cerr.KindWorkflow, err.Kind)
	assert.Contains(t, err.Msg, "depth")

	// The same graph passes a deeper budget.
	assert.Nil(t, checkComplexity(c, 4, 50, nil))
}

func TestCheckComplexity_PlainTextContent(t *testing.T) {
	// No graph means a single implicit node: always within any sane budget.
	c := &ContentPayload{Text: "just words"}
	assert.Nil(t, checkComplexity(c, 3, 50, nil))
}

func TestCheckComplexity_NodeCount(t *testing.T) {
	g := &workflowdef.Graph{}
	for i := 0; i < 51; i++ {
		g.Nodes = append(g.Nodes, workflowdef.Node{ID: string(rune('a' + i))})
	}

	c := &ContentPayload{Text: "x", Graph: g}
	err := checkComplexity(c, 3, 50, nil)
	require.NotNil(t, err)
	assert.Equal(t, cerr.KindWorkflow, err.Kind)
	assert.Contains(t, err.Msg, "nodes")

	g.Nodes = g.Nodes[:50]
	assert.Nil(t, checkComplexity(c, 3, 50, nil))
}

func TestCheckComplexity_CycleRejected(t *testing.T) {
	g := &workflowdef.Graph{
		Nodes: []workflowdef.Node{{ID: "a"}, {ID: "b"}},
		Edges: []workflowdef.Edge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "a"},
		},
	}

	// Depth reports one past the node count for cycles, so even a generous
	// budget equal to the node count rejects it.
	c := &ContentPayload{Text: "x", Graph: g}
	err := checkComplexity(c, 2, 50, nil)
	require.NotNil(t, err)
	assert.Equal(t, cerr.KindWorkflow, err.Kind)
}

func TestCheckComplexity_CustomDepthFunc(t *testing.T) {
	called := false
	fn := func(*workflowdef.Graph) int {
		called = true
		return 99
	}
	err := checkComplexity(&ContentPayload{Text: "x"}, 3, 50, fn)
	require.NotNil(t, err)
	assert.True(t, called)
}
