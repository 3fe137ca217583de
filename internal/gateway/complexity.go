package gateway

import (
	"fmt"
	"time"

	"github.com/tradeease/workflowgate/internal/workflowdef"
	"github.com/tradeease/workflowgate/pkg/cerr"
)

// DepthFunc computes the structural depth of the graph a content payload
// describes. Pluggable so the walk can evolve without changing the pipeline.
type DepthFunc func(*workflowdef.Graph) int

// defaultDepth delegates to the graph's own longest-path walk.
func defaultDepth(g *workflowdef.Graph) int {
	return g.Depth()
}

// checkTiming rejects stale grants to bound replay and queuing-delay
// exposure.
func checkTiming(g *PermissionGrant, now time.Time, budget time.Duration) *cerr.Error {
	issued := time.UnixMilli(g.IssuedAt)
	if now.Sub(issued) > budget {
		return cerr.New(cerr.KindValidation, "operation timeout - request too old", nil)
	}
	return nil
}

// checkComplexity bounds the depth and size of the workflow graph implied by
// the content.
func checkComplexity(c *ContentPayload, maxDepth, maxNodes int, depthFn DepthFunc) *cerr.Error {
	if depthFn == nil {
		depthFn = defaultDepth
	}
	if depth := depthFn(c.Graph); depth > maxDepth {
		return cerr.New(cerr.KindWorkflow,
			fmt.Sprintf("workflow depth %d exceeds maximum of %d", depth, maxDepth), nil)
	}
	if count := c.Graph.NodeCount(); count > maxNodes {
		return cerr.New(cerr.KindWorkflow,
			fmt.Sprintf("workflow has %d nodes, maximum is %d", count, maxNodes), nil)
	}
	return nil
}
