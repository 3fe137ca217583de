package workflowdef

// Graph is the node/edge structure a workflow definition describes.
type Graph struct {
	Nodes []Node `yaml:"nodes" json:"nodes"`
	Edges []Edge `yaml:"edges" json:"edges"`
}

type Node struct {
	ID    string `yaml:"id" json:"id"`
	Type  string `yaml:"type" json:"type"`
	Label string `yaml:"label,omitempty" json:"label,omitempty"`
}

type Edge struct {
	Source string `yaml:"source" json:"source"`
	Target string `yaml:"target" json:"target"`
}

// Depth is the longest path through the graph, measured in nodes, starting
// from entry nodes (nodes with no inbound edge). A nil or empty graph has
// depth 1: plain text content still describes a single implicit node. A cycle
// is reported as one past the node count so any finite depth budget rejects
// it.
func (g *Graph) Depth() int {
	if g == nil || len(g.Nodes) == 0 {
		return 1
	}

	adjacency := make(map[string][]string, len(g.Nodes))
	inbound := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		inbound[n.ID] = 0
	}
	for _, e := range g.Edges {
		// Edges referencing unknown nodes are ignored rather than walked.
		if _, ok := inbound[e.Source]; !ok {
			continue
		}
		if _, ok := inbound[e.Target]; !ok {
			continue
		}
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		inbound[e.Target]++
	}

	var entries []string
	for _, n := range g.Nodes {
		if inbound[n.ID] == 0 {
			entries = append(entries, n.ID)
		}
	}
	// No entry node means every node sits on a cycle.
	if len(entries) == 0 {
		return len(g.Nodes) + 1
	}

	memo := make(map[string]int, len(g.Nodes))
	onPath := make(map[string]bool, len(g.Nodes))
	cyclic := false

	var walk func(id string) int
	walk = func(id string) int {
		if d, ok := memo[id]; ok {
			return d
		}
		if onPath[id] {
			cyclic = true
			return 0
		}
		onPath[id] = true
		deepest := 0
		for _, next := range adjacency[id] {
			if d := walk(next); d > deepest {
				deepest = d
			}
		}
		onPath[id] = false
		memo[id] = deepest + 1
		return deepest + 1
	}

	maxDepth := 0
	for _, id := range entries {
		if d := walk(id); d > maxDepth {
			maxDepth = d
		}
	}
	if cyclic {
		return len(g.Nodes) + 1
	}
	return maxDepth
}

// NodeCount returns the number of nodes the content describes, counting plain
// text content as a single node.
func (g *Graph) NodeCount() int {
	if g == nil || len(g.Nodes) == 0 {
		return 1
	}
	return len(g.Nodes)
}
