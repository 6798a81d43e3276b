package domain

import "sort"

// OpKind is a render operation emitted by Graph.ApplyBatch
type OpKind string

const (
	OpAddNode          OpKind = "add_node"
	OpAddEdge          OpKind = "add_edge"
	OpSetBidirectional OpKind = "set_bidirectional"
	OpRemoveEdge       OpKind = "remove_edge"
)

// Op is one mutation for the layout engine to mirror
type Op struct {
	Kind   OpKind `json:"op"`
	ID     string `json:"id"`
	Source string `json:"source,omitempty"`
	Target string `json:"target,omitempty"`
}

// Graph is the deduplicated domain relationship graph. It holds at most
// one edge per unordered pair of domains. Not safe for concurrent use;
// the aggregator serialises access.
type Graph struct {
	nodes map[string]*Node
	edges map[EdgeKey]*Edge
}

// Snapshot is a point-in-time copy of the graph for rendering or export
type Snapshot struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		edges: make(map[EdgeKey]*Edge),
	}
}

// ApplyBatch merges relationships into the graph and returns the render
// operations in the order they took effect.
//
// A repeat sighting of an already known direction marks the edge
// bidirectional, the same as a sighting of the reverse direction.
func (g *Graph) ApplyBatch(rels []Relationship) []Op {
	var ops []Op
	for _, rel := range rels {
		ops = g.ensureNode(rel.Parent, ops)
		ops = g.ensureNode(rel.Child, ops)

		// A self edge would collapse into itself on its second sighting.
		if rel.Parent == rel.Child {
			continue
		}

		forward := EdgeKey{Source: rel.Parent, Target: rel.Child}
		reverse := forward.Reverse()
		fwdEdge, hasForward := g.edges[forward]
		revEdge, hasReverse := g.edges[reverse]

		switch {
		case hasForward && hasReverse:
			ops = g.markBidirectional(fwdEdge, ops)
			delete(g.edges, reverse)
			ops = append(ops, Op{Kind: OpRemoveEdge, ID: revEdge.ID})
		case hasForward:
			ops = g.markBidirectional(fwdEdge, ops)
		case hasReverse:
			ops = g.markBidirectional(revEdge, ops)
		default:
			edge := NewEdge(forward)
			g.edges[forward] = edge
			ops = append(ops, Op{Kind: OpAddEdge, ID: edge.ID, Source: edge.Source, Target: edge.Target})
		}
	}
	return ops
}

func (g *Graph) ensureNode(id string, ops []Op) []Op {
	if _, ok := g.nodes[id]; ok {
		return ops
	}
	g.nodes[id] = &Node{ID: id}
	return append(ops, Op{Kind: OpAddNode, ID: id})
}

func (g *Graph) markBidirectional(edge *Edge, ops []Op) []Op {
	if edge.Bidirectional {
		return ops
	}
	edge.Bidirectional = true
	return append(ops, Op{Kind: OpSetBidirectional, ID: edge.ID})
}

// Edge returns the edge stored under the exact direction source -> target
func (g *Graph) Edge(source, target string) (Edge, bool) {
	edge, ok := g.edges[EdgeKey{Source: source, Target: target}]
	if !ok {
		return Edge{}, false
	}
	return *edge, true
}

// Between returns the single edge joining a and b in either direction
func (g *Graph) Between(a, b string) (Edge, bool) {
	if edge, ok := g.Edge(a, b); ok {
		return edge, true
	}
	return g.Edge(b, a)
}

// HasNode reports whether id has been discovered
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// NodeCount returns the number of nodes
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Snapshot copies the graph, sorted by id for stable output
func (g *Graph) Snapshot() Snapshot {
	snap := Snapshot{
		Nodes: make([]Node, 0, len(g.nodes)),
		Edges: make([]Edge, 0, len(g.edges)),
	}
	for _, node := range g.nodes {
		snap.Nodes = append(snap.Nodes, *node)
	}
	for _, edge := range g.edges {
		snap.Edges = append(snap.Edges, *edge)
	}
	sort.Slice(snap.Nodes, func(i, j int) bool { return snap.Nodes[i].ID < snap.Nodes[j].ID })
	sort.Slice(snap.Edges, func(i, j int) bool {
		if snap.Edges[i].Source != snap.Edges[j].Source {
			return snap.Edges[i].Source < snap.Edges[j].Source
		}
		return snap.Edges[i].Target < snap.Edges[j].Target
	})
	return snap
}

// Reset removes every node and edge
func (g *Graph) Reset() {
	g.nodes = make(map[string]*Node)
	g.edges = make(map[EdgeKey]*Edge)
}
