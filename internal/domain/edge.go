package domain

// EdgeKey identifies a directed edge by its ordered endpoints
type EdgeKey struct {
	Source string
	Target string
}

// Reverse returns the key for the opposite direction
func (k EdgeKey) Reverse() EdgeKey {
	return EdgeKey{Source: k.Target, Target: k.Source}
}

// ID returns the wire identifier used by the renderer
func (k EdgeKey) ID() string {
	return k.Source + "-" + k.Target
}

// Node is a discovered domain
type Node struct {
	ID string `json:"id" yaml:"id"`
}

// Edge is a directed link between two domains. Bidirectional edges stand
// in for both directions; the opposite edge is never materialised.
type Edge struct {
	ID            string `json:"id" yaml:"id"`
	Source        string `json:"source" yaml:"source"`
	Target        string `json:"target" yaml:"target"`
	Bidirectional bool   `json:"bidirectional" yaml:"bidirectional"`
}

// NewEdge creates a unidirectional edge for key
func NewEdge(key EdgeKey) *Edge {
	return &Edge{
		ID:     key.ID(),
		Source: key.Source,
		Target: key.Target,
	}
}

// Key returns the edge's directed key
func (e *Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target}
}
