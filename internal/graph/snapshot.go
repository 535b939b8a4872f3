package graph

import "strings"

// Meta carries the free-form descriptive fields of a diagram. Extra is an
// arbitrary key/value bag the editor can use for anything it likes; it is
// persisted as JSON text.
type Meta struct {
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Snapshot is the full in-memory state of one diagram: every node and
// edge plus the viewport (scale and pan offset). It is the unit of
// exchange with the persistence layer — SaveGraph consumes one,
// LoadGraph produces one.
type Snapshot struct {
	Nodes   []Node  `json:"nodes"`
	Edges   []Edge  `json:"edges"`
	Scale   float64 `json:"scale"`
	OffsetX float64 `json:"offset_x"`
	OffsetY float64 `json:"offset_y"`
	Meta    Meta    `json:"meta"`
}

// NewSnapshot returns an empty snapshot with the default viewport.
func NewSnapshot() *Snapshot {
	return &Snapshot{Scale: 1}
}

// NodeIndex returns a map from node ID to the node's position in Nodes.
func (s *Snapshot) NodeIndex() map[string]int {
	idx := make(map[string]int, len(s.Nodes))
	for i, n := range s.Nodes {
		idx[n.ID] = i
	}
	return idx
}

// DanglingEdges returns the edges whose from or to endpoint is not among
// the snapshot's nodes. The persistence layer rejects such edges at save
// time, so callers assembling a snapshot from filtered node sets should
// drop everything this returns first.
func (s *Snapshot) DanglingEdges() []Edge {
	idx := s.NodeIndex()
	var dangling []Edge
	for _, e := range s.Edges {
		if _, ok := idx[e.FromID]; !ok {
			dangling = append(dangling, e)
			continue
		}
		if _, ok := idx[e.ToID]; !ok {
			dangling = append(dangling, e)
		}
	}
	return dangling
}

// Normalize cleans up editor artefacts before a save: layer tags are
// trimmed and empties dropped, and the scale falls back to 1 when unset.
func (s *Snapshot) Normalize() {
	if s.Scale == 0 {
		s.Scale = 1
	}
	for i := range s.Nodes {
		s.Nodes[i].Layers = cleanLayers(s.Nodes[i].Layers)
	}
}

func cleanLayers(layers []string) []string {
	if len(layers) == 0 {
		return nil
	}
	out := layers[:0]
	for _, l := range layers {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
