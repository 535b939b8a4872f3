package graph

import (
	"time"

	"github.com/google/uuid"
)

// Default visual attributes applied by NewNode. The persistence layer
// stores whatever it is given; these only matter for nodes created
// programmatically rather than through an editor.
const (
	DefaultColor  = "#4a90d9"
	DefaultRadius = 24.0
)

// Node is a vertex in a diagram: a positioned, labelled circle the editor
// places on the canvas. CreatedAt and ModifiedAt are owned by storage —
// they are populated on load and ignored on save.
type Node struct {
	ID             string    `json:"id"`
	X              float64   `json:"x"`
	Y              float64   `json:"y"`
	Label          string    `json:"label"`
	SecondaryLabel string    `json:"secondary_label,omitempty"` // alternate-script rendering of Label
	Color          string    `json:"color,omitempty"`
	Radius         float64   `json:"radius,omitempty"`
	Category       string    `json:"category,omitempty"`
	Layers         []string  `json:"layers,omitempty"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
	ModifiedAt     time.Time `json:"modified_at,omitempty"`
}

// NewNode creates a Node at the given position. If id is empty a new
// UUID v4 is generated.
func NewNode(id, label string, x, y float64) *Node {
	if id == "" {
		id = uuid.New().String()
	}
	return &Node{
		ID:     id,
		X:      x,
		Y:      y,
		Label:  label,
		Color:  DefaultColor,
		Radius: DefaultRadius,
	}
}

// HasLayer reports whether the node carries the given layer tag.
func (n *Node) HasLayer(layer string) bool {
	for _, l := range n.Layers {
		if l == layer {
			return true
		}
	}
	return false
}
