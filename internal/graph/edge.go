package graph

import (
	"time"

	"github.com/google/uuid"
)

// Edge is a weighted, directed connection between two nodes in a diagram.
// FromID and ToID reference Node.ID values; storage declares the
// relationship but the layer producing snapshots is responsible for not
// handing over edges whose endpoints are missing (see Snapshot.DanglingEdges).
type Edge struct {
	ID         string    `json:"id"`
	FromID     string    `json:"from_id"`
	ToID       string    `json:"to_id"`
	Weight     float64   `json:"weight"`
	Category   string    `json:"category,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	ModifiedAt time.Time `json:"modified_at,omitempty"`
}

// NewEdge creates an Edge between fromID and toID with weight 1.
// If id is empty a new UUID v4 is generated.
func NewEdge(id, fromID, toID string) *Edge {
	if id == "" {
		id = uuid.New().String()
	}
	return &Edge{
		ID:     id,
		FromID: fromID,
		ToID:   toID,
		Weight: 1,
	}
}
