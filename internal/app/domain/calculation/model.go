package calculation

import "time"

// Kind tags which binary operation a calculation applies. The string values
// are the wire and storage representation; conversion happens once at the
// store and transport edges.
type Kind string

const (
	KindAdd      Kind = "Add"
	KindSubtract Kind = "Subtract"
	KindMultiply Kind = "Multiply"
	KindDivide   Kind = "Divide"
)

// Calculation is a stored binary computation owned by exactly one principal.
// ID and OwnerID are immutable after creation; Result is always the dispatch
// outcome for the stored operands and kind, never edited independently.
type Calculation struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	A         float64   `json:"a"`
	B         float64   `json:"b"`
	Kind      Kind      `json:"type"`
	Result    float64   `json:"result"`
	CreatedAt time.Time `json:"created_at"`
}
