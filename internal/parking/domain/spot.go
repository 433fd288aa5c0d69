package domain

// Spot is a physical parking location. Only Available changes over its lifetime.
type Spot struct {
	ID        int      `json:"id"`
	Category  Category `json:"category"`
	Available bool     `json:"available"`
}
