package domain

import "time"

// ChangeType classifies a price delta against the prior observation
type ChangeType string

const (
	ChangeIncreased ChangeType = "increased"
	ChangeDecreased ChangeType = "decreased"
	ChangeUnchanged ChangeType = "unchanged"
	ChangeNewPrice  ChangeType = "new_price"

	// ChangeExpired marks the terminal notification of an expired
	// subscription; it never results from delta classification.
	ChangeExpired ChangeType = "expired"
)

// PriceObservation is one append-only price reading for a
// (persistent product, store) pair. Same-day re-ingestion updates the
// existing row in place instead of appending a duplicate.
type PriceObservation struct {
	ID            int64     `json:"id"`
	ProductID     int64     `json:"productId"`
	Store         string    `json:"store"`
	Price         float64   `json:"price"`
	OriginalPrice float64   `json:"originalPrice,omitempty"`
	Discounted    bool      `json:"discounted"`
	InStock       bool      `json:"inStock"`
	ObservedAt    time.Time `json:"observedAt"`
	RunID         string    `json:"runId"`
}

// PriceChangeEvent describes one classified price delta. Ephemeral:
// produced by the change detector, consumed by the alert engine, never
// persisted.
type PriceChangeEvent struct {
	ProductID  int64      `json:"productId"`
	Store      string     `json:"store"`
	StoreURL   string     `json:"storeUrl,omitempty"`
	OldPrice   float64    `json:"oldPrice"`
	NewPrice   float64    `json:"newPrice"`
	Type       ChangeType `json:"changeType"`
	Percentage float64    `json:"percentage"`
	Amount     float64    `json:"amount"`
	Timestamp  time.Time  `json:"timestamp"`
}
