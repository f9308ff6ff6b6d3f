package domain

import "time"

// Offer is one store's price for a canonical product
type Offer struct {
	Store         string  `json:"source"`
	Price         float64 `json:"price"`
	OriginalPrice float64 `json:"originalPrice,omitempty"`
	InStock       bool    `json:"inStock"`
	URL           string  `json:"url,omitempty"`
	Image         string  `json:"image,omitempty"`
	OriginBrand   string  `json:"originBrand,omitempty"`
}

// CanonicalProduct is the merged representation of one real-world item
// across stores, scoped to a single ingestion run. Offers are kept sorted
// ascending by price.
type CanonicalProduct struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Brand     string  `json:"brand"`
	Category  string  `json:"category"`
	Volume    *Volume `json:"volume,omitempty"`
	Type      string  `json:"type,omitempty"`
	Offers    []Offer `json:"stores"`
}

// PersistentProduct is the long-lived, cross-run identity for a product.
// InternalID is minted once and never changes.
type PersistentProduct struct {
	InternalID         int64     `json:"internalId"`
	IdentityKey        string    `json:"identityKey"`
	Name               string    `json:"name"`
	Brand              string    `json:"brand"`
	Category           string    `json:"category"`
	NormalizedName     string    `json:"normalizedName"`
	NormalizedBrand    string    `json:"normalizedBrand"`
	NormalizedCategory string    `json:"normalizedCategory"`
	FirstSeen          time.Time `json:"firstSeen"`
	LastSeen           time.Time `json:"lastSeen"`
	OccurrenceCount    int       `json:"occurrenceCount"`
	Active             bool      `json:"active"`
}

// RunReport summarizes one ingestion run for the caller
type RunReport struct {
	RunID          string   `json:"runId"`
	Processed      int      `json:"processed"`
	Created        int      `json:"created"`
	Updated        int      `json:"updated"`
	PriceRowsAdded int      `json:"priceRowsAdded"`
	Preserved      int      `json:"preserved"`
	Errors         []string `json:"errors"`
}
