package domain

import "time"

// RawListing represents one product listing as scraped from a retail catalog
type RawListing struct {
	Source        string    `json:"source"`
	Name          string    `json:"name"`
	Brand         string    `json:"brand"`
	Category      string    `json:"category"`
	Price         float64   `json:"price"`
	OriginalPrice float64   `json:"originalPrice,omitempty"`
	InStock       bool      `json:"inStock"`
	URL           string    `json:"url,omitempty"`
	Image         string    `json:"image,omitempty"`
	ScrapedAt     time.Time `json:"scrapedAt"`
}

// Volume is a size attribute extracted from a listing name (e.g., 50 ml)
type Volume struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"` // "ml", "g", "kg", "oz"
}

// Compatible reports whether two volumes could describe the same product.
// A missing volume on either side is compatible; present volumes must share
// a unit and agree within the given relative tolerance.
func (v *Volume) Compatible(other *Volume, tolerance float64) bool {
	if v == nil || other == nil {
		return true
	}
	if v.Unit != other.Unit {
		return false
	}
	larger := v.Value
	smaller := other.Value
	if smaller > larger {
		larger, smaller = smaller, larger
	}
	if larger == 0 {
		return true
	}
	return (larger-smaller)/larger <= tolerance
}

// NormalizedListing is a RawListing plus the canonical text and structured
// attributes the matching pipeline works on. Transient, per run.
type NormalizedListing struct {
	RawListing

	NormalizedName     string   `json:"normalizedName"`
	NormalizedBrand    string   `json:"normalizedBrand"`
	NormalizedCategory string   `json:"normalizedCategory"`
	Volume             *Volume  `json:"volume,omitempty"`
	ProductType        string   `json:"productType,omitempty"`
	PackagingKeywords  []string `json:"packagingKeywords,omitempty"`
}

// ScrapeDocument is the ingestion input produced by the scraping collaborator
// for one (store, category) extraction.
type ScrapeDocument struct {
	Store       string           `json:"store" binding:"required"`
	Category    string           `json:"category" binding:"required"`
	ExtractedAt time.Time        `json:"extractionTimestamp"`
	Products    []ScrapedProduct `json:"products"`
}

// ScrapedProduct is one raw product entry inside a ScrapeDocument
type ScrapedProduct struct {
	Name          string  `json:"name"`
	Brand         string  `json:"brand"`
	Price         float64 `json:"price"`
	OriginalPrice float64 `json:"originalPrice,omitempty"`
	InStock       bool    `json:"inStock"`
	URL           string  `json:"url,omitempty"`
	Image         string  `json:"image,omitempty"`
}

// Listings flattens the document into RawListings stamped with store,
// category, and extraction time.
func (d *ScrapeDocument) Listings() []RawListing {
	listings := make([]RawListing, 0, len(d.Products))
	for _, p := range d.Products {
		listings = append(listings, RawListing{
			Source:        d.Store,
			Name:          p.Name,
			Brand:         p.Brand,
			Category:      d.Category,
			Price:         p.Price,
			OriginalPrice: p.OriginalPrice,
			InStock:       p.InStock,
			URL:           p.URL,
			Image:         p.Image,
			ScrapedAt:     d.ExtractedAt,
		})
	}
	return listings
}
