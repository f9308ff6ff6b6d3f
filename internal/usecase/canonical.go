package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/pricelens/backend/internal/domain"
)

// productIDPrefix keeps within-run product identifiers recognizable in
// logs and API output.
const productIDPrefix = "pl-"

// CanonicalBuilder elects one representative record per cluster and
// derives the within-run product identifier. Building is pure: same
// cluster in, same record out.
type CanonicalBuilder struct{}

// NewCanonicalBuilder creates a canonical record builder
func NewCanonicalBuilder() *CanonicalBuilder {
	return &CanonicalBuilder{}
}

// Build merges one cluster into a CanonicalProduct with one offer per
// member, sorted ascending by price.
func (b *CanonicalBuilder) Build(cluster []domain.NormalizedListing) domain.CanonicalProduct {
	category := mostFrequent(cluster, func(l domain.NormalizedListing) string { return l.Category })
	brand := mostFrequent(cluster, func(l domain.NormalizedListing) string { return l.Brand })
	normalizedBrand := mostFrequent(cluster, func(l domain.NormalizedListing) string { return l.NormalizedBrand })

	elected := mostDescriptive(cluster)

	volume := firstVolume(cluster)
	productType := firstType(cluster)

	offers := make([]domain.Offer, 0, len(cluster))
	for _, member := range cluster {
		offers = append(offers, domain.Offer{
			Store:         member.Source,
			Price:         member.Price,
			OriginalPrice: member.OriginalPrice,
			InStock:       member.InStock,
			URL:           member.URL,
			Image:         member.Image,
			OriginBrand:   member.Brand,
		})
	}
	sort.SliceStable(offers, func(i, j int) bool { return offers[i].Price < offers[j].Price })

	return domain.CanonicalProduct{
		ProductID: ProductID(normalizedBrand, elected.NormalizedName, volume, productType),
		Name:      elected.Name,
		Brand:     brand,
		Category:  category,
		Volume:    volume,
		Type:      productType,
		Offers:    offers,
	}
}

// ProductID derives the within-run product identifier: a short hash of the
// normalized brand, name base, and optional volume/type attributes.
// Deterministic, but scoped to one run only.
func ProductID(normalizedBrand, nameBase string, volume *domain.Volume, productType string) string {
	parts := []string{normalizedBrand, nameBase}
	if volume != nil {
		parts = append(parts, fmt.Sprintf("%g%s", volume.Value, volume.Unit))
	}
	if productType != "" {
		parts = append(parts, productType)
	}
	return productIDPrefix + shortHash(strings.Join(parts, "|"), 12)
}

// IdentityKey derives the cross-run identity key from brand, name, and
// category alone, independent of any single run's cluster composition.
func IdentityKey(normalizedBrand, normalizedName, normalizedCategory string) string {
	return shortHash(normalizedBrand+"|"+normalizedName+"|"+normalizedCategory, 16)
}

func shortHash(input string, length int) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])[:length]
}

// mostFrequent elects the most common value of one attribute across the
// cluster; earlier members win ties.
func mostFrequent(cluster []domain.NormalizedListing, attribute func(domain.NormalizedListing) string) string {
	counts := make(map[string]int)
	var best string
	bestCount := 0
	for _, member := range cluster {
		value := attribute(member)
		counts[value]++
		if counts[value] > bestCount {
			best = value
			bestCount = counts[value]
		}
	}
	return best
}

// mostDescriptive elects the member whose name has the most words,
// tie-broken by raw length.
func mostDescriptive(cluster []domain.NormalizedListing) domain.NormalizedListing {
	best := cluster[0]
	bestWords := len(strings.Fields(best.Name))
	for _, member := range cluster[1:] {
		words := len(strings.Fields(member.Name))
		if words > bestWords || (words == bestWords && len(member.Name) > len(best.Name)) {
			best = member
			bestWords = words
		}
	}
	return best
}

func firstVolume(cluster []domain.NormalizedListing) *domain.Volume {
	for _, member := range cluster {
		if member.Volume != nil {
			return member.Volume
		}
	}
	return nil
}

func firstType(cluster []domain.NormalizedListing) string {
	for _, member := range cluster {
		if member.ProductType != "" {
			return member.ProductType
		}
	}
	return ""
}
