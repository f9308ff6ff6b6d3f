package usecase

import (
	"log"
	"strings"

	"github.com/pricelens/backend/internal/domain"
)

// IntraSourceDeduplicator collapses near-duplicate listings coming from the
// same source before any cross-source work happens. Listings are grouped by
// (source, category, normalized brand); within a group, a pair is a
// duplicate when the name ratio reaches the configured threshold and the
// volumes do not contradict each other. The most complete listing of each
// duplicate set survives.
type IntraSourceDeduplicator struct {
	duplicateRatio     float64
	enableDebugLogging bool
}

// NewIntraSourceDeduplicator creates a deduplicator with the given ratio
// threshold (0-1). Zero or negative falls back to the 0.95 default.
func NewIntraSourceDeduplicator(duplicateRatio float64, enableDebugLogging bool) *IntraSourceDeduplicator {
	if duplicateRatio <= 0 {
		duplicateRatio = 0.95
	}
	return &IntraSourceDeduplicator{
		duplicateRatio:     duplicateRatio,
		enableDebugLogging: enableDebugLogging,
	}
}

// Deduplicate returns the listing pool with same-source near-duplicates
// collapsed. Listings from different sources are never compared.
func (d *IntraSourceDeduplicator) Deduplicate(listings []domain.NormalizedListing) []domain.NormalizedListing {
	type groupKey struct {
		source   string
		category string
		brand    string
	}

	groups := make(map[groupKey][]domain.NormalizedListing)
	var order []groupKey
	for _, l := range listings {
		key := groupKey{source: l.Source, category: l.NormalizedCategory, brand: l.NormalizedBrand}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], l)
	}

	var result []domain.NormalizedListing
	for _, key := range order {
		result = append(result, d.deduplicateGroup(groups[key])...)
	}
	return result
}

func (d *IntraSourceDeduplicator) deduplicateGroup(group []domain.NormalizedListing) []domain.NormalizedListing {
	resolved := make([]bool, len(group))
	var kept []domain.NormalizedListing

	for i := range group {
		if resolved[i] {
			continue
		}
		resolved[i] = true
		duplicates := []domain.NormalizedListing{group[i]}

		for j := i + 1; j < len(group); j++ {
			if resolved[j] {
				continue
			}
			if d.isDuplicate(group[i], group[j]) {
				resolved[j] = true
				duplicates = append(duplicates, group[j])
			}
		}

		best := mostComplete(duplicates)
		if d.enableDebugLogging && len(duplicates) > 1 {
			log.Printf("[DEDUP] %s: collapsed %d listings into %q", best.Source, len(duplicates), best.Name)
		}
		kept = append(kept, best)
	}

	return kept
}

// isDuplicate applies the name-ratio threshold plus the volume check: a
// missing volume on either side passes, present volumes must match exactly.
func (d *IntraSourceDeduplicator) isDuplicate(a, b domain.NormalizedListing) bool {
	if SequenceRatio(a.NormalizedName, b.NormalizedName) < d.duplicateRatio {
		return false
	}
	if a.Volume == nil || b.Volume == nil {
		return true
	}
	return a.Volume.Unit == b.Volume.Unit && a.Volume.Value == b.Volume.Value
}

// mostComplete elects the listing with the highest completeness score:
// having an image and a url each count, and a longer descriptive name
// breaks ties.
func mostComplete(listings []domain.NormalizedListing) domain.NormalizedListing {
	best := listings[0]
	bestScore, bestWords := completeness(best)

	for _, candidate := range listings[1:] {
		score, words := completeness(candidate)
		if score > bestScore ||
			(score == bestScore && words > bestWords) ||
			(score == bestScore && words == bestWords && len(candidate.Name) > len(best.Name)) {
			best = candidate
			bestScore, bestWords = score, words
		}
	}
	return best
}

func completeness(l domain.NormalizedListing) (score, words int) {
	if l.Image != "" {
		score++
	}
	if l.URL != "" {
		score++
	}
	return score, len(strings.Fields(l.Name))
}
