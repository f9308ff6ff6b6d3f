package usecase

import (
	"log"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/pricelens/backend/internal/domain"
)

// Compiled regex patterns for listing normalization
var (
	// Matches a volume token like "50ml", "1.5 kg", "30 gr", "200G"
	volumePattern = regexp.MustCompile(`\b(\d+(?:[.,]\d+)?)\s*(ml|gr|kg|g|oz)\b`)

	// Apostrophes are deleted outright so "l'oreal" and "loreal" agree
	apostrophePattern = regexp.MustCompile(`['\x{2019}]`)

	// Anything else that is not a letter, digit, or whitespace becomes a space
	nonAlphanumPattern = regexp.MustCompile(`[^a-z0-9\s]`)

	// Multiple spaces cleanup
	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// packagingKeywords mark size/bundle variants. They are extracted as a
// structured attribute before noise removal so the clustering guard can
// still tell a "mini kit" apart from the full-size item.
var packagingKeywords = []string{"kit", "mini", "tester", "pack"}

// noiseWords to remove from normalized names (units, packaging, marketing)
var noiseWords = map[string]bool{
	// Unit words left behind once the volume token is extracted
	"ml": true, "gr": true, "kg": true, "oz": true,
	"gram": true, "grams": true, "litre": true, "liter": true,

	// Packaging terms
	"pack": true, "packs": true, "kit": true, "set": true,
	"mini": true, "tester": true, "travel": true, "refill": true,
	"duo": true, "trio": true,

	// Marketing terms
	"new": true, "offer": true, "promo": true, "sale": true,
	"original": true, "genuine": true, "exclusive": true,
	"limited": true, "edition": true, "free": true, "gift": true,
}

// productTypeVocabulary is the fixed lookup for the product-type attribute.
// First token found in the normalized name wins.
var productTypeVocabulary = []string{
	"serum", "cream", "lipstick", "mascara", "shampoo", "conditioner",
	"lotion", "balm", "gel", "toner", "cleanser", "scrub", "mask",
	"foundation", "concealer", "powder", "blush", "eyeliner", "eyeshadow",
	"primer", "perfume", "cologne", "deodorant", "sunscreen", "moisturizer",
	"oil", "soap",
}

// brandAliases maps known spelling variants to one canonical brand string.
// Keys and values are already in normalized (lowercase, accent-free) form.
var brandAliases = map[string]string{
	"l oreal":             "loreal",
	"l oreal paris":       "loreal",
	"loreal paris":        "loreal",
	"maybeline":           "maybelline",
	"maybelline ny":       "maybelline",
	"maybelline new york": "maybelline",
	"nivea men":           "nivea",
	"laroche posay":       "la roche posay",
}

// Normalizer canonicalizes scraped listing text and extracts structured
// attributes (volume, product type, packaging keywords). Normalization is
// deterministic and idempotent: normalizing an already-normalized string
// yields the same string.
type Normalizer struct {
	enableDebugLogging bool
}

// NewNormalizer creates a new listing normalizer
func NewNormalizer(enableDebugLogging bool) *Normalizer {
	return &Normalizer{
		enableDebugLogging: enableDebugLogging,
	}
}

// NormalizeListing produces the NormalizedListing the matching pipeline
// works on. The raw listing is carried along untouched.
func (n *Normalizer) NormalizeListing(raw domain.RawListing) domain.NormalizedListing {
	// Volume comes off before punctuation cleanup so decimal separators in
	// the size token ("1.5 kg", "1,5 kg") survive long enough to parse.
	volume, remainder := extractVolume(stripAccents(strings.ToLower(raw.Name)))
	base := CleanText(remainder)
	packaging := extractPackagingKeywords(base)
	name := removeNoiseWords(base)
	productType := extractProductType(name)

	normalized := domain.NormalizedListing{
		RawListing:         raw,
		NormalizedName:     name,
		NormalizedBrand:    n.NormalizeBrand(raw.Brand),
		NormalizedCategory: CleanText(raw.Category),
		Volume:             volume,
		ProductType:        productType,
		PackagingKeywords:  packaging,
	}

	if n.enableDebugLogging {
		log.Printf("[NORMALIZE] %q -> name=%q brand=%q volume=%v type=%q packaging=%v",
			raw.Name, name, normalized.NormalizedBrand, volume, productType, packaging)
	}

	return normalized
}

// NormalizeBrand canonicalizes a brand string and resolves known spelling
// variants through the alias table.
func (n *Normalizer) NormalizeBrand(brand string) string {
	cleaned := CleanText(brand)
	if alias, ok := brandAliases[cleaned]; ok {
		return alias
	}
	return cleaned
}

// CleanText lower-cases, strips diacritics, replaces non-alphanumeric
// characters with spaces, and collapses whitespace.
func CleanText(s string) string {
	result := strings.ToLower(s)
	result = stripAccents(result)
	result = apostrophePattern.ReplaceAllString(result, "")
	result = nonAlphanumPattern.ReplaceAllString(result, " ")
	result = multiSpacePattern.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

// stripAccents removes combining diacritical marks (e.g., "máscara" -> "mascara")
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

// extractVolume finds the first volume token in a lower-cased name,
// normalizes the unit (gr -> g), and returns the name with the token removed.
func extractVolume(lowered string) (*domain.Volume, string) {
	match := volumePattern.FindStringSubmatchIndex(lowered)
	if match == nil {
		return nil, lowered
	}

	valueText := strings.ReplaceAll(lowered[match[2]:match[3]], ",", ".")
	value, err := strconv.ParseFloat(valueText, 64)
	if err != nil {
		return nil, lowered
	}

	unit := lowered[match[4]:match[5]]
	if unit == "gr" {
		unit = "g"
	}

	rest := lowered[:match[0]] + " " + lowered[match[1]:]

	return &domain.Volume{Value: value, Unit: unit}, strings.TrimSpace(rest)
}

// extractPackagingKeywords returns the packaging keywords present in a
// cleaned name, in vocabulary order.
func extractPackagingKeywords(cleaned string) []string {
	words := make(map[string]bool)
	for _, w := range strings.Fields(cleaned) {
		words[w] = true
	}

	var found []string
	for _, kw := range packagingKeywords {
		if words[kw] {
			found = append(found, kw)
		}
	}
	return found
}

// removeNoiseWords drops unit, packaging, and marketing words
func removeNoiseWords(cleaned string) string {
	words := strings.Fields(cleaned)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if !noiseWords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// extractProductType returns the first vocabulary type present in the name
func extractProductType(name string) string {
	words := make(map[string]bool)
	for _, w := range strings.Fields(name) {
		words[w] = true
	}

	for _, t := range productTypeVocabulary {
		if words[t] {
			return t
		}
	}
	return ""
}
