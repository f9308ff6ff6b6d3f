package usecase

import (
	"log"
	"math"
	"sort"
	"strings"

	"github.com/pricelens/backend/internal/domain"
)

// ScoredPair is one unordered listing pair inside a block with its
// combined match score (0-100).
type ScoredPair struct {
	I     int
	J     int
	Score float64
}

// SimilarityScorer computes pairwise match scores on normalized names.
// Two signals are combined by taking their maximum: the best of several
// token-based ratios (plain, token-sort, token-set) and a TF-IDF cosine
// over 1-2 word shingles built from the block's name set.
type SimilarityScorer struct {
	enableDebugLogging bool
}

// NewSimilarityScorer creates a new similarity scorer
func NewSimilarityScorer(enableDebugLogging bool) *SimilarityScorer {
	return &SimilarityScorer{
		enableDebugLogging: enableDebugLogging,
	}
}

// ScoreBlock scores every unordered pair within one block. Blocks of size
// 0 or 1 produce no pairs.
func (s *SimilarityScorer) ScoreBlock(listings []domain.NormalizedListing) []ScoredPair {
	if len(listings) < 2 {
		return nil
	}

	names := make([]string, len(listings))
	for i, l := range listings {
		names[i] = l.NormalizedName
	}
	index := newShingleIndex(names)

	var pairs []ScoredPair
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			lexical := LexicalScore(names[i], names[j])
			vector := index.cosine(i, j) * 100

			score := lexical
			if vector > score {
				score = vector
			}

			if s.enableDebugLogging {
				log.Printf("[MATCH] %q vs %q: lexical=%.1f vector=%.1f -> %.1f",
					names[i], names[j], lexical, vector, score)
			}

			pairs = append(pairs, ScoredPair{I: i, J: j, Score: score})
		}
	}
	return pairs
}

// LexicalScore returns the best of the plain, token-sort, and token-set
// ratios, each on a 0-100 scale.
func LexicalScore(a, b string) float64 {
	score := ratio(a, b)
	if ts := tokenSortRatio(a, b); ts > score {
		score = ts
	}
	if ts := tokenSetRatio(a, b); ts > score {
		score = ts
	}
	return score
}

// SequenceRatio is the plain similarity ratio on a 0-1 scale, used by the
// intra-source deduplicator and the identity fuzzy fallback.
func SequenceRatio(a, b string) float64 {
	return ratio(a, b) / 100
}

// ratio is the edit-distance similarity of two strings scaled to 0-100
func ratio(a, b string) float64 {
	if a == b {
		return 100
	}
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 100
	}
	dist := levenshteinDistance(a, b)
	return (1 - float64(dist)/float64(longest)) * 100
}

// tokenSortRatio compares the two names with their tokens sorted, which
// makes the score insensitive to word order.
func tokenSortRatio(a, b string) float64 {
	return ratio(sortedTokenString(a), sortedTokenString(b))
}

// tokenSetRatio compares intersection-anchored reconstructions of the two
// token sets, which tolerates extra descriptive words on one side.
func tokenSetRatio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	var common, onlyA, onlyB []string
	for t := range setA {
		if setB[t] {
			common = append(common, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if !setA[t] {
			onlyB = append(onlyB, t)
		}
	}
	sort.Strings(common)
	sort.Strings(onlyA)
	sort.Strings(onlyB)

	base := strings.Join(common, " ")
	combinedA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	score := ratio(base, combinedA)
	if r := ratio(base, combinedB); r > score {
		score = r
	}
	if r := ratio(combinedA, combinedB); r > score {
		score = r
	}
	return score
}

func sortedTokenString(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		set[t] = true
	}
	return set
}

// levenshteinDistance calculates the edit distance between two strings
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	r1 := []rune(s1)
	r2 := []rune(s2)
	m := len(r1)
	n := len(r2)

	// Use two rows instead of the full matrix for space efficiency
	prev := make([]int, n+1)
	curr := make([]int, n+1)

	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[n]
}

// shingleIndex holds unit-length TF-IDF vectors over 1-2 word shingles for
// one block's name set.
type shingleIndex struct {
	vectors []map[string]float64
}

func newShingleIndex(names []string) *shingleIndex {
	n := len(names)
	counts := make([]map[string]float64, n)
	docFreq := make(map[string]int)

	for i, name := range names {
		tf := make(map[string]float64)
		for _, sh := range shingles(name) {
			tf[sh]++
		}
		counts[i] = tf
		for sh := range tf {
			docFreq[sh]++
		}
	}

	idf := make(map[string]float64, len(docFreq))
	for sh, df := range docFreq {
		idf[sh] = math.Log(float64(1+n)/float64(1+df)) + 1
	}

	vectors := make([]map[string]float64, n)
	for i, tf := range counts {
		vec := make(map[string]float64, len(tf))
		var sumSquares float64
		for sh, count := range tf {
			w := count * idf[sh]
			vec[sh] = w
			sumSquares += w * w
		}
		if length := math.Sqrt(sumSquares); length > 0 {
			for sh := range vec {
				vec[sh] /= length
			}
		}
		vectors[i] = vec
	}

	return &shingleIndex{vectors: vectors}
}

// cosine returns the cosine similarity between two block members (0-1)
func (idx *shingleIndex) cosine(i, j int) float64 {
	a := idx.vectors[i]
	b := idx.vectors[j]
	if len(b) < len(a) {
		a, b = b, a
	}

	var dot float64
	for sh, w := range a {
		if wb, ok := b[sh]; ok {
			dot += w * wb
		}
	}
	if dot > 1 {
		dot = 1
	}
	return dot
}

// shingles produces unigram and bigram word shingles
func shingles(name string) []string {
	words := strings.Fields(name)
	out := make([]string, 0, len(words)*2)
	out = append(out, words...)
	for i := 0; i+1 < len(words); i++ {
		out = append(out, words[i]+" "+words[i+1])
	}
	return out
}
