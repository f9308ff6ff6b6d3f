package usecase

import (
	"log"

	"github.com/pricelens/backend/internal/domain"
)

// ClusterConfig holds the thresholds guarding the adjacency relation
type ClusterConfig struct {
	StrongThreshold    float64 // combined score required for an edge (0-100)
	VolumeTolerance    float64 // relative tolerance for volume compatibility (0-1)
	EnableDebugLogging bool
}

// ClusterBuilder turns scored pairs into equivalence classes. An edge
// exists between two listings when the combined score reaches the strong
// threshold and every consistency guard passes; clusters are the connected
// components of that graph. Isolated listings form singleton clusters.
type ClusterBuilder struct {
	strongThreshold    float64
	volumeTolerance    float64
	enableDebugLogging bool
}

// NewClusterBuilder creates a cluster builder, falling back to the default
// strong threshold (90) and volume tolerance (15%) for zero values.
func NewClusterBuilder(config ClusterConfig) *ClusterBuilder {
	threshold := config.StrongThreshold
	if threshold <= 0 {
		threshold = 90
	}
	tolerance := config.VolumeTolerance
	if tolerance <= 0 {
		tolerance = 0.15
	}
	return &ClusterBuilder{
		strongThreshold:    threshold,
		volumeTolerance:    tolerance,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// BuildClusters computes the guarded connected components of one block
func (b *ClusterBuilder) BuildClusters(listings []domain.NormalizedListing, pairs []ScoredPair) [][]domain.NormalizedListing {
	n := len(listings)
	if n == 0 {
		return nil
	}

	adjacency := make([][]int, n)
	for _, pair := range pairs {
		if pair.Score < b.strongThreshold {
			continue
		}
		if !b.guardsPass(listings[pair.I], listings[pair.J]) {
			continue
		}
		adjacency[pair.I] = append(adjacency[pair.I], pair.J)
		adjacency[pair.J] = append(adjacency[pair.J], pair.I)
	}

	visited := make([]bool, n)
	var clusters [][]domain.NormalizedListing

	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}

		// Depth-first traversal of one component
		var component []domain.NormalizedListing
		stack := []int{start}
		visited[start] = true
		for len(stack) > 0 {
			node := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			component = append(component, listings[node])
			for _, next := range adjacency[node] {
				if !visited[next] {
					visited[next] = true
					stack = append(stack, next)
				}
			}
		}

		clusters = append(clusters, component)
	}

	if b.enableDebugLogging {
		log.Printf("[CLUSTER] %d listings -> %d clusters", n, len(clusters))
	}
	return clusters
}

// guardsPass applies the consistency guards that keep a high lexical score
// from merging incompatible variants.
func (b *ClusterBuilder) guardsPass(a, c domain.NormalizedListing) bool {
	// Conflicting extracted types never match
	if a.ProductType != "" && c.ProductType != "" && a.ProductType != c.ProductType {
		return false
	}

	// Volumes must agree within tolerance when both are present
	if !a.Volume.Compatible(c.Volume, b.volumeTolerance) {
		return false
	}

	// Packaging symmetry: a full-size item never joins a kit/mini variant
	if (len(a.PackagingKeywords) > 0) != (len(c.PackagingKeywords) > 0) {
		return false
	}

	return true
}
