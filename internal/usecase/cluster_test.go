package usecase

import (
	"testing"

	"github.com/pricelens/backend/internal/domain"
)

func clusterListing(source, normalizedName string) domain.NormalizedListing {
	return domain.NormalizedListing{
		RawListing: domain.RawListing{
			Source:   source,
			Name:     normalizedName,
			Brand:    "L'Oréal",
			Category: "skincare",
			Price:    1500,
		},
		NormalizedName:     normalizedName,
		NormalizedBrand:    "loreal",
		NormalizedCategory: "skincare",
	}
}

func TestBuildClusters(t *testing.T) {
	b := NewClusterBuilder(ClusterConfig{StrongThreshold: 90, VolumeTolerance: 0.15})

	t.Run("empty block yields no clusters", func(t *testing.T) {
		if got := b.BuildClusters(nil, nil); got != nil {
			t.Errorf("BuildClusters(nil) = %v, want nil", got)
		}
	})

	t.Run("isolated listings form singleton clusters", func(t *testing.T) {
		listings := []domain.NormalizedListing{
			clusterListing("store-a", "revitalift serum"),
			clusterListing("store-b", "hydra genius cream"),
		}
		pairs := []ScoredPair{{I: 0, J: 1, Score: 40}}

		clusters := b.BuildClusters(listings, pairs)
		if len(clusters) != 2 {
			t.Fatalf("len(clusters) = %d, want 2 singletons", len(clusters))
		}
	})

	t.Run("strong pairs merge into one cluster", func(t *testing.T) {
		listings := []domain.NormalizedListing{
			clusterListing("store-a", "revitalift filler serum"),
			clusterListing("store-b", "revitalift filler serum 30"),
			clusterListing("store-c", "revitalift serum filler"),
		}
		pairs := []ScoredPair{
			{I: 0, J: 1, Score: 95},
			{I: 1, J: 2, Score: 92},
			{I: 0, J: 2, Score: 70}, // linked transitively anyway
		}

		clusters := b.BuildClusters(listings, pairs)
		if len(clusters) != 1 {
			t.Fatalf("len(clusters) = %d, want 1", len(clusters))
		}
		if len(clusters[0]) != 3 {
			t.Errorf("cluster size = %d, want 3", len(clusters[0]))
		}
	})

	t.Run("conflicting product types never merge", func(t *testing.T) {
		serum := clusterListing("store-a", "revitalift")
		serum.ProductType = "serum"
		cream := clusterListing("store-b", "revitalift")
		cream.ProductType = "cream"

		clusters := b.BuildClusters(
			[]domain.NormalizedListing{serum, cream},
			[]ScoredPair{{I: 0, J: 1, Score: 100}},
		)
		if len(clusters) != 2 {
			t.Fatalf("len(clusters) = %d, want 2 (type conflict)", len(clusters))
		}
	})

	t.Run("incompatible volumes never merge", func(t *testing.T) {
		small := clusterListing("store-a", "revitalift serum")
		small.Volume = &domain.Volume{Value: 30, Unit: "ml"}
		large := clusterListing("store-b", "revitalift serum")
		large.Volume = &domain.Volume{Value: 100, Unit: "ml"}

		clusters := b.BuildClusters(
			[]domain.NormalizedListing{small, large},
			[]ScoredPair{{I: 0, J: 1, Score: 100}},
		)
		if len(clusters) != 2 {
			t.Fatalf("len(clusters) = %d, want 2 (volume conflict)", len(clusters))
		}
	})

	t.Run("volumes within tolerance merge", func(t *testing.T) {
		a := clusterListing("store-a", "revitalift serum")
		a.Volume = &domain.Volume{Value: 50, Unit: "ml"}
		c := clusterListing("store-b", "revitalift serum")
		c.Volume = &domain.Volume{Value: 55, Unit: "ml"}

		clusters := b.BuildClusters(
			[]domain.NormalizedListing{a, c},
			[]ScoredPair{{I: 0, J: 1, Score: 100}},
		)
		if len(clusters) != 1 {
			t.Fatalf("len(clusters) = %d, want 1 (within tolerance)", len(clusters))
		}
	})

	t.Run("kit variant never joins the full-size item", func(t *testing.T) {
		full := clusterListing("store-a", "superstay lipstick")
		kit := clusterListing("store-b", "superstay lipstick")
		kit.PackagingKeywords = []string{"kit"}

		clusters := b.BuildClusters(
			[]domain.NormalizedListing{full, kit},
			[]ScoredPair{{I: 0, J: 1, Score: 100}},
		)
		if len(clusters) != 2 {
			t.Fatalf("len(clusters) = %d, want 2 (packaging asymmetry)", len(clusters))
		}
	})

	t.Run("two kit variants may merge", func(t *testing.T) {
		a := clusterListing("store-a", "superstay lipstick")
		a.PackagingKeywords = []string{"kit"}
		c := clusterListing("store-b", "superstay lipstick")
		c.PackagingKeywords = []string{"kit", "mini"}

		clusters := b.BuildClusters(
			[]domain.NormalizedListing{a, c},
			[]ScoredPair{{I: 0, J: 1, Score: 100}},
		)
		if len(clusters) != 1 {
			t.Fatalf("len(clusters) = %d, want 1 (both packaged)", len(clusters))
		}
	})
}
