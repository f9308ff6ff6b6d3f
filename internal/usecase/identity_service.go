package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pricelens/backend/internal/domain"
)

// IdentityConfig holds configuration for the persistent identity manager
type IdentityConfig struct {
	FallbackThreshold  float64 // name-similarity floor for the fuzzy fallback (0-1)
	CacheTTL           time.Duration
	EnableDebugLogging bool
}

// IdentityService reconciles canonical listings against long-lived product
// identities across ingestion runs. The resolve sequence (hash lookup ->
// fuzzy fallback -> create-or-update) runs as one atomic unit under an
// in-process mutex; the design assumes a single ingestion writer.
type IdentityService struct {
	products          domain.ProductRepository
	cache             domain.CacheRepository
	normalizer        *Normalizer
	fallbackThreshold float64
	cacheTTL          time.Duration
	debug             bool

	mu sync.Mutex
}

// NewIdentityService creates an identity service with dependencies
func NewIdentityService(
	products domain.ProductRepository,
	cache domain.CacheRepository,
	normalizer *Normalizer,
	config IdentityConfig,
) *IdentityService {
	threshold := config.FallbackThreshold
	if threshold <= 0 {
		threshold = 0.8
	}
	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Hour
	}
	return &IdentityService{
		products:          products,
		cache:             cache,
		normalizer:        normalizer,
		fallbackThreshold: threshold,
		cacheTTL:          cacheTTL,
		debug:             config.EnableDebugLogging,
	}
}

// RunCache is the explicit run-scoped identity-key cache threaded through
// one ingestion run. It is never shared between runs, so a repeated or
// concurrent run cannot see stale entries.
type RunCache struct {
	byKey map[string]*domain.PersistentProduct
}

// NewRunCache creates an empty run-scoped cache
func NewRunCache() *RunCache {
	return &RunCache{byKey: make(map[string]*domain.PersistentProduct)}
}

// ResolveResult reports how one listing was reconciled
type ResolveResult struct {
	Product *domain.PersistentProduct
	Created bool
}

// Resolve maps one normalized listing onto a persistent product: exact
// identity-key hit first, then a fuzzy name fallback among products of the
// same brand and category, and only then a freshly minted identity.
func (s *IdentityService) Resolve(
	ctx context.Context,
	listing domain.NormalizedListing,
	now time.Time,
	runCache *RunCache,
) (*ResolveResult, error) {
	if listing.NormalizedName == "" || listing.NormalizedBrand == "" {
		return nil, domain.ErrInvalidListing
	}

	key := IdentityKey(listing.NormalizedBrand, listing.NormalizedName, listing.NormalizedCategory)

	if product, ok := runCache.byKey[key]; ok {
		if err := s.touch(ctx, product, now); err != nil {
			return nil, err
		}
		return &ResolveResult{Product: product}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Exact identity-key hit
	product, err := s.products.GetByIdentityKey(ctx, key)
	if err == nil {
		if err := s.touch(ctx, product, now); err != nil {
			return nil, err
		}
		runCache.byKey[key] = product
		return &ResolveResult{Product: product}, nil
	}
	if !errors.Is(err, domain.ErrProductNotFound) {
		return nil, fmt.Errorf("identity lookup: %w", err)
	}

	// Fuzzy fallback among same brand+category identities
	product, err = s.fuzzyFallback(ctx, listing)
	if err == nil {
		if s.debug {
			log.Printf("[IDENTITY] reattached %q to existing product %d", listing.NormalizedName, product.InternalID)
		}
		if err := s.touch(ctx, product, now); err != nil {
			return nil, err
		}
		runCache.byKey[key] = product
		return &ResolveResult{Product: product}, nil
	}
	if !errors.Is(err, domain.ErrProductNotFound) {
		return nil, err
	}

	// Both lookups missed: mint a fresh identity
	minted := &domain.PersistentProduct{
		IdentityKey:        key,
		Name:               listing.Name,
		Brand:              listing.Brand,
		Category:           listing.Category,
		NormalizedName:     listing.NormalizedName,
		NormalizedBrand:    listing.NormalizedBrand,
		NormalizedCategory: listing.NormalizedCategory,
		FirstSeen:          now,
		LastSeen:           now,
		OccurrenceCount:    1,
		Active:             true,
	}
	if err := s.products.Create(ctx, minted); err != nil {
		return nil, fmt.Errorf("mint identity: %w", err)
	}
	if s.debug {
		log.Printf("[IDENTITY] minted product %d for %q", minted.InternalID, listing.NormalizedName)
	}
	runCache.byKey[key] = minted
	return &ResolveResult{Product: minted, Created: true}, nil
}

// fuzzyFallback searches same brand+category identities for a stored
// normalized name within the similarity threshold. Among matches, one that
// already has reviews attached wins; otherwise the highest similarity does.
func (s *IdentityService) fuzzyFallback(ctx context.Context, listing domain.NormalizedListing) (*domain.PersistentProduct, error) {
	candidates, err := s.products.FindByBrandCategory(ctx, listing.NormalizedBrand, listing.NormalizedCategory)
	if err != nil {
		return nil, fmt.Errorf("fallback search: %w", err)
	}

	var best *domain.PersistentProduct
	bestSimilarity := 0.0
	var reviewed *domain.PersistentProduct
	reviewedSimilarity := 0.0

	for i := range candidates {
		candidate := &candidates[i]
		similarity := SequenceRatio(listing.NormalizedName, candidate.NormalizedName)
		if similarity < s.fallbackThreshold {
			continue
		}

		if similarity > bestSimilarity {
			best = candidate
			bestSimilarity = similarity
		}

		count, err := s.products.ReviewCount(ctx, candidate.InternalID)
		if err != nil {
			return nil, fmt.Errorf("review count: %w", err)
		}
		if count > 0 && similarity > reviewedSimilarity {
			reviewed = candidate
			reviewedSimilarity = similarity
		}
	}

	if reviewed != nil {
		return reviewed, nil
	}
	if best != nil {
		return best, nil
	}
	return nil, domain.ErrProductNotFound
}

// touch records one more observation of an existing identity
func (s *IdentityService) touch(ctx context.Context, product *domain.PersistentProduct, now time.Time) error {
	product.OccurrenceCount++
	product.LastSeen = now
	product.Active = true
	if err := s.products.Update(ctx, product); err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	return nil
}

// FindByAttributes resolves a product by display attributes, serving the
// lookup entry point. The query runs through the same normalization as
// ingestion so both sides derive the same identity key. Results are cached
// briefly.
func (s *IdentityService) FindByAttributes(ctx context.Context, name, brand, category string) (*domain.PersistentProduct, error) {
	if name == "" {
		return nil, domain.ErrInvalidRequest
	}

	listing := s.normalizer.NormalizeListing(domain.RawListing{
		Name:     name,
		Brand:    brand,
		Category: category,
	})

	cacheKey := fmt.Sprintf("identity:%s:%s:%s",
		listing.NormalizedName, listing.NormalizedBrand, listing.NormalizedCategory)
	if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != nil {
		if product, ok := decodeCachedProduct(cached); ok {
			return product, nil
		}
	}

	key := IdentityKey(listing.NormalizedBrand, listing.NormalizedName, listing.NormalizedCategory)
	product, err := s.products.GetByIdentityKey(ctx, key)
	if errors.Is(err, domain.ErrProductNotFound) {
		product, err = s.fuzzyFallback(ctx, listing)
	}
	if err != nil {
		return nil, err
	}

	if cacheErr := s.cache.Set(ctx, cacheKey, product, s.cacheTTL); cacheErr != nil && s.debug {
		log.Printf("[IDENTITY] cache set failed: %v", cacheErr)
	}
	return product, nil
}

// FinishRun soft-retires identities absent from the run while preserving
// any that still hold reviews or active subscriptions. Returns how many
// were preserved.
func (s *IdentityService) FinishRun(ctx context.Context, observedIDs []int64, now time.Time) (int, error) {
	preserved, err := s.products.RetireUnobserved(ctx, observedIDs, now)
	if err != nil {
		return 0, fmt.Errorf("retire unobserved: %w", err)
	}
	if s.debug && preserved > 0 {
		log.Printf("[IDENTITY] preserved %d unobserved products with user state", preserved)
	}
	return preserved, nil
}

// decodeCachedProduct converts the cache's JSON-shaped value back into a
// PersistentProduct.
func decodeCachedProduct(cached interface{}) (*domain.PersistentProduct, bool) {
	raw, err := json.Marshal(cached)
	if err != nil {
		return nil, false
	}
	var product domain.PersistentProduct
	if err := json.Unmarshal(raw, &product); err != nil {
		return nil, false
	}
	return &product, true
}
