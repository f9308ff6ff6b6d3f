package usecase

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pricelens/backend/internal/domain"
)

// IngestConfig holds the pipeline thresholds and worker counts
type IngestConfig struct {
	IntraSourceRatio  float64 // same-source duplicate ratio (0-1)
	StrongThreshold   float64 // cross-source strong-match threshold (0-100)
	ProbableThreshold float64 // recognized but unwired; see DESIGN.md
	VolumeTolerance   float64 // volume compatibility tolerance (0-1)
	BlockWorkers      int     // concurrent block scoring/clustering workers

	EnableDebugLogging bool
}

// IngestResult is one run's unified catalog plus its report
type IngestResult struct {
	Report  domain.RunReport          `json:"report"`
	Catalog []domain.CanonicalProduct `json:"catalog"`
}

// IngestService runs the batch entity-resolution pipeline:
// normalize -> intra-source dedup -> blocking -> similarity -> clustering ->
// canonical merge -> persistent identity -> price history -> alerts.
type IngestService struct {
	normalizer *Normalizer
	dedup      *IntraSourceDeduplicator
	scorer     *SimilarityScorer
	clusterer  *ClusterBuilder
	canonical  *CanonicalBuilder
	identity   *IdentityService
	pricing    *PricingService
	alerts     *AlertService

	blockWorkers       int
	probableThreshold  float64
	enableDebugLogging bool
}

// NewIngestService wires the pipeline components together
func NewIngestService(
	identity *IdentityService,
	pricing *PricingService,
	alerts *AlertService,
	config IngestConfig,
) *IngestService {
	workers := config.BlockWorkers
	if workers <= 0 {
		workers = 4
	}

	if config.ProbableThreshold > 0 && config.ProbableThreshold != 85 {
		// Recognized for compatibility; no second-tier review queue exists.
		log.Printf("[INGEST] probable-match threshold configured as %.0f but not wired to any tier", config.ProbableThreshold)
	}

	return &IngestService{
		normalizer: NewNormalizer(config.EnableDebugLogging),
		dedup:      NewIntraSourceDeduplicator(config.IntraSourceRatio, config.EnableDebugLogging),
		scorer:     NewSimilarityScorer(config.EnableDebugLogging),
		clusterer: NewClusterBuilder(ClusterConfig{
			StrongThreshold:    config.StrongThreshold,
			VolumeTolerance:    config.VolumeTolerance,
			EnableDebugLogging: config.EnableDebugLogging,
		}),
		canonical:          NewCanonicalBuilder(),
		identity:           identity,
		pricing:            pricing,
		alerts:             alerts,
		blockWorkers:       workers,
		probableThreshold:  config.ProbableThreshold,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// Ingest consumes one run's scrape documents, resolves them into the
// unified catalog, reconciles persistent identities, records prices, and
// dispatches alerts. Per-listing failures are caught and counted; only the
// output validation gate fails the run as a whole, and identities already
// written stay valid in that case.
func (s *IngestService) Ingest(ctx context.Context, documents []domain.ScrapeDocument, runTimestamp time.Time) (*IngestResult, error) {
	runID := uuid.NewString()
	report := domain.RunReport{RunID: runID, Errors: []string{}}

	if runTimestamp.IsZero() {
		runTimestamp = time.Now().UTC()
	}

	log.Printf("[INGEST] run %s: %d documents", runID, len(documents))

	pool, sources := s.normalizeSources(documents, &report)
	report.Processed = len(pool)

	blocks := BuildBlocks(pool)
	catalog := s.resolveBlocks(blocks)

	// Identity, pricing, and alert writes stay on this goroutine: the
	// resolve sequence assumes a single ingestion writer.
	runCache := NewRunCache()
	observedIDs := make([]int64, 0, len(catalog))
	seen := make(map[int64]bool)

	for _, product := range catalog {
		resolved, err := s.resolveIdentity(ctx, product, runTimestamp, runCache)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("identity %q: %v", product.Name, err))
			continue
		}
		if resolved.Created {
			report.Created++
		} else {
			report.Updated++
		}
		if !seen[resolved.Product.InternalID] {
			seen[resolved.Product.InternalID] = true
			observedIDs = append(observedIDs, resolved.Product.InternalID)
		}

		for _, offer := range product.Offers {
			event, added, err := s.pricing.RecordObservation(ctx, resolved.Product, offer, runID, runTimestamp)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Sprintf("price %q/%s: %v", product.Name, offer.Store, err))
				continue
			}
			if added {
				report.PriceRowsAdded++
			}
			if _, err := s.alerts.NotifyPriceChange(ctx, event); err != nil {
				// Dispatch problems never block the price-history write
				log.Printf("[INGEST] alert evaluation failed for %q/%s: %v", product.Name, offer.Store, err)
			}
		}
	}

	preserved, err := s.identity.FinishRun(ctx, observedIDs, runTimestamp)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("finish run: %v", err))
	}
	report.Preserved = preserved

	log.Printf("[INGEST] run %s: processed=%d created=%d updated=%d prices=%d preserved=%d errors=%d",
		runID, report.Processed, report.Created, report.Updated,
		report.PriceRowsAdded, report.Preserved, len(report.Errors))

	result := &IngestResult{Report: report, Catalog: catalog}
	if err := validateRunOutput(catalog, sources); err != nil {
		return result, fmt.Errorf("%w: %v", domain.ErrRunValidation, err)
	}
	return result, nil
}

// normalizeSources fans normalization and intra-source dedup out one
// worker per source; both stages only ever look at one source's listings.
func (s *IngestService) normalizeSources(documents []domain.ScrapeDocument, report *domain.RunReport) ([]domain.NormalizedListing, map[string]bool) {
	bySource := make(map[string][]domain.RawListing)
	sources := make(map[string]bool)
	var sourceOrder []string

	for _, doc := range documents {
		if _, ok := bySource[doc.Store]; !ok {
			sourceOrder = append(sourceOrder, doc.Store)
		}
		sources[doc.Store] = true
		bySource[doc.Store] = append(bySource[doc.Store], doc.Listings()...)
	}

	type sourceResult struct {
		index    int
		listings []domain.NormalizedListing
		errors   []string
	}

	results := make([]sourceResult, len(sourceOrder))
	var wg sync.WaitGroup
	for i, source := range sourceOrder {
		wg.Add(1)
		go func(i int, source string, raw []domain.RawListing) {
			defer wg.Done()
			res := sourceResult{index: i}
			normalized := make([]domain.NormalizedListing, 0, len(raw))
			for n, listing := range raw {
				if listing.Name == "" || listing.Brand == "" || listing.Price <= 0 {
					res.errors = append(res.errors, fmt.Sprintf("%s: listing %d: %v", source, n, domain.ErrInvalidListing))
					continue
				}
				normalized = append(normalized, s.normalizer.NormalizeListing(listing))
			}
			res.listings = s.dedup.Deduplicate(normalized)
			results[i] = res
		}(i, source, bySource[source])
	}
	wg.Wait()

	var pool []domain.NormalizedListing
	for _, res := range results {
		pool = append(pool, res.listings...)
		report.Errors = append(report.Errors, res.errors...)
	}
	return pool, sources
}

// resolveBlocks scores and clusters blocks concurrently (blocks are
// disjoint, so workers share no mutable state) and builds canonical
// records inline. The catalog is ordered by block for reproducibility.
func (s *IngestService) resolveBlocks(blocks []Block) []domain.CanonicalProduct {
	perBlock := make([][]domain.CanonicalProduct, len(blocks))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, s.blockWorkers)
	for i := range blocks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			listings := blocks[i].Listings
			pairs := s.scorer.ScoreBlock(listings)
			clusters := s.clusterer.BuildClusters(listings, pairs)

			records := make([]domain.CanonicalProduct, 0, len(clusters))
			for _, cluster := range clusters {
				records = append(records, s.canonical.Build(cluster))
			}
			perBlock[i] = records
		}(i)
	}
	wg.Wait()

	var catalog []domain.CanonicalProduct
	for _, records := range perBlock {
		catalog = append(catalog, records...)
	}
	return catalog
}

// resolveIdentity maps one canonical product onto its persistent identity
// using the canonical display attributes.
func (s *IngestService) resolveIdentity(
	ctx context.Context,
	product domain.CanonicalProduct,
	now time.Time,
	runCache *RunCache,
) (*ResolveResult, error) {
	listing := s.normalizer.NormalizeListing(domain.RawListing{
		Name:     product.Name,
		Brand:    product.Brand,
		Category: product.Category,
		Price:    firstOfferPrice(product),
	})
	return s.identity.Resolve(ctx, listing, now, runCache)
}

func firstOfferPrice(product domain.CanonicalProduct) float64 {
	if len(product.Offers) == 0 {
		return 0
	}
	return product.Offers[0].Price
}

// validateRunOutput is the hard gate on a run's unified catalog
func validateRunOutput(catalog []domain.CanonicalProduct, sources map[string]bool) error {
	if len(catalog) == 0 {
		return fmt.Errorf("empty catalog")
	}
	if len(sources) < 2 {
		return fmt.Errorf("only %d distinct sources represented", len(sources))
	}

	multiStore := 0
	for _, product := range catalog {
		if product.ProductID == "" || product.Name == "" || product.Brand == "" || product.Category == "" {
			return fmt.Errorf("product %q missing required fields", product.Name)
		}
		if len(product.Offers) == 0 {
			return fmt.Errorf("product %q has no offers", product.Name)
		}
		if distinctStores(product.Offers) >= 2 {
			multiStore++
		}
	}
	if multiStore == 0 {
		return fmt.Errorf("no multi-store products in catalog")
	}
	return nil
}

func distinctStores(offers []domain.Offer) int {
	stores := make(map[string]bool, len(offers))
	for _, offer := range offers {
		stores[offer.Store] = true
	}
	return len(stores)
}

// SortCatalog orders a catalog for stable API output
func SortCatalog(catalog []domain.CanonicalProduct) {
	sort.SliceStable(catalog, func(i, j int) bool {
		if catalog[i].Category != catalog[j].Category {
			return catalog[i].Category < catalog[j].Category
		}
		if catalog[i].Brand != catalog[j].Brand {
			return catalog[i].Brand < catalog[j].Brand
		}
		return catalog[i].Name < catalog[j].Name
	})
}
