package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/pricelens/backend/internal/domain"
)

// priceEpsilon is the largest delta still classified as unchanged
const priceEpsilon = 0.01

// PricingService appends price observations and classifies deltas against
// the prior observation for the same (product, store).
type PricingService struct {
	history            domain.PriceHistoryRepository
	enableDebugLogging bool
}

// NewPricingService creates a price history service
func NewPricingService(history domain.PriceHistoryRepository, enableDebugLogging bool) *PricingService {
	return &PricingService{
		history:            history,
		enableDebugLogging: enableDebugLogging,
	}
}

// RecordObservation writes one observation for (product, store) and returns
// the classified change event. A same-day re-ingestion updates the existing
// row instead of appending; added reports whether a new row was written.
func (s *PricingService) RecordObservation(
	ctx context.Context,
	product *domain.PersistentProduct,
	offer domain.Offer,
	runID string,
	now time.Time,
) (*domain.PriceChangeEvent, bool, error) {
	event := &domain.PriceChangeEvent{
		ProductID: product.InternalID,
		Store:     offer.Store,
		StoreURL:  offer.URL,
		NewPrice:  offer.Price,
		Timestamp: now,
	}

	prior, err := s.history.Latest(ctx, product.InternalID, offer.Store)
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		event.Type = domain.ChangeNewPrice
	case err != nil:
		return nil, false, fmt.Errorf("load prior observation: %w", err)
	default:
		event.OldPrice = prior.Price
		event.Amount = offer.Price - prior.Price
		if prior.Price != 0 {
			event.Percentage = event.Amount / prior.Price * 100
		}
		switch {
		case math.Abs(event.Amount) <= priceEpsilon:
			event.Type = domain.ChangeUnchanged
		case offer.Price > prior.Price:
			event.Type = domain.ChangeIncreased
		default:
			event.Type = domain.ChangeDecreased
		}
	}

	observation := &domain.PriceObservation{
		ProductID:     product.InternalID,
		Store:         offer.Store,
		Price:         offer.Price,
		OriginalPrice: offer.OriginalPrice,
		Discounted:    offer.OriginalPrice > offer.Price,
		InStock:       offer.InStock,
		ObservedAt:    now,
		RunID:         runID,
	}
	added, err := s.history.Upsert(ctx, observation)
	if err != nil {
		return nil, false, fmt.Errorf("upsert observation: %w", err)
	}

	if s.enableDebugLogging {
		log.Printf("[PRICE] product=%d store=%s %s %.2f -> %.2f (%.1f%%)",
			product.InternalID, offer.Store, event.Type, event.OldPrice, event.NewPrice, event.Percentage)
	}
	return event, added, nil
}
