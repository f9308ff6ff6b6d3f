package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pricelens/backend/internal/domain"
)

const dayFormat = "2006-01-02"

// Latest returns the most recent observation for (product, store)
func (s *Store) Latest(ctx context.Context, productID int64, store string) (*domain.PriceObservation, error) {
	row := s.db.QueryRowContext(ctx,
		observationSelect+` WHERE product_id = ? AND store = ? ORDER BY observed_at DESC LIMIT 1`,
		productID, store)
	return scanObservation(row)
}

// LatestForProduct returns the most recent observation across all stores
func (s *Store) LatestForProduct(ctx context.Context, productID int64) (*domain.PriceObservation, error) {
	row := s.db.QueryRowContext(ctx,
		observationSelect+` WHERE product_id = ? ORDER BY observed_at DESC LIMIT 1`,
		productID)
	return scanObservation(row)
}

// Upsert writes one observation per (product, store) per ingestion day: a
// same-day re-write updates the existing row in place.
func (s *Store) Upsert(ctx context.Context, obs *domain.PriceObservation) (bool, error) {
	day := obs.ObservedAt.UTC().Format(dayFormat)

	var existingID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM price_observations WHERE product_id = ? AND store = ? AND observed_day = ?`,
		obs.ProductID, obs.Store, day).Scan(&existingID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO price_observations (
                product_id, store, price, original_price, discounted,
                in_stock, observed_at, observed_day, run_id
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			obs.ProductID,
			obs.Store,
			obs.Price,
			obs.OriginalPrice,
			boolToInt(obs.Discounted),
			boolToInt(obs.InStock),
			obs.ObservedAt.UTC().Format(timeFormat),
			day,
			obs.RunID,
		)
		if err != nil {
			return false, fmt.Errorf("insert observation: %w", err)
		}
		if obs.ID, err = res.LastInsertId(); err != nil {
			return false, fmt.Errorf("last insert id: %w", err)
		}
		return true, nil

	case err != nil:
		return false, fmt.Errorf("find same-day observation: %w", err)

	default:
		_, err := s.db.ExecContext(ctx,
			`UPDATE price_observations SET
                price = ?, original_price = ?, discounted = ?, in_stock = ?,
                observed_at = ?, run_id = ?
            WHERE id = ?`,
			obs.Price,
			obs.OriginalPrice,
			boolToInt(obs.Discounted),
			boolToInt(obs.InStock),
			obs.ObservedAt.UTC().Format(timeFormat),
			obs.RunID,
			existingID,
		)
		if err != nil {
			return false, fmt.Errorf("update observation: %w", err)
		}
		obs.ID = existingID
		return false, nil
	}
}

const observationSelect = `SELECT
    id, product_id, store, price, original_price, discounted,
    in_stock, observed_at, run_id
FROM price_observations`

func scanObservation(row rowScanner) (*domain.PriceObservation, error) {
	var obs domain.PriceObservation
	var observedAt string
	var discounted, inStock int

	err := row.Scan(
		&obs.ID,
		&obs.ProductID,
		&obs.Store,
		&obs.Price,
		&obs.OriginalPrice,
		&discounted,
		&inStock,
		&observedAt,
		&obs.RunID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan observation: %w", err)
	}

	if obs.ObservedAt, err = time.Parse(timeFormat, observedAt); err != nil {
		return nil, fmt.Errorf("parse observed_at: %w", err)
	}
	obs.Discounted = discounted != 0
	obs.InStock = inStock != 0
	return &obs, nil
}
