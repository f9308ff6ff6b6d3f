package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pricelens/backend/internal/domain"
)

const timeFormat = time.RFC3339Nano

// GetByIdentityKey looks an identity up by its exact key
func (s *Store) GetByIdentityKey(ctx context.Context, key string) (*domain.PersistentProduct, error) {
	row := s.db.QueryRowContext(ctx, productSelect+` WHERE identity_key = ?`, key)
	return scanProduct(row)
}

// GetByInternalID looks an identity up by its stable internal id
func (s *Store) GetByInternalID(ctx context.Context, id int64) (*domain.PersistentProduct, error) {
	row := s.db.QueryRowContext(ctx, productSelect+` WHERE id = ?`, id)
	return scanProduct(row)
}

// FindByBrandCategory lists identities sharing a normalized brand and category
func (s *Store) FindByBrandCategory(ctx context.Context, normalizedBrand, category string) ([]domain.PersistentProduct, error) {
	rows, err := s.db.QueryContext(ctx,
		productSelect+` WHERE normalized_brand = ? AND normalized_category = ? ORDER BY id`,
		normalizedBrand, category)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.PersistentProduct
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *product)
	}
	return products, rows.Err()
}

// Create mints a new identity and fills in its internal id
func (s *Store) Create(ctx context.Context, product *domain.PersistentProduct) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO products (
            identity_key, name, brand, category,
            normalized_name, normalized_brand, normalized_category,
            first_seen, last_seen, occurrence_count, active
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.IdentityKey,
		product.Name,
		product.Brand,
		product.Category,
		product.NormalizedName,
		product.NormalizedBrand,
		product.NormalizedCategory,
		product.FirstSeen.UTC().Format(timeFormat),
		product.LastSeen.UTC().Format(timeFormat),
		product.OccurrenceCount,
		boolToInt(product.Active),
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	product.InternalID = id
	return nil
}

// Update writes the mutable identity fields. The internal id and identity
// key never change.
func (s *Store) Update(ctx context.Context, product *domain.PersistentProduct) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE products SET
            name = ?, brand = ?, category = ?,
            normalized_name = ?, normalized_brand = ?, normalized_category = ?,
            last_seen = ?, occurrence_count = ?, active = ?
        WHERE id = ?`,
		product.Name,
		product.Brand,
		product.Category,
		product.NormalizedName,
		product.NormalizedBrand,
		product.NormalizedCategory,
		product.LastSeen.UTC().Format(timeFormat),
		product.OccurrenceCount,
		boolToInt(product.Active),
		product.InternalID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	return nil
}

// RetireUnobserved soft-retires identities absent from the run, except
// those still holding reviews or active subscriptions, which are
// reactivated instead so user-facing state is never orphaned.
func (s *Store) RetireUnobserved(ctx context.Context, observedIDs []int64, now time.Time) (int, error) {
	notObserved, args := notInClause(observedIDs)

	userState := `(EXISTS (SELECT 1 FROM reviews r WHERE r.product_id = products.id)
        OR EXISTS (SELECT 1 FROM subscriptions sub WHERE sub.product_id = products.id AND sub.active = 1))`

	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET active = 1 WHERE `+notObserved+` AND `+userState, args...)
	if err != nil {
		return 0, fmt.Errorf("preserve products: %w", err)
	}
	preserved, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE products SET active = 0 WHERE `+notObserved+` AND NOT `+userState, args...); err != nil {
		return 0, fmt.Errorf("retire products: %w", err)
	}

	return int(preserved), nil
}

// ReviewCount reports how many reviews are attached to a product
func (s *Store) ReviewCount(ctx context.Context, productID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reviews WHERE product_id = ?`, productID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count reviews: %w", err)
	}
	return count, nil
}

// AddReview attaches one review to a product. Reviews are normally written
// by the web layer; the pipeline only ever counts them.
func (s *Store) AddReview(ctx context.Context, productID int64, author string, rating int, body string, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reviews (product_id, author, rating, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		productID, author, rating, body, now.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("insert review: %w", err)
	}
	return nil
}

const productSelect = `SELECT
    id, identity_key, name, brand, category,
    normalized_name, normalized_brand, normalized_category,
    first_seen, last_seen, occurrence_count, active
FROM products`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.PersistentProduct, error) {
	var product domain.PersistentProduct
	var firstSeen, lastSeen string
	var active int

	err := row.Scan(
		&product.InternalID,
		&product.IdentityKey,
		&product.Name,
		&product.Brand,
		&product.Category,
		&product.NormalizedName,
		&product.NormalizedBrand,
		&product.NormalizedCategory,
		&firstSeen,
		&lastSeen,
		&product.OccurrenceCount,
		&active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}

	if product.FirstSeen, err = time.Parse(timeFormat, firstSeen); err != nil {
		return nil, fmt.Errorf("parse first_seen: %w", err)
	}
	if product.LastSeen, err = time.Parse(timeFormat, lastSeen); err != nil {
		return nil, fmt.Errorf("parse last_seen: %w", err)
	}
	product.Active = active != 0
	return &product, nil
}

// notInClause builds "id NOT IN (?, ...)" with its arguments. An empty id
// list matches every row.
func notInClause(ids []int64) (string, []interface{}) {
	if len(ids) == 0 {
		return "1 = 1", nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return "id NOT IN (" + placeholders + ")", args
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
