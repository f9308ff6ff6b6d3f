package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pricelens/backend/internal/domain"
)

// CreateSubscription stores a new price-alert subscription
func (s *Store) CreateSubscription(ctx context.Context, sub *domain.PriceAlertSubscription) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (
            product_id, subscriber, target_price, active, notified,
            last_notified_at, created_at, expires_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ProductID,
		sub.Subscriber,
		sub.TargetPrice,
		boolToInt(sub.Active),
		boolToInt(sub.Notified),
		nullableTime(sub.LastNotifiedAt),
		sub.CreatedAt.UTC().Format(timeFormat),
		sub.ExpiresAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	if sub.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	return nil
}

// GetSubscription looks a subscription up by id
func (s *Store) GetSubscription(ctx context.Context, id int64) (*domain.PriceAlertSubscription, error) {
	row := s.db.QueryRowContext(ctx, subscriptionSelect+` WHERE id = ?`, id)
	return scanSubscription(row)
}

// ActiveForProduct lists the active subscriptions attached to a product
func (s *Store) ActiveForProduct(ctx context.Context, productID int64) ([]domain.PriceAlertSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		subscriptionSelect+` WHERE product_id = ? AND active = 1 ORDER BY id`, productID)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var subscriptions []domain.PriceAlertSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subscriptions = append(subscriptions, *sub)
	}
	return subscriptions, rows.Err()
}

// ActiveCountForProduct counts a product's active subscriptions
func (s *Store) ActiveCountForProduct(ctx context.Context, productID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE product_id = ? AND active = 1`, productID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count subscriptions: %w", err)
	}
	return count, nil
}

// MarkNotified records a successful dispatch: notified flag and timestamp
// move together so the next cooldown check reads accurate state.
func (s *Store) MarkNotified(ctx context.Context, subscriptionID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET notified = 1, last_notified_at = ? WHERE id = ?`,
		at.UTC().Format(timeFormat), subscriptionID)
	if err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// ExpiredBefore lists active subscriptions whose monitoring horizon passed
func (s *Store) ExpiredBefore(ctx context.Context, now time.Time) ([]domain.PriceAlertSubscription, error) {
	rows, err := s.db.QueryContext(ctx,
		subscriptionSelect+` WHERE active = 1 AND expires_at <= ? ORDER BY id`,
		now.UTC().Format(timeFormat))
	if err != nil {
		return nil, fmt.Errorf("query expired subscriptions: %w", err)
	}
	defer rows.Close()

	var subscriptions []domain.PriceAlertSubscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subscriptions = append(subscriptions, *sub)
	}
	return subscriptions, rows.Err()
}

// Deactivate flips a subscription inactive
func (s *Store) Deactivate(ctx context.Context, subscriptionID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE subscriptions SET active = 0 WHERE id = ?`, subscriptionID)
	if err != nil {
		return fmt.Errorf("deactivate subscription: %w", err)
	}
	return nil
}

const subscriptionSelect = `SELECT
    id, product_id, subscriber, target_price, active, notified,
    last_notified_at, created_at, expires_at
FROM subscriptions`

func scanSubscription(row rowScanner) (*domain.PriceAlertSubscription, error) {
	var sub domain.PriceAlertSubscription
	var active, notified int
	var lastNotified sql.NullString
	var createdAt, expiresAt string

	err := row.Scan(
		&sub.ID,
		&sub.ProductID,
		&sub.Subscriber,
		&sub.TargetPrice,
		&active,
		&notified,
		&lastNotified,
		&createdAt,
		&expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}

	sub.Active = active != 0
	sub.Notified = notified != 0
	if lastNotified.Valid {
		parsed, err := time.Parse(timeFormat, lastNotified.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_notified_at: %w", err)
		}
		sub.LastNotifiedAt = &parsed
	}
	if sub.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if sub.ExpiresAt, err = time.Parse(timeFormat, expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	return &sub, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeFormat)
}
