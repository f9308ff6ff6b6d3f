package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ProductRepository is the persistence port for long-lived product identities
type ProductRepository interface {
	GetByIdentityKey(ctx context.Context, key string) (*PersistentProduct, error)
	GetByInternalID(ctx context.Context, id int64) (*PersistentProduct, error)
	FindByBrandCategory(ctx context.Context, normalizedBrand, category string) ([]PersistentProduct, error)
	Create(ctx context.Context, product *PersistentProduct) error
	Update(ctx context.Context, product *PersistentProduct) error

	// RetireUnobserved soft-retires products absent from the given run while
	// reactivating any absent product that still holds reviews or active
	// subscriptions. Returns how many were preserved that way.
	RetireUnobserved(ctx context.Context, observedIDs []int64, now time.Time) (preserved int, err error)

	// ReviewCount reports how many reviews are attached to a product. Reviews
	// are written by the web layer; the pipeline only counts them.
	ReviewCount(ctx context.Context, productID int64) (int, error)
}

// PriceHistoryRepository is the persistence port for price observations
type PriceHistoryRepository interface {
	// Latest returns the most recent observation for (product, store), or
	// ErrProductNotFound when none exists yet.
	Latest(ctx context.Context, productID int64, store string) (*PriceObservation, error)

	// LatestForProduct returns the most recent observation for a product
	// across all stores, or ErrProductNotFound when none exists.
	LatestForProduct(ctx context.Context, productID int64) (*PriceObservation, error)

	// Upsert writes one observation, replacing a same-day row for the same
	// (product, store) instead of appending. Reports whether a row was added.
	Upsert(ctx context.Context, obs *PriceObservation) (added bool, err error)
}

// AlertRepository is the persistence port for price-alert subscriptions
type AlertRepository interface {
	CreateSubscription(ctx context.Context, sub *PriceAlertSubscription) error
	GetSubscription(ctx context.Context, id int64) (*PriceAlertSubscription, error)
	ActiveForProduct(ctx context.Context, productID int64) ([]PriceAlertSubscription, error)
	ActiveCountForProduct(ctx context.Context, productID int64) (int, error)

	// MarkNotified sets notified=true and the notification timestamp in one
	// step so the next cooldown check reads accurate state.
	MarkNotified(ctx context.Context, subscriptionID int64, at time.Time) error

	// ExpiredBefore lists active subscriptions whose monitoring horizon has passed
	ExpiredBefore(ctx context.Context, now time.Time) ([]PriceAlertSubscription, error)

	Deactivate(ctx context.Context, subscriptionID int64) error
}

// NotificationQueue is the enqueue-only interface to the task-queue
// collaborator that renders and delivers alert messages.
type NotificationQueue interface {
	EnqueuePriceAlert(ctx context.Context, job NotificationJob) error
}
