package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/pricelens/backend/internal/domain"
)

// fakeProductRepo is an in-memory ProductRepository for service tests
type fakeProductRepo struct {
	mu       sync.Mutex
	products map[int64]*domain.PersistentProduct
	reviews  map[int64]int
	// userState marks products that hold reviews or active subscriptions
	// for RetireUnobserved purposes
	userState map[int64]bool
	nextID    int64
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{
		products:  make(map[int64]*domain.PersistentProduct),
		reviews:   make(map[int64]int),
		userState: make(map[int64]bool),
	}
}

func (r *fakeProductRepo) GetByIdentityKey(ctx context.Context, key string) (*domain.PersistentProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.IdentityKey == key {
			copied := *p
			return &copied, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

func (r *fakeProductRepo) GetByInternalID(ctx context.Context, id int64) (*domain.PersistentProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeProductRepo) FindByBrandCategory(ctx context.Context, normalizedBrand, category string) ([]domain.PersistentProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PersistentProduct
	for _, p := range r.products {
		if p.NormalizedBrand == normalizedBrand && p.NormalizedCategory == category {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeProductRepo) Create(ctx context.Context, product *domain.PersistentProduct) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	product.InternalID = r.nextID
	copied := *product
	r.products[product.InternalID] = &copied
	return nil
}

func (r *fakeProductRepo) Update(ctx context.Context, product *domain.PersistentProduct) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[product.InternalID]; !ok {
		return domain.ErrProductNotFound
	}
	copied := *product
	r.products[product.InternalID] = &copied
	return nil
}

func (r *fakeProductRepo) RetireUnobserved(ctx context.Context, observedIDs []int64, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	observed := make(map[int64]bool, len(observedIDs))
	for _, id := range observedIDs {
		observed[id] = true
	}
	preserved := 0
	for id, p := range r.products {
		if observed[id] {
			continue
		}
		if r.userState[id] || r.reviews[id] > 0 {
			p.Active = true
			preserved++
		} else {
			p.Active = false
		}
	}
	return preserved, nil
}

func (r *fakeProductRepo) ReviewCount(ctx context.Context, productID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reviews[productID], nil
}

// fakeHistoryRepo is an in-memory PriceHistoryRepository
type fakeHistoryRepo struct {
	mu           sync.Mutex
	observations []domain.PriceObservation
	nextID       int64
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{}
}

func (r *fakeHistoryRepo) Latest(ctx context.Context, productID int64, store string) (*domain.PriceObservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.PriceObservation
	for i := range r.observations {
		obs := &r.observations[i]
		if obs.ProductID != productID || obs.Store != store {
			continue
		}
		if latest == nil || obs.ObservedAt.After(latest.ObservedAt) {
			latest = obs
		}
	}
	if latest == nil {
		return nil, domain.ErrProductNotFound
	}
	copied := *latest
	return &copied, nil
}

func (r *fakeHistoryRepo) LatestForProduct(ctx context.Context, productID int64) (*domain.PriceObservation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.PriceObservation
	for i := range r.observations {
		obs := &r.observations[i]
		if obs.ProductID != productID {
			continue
		}
		if latest == nil || obs.ObservedAt.After(latest.ObservedAt) {
			latest = obs
		}
	}
	if latest == nil {
		return nil, domain.ErrProductNotFound
	}
	copied := *latest
	return &copied, nil
}

func (r *fakeHistoryRepo) Upsert(ctx context.Context, obs *domain.PriceObservation) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	day := obs.ObservedAt.Format("2006-01-02")
	for i := range r.observations {
		existing := &r.observations[i]
		if existing.ProductID == obs.ProductID && existing.Store == obs.Store &&
			existing.ObservedAt.Format("2006-01-02") == day {
			obs.ID = existing.ID
			*existing = *obs
			return false, nil
		}
	}
	r.nextID++
	obs.ID = r.nextID
	r.observations = append(r.observations, *obs)
	return true, nil
}

// fakeAlertRepo is an in-memory AlertRepository
type fakeAlertRepo struct {
	mu            sync.Mutex
	subscriptions map[int64]*domain.PriceAlertSubscription
	nextID        int64
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{subscriptions: make(map[int64]*domain.PriceAlertSubscription)}
}

func (r *fakeAlertRepo) CreateSubscription(ctx context.Context, sub *domain.PriceAlertSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	sub.ID = r.nextID
	copied := *sub
	r.subscriptions[sub.ID] = &copied
	return nil
}

func (r *fakeAlertRepo) GetSubscription(ctx context.Context, id int64) (*domain.PriceAlertSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subscriptions[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	copied := *sub
	return &copied, nil
}

func (r *fakeAlertRepo) ActiveForProduct(ctx context.Context, productID int64) ([]domain.PriceAlertSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PriceAlertSubscription
	for _, sub := range r.subscriptions {
		if sub.ProductID == productID && sub.Active {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *fakeAlertRepo) ActiveCountForProduct(ctx context.Context, productID int64) (int, error) {
	subs, _ := r.ActiveForProduct(ctx, productID)
	return len(subs), nil
}

func (r *fakeAlertRepo) MarkNotified(ctx context.Context, subscriptionID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subscriptions[subscriptionID]
	if !ok {
		return domain.ErrProductNotFound
	}
	sub.Notified = true
	notifiedAt := at
	sub.LastNotifiedAt = &notifiedAt
	return nil
}

func (r *fakeAlertRepo) ExpiredBefore(ctx context.Context, now time.Time) ([]domain.PriceAlertSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PriceAlertSubscription
	for _, sub := range r.subscriptions {
		if sub.Active && !sub.ExpiresAt.After(now) {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *fakeAlertRepo) Deactivate(ctx context.Context, subscriptionID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subscriptions[subscriptionID]
	if !ok {
		return domain.ErrProductNotFound
	}
	sub.Active = false
	return nil
}

// fakeQueue records enqueued notification jobs
type fakeQueue struct {
	mu   sync.Mutex
	jobs []domain.NotificationJob
	err  error
}

func (q *fakeQueue) EnqueuePriceAlert(ctx context.Context, job domain.NotificationJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) enqueued() []domain.NotificationJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.NotificationJob, len(q.jobs))
	copy(out, q.jobs)
	return out
}

// fakeCache is a minimal CacheRepository that never expires
type fakeCache struct {
	mu   sync.Mutex
	data map[string]interface{}
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string]interface{})}
}

func (c *fakeCache) Get(ctx context.Context, key string) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.data[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return value, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *fakeCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}
