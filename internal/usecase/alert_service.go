package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/pricelens/backend/internal/domain"
)

// Observer is the two-stage notification contract: ShouldNotify gates,
// Update applies the send policy and dispatches.
type Observer interface {
	ShouldNotify(event *domain.PriceChangeEvent) bool
	Update(ctx context.Context, event *domain.PriceChangeEvent) error
}

// AlertConfig holds configuration for the notification engine
type AlertConfig struct {
	Cooldown           time.Duration // minimum gap between notifications per subscription
	MonitoringHorizon  time.Duration // subscription lifetime from creation
	EnableDebugLogging bool
}

// AlertService evaluates and dispatches price-alert notifications. The
// persistent product acts as the subject; each of its active subscriptions
// acts as an observer. Subscriptions are fetched fresh from the store for
// every event rather than held in a long-lived in-memory list.
type AlertService struct {
	alerts             domain.AlertRepository
	history            domain.PriceHistoryRepository
	queue              domain.NotificationQueue
	cooldown           time.Duration
	monitoringHorizon  time.Duration
	enableDebugLogging bool
}

// NewAlertService creates a notification engine, falling back to the
// default cooldown (1h) and monitoring horizon (7 days) for zero values.
func NewAlertService(
	alerts domain.AlertRepository,
	history domain.PriceHistoryRepository,
	queue domain.NotificationQueue,
	config AlertConfig,
) *AlertService {
	cooldown := config.Cooldown
	if cooldown <= 0 {
		cooldown = time.Hour
	}
	horizon := config.MonitoringHorizon
	if horizon <= 0 {
		horizon = 7 * 24 * time.Hour
	}
	return &AlertService{
		alerts:             alerts,
		history:            history,
		queue:              queue,
		cooldown:           cooldown,
		monitoringHorizon:  horizon,
		enableDebugLogging: config.EnableDebugLogging,
	}
}

// NotifyPriceChange runs the observer contract for every active
// subscription attached to the event's product. A dispatch failure leaves
// that subscription un-notified and never fails the caller: the next
// price-change cycle re-evaluates it naturally.
func (s *AlertService) NotifyPriceChange(ctx context.Context, event *domain.PriceChangeEvent) (int, error) {
	subscriptions, err := s.alerts.ActiveForProduct(ctx, event.ProductID)
	if err != nil {
		return 0, fmt.Errorf("load subscriptions: %w", err)
	}

	notified := 0
	for i := range subscriptions {
		observer := &subscriptionObserver{subscription: subscriptions[i], engine: s}
		if !observer.ShouldNotify(event) {
			continue
		}
		if err := observer.Update(ctx, event); err != nil {
			log.Printf("[ALERT] dispatch failed for subscription %d: %v", subscriptions[i].ID, err)
			continue
		}
		notified++
	}
	return notified, nil
}

// CreateSubscription stores a new subscription with the monitoring horizon
// applied from the creation time.
func (s *AlertService) CreateSubscription(ctx context.Context, productID int64, subscriber string, targetPrice float64, now time.Time) (*domain.PriceAlertSubscription, error) {
	if subscriber == "" || targetPrice <= 0 {
		return nil, domain.ErrInvalidRequest
	}
	subscription := &domain.PriceAlertSubscription{
		ProductID:   productID,
		Subscriber:  subscriber,
		TargetPrice: targetPrice,
		Active:      true,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.monitoringHorizon),
	}
	if err := s.alerts.CreateSubscription(ctx, subscription); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}
	return subscription, nil
}

// GetSubscription fetches one subscription by ID
func (s *AlertService) GetSubscription(ctx context.Context, id int64) (*domain.PriceAlertSubscription, error) {
	subscription, err := s.alerts.GetSubscription(ctx, id)
	if err != nil {
		return nil, err
	}
	return subscription, nil
}

// SweepExpired deactivates subscriptions past their monitoring horizon and
// issues one terminal "expired" notification carrying the last known
// price. Idempotent: the subscription flips inactive only once its
// notification is enqueued, so a failed enqueue is retried next sweep.
func (s *AlertService) SweepExpired(ctx context.Context, now time.Time) (expired, notified int, err error) {
	subscriptions, err := s.alerts.ExpiredBefore(ctx, now)
	if err != nil {
		return 0, 0, fmt.Errorf("load expired subscriptions: %w", err)
	}

	for _, subscription := range subscriptions {
		expired++

		lastPrice := 0.0
		if latest, histErr := s.history.LatestForProduct(ctx, subscription.ProductID); histErr == nil {
			lastPrice = latest.Price
		} else if !errors.Is(histErr, domain.ErrProductNotFound) {
			log.Printf("[ALERT] last price lookup failed for product %d: %v", subscription.ProductID, histErr)
		}

		job := domain.NotificationJob{
			SubscriptionID: subscription.ID,
			CurrentPrice:   lastPrice,
			ChangeType:     domain.ChangeExpired,
			Expired:        true,
		}
		if err := s.queue.EnqueuePriceAlert(ctx, job); err != nil {
			log.Printf("[ALERT] expiry dispatch failed for subscription %d: %v", subscription.ID, err)
			continue
		}
		if err := s.alerts.Deactivate(ctx, subscription.ID); err != nil {
			log.Printf("[ALERT] deactivate failed for subscription %d: %v", subscription.ID, err)
			continue
		}
		notified++
	}

	if s.enableDebugLogging {
		log.Printf("[ALERT] expiry sweep: %d expired, %d notified", expired, notified)
	}
	return expired, notified, nil
}

// subscriptionObserver adapts one subscription to the Observer contract
type subscriptionObserver struct {
	subscription domain.PriceAlertSubscription
	engine       *AlertService
}

// ShouldNotify rejects inactive subscriptions, foreign products, prices
// above target, and events arriving inside the cooldown window.
func (o *subscriptionObserver) ShouldNotify(event *domain.PriceChangeEvent) bool {
	sub := o.subscription
	if !sub.Active {
		return false
	}
	if event.ProductID != sub.ProductID {
		return false
	}
	if event.NewPrice > sub.TargetPrice {
		return false
	}
	if sub.LastNotifiedAt != nil && event.Timestamp.Sub(*sub.LastNotifiedAt) < o.engine.cooldown {
		return false
	}
	return true
}

// Update applies the send policy: decreased always sends, new_price and
// increased send only at or below target, unchanged never sends. On send,
// the notification job is enqueued and the subscription is marked notified
// in the same step so the next cooldown check is accurate.
func (o *subscriptionObserver) Update(ctx context.Context, event *domain.PriceChangeEvent) error {
	sub := o.subscription

	send := false
	switch event.Type {
	case domain.ChangeDecreased:
		send = true
	case domain.ChangeNewPrice, domain.ChangeIncreased:
		send = event.NewPrice <= sub.TargetPrice
	case domain.ChangeUnchanged:
		send = false
	}
	if !send {
		return nil
	}

	job := domain.NotificationJob{
		SubscriptionID: sub.ID,
		CurrentPrice:   event.NewPrice,
		PreviousPrice:  event.OldPrice,
		ChangeType:     event.Type,
		Percentage:     event.Percentage,
		Amount:         event.Amount,
		StoreURL:       event.StoreURL,
	}
	if err := o.engine.queue.EnqueuePriceAlert(ctx, job); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDispatchFailure, err)
	}
	if err := o.engine.alerts.MarkNotified(ctx, sub.ID, event.Timestamp); err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}
