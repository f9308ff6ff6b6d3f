package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pricelens/backend/internal/domain"
)

func newTestAlertService(repo *fakeAlertRepo, history *fakeHistoryRepo, queue *fakeQueue) *AlertService {
	return NewAlertService(repo, history, queue, AlertConfig{
		Cooldown:          time.Hour,
		MonitoringHorizon: 7 * 24 * time.Hour,
	})
}

func decreaseEvent(productID int64, from, to float64, at time.Time) *domain.PriceChangeEvent {
	return &domain.PriceChangeEvent{
		ProductID:  productID,
		Store:      "store-a",
		StoreURL:   "https://store-a.example/p",
		OldPrice:   from,
		NewPrice:   to,
		Type:       domain.ChangeDecreased,
		Amount:     to - from,
		Percentage: (to - from) / from * 100,
		Timestamp:  at,
	}
}

func TestNotifyPriceChange(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	t.Run("notifies a matching subscription on decrease", func(t *testing.T) {
		repo := newFakeAlertRepo()
		queue := &fakeQueue{}
		s := newTestAlertService(repo, newFakeHistoryRepo(), queue)

		sub, err := s.CreateSubscription(ctx, 7, "user@example.com", 2200, now.Add(-time.Hour))
		if err != nil {
			t.Fatalf("CreateSubscription() error = %v", err)
		}

		notified, err := s.NotifyPriceChange(ctx, decreaseEvent(7, 2500, 2000, now))
		if err != nil {
			t.Fatalf("NotifyPriceChange() error = %v", err)
		}
		if notified != 1 {
			t.Fatalf("notified = %d, want 1", notified)
		}

		jobs := queue.enqueued()
		if len(jobs) != 1 {
			t.Fatalf("enqueued jobs = %d, want 1", len(jobs))
		}
		job := jobs[0]
		if job.SubscriptionID != sub.ID {
			t.Errorf("SubscriptionID = %d, want %d", job.SubscriptionID, sub.ID)
		}
		if job.CurrentPrice != 2000 || job.PreviousPrice != 2500 {
			t.Errorf("prices = %g/%g, want 2000/2500", job.CurrentPrice, job.PreviousPrice)
		}
		if job.ChangeType != domain.ChangeDecreased {
			t.Errorf("ChangeType = %s, want decreased", job.ChangeType)
		}

		stored, _ := repo.GetSubscription(ctx, sub.ID)
		if !stored.Notified || stored.LastNotifiedAt == nil {
			t.Error("subscription not marked notified")
		}
	})

	t.Run("price above target is ignored", func(t *testing.T) {
		repo := newFakeAlertRepo()
		queue := &fakeQueue{}
		s := newTestAlertService(repo, newFakeHistoryRepo(), queue)

		if _, err := s.CreateSubscription(ctx, 7, "user@example.com", 1500, now.Add(-time.Hour)); err != nil {
			t.Fatal(err)
		}

		notified, err := s.NotifyPriceChange(ctx, decreaseEvent(7, 2500, 2000, now))
		if err != nil {
			t.Fatalf("NotifyPriceChange() error = %v", err)
		}
		if notified != 0 || len(queue.enqueued()) != 0 {
			t.Errorf("notified = %d, jobs = %d, want none above target", notified, len(queue.enqueued()))
		}
	})

	t.Run("cooldown suppresses a second notification", func(t *testing.T) {
		repo := newFakeAlertRepo()
		queue := &fakeQueue{}
		s := newTestAlertService(repo, newFakeHistoryRepo(), queue)

		if _, err := s.CreateSubscription(ctx, 7, "user@example.com", 2200, now.Add(-2*time.Hour)); err != nil {
			t.Fatal(err)
		}

		if n, _ := s.NotifyPriceChange(ctx, decreaseEvent(7, 2500, 2000, now)); n != 1 {
			t.Fatalf("first notification = %d, want 1", n)
		}

		// Ten minutes later: inside the cooldown window
		n, err := s.NotifyPriceChange(ctx, decreaseEvent(7, 2000, 1900, now.Add(10*time.Minute)))
		if err != nil {
			t.Fatalf("NotifyPriceChange() error = %v", err)
		}
		if n != 0 {
			t.Errorf("notified = %d inside cooldown, want 0", n)
		}

		// Two hours later: cooldown has lapsed
		n, err = s.NotifyPriceChange(ctx, decreaseEvent(7, 1900, 1800, now.Add(2*time.Hour)))
		if err != nil {
			t.Fatalf("NotifyPriceChange() error = %v", err)
		}
		if n != 1 {
			t.Errorf("notified = %d after cooldown, want 1", n)
		}
		if got := len(queue.enqueued()); got != 2 {
			t.Errorf("total jobs = %d, want 2", got)
		}
	})

	t.Run("increase sends only at or below target", func(t *testing.T) {
		repo := newFakeAlertRepo()
		queue := &fakeQueue{}
		s := newTestAlertService(repo, newFakeHistoryRepo(), queue)

		if _, err := s.CreateSubscription(ctx, 7, "user@example.com", 2200, now.Add(-time.Hour)); err != nil {
			t.Fatal(err)
		}

		event := decreaseEvent(7, 1800, 2000, now)
		event.Type = domain.ChangeIncreased
		n, err := s.NotifyPriceChange(ctx, event)
		if err != nil {
			t.Fatalf("NotifyPriceChange() error = %v", err)
		}
		if n != 1 {
			t.Errorf("notified = %d, want 1 (still below target)", n)
		}
	})

	t.Run("unchanged never sends", func(t *testing.T) {
		repo := newFakeAlertRepo()
		queue := &fakeQueue{}
		s := newTestAlertService(repo, newFakeHistoryRepo(), queue)

		if _, err := s.CreateSubscription(ctx, 7, "user@example.com", 2200, now.Add(-time.Hour)); err != nil {
			t.Fatal(err)
		}

		event := decreaseEvent(7, 2000, 2000, now)
		event.Type = domain.ChangeUnchanged
		n, err := s.NotifyPriceChange(ctx, event)
		if err != nil {
			t.Fatalf("NotifyPriceChange() error = %v", err)
		}
		if n != 0 || len(queue.enqueued()) != 0 {
			t.Errorf("notified = %d, want 0 for unchanged", n)
		}
	})

	t.Run("foreign product subscriptions are untouched", func(t *testing.T) {
		repo := newFakeAlertRepo()
		queue := &fakeQueue{}
		s := newTestAlertService(repo, newFakeHistoryRepo(), queue)

		if _, err := s.CreateSubscription(ctx, 99, "user@example.com", 2200, now.Add(-time.Hour)); err != nil {
			t.Fatal(err)
		}

		n, err := s.NotifyPriceChange(ctx, decreaseEvent(7, 2500, 2000, now))
		if err != nil {
			t.Fatalf("NotifyPriceChange() error = %v", err)
		}
		if n != 0 {
			t.Errorf("notified = %d, want 0 for foreign product", n)
		}
	})

	t.Run("dispatch failure skips marking and does not fail the caller", func(t *testing.T) {
		repo := newFakeAlertRepo()
		queue := &fakeQueue{err: errors.New("queue down")}
		s := newTestAlertService(repo, newFakeHistoryRepo(), queue)

		sub, err := s.CreateSubscription(ctx, 7, "user@example.com", 2200, now.Add(-time.Hour))
		if err != nil {
			t.Fatal(err)
		}

		n, err := s.NotifyPriceChange(ctx, decreaseEvent(7, 2500, 2000, now))
		if err != nil {
			t.Fatalf("NotifyPriceChange() error = %v, want nil", err)
		}
		if n != 0 {
			t.Errorf("notified = %d, want 0 on dispatch failure", n)
		}
		stored, _ := repo.GetSubscription(ctx, sub.ID)
		if stored.Notified {
			t.Error("subscription marked notified despite failed dispatch")
		}
	})
}

func TestCreateSubscription(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	s := newTestAlertService(newFakeAlertRepo(), newFakeHistoryRepo(), &fakeQueue{})

	t.Run("applies the monitoring horizon", func(t *testing.T) {
		sub, err := s.CreateSubscription(ctx, 7, "user@example.com", 2200, now)
		if err != nil {
			t.Fatalf("CreateSubscription() error = %v", err)
		}
		if !sub.Active {
			t.Error("Active = false, want true")
		}
		if want := now.Add(7 * 24 * time.Hour); !sub.ExpiresAt.Equal(want) {
			t.Errorf("ExpiresAt = %v, want %v", sub.ExpiresAt, want)
		}
	})

	t.Run("rejects missing subscriber or non-positive target", func(t *testing.T) {
		if _, err := s.CreateSubscription(ctx, 7, "", 2200, now); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
		if _, err := s.CreateSubscription(ctx, 7, "user@example.com", 0, now); !errors.Is(err, domain.ErrInvalidRequest) {
			t.Errorf("error = %v, want ErrInvalidRequest", err)
		}
	})
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 10, 10, 0, 0, 0, time.UTC)

	t.Run("deactivates and notifies expired subscriptions", func(t *testing.T) {
		repo := newFakeAlertRepo()
		history := newFakeHistoryRepo()
		queue := &fakeQueue{}
		s := newTestAlertService(repo, history, queue)

		expired, err := s.CreateSubscription(ctx, 7, "user@example.com", 2200, now.Add(-8*24*time.Hour))
		if err != nil {
			t.Fatal(err)
		}
		fresh, err := s.CreateSubscription(ctx, 7, "other@example.com", 2100, now.Add(-time.Hour))
		if err != nil {
			t.Fatal(err)
		}

		if _, err := history.Upsert(ctx, &domain.PriceObservation{
			ProductID:  7,
			Store:      "store-a",
			Price:      1999,
			ObservedAt: now.Add(-2 * time.Hour),
		}); err != nil {
			t.Fatal(err)
		}

		gotExpired, gotNotified, err := s.SweepExpired(ctx, now)
		if err != nil {
			t.Fatalf("SweepExpired() error = %v", err)
		}
		if gotExpired != 1 || gotNotified != 1 {
			t.Errorf("expired/notified = %d/%d, want 1/1", gotExpired, gotNotified)
		}

		jobs := queue.enqueued()
		if len(jobs) != 1 {
			t.Fatalf("jobs = %d, want 1", len(jobs))
		}
		if jobs[0].ChangeType != domain.ChangeExpired || !jobs[0].Expired {
			t.Errorf("job = %+v, want terminal expired notification", jobs[0])
		}
		if jobs[0].CurrentPrice != 1999 {
			t.Errorf("CurrentPrice = %g, want last observed 1999", jobs[0].CurrentPrice)
		}

		deactivated, _ := repo.GetSubscription(ctx, expired.ID)
		if deactivated.Active {
			t.Error("expired subscription still active")
		}
		kept, _ := repo.GetSubscription(ctx, fresh.ID)
		if !kept.Active {
			t.Error("fresh subscription deactivated")
		}
	})

	t.Run("failed enqueue leaves the subscription for the next sweep", func(t *testing.T) {
		repo := newFakeAlertRepo()
		queue := &fakeQueue{err: errors.New("queue down")}
		s := newTestAlertService(repo, newFakeHistoryRepo(), queue)

		sub, err := s.CreateSubscription(ctx, 7, "user@example.com", 2200, now.Add(-8*24*time.Hour))
		if err != nil {
			t.Fatal(err)
		}

		gotExpired, gotNotified, err := s.SweepExpired(ctx, now)
		if err != nil {
			t.Fatalf("SweepExpired() error = %v", err)
		}
		if gotExpired != 1 || gotNotified != 0 {
			t.Errorf("expired/notified = %d/%d, want 1/0", gotExpired, gotNotified)
		}
		stored, _ := repo.GetSubscription(ctx, sub.ID)
		if !stored.Active {
			t.Error("subscription deactivated despite failed enqueue")
		}

		// Next sweep with a healthy queue picks it up again
		queue.err = nil
		gotExpired, gotNotified, err = s.SweepExpired(ctx, now)
		if err != nil {
			t.Fatalf("second SweepExpired() error = %v", err)
		}
		if gotExpired != 1 || gotNotified != 1 {
			t.Errorf("second sweep expired/notified = %d/%d, want 1/1", gotExpired, gotNotified)
		}
	})

	t.Run("no expired subscriptions is a no-op", func(t *testing.T) {
		s := newTestAlertService(newFakeAlertRepo(), newFakeHistoryRepo(), &fakeQueue{})
		gotExpired, gotNotified, err := s.SweepExpired(ctx, now)
		if err != nil {
			t.Fatalf("SweepExpired() error = %v", err)
		}
		if gotExpired != 0 || gotNotified != 0 {
			t.Errorf("expired/notified = %d/%d, want 0/0", gotExpired, gotNotified)
		}
	})
}
