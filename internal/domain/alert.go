package domain

import "time"

// PriceAlertSubscription is one subscriber's standing request to be told
// when a product's price drops to (or below) a target. Created externally;
// mutated only by the alert engine and the expiry sweep.
type PriceAlertSubscription struct {
	ID             int64      `json:"id"`
	ProductID      int64      `json:"productId"`
	Subscriber     string     `json:"subscriber"`
	TargetPrice    float64    `json:"targetPrice"`
	Active         bool       `json:"active"`
	Notified       bool       `json:"notified"`
	LastNotifiedAt *time.Time `json:"lastNotifiedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	ExpiresAt      time.Time  `json:"expiresAt"`
}

// NotificationJob is the payload handed to the task-queue collaborator.
// Enqueue-only: delivery is never awaited.
type NotificationJob struct {
	SubscriptionID int64      `json:"subscriptionId"`
	CurrentPrice   float64    `json:"currentPrice"`
	PreviousPrice  float64    `json:"previousPrice"`
	ChangeType     ChangeType `json:"changeType"`
	Percentage     float64    `json:"percentage"`
	Amount         float64    `json:"amount"`
	StoreURL       string     `json:"storeUrl,omitempty"`
	Expired        bool       `json:"expired,omitempty"`
}
