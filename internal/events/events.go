// Package events publishes purchase outcomes for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventPurchaseSucceeded = "purchase.succeeded"
	EventPurchaseFailed    = "purchase.failed"
)

type PurchaseEvent struct {
	ID         string          `json:"event_id"`
	Type       string          `json:"event_type"`
	OrderID    string          `json:"order_id,omitempty"`
	Customer   string          `json:"customer"`
	Products   []int64         `json:"products"`
	Student    bool            `json:"student"`
	Coupon     string          `json:"coupon,omitempty"`
	Total      decimal.Decimal `json:"total"`
	Message    string          `json:"message,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, event PurchaseEvent) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, PurchaseEvent) error { return nil }

func (NopPublisher) Close() error { return nil }
