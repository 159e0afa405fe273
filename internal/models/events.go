package models

import "time"

// Event types
const (
	EventTypeProductCreated = "PRODUCT_CREATED"
	EventTypeProductUpdated = "PRODUCT_UPDATED"
	EventTypeProductDeleted = "PRODUCT_DELETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ProductEvent is published after every successful product mutation.
// Product is omitted for deletions.
type ProductEvent struct {
	BaseEvent
	ProductID int64    `json:"product_id"`
	SKU       string   `json:"sku"`
	Product   *Product `json:"product,omitempty"`
}
