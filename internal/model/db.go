package model

import "time"

// Session is the single locally persisted login: the bearer token and the
// cart badge count last reconciled with the backend.
type Session struct {
	ID        uint   `gorm:"primaryKey"`
	Email     string `gorm:"size:255"`
	Token     string `gorm:"type:text;not null"`
	CartCount int    `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WebhookEvent records a relayed payment-provider delivery so a retried
// delivery is acknowledged without being forwarded twice.
type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"` // sha256 of the signature header
	EventType   string `gorm:"size:64;index"`
	OrderID     string `gorm:"size:64;index"`
	Forwarded   bool   `gorm:"not null;default:false"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}

// PaymentAttempt is one payment artifact issued for an order and the state
// its confirmation poll ended in.
type PaymentAttempt struct {
	ID            uint   `gorm:"primaryKey"`
	OrderID       string `gorm:"size:64;index;not null"`
	Method        string `gorm:"size:16;not null"`
	Amount        string `gorm:"size:32"`
	State         string `gorm:"size:16;index;not null"`
	TransactionID string `gorm:"size:128"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
