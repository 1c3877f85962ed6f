package events

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	EventWalletCredited        = "wallet.credited"
	EventWalletDebited         = "wallet.debited"
	EventWithdrawalRequested   = "wallet.withdrawal_requested"
	EventWithdrawalCompleted   = "wallet.withdrawal_completed"
	EventWithdrawalFailed      = "wallet.withdrawal_failed"
	EventCommissionCreated     = "commission.created"
	EventCommissionConfirmed   = "commission.confirmed"
	EventCommissionPaid        = "commission.paid"
	EventCommissionDisputed    = "commission.disputed"
	EventCommissionClawedBack  = "commission.clawed_back"
	EventPaymentCompleted      = "payment.completed"
	EventSubscriptionPurchased = "subscription.purchased"
	EventCurrencyAssigned      = "currency.assigned"
	EventCurrencyOverridden    = "currency.overridden"
)

// Event is the unit handed to PublishTx. DedupeKey makes retried
// transactions idempotent at the outbox table.
type Event struct {
	CompanyID snowflake.ID
	Type      string
	Payload   map[string]any
	DedupeKey string
}

// OutboxEvent is the persisted row. Dispatch marks rows published
// instead of deleting them so the table doubles as an event log.
type OutboxEvent struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	CompanyID   snowflake.ID   `gorm:"index" json:"company_id"`
	EventType   string         `json:"event_type"`
	Payload     datatypes.JSON `json:"payload"`
	DedupeKey   string         `gorm:"uniqueIndex" json:"dedupe_key"`
	Published   bool           `gorm:"index" json:"published"`
	PublishedAt *time.Time     `json:"published_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }
