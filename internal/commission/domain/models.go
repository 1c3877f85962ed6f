package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Consultant struct {
	ID                    snowflake.ID     `json:"id" gorm:"primaryKey"`
	Name                  string           `json:"name" gorm:"type:text;not null"`
	RegionID              *snowflake.ID    `json:"region_id,omitempty" gorm:"index"`
	DefaultCommissionRate *decimal.Decimal `json:"default_commission_rate,omitempty" gorm:"type:numeric(5,4)"`
	Active                bool             `json:"active" gorm:"not null;default:true"`
	CreatedAt             time.Time        `json:"created_at" gorm:"not null"`
	UpdatedAt             time.Time        `json:"updated_at" gorm:"not null"`
}

func (Consultant) TableName() string { return "consultants" }

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusPaid      Status = "PAID"
	StatusDisputed  Status = "DISPUTED"
	StatusClawback  Status = "CLAWBACK"
	StatusCancelled Status = "CANCELLED"
)

type CommissionType string

const (
	TypePlacement    CommissionType = "PLACEMENT"
	TypeSubscription CommissionType = "SUBSCRIPTION"
)

// Commission freezes its amount at creation. Later price changes on the
// source job or subscription never alter what was promised.
type Commission struct {
	ID             snowflake.ID    `json:"id" gorm:"primaryKey"`
	ConsultantID   snowflake.ID    `json:"consultant_id" gorm:"not null;index"`
	RegionID       *snowflake.ID   `json:"region_id,omitempty"`
	JobID          *snowflake.ID   `json:"job_id,omitempty" gorm:"index"`
	SubscriptionID *snowflake.ID   `json:"subscription_id,omitempty" gorm:"index"`
	Type           CommissionType  `json:"type" gorm:"type:text;not null"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:numeric(18,2);not null"`
	Rate           decimal.Decimal `json:"rate" gorm:"type:numeric(5,4);not null"`
	Currency       string          `json:"currency" gorm:"type:text;not null"`
	Status         Status          `json:"status" gorm:"type:text;not null;index"`
	Notes          string          `json:"notes,omitempty" gorm:"type:text"`
	ConfirmedAt    *time.Time      `json:"confirmed_at,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"not null"`
}

func (Commission) TableName() string { return "commissions" }

type Repository interface {
	InsertConsultant(ctx context.Context, db *gorm.DB, consultant *Consultant) error
	FindConsultantByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Consultant, error)

	Insert(ctx context.Context, db *gorm.DB, commission *Commission) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Commission, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Commission, error)
	Update(ctx context.Context, db *gorm.DB, commission *Commission) error
	ListByConsultant(ctx context.Context, db *gorm.DB, consultantID snowflake.ID, status Status) ([]Commission, error)
}
