package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	walletdomain "github.com/hrm8/walletcore/internal/wallet/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PlatformOwnerID identifies the single platform-owned wallet row.
// There is exactly one HRM8_GLOBAL account and it is created at startup.
const PlatformOwnerID snowflake.ID = 1

// EnsureGlobalAccount seeds the platform revenue account so debits can
// mirror into it from the very first payment.
func EnsureGlobalAccount(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return ensureGlobalAccountTx(ctx, tx, node)
	})
}

func ensureGlobalAccountTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var account walletdomain.VirtualAccount
	err := tx.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", walletdomain.OwnerPlatform, PlatformOwnerID).
		First(&account).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	account = walletdomain.VirtualAccount{
		ID:           node.Generate(),
		OwnerType:    walletdomain.OwnerPlatform,
		OwnerID:      PlatformOwnerID,
		Balance:      decimal.Zero,
		TotalCredits: decimal.Zero,
		TotalDebits:  decimal.Zero,
		Status:       walletdomain.AccountActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return tx.WithContext(ctx).Create(&account).Error
}
