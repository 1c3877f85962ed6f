package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/hrm8/walletcore/internal/clock"
	"github.com/hrm8/walletcore/internal/config"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type captureSink struct {
	mu        sync.Mutex
	delivered []OutboxEvent
	err       error
}

func (s *captureSink) Deliver(_ context.Context, event OutboxEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.delivered = append(s.delivered, event)
	return nil
}

func (s *captureSink) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

func setupOutbox(t *testing.T) (*Outbox, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error

	if err := db.AutoMigrate(&OutboxEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	outbox := NewOutbox(OutboxParams{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	})
	return outbox, db, node
}

func TestPublishTxDeduplicates(t *testing.T) {
	outbox, db, node := setupOutbox(t)
	ctx := context.Background()
	companyID := node.Generate()

	event := Event{
		CompanyID: companyID,
		Type:      EventWalletCredited,
		Payload:   map[string]any{"amount": "10.00"},
		DedupeKey: "txn:42",
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := outbox.PublishTx(ctx, tx, event); err != nil {
			return err
		}
		// A retried handler staging the same event must be a no-op.
		return outbox.PublishTx(ctx, tx, event)
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	var count int64
	if err := db.Model(&OutboxEvent{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 outbox row, got %d", count)
	}
}

func TestPublishTxValidation(t *testing.T) {
	outbox, db, node := setupOutbox(t)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		return outbox.PublishTx(ctx, tx, Event{CompanyID: node.Generate(), DedupeKey: "k"})
	})
	if !errors.Is(err, ErrMissingEventType) {
		t.Fatalf("expected missing event type, got %v", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		return outbox.PublishTx(ctx, tx, Event{CompanyID: node.Generate(), Type: EventWalletDebited})
	})
	if !errors.Is(err, ErrMissingDedupeKey) {
		t.Fatalf("expected missing dedupe key, got %v", err)
	}
}

func TestDispatchOnceMarksPublished(t *testing.T) {
	outbox, db, node := setupOutbox(t)
	ctx := context.Background()
	companyID := node.Generate()

	for i := 0; i < 3; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			return outbox.PublishTx(ctx, tx, Event{
				CompanyID: companyID,
				Type:      EventWalletCredited,
				DedupeKey: fmt.Sprintf("txn:%d", i),
			})
		})
		if err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	sink := &captureSink{}
	dispatcher := NewDispatcher(DispatcherParams{
		DB:    db,
		Log:   zap.NewNop(),
		Cfg:   config.Config{OutboxPollInterval: 1, OutboxBatchSize: 10},
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC)),
		Sink:  sink,
	})

	if err := dispatcher.DispatchOnce(ctx); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if sink.Count() != 3 {
		t.Fatalf("expected 3 deliveries, got %d", sink.Count())
	}

	var pending int64
	if err := db.Model(&OutboxEvent{}).Where("published = ?", false).Count(&pending).Error; err != nil {
		t.Fatalf("count pending: %v", err)
	}
	if pending != 0 {
		t.Fatalf("expected no pending rows, got %d", pending)
	}

	// A second pass finds nothing to deliver.
	if err := dispatcher.DispatchOnce(ctx); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if sink.Count() != 3 {
		t.Fatalf("expected no redelivery, got %d", sink.Count())
	}
}

func TestDispatchOnceKeepsFailedRows(t *testing.T) {
	outbox, db, node := setupOutbox(t)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		return outbox.PublishTx(ctx, tx, Event{
			CompanyID: node.Generate(),
			Type:      EventPaymentCompleted,
			DedupeKey: "job_payment:1",
		})
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	sink := &captureSink{err: errors.New("broker down")}
	dispatcher := NewDispatcher(DispatcherParams{
		DB:    db,
		Log:   zap.NewNop(),
		Cfg:   config.Config{},
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC)),
		Sink:  sink,
	})

	_ = dispatcher.DispatchOnce(ctx)

	var pending int64
	if err := db.Model(&OutboxEvent{}).Where("published = ?", false).Count(&pending).Error; err != nil {
		t.Fatalf("count pending: %v", err)
	}
	if pending != 1 {
		t.Fatalf("expected the row to stay pending for retry, got %d pending", pending)
	}
}
