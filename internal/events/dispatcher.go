package events

import (
	"context"
	"time"

	"github.com/hrm8/walletcore/internal/clock"
	"github.com/hrm8/walletcore/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	dispatchBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walletcore_outbox_dispatch_total",
		Help: "Outbox dispatch batches by status.",
	}, []string{"status"})
	dispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "walletcore_outbox_dispatch_duration_seconds",
		Help:    "Outbox dispatch batch duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
	outboxBacklog = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "walletcore_outbox_backlog",
		Help: "Unpublished outbox events.",
	})
)

// Sink receives published events. The default sink logs them; a real
// broker client can be supplied in its place through fx decoration.
type Sink interface {
	Deliver(ctx context.Context, event OutboxEvent) error
}

type logSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) Sink {
	return &logSink{log: log.Named("events.sink")}
}

func (s *logSink) Deliver(_ context.Context, event OutboxEvent) error {
	s.log.Info("event dispatched",
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", event.EventType),
		zap.String("company_id", event.CompanyID.String()),
	)
	return nil
}

type DispatcherParams struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cfg   config.Config
	Clock clock.Clock
	Sink  Sink
}

type Dispatcher struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	sink      Sink
	interval  time.Duration
	batchSize int
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewDispatcher(p DispatcherParams) *Dispatcher {
	interval := time.Duration(p.Cfg.OutboxPollInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	batchSize := p.Cfg.OutboxBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Dispatcher{
		db:        p.DB,
		log:       p.Log.Named("events.dispatcher"),
		clock:     p.Clock,
		sink:      p.Sink,
		interval:  interval,
		batchSize: batchSize,
		done:      make(chan struct{}),
	}
}

func (d *Dispatcher) Start(context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	go d.run(ctx)
	return nil
}

func (d *Dispatcher) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.DispatchOnce(ctx); err != nil && ctx.Err() == nil {
				d.log.Warn("outbox dispatch failed", zap.Error(err))
			}
		}
	}
}

// DispatchOnce drains one batch of unpublished events. Events are marked
// published only after the sink accepts them; delivery is at-least-once.
func (d *Dispatcher) DispatchOnce(ctx context.Context) error {
	start := time.Now()
	status := "success"

	var batch []OutboxEvent
	if err := d.db.WithContext(ctx).
		Where("published = ?", false).
		Order("created_at asc, id asc").
		Limit(d.batchSize).
		Find(&batch).Error; err != nil {
		dispatchBatches.WithLabelValues("error").Inc()
		return err
	}

	for i := range batch {
		event := batch[i]
		if err := d.sink.Deliver(ctx, event); err != nil {
			status = "partial"
			d.log.Warn("event delivery failed",
				zap.String("event_id", event.ID.String()),
				zap.String("event_type", event.EventType),
				zap.Error(err),
			)
			continue
		}
		now := d.clock.Now()
		if err := d.db.WithContext(ctx).Model(&OutboxEvent{}).
			Where("id = ?", event.ID).
			Updates(map[string]any{"published": true, "published_at": now}).Error; err != nil {
			status = "partial"
			d.log.Warn("failed to mark event published",
				zap.String("event_id", event.ID.String()),
				zap.Error(err),
			)
		}
	}

	var backlog int64
	if err := d.db.WithContext(ctx).Model(&OutboxEvent{}).
		Where("published = ?", false).
		Count(&backlog).Error; err == nil {
		outboxBacklog.Set(float64(backlog))
	}

	dispatchBatches.WithLabelValues(status).Inc()
	dispatchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	return nil
}
