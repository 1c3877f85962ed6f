package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	walletOps             metric.Int64Counter
	walletFailures        metric.Int64Counter
	commissionTransitions metric.Int64Counter
	paymentEvents         metric.Int64Counter
	priceLookups          metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "walletcore"
	}
	meter := provider.Meter(name)

	walletOps, err := meter.Int64Counter("walletcore_wallet_operations_total")
	if err != nil {
		return nil, err
	}
	walletFailures, err := meter.Int64Counter("walletcore_wallet_failures_total")
	if err != nil {
		return nil, err
	}
	commissionTransitions, err := meter.Int64Counter("walletcore_commission_transitions_total")
	if err != nil {
		return nil, err
	}
	paymentEvents, err := meter.Int64Counter("walletcore_payment_events_total")
	if err != nil {
		return nil, err
	}
	priceLookups, err := meter.Int64Counter("walletcore_price_lookups_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		walletOps:             walletOps,
		walletFailures:        walletFailures,
		commissionTransitions: commissionTransitions,
		paymentEvents:         paymentEvents,
		priceLookups:          priceLookups,
	}, nil
}

// RecordWalletOperation increments wallet credit/debit counts.
func (m *Metrics) RecordWalletOperation(ctx context.Context, direction, txnType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("direction", strings.TrimSpace(direction)),
		attribute.String("txn_type", strings.TrimSpace(txnType)),
	)
	m.walletOps.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordWalletFailure increments rejected wallet operation counts.
func (m *Metrics) RecordWalletFailure(ctx context.Context, direction, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("direction", strings.TrimSpace(direction)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.walletFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCommissionTransition increments commission state change counts.
func (m *Metrics) RecordCommissionTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from_status", strings.TrimSpace(from)),
		attribute.String("to_status", strings.TrimSpace(to)),
	)
	m.commissionTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPaymentEvent increments orchestration event counts.
func (m *Metrics) RecordPaymentEvent(ctx context.Context, kind, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("kind", strings.TrimSpace(kind)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.paymentEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordPriceLookup increments price resolution counts.
func (m *Metrics) RecordPriceLookup(ctx context.Context, productCode, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("product_code", strings.TrimSpace(productCode)),
		attribute.String("source", strings.TrimSpace(source)),
	)
	m.priceLookups.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"direction":    {},
	"txn_type":     {},
	"reason":       {},
	"from_status":  {},
	"to_status":    {},
	"kind":         {},
	"outcome":      {},
	"product_code": {},
	"source":       {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
