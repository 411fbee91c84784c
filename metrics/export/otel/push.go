package otel

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// DefaultPushInterval is how often a push provider exports.
const DefaultPushInterval = 10 * time.Second

// PushProvider is a MeterProvider that exports over OTLP gRPC.
type PushProvider struct {
	MeterProvider *sdkmetric.MeterProvider
	Shutdown      func(context.Context) error
}

// NewPushProvider builds a MeterProvider with a periodic OTLP gRPC reader.
// endpoint may be host:port or a URL; only the host is dialed. An empty
// endpoint yields a provider with no reader, so instruments are accepted and
// never exported. A plain-http or schemeless endpoint dials without TLS.
func NewPushProvider(ctx context.Context, endpoint, serviceName string, interval time.Duration) (*PushProvider, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		mp := sdkmetric.NewMeterProvider()
		return &PushProvider{MeterProvider: mp, Shutdown: mp.Shutdown}, nil
	}
	if interval <= 0 {
		interval = DefaultPushInterval
	}

	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(u.Host)}
	if u.Scheme != "https" {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("otlp metric exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))),
	)
	return &PushProvider{MeterProvider: mp, Shutdown: mp.Shutdown}, nil
}
