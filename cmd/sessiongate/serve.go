package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/MrEthical07/sessiongate"
	"github.com/MrEthical07/sessiongate/audit/kafkasink"
	"github.com/MrEthical07/sessiongate/credentials"
	"github.com/MrEthical07/sessiongate/internal/httpapi"
	"github.com/MrEthical07/sessiongate/internal/logging"
	"github.com/MrEthical07/sessiongate/internal/settings"
	"github.com/MrEthical07/sessiongate/metrics/export/otel"
	"github.com/MrEthical07/sessiongate/metrics/export/prometheus"
	"github.com/MrEthical07/sessiongate/password"
)

func serve(args []string) error {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	settings.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := settings.Load(fs)
	if err != nil {
		return err
	}
	logger := logging.New(st.LogLevel, st.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, st)
	if err != nil {
		return err
	}
	defer db.Close()

	client, closeRedis, err := openRedis(st.RedisURL, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	hasher, err := newHasher(st)
	if err != nil {
		return err
	}

	cfg := st.EngineConfig()
	for _, w := range cfg.Lint() {
		logger.Warn("config lint", "code", w.Code, "severity", w.Severity.String(), "message", w.Message)
	}

	b := sessiongate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(db).
		WithPasswordHasher(hasher).
		WithLogger(logger)

	sink := kafkasink.New(st.KafkaBrokersList(), st.KafkaAuditTopic, logger)
	if sink != nil {
		defer sink.Close()
		b = b.WithAuditSink(sink)
		logger.Info("audit events published to kafka", "topic", st.KafkaAuditTopic)
	} else if cfg.Audit.Enabled {
		b = b.WithAuditSink(sessiongate.NewJSONWriterSink(os.Stdout))
	}

	engine, err := b.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	var metricsHandler http.Handler
	if st.MetricsEnabled {
		metricsHandler = prometheus.NewExporter(engine).Handler()

		push, err := otel.NewPushProvider(ctx, st.OTLPMetricsEndpoint, "sessiongate", otel.DefaultPushInterval)
		if err != nil {
			return err
		}
		defer func() {
			if err := push.Shutdown(context.Background()); err != nil {
				logger.Warn("otlp shutdown", "error", err)
			}
		}()
		if st.OTLPMetricsEndpoint != "" {
			exp, err := otel.NewExporter(push.MeterProvider.Meter("sessiongate"), engine)
			if err != nil {
				return err
			}
			defer exp.Close()
			logger.Info("metrics pushed over otlp", "endpoint", st.OTLPMetricsEndpoint)
		}
	}

	e := httpapi.New(httpapi.Deps{
		Engine:           engine,
		Database:         db,
		Metrics:          metricsHandler,
		Logger:           logger,
		PasswordMaxBytes: password.MaxBytes(hasher),
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", st.HTTPAddr, "env", st.Env)
		if err := e.Start(st.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), st.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	return nil
}

func openDatabase(ctx context.Context, st *settings.Settings) (*credentials.Store, error) {
	driver, err := credentials.ParseDriver(st.DatabaseDriver)
	if err != nil {
		return nil, err
	}
	return credentials.Open(ctx, credentials.Options{Driver: driver, DSN: st.DatabaseURL})
}

// openRedis returns a client for url, or for an embedded miniredis when url
// is settings.RedisMemory.
func openRedis(url string, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if url == settings.RedisMemory {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("embedded redis: %w", err)
		}
		client := redis.NewClient(&redis.Options{Addr: mr.Addr(), ContextTimeoutEnabled: true})
		logger.Warn("using embedded redis; sessions are lost on restart", "addr", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("REDIS_URL: %w", err)
	}
	// REDIS_OP_TIMEOUT is enforced through the command context.
	opts.ContextTimeoutEnabled = true
	client := redis.NewClient(opts)
	return client, func() { _ = client.Close() }, nil
}

func newHasher(st *settings.Settings) (sessiongate.PasswordHasher, error) {
	if st.PasswordAlgorithm == "argon2id" {
		return password.NewArgon2(password.DefaultArgon2Config())
	}
	return password.NewBcrypt(st.BcryptCost)
}
