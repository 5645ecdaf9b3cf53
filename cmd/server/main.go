package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"gatehouse/internal/admin"
	"gatehouse/internal/guild"
	"gatehouse/internal/operator"
	"gatehouse/internal/platform/config"
	"gatehouse/internal/platform/httpserver"
	"gatehouse/internal/platform/kafka/consumer"
	"gatehouse/internal/platform/logger"
	"gatehouse/internal/platform/metrics"
	"gatehouse/internal/platform/otel"
	"gatehouse/internal/platform/redis"
	httptransport "gatehouse/internal/transport/http"
	"gatehouse/internal/waitlist"
	"gatehouse/internal/waitlist/feed"
	waitlisthandler "gatehouse/internal/waitlist/handler"
	waitlistmetrics "gatehouse/internal/waitlist/metrics"
	"gatehouse/pkg/platform/audit"
	"gatehouse/pkg/platform/audit/publisher"
	auditmemory "gatehouse/pkg/platform/audit/store/memory"
	auditpostgres "gatehouse/pkg/platform/audit/store/postgres"
	"gatehouse/pkg/platform/circuit"
)

// main wires high-level dependencies and runs the long-lived parts of the
// process in one errgroup. Business logic lives in internal/waitlist.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("gatehouse stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("failed to flush traces", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	waitlistMetrics := waitlistmetrics.New(reg)
	httpMetrics := metrics.New(reg)
	checks := map[string]httptransport.HealthCheck{}

	auditStore, closeAudit, err := newAuditStore(ctx, cfg.Postgres, log, checks)
	if err != nil {
		return err
	}
	defer closeAudit()

	auditPublisher := publisher.NewPublisher(auditStore,
		publisher.WithAsyncBuffer(cfg.Postgres.AuditBuffer),
		publisher.WithLogger(log),
		publisher.WithDropHook(waitlistMetrics.IncrementAuditDropped),
	)
	defer auditPublisher.Close()

	registry := waitlist.NewRegistry()
	serviceOpts := []waitlist.Option{
		waitlist.WithLogger(log),
		waitlist.WithMetrics(waitlistMetrics),
		waitlist.WithAuditPublisher(auditPublisher),
	}
	synchronizer, err := waitlist.NewSynchronizer(registry, serviceOpts...)
	if err != nil {
		return err
	}

	guildClient, err := guild.New(guild.Config{
		BaseURL:        cfg.Guild.APIBaseURL,
		GuildID:        cfg.Guild.ID,
		VerifiedRoleID: cfg.Guild.VerifiedRoleID,
		Token:          cfg.Guild.BotToken,
	},
		guild.WithHTTPClient(&http.Client{Timeout: cfg.Guild.RequestTimeout}),
		guild.WithBreaker(circuit.New("guild-api",
			circuit.WithFailureThreshold(cfg.Guild.BreakerThreshold),
			circuit.WithCooldown(cfg.Guild.BreakerCooldown),
		)),
		guild.WithLogger(log),
	)
	if err != nil {
		return err
	}

	coordinator, err := waitlist.NewCoordinator(registry, guildClient, serviceOpts...)
	if err != nil {
		return err
	}

	baseline := loadInitialWaitlist(ctx, guildClient, synchronizer, log)

	var feedConsumer *consumer.Consumer
	if cfg.FeedEnabled() {
		c, closeFeed, err := newFeedConsumer(ctx, cfg, synchronizer, baseline, waitlistMetrics, log, checks)
		if err != nil {
			return err
		}
		defer closeFeed()
		feedConsumer = c
	} else {
		log.Warn("no kafka brokers configured, waitlist only updates on startup and verify")
	}

	tokens := operator.NewTokenService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	policy := operator.NewPolicy(cfg.Server.ModeratorRoles)
	router := httptransport.NewRouter(reg, checks,
		waitlisthandler.New(coordinator, policy, tokens, log, httpMetrics),
		admin.New(auditStore, policy, tokens, log),
	)
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting gatehouse", "addr", cfg.Server.Addr)
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout)
	})

	if feedConsumer != nil {
		g.Go(func() error {
			log.Info("consuming member lifecycle feed", "topic", cfg.Kafka.Topic, "group", cfg.Kafka.GroupID)
			if err := feedConsumer.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("lifecycle feed: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// loadInitialWaitlist runs the startup full resync and returns when the member
// listing started, or the zero time if it failed. Failure leaves the waitlist
// empty until a snapshot event arrives; the process keeps running.
func loadInitialWaitlist(ctx context.Context, client *guild.Client, synchronizer *waitlist.Synchronizer, log *slog.Logger) time.Time {
	started := time.Now()
	members, err := client.ListMembers(ctx)
	if err != nil {
		log.WarnContext(ctx, "Could not load initial waitlist", "error", err)
		return time.Time{}
	}
	if err := synchronizer.Resync(ctx, members); err != nil {
		log.WarnContext(ctx, "Could not load initial waitlist", "error", err)
		return time.Time{}
	}
	return started
}

func newAuditStore(ctx context.Context, cfg config.Postgres, log *slog.Logger, checks map[string]httptransport.HealthCheck) (audit.Store, func(), error) {
	if cfg.DSN == "" {
		log.Info("no database configured, keeping audit events in memory")
		return auditmemory.NewInMemoryStore(), func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping audit database: %w", err)
	}

	store := auditpostgres.New(db)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	checks["postgres"] = db.PingContext
	return store, func() { _ = db.Close() }, nil
}

func newFeedConsumer(
	ctx context.Context,
	cfg config.Config,
	synchronizer *waitlist.Synchronizer,
	baseline time.Time,
	m *waitlistmetrics.Metrics,
	log *slog.Logger,
	checks map[string]httptransport.HealthCheck,
) (*consumer.Consumer, func(), error) {
	var deduper feed.Deduper = feed.NewMemoryDeduper(cfg.Redis.DedupeTTL)
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if redisClient != nil {
		deduper = feed.NewRedisDeduper(redisClient, cfg.Redis.DedupeTTL)
		checks["redis"] = redisClient.Health
	}
	closeRedis := func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}

	handler, err := feed.NewHandler(synchronizer,
		feed.WithLogger(log),
		feed.WithMetrics(m),
		feed.WithDeduper(deduper),
		feed.WithBaseline(baseline),
	)
	if err != nil {
		closeRedis()
		return nil, nil, err
	}

	c, err := consumer.New(consumer.Config{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topics:  []string{cfg.Kafka.Topic},
	}, handler, consumer.WithLogger(log))
	if err != nil {
		closeRedis()
		return nil, nil, err
	}
	if err := consumer.EnsureTopic(ctx, c.Client(), cfg.Kafka.Topic, cfg.Kafka.Partitions); err != nil {
		c.Close()
		closeRedis()
		return nil, nil, err
	}

	return c, func() {
		c.Close()
		closeRedis()
	}, nil
}
