package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"juicyid/internal/address"
	"juicyid/internal/events"
	"juicyid/internal/identity"
	identityhandler "juicyid/internal/identity/handler"
	identitymetrics "juicyid/internal/identity/metrics"
	jwttoken "juicyid/internal/jwt_token"
	"juicyid/internal/link"
	linkhandler "juicyid/internal/link/handler"
	linkmetrics "juicyid/internal/link/metrics"
	"juicyid/internal/mention"
	mentionhandler "juicyid/internal/mention/handler"
	"juicyid/internal/platform/config"
	"juicyid/internal/platform/httpserver"
	"juicyid/internal/platform/logger"
	"juicyid/internal/platform/metrics"
	platformredis "juicyid/internal/platform/redis"
	"juicyid/internal/resolver"
	"juicyid/internal/session"
	sessionstore "juicyid/internal/session/store"
	httptransport "juicyid/internal/transport/http"
	"juicyid/pkg/platform/tx"
)

// main wires dependencies and runs the server plus the outbox relay under
// one errgroup, so a failure in either tears the process down cleanly.
func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "juicyid: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New()

	var (
		identityStore identity.Store   = identity.NewInMemoryStore()
		linkStore     link.Store       = link.NewInMemoryStore()
		outboxStore   events.Store     = events.NewMemorySink()
		sessionStore  sessionstore.WalletSessionStore
		userDirectory session.UserDirectory = noDirectory{}
		runner        tx.Runner             = tx.NewPassthrough()
		health        = map[string]httptransport.HealthChecker{}
	)
	sessionStore = sessionstore.NewInMemoryStore()

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}

		identityStore = identity.NewPostgresStore(db)
		linkStore = link.NewPostgresStore(db)
		outboxStore = events.NewPostgresStore(db)
		userDirectory = sessionstore.NewPostgresUserDirectory(db)
		runner = tx.NewSQLRunner(db)
		health["postgres"] = dbProbe{db: db}
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessionStore = sessionstore.NewRedisStore(redisClient.Client)
		health["redis"] = redisProbe{client: redisClient}
	} else {
		log.Warn("REDIS_URL not set, wallet sessions held in memory")
	}

	publisher := events.NewPublisher(outboxStore)

	registry := identity.NewRegistry(identityStore, publisher, runner,
		identity.WithLogger(log),
		identity.WithMetrics(identitymetrics.New()),
	)
	manager := link.NewManager(linkStore, registry, runner,
		link.WithLogger(log),
		link.WithMetrics(linkmetrics.New()),
	)
	res := resolver.New(manager, registry)
	parser := mention.NewParser(registry.Format(), registry)

	tokens := jwttoken.NewService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	extractor := session.NewExtractor(
		tokens,
		sessionStore,
		userDirectory,
		func(userID string, index uint32) string {
			return address.DeriveCustodial([]byte(cfg.CustodialSeed), userID, index)
		},
		func(sessionID string) string {
			return address.DerivePseudo([]byte(cfg.AnonSessionKey), sessionID)
		},
		log,
	)

	httpMetrics := metrics.New()
	router := httptransport.NewRouter(httptransport.Deps{
		Identity: identityhandler.New(registry, res, extractor, log),
		Link:     linkhandler.New(manager, extractor, log),
		Mention:  mentionhandler.New(parser, extractor, log),
		Metrics:  httpMetrics,
		Logger:   log,
		Health:   health,
	})

	g, ctx := errgroup.WithContext(ctx)

	srv := httpserver.New(cfg.Addr, router)
	g.Go(func() error {
		log.Info("starting juicyid", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.Kafka.Brokers) > 0 && cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open relay pool: %w", err)
		}
		defer pool.Close()

		kafkaClient, err := events.NewKafkaClient(cfg.Kafka.Brokers)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer kafkaClient.Close()

		relay := events.NewRelay(pool, kafkaClient, cfg.Kafka.Topic, log)
		if err := relay.EnsureTopic(ctx); err != nil {
			return fmt.Errorf("ensure topic: %w", err)
		}
		g.Go(func() error {
			log.Info("starting identity event relay", "topic", cfg.Kafka.Topic)
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("outbox relay: %w", err)
			}
			return nil
		})
	} else {
		log.Warn("kafka relay disabled, identity events stay in the outbox")
	}

	return g.Wait()
}

type dbProbe struct {
	db *sql.DB
}

func (p dbProbe) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

type redisProbe struct {
	client *platformredis.Client
}

func (p redisProbe) Ping(ctx context.Context) error {
	return p.client.Health(ctx)
}

// noDirectory is the wallet-to-user join when no database is configured.
type noDirectory struct{}

func (noDirectory) FindUserIDByAddress(context.Context, string) (string, error) {
	return "", nil
}
