package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/kinship-labs/parent-match-api/internal/adapters/badger"
	badgeridem "github.com/kinship-labs/parent-match-api/internal/adapters/badger/idempotency"
	"github.com/kinship-labs/parent-match-api/internal/adapters/httpapi"
	memaccountrepo "github.com/kinship-labs/parent-match-api/internal/adapters/memory/accountrepo"
	memeventrepo "github.com/kinship-labs/parent-match-api/internal/adapters/memory/eventrepo"
	memidem "github.com/kinship-labs/parent-match-api/internal/adapters/memory/idempotency"
	memmatchrepo "github.com/kinship-labs/parent-match-api/internal/adapters/memory/matchrepo"
	memmessagerepo "github.com/kinship-labs/parent-match-api/internal/adapters/memory/messagerepo"
	memprofilerepo "github.com/kinship-labs/parent-match-api/internal/adapters/memory/profilerepo"
	"github.com/kinship-labs/parent-match-api/internal/adapters/mongodb"
	mongoaccountrepo "github.com/kinship-labs/parent-match-api/internal/adapters/mongodb/accountrepo"
	mongoeventrepo "github.com/kinship-labs/parent-match-api/internal/adapters/mongodb/eventrepo"
	mongomatchrepo "github.com/kinship-labs/parent-match-api/internal/adapters/mongodb/matchrepo"
	mongomessagerepo "github.com/kinship-labs/parent-match-api/internal/adapters/mongodb/messagerepo"
	mongoprofilerepo "github.com/kinship-labs/parent-match-api/internal/adapters/mongodb/profilerepo"
	"github.com/kinship-labs/parent-match-api/internal/adapters/postgres"
	pgaccountrepo "github.com/kinship-labs/parent-match-api/internal/adapters/postgres/accountrepo"
	pgeventrepo "github.com/kinship-labs/parent-match-api/internal/adapters/postgres/eventrepo"
	pgidem "github.com/kinship-labs/parent-match-api/internal/adapters/postgres/idempotency"
	pgmatchrepo "github.com/kinship-labs/parent-match-api/internal/adapters/postgres/matchrepo"
	pgmessagerepo "github.com/kinship-labs/parent-match-api/internal/adapters/postgres/messagerepo"
	pgprofilerepo "github.com/kinship-labs/parent-match-api/internal/adapters/postgres/profilerepo"
	"github.com/kinship-labs/parent-match-api/internal/app/accounts"
	"github.com/kinship-labs/parent-match-api/internal/app/events"
	"github.com/kinship-labs/parent-match-api/internal/app/matching"
	"github.com/kinship-labs/parent-match-api/internal/app/messaging"
	"github.com/kinship-labs/parent-match-api/internal/app/profiles"
	"github.com/kinship-labs/parent-match-api/internal/platform/auth/jwtverifier"
	"github.com/kinship-labs/parent-match-api/internal/platform/auth/password"
	platformclock "github.com/kinship-labs/parent-match-api/internal/platform/clock"
	"github.com/kinship-labs/parent-match-api/internal/platform/config"
	"github.com/kinship-labs/parent-match-api/internal/platform/logger"
	"github.com/kinship-labs/parent-match-api/internal/platform/metrics"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/accountrepo"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/eventrepo"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/idempotency"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/matchrepo"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/messagerepo"
	"github.com/kinship-labs/parent-match-api/internal/ports/out/profilerepo"
)

const idempotencyPurgeInterval = time.Hour

type repos struct {
	profiles profilerepo.Repository
	matches  matchrepo.Repository
	messages messagerepo.Repository
	events   eventrepo.Repository
	accounts accountrepo.Repository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var authMW func(http.Handler) http.Handler
	switch cfg.AuthMode {
	case config.AuthModeDev:
		authMW = httpapi.NewDevAuthMiddleware(cfg.DevSubject)
		if cfg.JWT.Secret == "" {
			secret, err := randomSecret()
			if err != nil {
				return err
			}
			cfg.JWT.Secret = secret
			log.Warn("JWT_SECRET unset; using an ephemeral signing secret")
		}
		log.Warn("dev auth enabled; requests are authenticated by X-Debug-Subject", "defaultSubject", cfg.DevSubject)
	case config.AuthModeJWT:
		authMW = httpapi.NewAuthMiddleware(jwtverifier.New(cfg.JWT))
	}

	var (
		r       repos
		pool    *pgxpool.Pool
		mclient *mongo.Client
	)
	switch cfg.StorageBackend {
	case config.StorageMemory:
		r = repos{
			profiles: memprofilerepo.NewRepo(),
			matches:  memmatchrepo.NewRepo(),
			messages: memmessagerepo.NewRepo(),
			events:   memeventrepo.NewRepo(),
			accounts: memaccountrepo.NewRepo(),
		}
	case config.StoragePostgres:
		p, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		pool = p
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
		r = repos{
			profiles: pgprofilerepo.NewRepo(pool),
			matches:  pgmatchrepo.NewRepo(pool),
			messages: pgmessagerepo.NewRepo(pool),
			events:   pgeventrepo.NewRepo(pool),
			accounts: pgaccountrepo.NewRepo(pool),
		}
	case config.StorageMongo:
		c, err := mongodb.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
		mclient = c
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mclient.Disconnect(dctx)
		}()
		db := mclient.Database(cfg.MongoDatabase)
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			return fmt.Errorf("mongo indexes: %w", err)
		}
		r = repos{
			profiles: mongoprofilerepo.NewRepo(db),
			matches:  mongomatchrepo.NewRepo(db),
			messages: mongomessagerepo.NewRepo(db),
			events:   mongoeventrepo.NewRepo(db),
			accounts: mongoaccountrepo.NewRepo(db),
		}
	}
	log.Info("storage ready", "backend", cfg.StorageBackend)

	clk := platformclock.NewSystemClock()

	var idem idempotency.Store
	switch {
	case cfg.IdempotencyBackend == config.IdempotencyBadger:
		bcfg := badger.DefaultConfig(cfg.BadgerPath)
		bcfg.Logger = log
		bdb, err := badger.Open(bcfg)
		if err != nil {
			return fmt.Errorf("badger: %w", err)
		}
		defer bdb.Close()
		idem = badgeridem.NewStore(bdb, cfg.IdempotencyTTL)
	case cfg.IdempotencyBackend == config.IdempotencyStorage && pool != nil:
		pgStore := pgidem.NewStore(pool)
		idem = pgStore
		go purgeIdempotency(ctx, log, pgStore, clk, cfg.IdempotencyTTL)
	default:
		if cfg.IdempotencyBackend == config.IdempotencyStorage {
			log.Warn("idempotency storage backend has no durable store here; using memory", "storage", cfg.StorageBackend)
		}
		idem = memidem.NewStore()
	}

	svcs := httpapi.Services{
		Accounts:  accounts.NewService(r.accounts, password.NewHasher(cfg.BcryptCost), jwtverifier.NewIssuer(cfg.JWT, nil), clk),
		Profiles:  profiles.NewService(r.profiles, r.accounts, clk),
		Matching:  matching.NewService(r.matches, r.profiles, clk).WithTransitionObserver(metrics.ObserveMatchTransition),
		Messaging: messaging.NewService(r.messages, r.matches, clk),
		Events:    events.NewService(r.events, r.profiles, clk),
	}
	srv := httpapi.NewServer(svcs, idem, clk, log)
	handler := httpapi.NewRouter(srv, httpapi.RouterOptions{
		AuthMiddleware:     authMW,
		Logger:             log,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MetricsHandler:     metrics.Handler(),
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", httpServer.Addr, "authMode", cfg.AuthMode)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// purgeIdempotency drops postgres idempotency rows older than ttl until ctx ends.
func purgeIdempotency(ctx context.Context, log *slog.Logger, store *pgidem.Store, clk platformclock.SystemClock, ttl time.Duration) {
	t := time.NewTicker(idempotencyPurgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := store.DeleteOlderThan(ctx, clk.Now().Add(-ttl))
			if err != nil {
				log.Warn("idempotency purge failed", "err", err)
				continue
			}
			if n > 0 {
				log.Debug("idempotency purge", "deleted", n)
			}
		}
	}
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate jwt secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
