package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	account "github.com/shopmarcas/smallauctions/internal/accountService"
	auction "github.com/shopmarcas/smallauctions/internal/auctionService"
	"github.com/shopmarcas/smallauctions/internal/auth"
	"github.com/shopmarcas/smallauctions/internal/config"
	"github.com/shopmarcas/smallauctions/internal/events"
	"github.com/shopmarcas/smallauctions/internal/payments"
	"github.com/shopmarcas/smallauctions/internal/repository"
	"github.com/shopmarcas/smallauctions/internal/scheduler"
	"github.com/shopmarcas/smallauctions/internal/server"
	"github.com/shopmarcas/smallauctions/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := utils.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log settings: %v\n", err)
		os.Exit(1)
	}
	utils.Info("Configuration loaded", map[string]any{"config": cfg.GetConfigString()})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Database)
	if err != nil {
		utils.Fatal("Failed to open store", map[string]any{"driver": cfg.Database.Driver, "error": err.Error()})
	}
	defer closeStore()

	publisher, closePublisher := newPublisher(ctx, cfg.Redis)
	defer closePublisher()

	auctionSvc := auction.NewAuctionService(store, newProvider(cfg.Payments), publisher)
	if err := auctionSvc.SeedCategories(ctx, cfg.Catalog.Categories); err != nil {
		utils.Fatal("Failed to seed categories", map[string]any{"error": err.Error()})
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, nil)
	accountSvc := account.NewAccountService(store, tokens, nil)

	sweeper := scheduler.NewSweeper(auctionSvc, cfg.Scheduler.SweepSpec, nil)
	if err := sweeper.Start(ctx); err != nil {
		utils.Fatal("Failed to start auction sweeper", map[string]any{"error": err.Error()})
	}
	defer sweeper.Stop()

	router := server.SetupRouter(server.Dependencies{
		Auctions:  auctionSvc,
		Accounts:  accountSvc,
		Tokens:    tokens,
		Clock:     time.Now,
		PublicURL: cfg.Server.PublicURL,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.Info("Starting auction server", map[string]any{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Error("Server stopped unexpectedly", map[string]any{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	utils.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Error("Server forced to shutdown", map[string]any{"error": err.Error()})
	}
	utils.Info("Server exited", nil)
}

// openStore returns the configured storage backend and its cleanup
func openStore(ctx context.Context, cfg config.DatabaseConfig) (repository.Store, func(), error) {
	if cfg.Driver != config.DriverPostgres {
		return repository.NewMemoryRepo(), func() {}, nil
	}

	db, err := repository.OpenPostgres(ctx, repository.PoolConfig{
		DSN:             cfg.DSN,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := repository.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return repository.NewPostgresRepo(db), func() { _ = db.Close() }, nil
}

func newProvider(cfg config.PaymentsConfig) payments.Provider {
	if cfg.Provider == config.ProviderStripe {
		return payments.NewStripeProvider(cfg.StripeSecretKey)
	}
	utils.Warn("Using sandbox payment provider; checkouts are not charged", nil)
	return payments.NewSandboxProvider()
}

// newPublisher connects to Redis when configured, otherwise events are only logged
func newPublisher(ctx context.Context, cfg config.RedisConfig) (events.Publisher, func()) {
	if cfg.Address == "" {
		return events.LogPublisher{}, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		utils.Warn("Redis unreachable, auction events will only be logged", map[string]any{
			"address": cfg.Address,
			"error":   err.Error(),
		})
		_ = client.Close()
		return events.LogPublisher{}, func() {}
	}
	return events.NewRedisPublisher(client, cfg.Channel), func() { _ = client.Close() }
}
