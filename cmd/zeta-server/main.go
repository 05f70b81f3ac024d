// Command zeta-server runs the ZETA ticketing HTTP API described in
// spec.md §4.6: ten signed JSON endpoints backed by Postgres, plus a
// Prometheus /metrics endpoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sage-x-project/zeta/internal/config"
	"github.com/sage-x-project/zeta/internal/cryptoutil"
	"github.com/sage-x-project/zeta/internal/health"
	"github.com/sage-x-project/zeta/internal/logger"
	"github.com/sage-x-project/zeta/internal/noncestore"
	noncemem "github.com/sage-x-project/zeta/internal/noncestore/memory"
	noncepg "github.com/sage-x-project/zeta/internal/noncestore/postgres"
	"github.com/sage-x-project/zeta/internal/server"
	"github.com/sage-x-project/zeta/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "zeta.yaml", "path to YAML config file")
	flag.Parse()

	cfg, err := config.LoadFromFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zeta-server: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewDefaultLogger()
	log.SetLevel(levelFromString(cfg.Logging.Level))

	if err := run(cfg, log); err != nil {
		log.Fatal("zeta-server exiting", logger.Error(err))
	}
}

func run(cfg *config.Config, log *logger.StructuredLogger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signer, err := loadOrCreateSigner(cfg.Crypto.PrivateKeyPath, cfg.Crypto.KeyBits)
	if err != nil {
		return fmt.Errorf("load signing key: %w", err)
	}

	store, err := postgres.NewStore(ctx, &postgres.Config{
		Host: cfg.Database.Host, Port: cfg.Database.Port,
		User: cfg.Database.User, Password: cfg.Database.Password,
		Database: cfg.Database.Database, SSLMode: cfg.Database.SSLMode,
		MinConns: cfg.Database.MinConns, MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer store.Close()

	nonces, err := buildNonceStore(cfg.NonceStore, store.Pool())
	if err != nil {
		return fmt.Errorf("build nonce store: %w", err)
	}
	defer nonces.Close()

	healthChecker := health.NewChecker(store.Pool(), nonces)
	srv := server.New(store.Events(), store.Tickets(), store.Permissions(), nonces, signer, log, healthChecker)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("zeta-server listening", logger.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownGrace)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}

// buildNonceStore selects the in-memory or shared-postgres replay-defense
// backend per cfg.Backend, matching spec.md §6's REDIS_URL-null-means-
// in-memory rule generalized to "backend: memory|postgres".
func buildNonceStore(cfg *config.NonceConfig, pool *pgxpool.Pool) (noncestore.Store, error) {
	switch cfg.Backend {
	case "postgres":
		return noncepg.New(pool), nil
	default:
		return noncemem.New(cfg.CleanupInterval), nil
	}
}

func levelFromString(s string) logger.Level {
	switch s {
	case "debug":
		return logger.DebugLevel
	case "warn":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}

func loadOrCreateSigner(path string, bits int) (*cryptoutil.Signer, error) {
	if data, err := os.ReadFile(path); err == nil {
		return cryptoutil.NewSignerFromPrivatePEM(data)
	}

	signer, err := cryptoutil.GenerateSigner(bits)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, signer.PrivatePEM(), 0o600); err != nil {
		return nil, fmt.Errorf("write signing key: %w", err)
	}
	return signer, nil
}
