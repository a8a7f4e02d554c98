// Package main runs the token transfer web service: holdings discovery,
// enrichment and SPL token transfers for a single wallet.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"solana-token-transfer/internal/config"
	"solana-token-transfer/internal/discovery"
	"solana-token-transfer/internal/enrichment"
	"solana-token-transfer/internal/notify"
	"solana-token-transfer/internal/observability"
	"solana-token-transfer/internal/session"
	"solana-token-transfer/internal/solana"
	"solana-token-transfer/internal/storage"
	"solana-token-transfer/internal/storage/memory"
	"solana-token-transfer/internal/storage/migrations"
	pgstore "solana-token-transfer/internal/storage/postgres"
	redisstore "solana-token-transfer/internal/storage/redis"
	"solana-token-transfer/internal/transfer"
	"solana-token-transfer/internal/wallet"
	"solana-token-transfer/internal/web"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configFile := flag.String("config", "", "Path to a YAML/JSON/TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	log, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("server error")
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	rpc := solana.NewHTTPClient(cfg.Solana.RPCEndpoint, solana.WithMaxRetries(cfg.Solana.RPCMaxRetries))

	st, closeStores, err := createStores(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer closeStores()

	signer, err := loadSigner(cfg)
	if err != nil {
		return err
	}

	publisher := createPublisher(cfg, log)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.WithError(err).Warn("close publisher")
		}
	}()

	poller := solana.NewPollConfirmer(rpc, cfg.Solana.ConfirmPollInterval, cfg.Solana.ConfirmTimeout)
	opts := []transfer.Option{
		transfer.WithStore(st.transfers),
		transfer.WithPublisher(publisher),
		transfer.WithLogger(log),
		transfer.WithConfirmer(poller),
	}
	if signer != nil {
		opts = append(opts, transfer.WithSigner(signer))
	}
	if cfg.Solana.WSEndpoint != "" {
		ws, err := solana.NewWSClient(ctx, cfg.Solana.WSEndpoint, nil)
		if err != nil {
			return fmt.Errorf("connect websocket: %w", err)
		}
		defer ws.Close()
		// Polling takes over while the websocket is reconnecting.
		opts = append(opts, transfer.WithConfirmer(solana.NewFallbackConfirmer(ws, poller, log)))
		log.WithField("endpoint", cfg.Solana.WSEndpoint).Info("confirming transactions over websocket")
	}
	svc := transfer.NewService(rpc, opts...)

	disc := discovery.NewDiscoverer(rpc, discovery.WithLogger(log))
	enr := enrichment.NewEnricher(rpc,
		enrichment.NewHTTPImageFetcher(cfg.Enrichment.MetadataTimeout),
		enrichment.WithCache(st.metadata),
		enrichment.WithConcurrency(cfg.Enrichment.Concurrency),
		enrichment.WithLogger(log),
	)

	sess := session.New(disc, enr, svc, log)
	switch {
	case signer != nil:
		sess.SetIdentity(signer.PublicKey().String())
	case cfg.Solana.Owner != "":
		owner, err := wallet.ParseIdentity(cfg.Solana.Owner)
		if err != nil {
			return fmt.Errorf("solana.owner: %w", err)
		}
		sess.SetIdentity(owner.String())
	}

	handler := web.NewHandler(sess, st.transfers, web.Config{
		CORSOrigins:         cfg.HTTP.CORSOrigins,
		ImageDomains:        cfg.HTTP.ImageDomains,
		RPCEndpoint:         cfg.Solana.RPCEndpoint,
		CanSign:             signer != nil,
		AllowIdentityChange: signer == nil,
	}, log)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.InitRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{
			"addr":     cfg.HTTP.Addr,
			"rpc":      cfg.Solana.RPCEndpoint,
			"identity": sess.Identity(),
			"can_sign": signer != nil,
		}).Info("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info("received shutdown signal, draining connections")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func loadSigner(cfg *config.Config) (wallet.Signer, error) {
	if cfg.Solana.KeypairPath == "" {
		return nil, nil
	}
	signer, err := wallet.LoadKeypairFile(cfg.Solana.KeypairPath)
	if err != nil {
		return nil, fmt.Errorf("load keypair: %w", err)
	}
	return signer, nil
}

func createPublisher(cfg *config.Config, log logrus.FieldLogger) notify.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		return notify.NewLogPublisher(log)
	}
	log.WithFields(logrus.Fields{
		"brokers": cfg.Kafka.Brokers,
		"topic":   cfg.Kafka.Topic,
	}).Info("publishing transfer events to kafka")
	return notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
}

// stores holds the configured storage backends.
type stores struct {
	metadata  storage.TokenMetadataStore
	transfers storage.TransferStore
}

// createStores creates the transfer history store and the metadata cache.
func createStores(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (*stores, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var pool *pgstore.Pool
	if cfg.UsesPostgres() {
		p, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN,
			pgstore.WithMaxConns(cfg.Storage.PostgresMaxConns),
			pgstore.WithMaxConnIdleTime(cfg.Storage.PostgresMaxConnIdle),
			pgstore.WithHealthCheckPeriod(cfg.Storage.PostgresHealthCheck),
		)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, p.Close)
		if err := migrations.RunPostgresMigrations(ctx, p); err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("postgres migrations: %w", err)
		}
		pool = p
	}

	st := &stores{}

	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		st.transfers = pgstore.NewTransferStore(pool)
	default:
		st.transfers = memory.NewTransferStore()
	}

	switch cfg.Storage.MetadataCache {
	case config.BackendPostgres:
		st.metadata = pgstore.NewMetadataStore(pool, cfg.Storage.CacheTTL)
	case config.BackendRedis:
		client, err := redisstore.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("connect redis: %w", err)
		}
		closers = append(closers, func() { client.Close() })
		st.metadata = redisstore.NewMetadataStore(client, cfg.Storage.CacheTTL)
	default:
		st.metadata = memory.NewMetadataStore(memory.WithTTL(cfg.Storage.CacheTTL))
	}

	log.WithFields(logrus.Fields{
		"transfers":      cfg.Storage.Backend,
		"metadata_cache": cfg.Storage.MetadataCache,
	}).Info("storage initialized")

	return st, cleanup, nil
}
