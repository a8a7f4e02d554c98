// Package cmd implements the tokens CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"solana-token-transfer/internal/config"
	"solana-token-transfer/internal/discovery"
	"solana-token-transfer/internal/enrichment"
	"solana-token-transfer/internal/observability"
	"solana-token-transfer/internal/solana"
	"solana-token-transfer/internal/storage/memory"
)

var (
	configFile string
	v          = viper.New()
)

var rootCmd = &cobra.Command{
	Use:           "tokens",
	Short:         "List and send SPL tokens held by a Solana wallet",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file")
	flags.String("rpc", "", "Solana RPC endpoint")
	flags.String("keypair", "", "path to a solana-keygen keypair file")
	flags.String("log-level", "", "log level")

	_ = v.BindPFlag("solana.rpc_endpoint", flags.Lookup("rpc"))
	_ = v.BindPFlag("solana.keypair_path", flags.Lookup("keypair"))
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
}

// env is what every command needs.
type env struct {
	cfg *config.Config
	log *logrus.Logger
	rpc *solana.HTTPClient
}

func loadEnv() (*env, error) {
	cfg, err := config.LoadWith(v, configFile)
	if err != nil {
		return nil, err
	}
	log, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg: cfg,
		log: log,
		rpc: solana.NewHTTPClient(cfg.Solana.RPCEndpoint, solana.WithMaxRetries(cfg.Solana.RPCMaxRetries)),
	}, nil
}

func (e *env) discoverer() *discovery.Discoverer {
	return discovery.NewDiscoverer(e.rpc, discovery.WithLogger(e.log))
}

func (e *env) enricher() *enrichment.Enricher {
	return enrichment.NewEnricher(e.rpc,
		enrichment.NewHTTPImageFetcher(e.cfg.Enrichment.MetadataTimeout),
		enrichment.WithCache(memory.NewMetadataStore(memory.WithTTL(e.cfg.Storage.CacheTTL))),
		enrichment.WithConcurrency(e.cfg.Enrichment.Concurrency),
		enrichment.WithLogger(e.log),
	)
}
