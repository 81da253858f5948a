// Command orderbook-wtf runs the ingestor and query server, or prints a
// point-in-time status snapshot: one cobra root with thin subcommands that
// call straight into the library packages.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/fberger-xyz/orderbook-wtf/internal/catalogue"
	"github.com/fberger-xyz/orderbook-wtf/internal/gaspricer"
	"github.com/fberger-xyz/orderbook-wtf/internal/orderbook"
	"github.com/fberger-xyz/orderbook-wtf/internal/query"
	"github.com/fberger-xyz/orderbook-wtf/internal/types"
	"github.com/fberger-xyz/orderbook-wtf/pkg/config"
	"github.com/fberger-xyz/orderbook-wtf/pkg/utils"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{Use: "orderbook-wtf"}
	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *log.Logger {
	logger := log.New()
	if lvl, err := log.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(lvl)
	}
	if cfg.Logging.File != "" {
		if f, err := os.OpenFile(cfg.Logging.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			logger.SetOutput(f)
		} else {
			logger.WithError(err).Warn("failed to open log file, falling back to stderr")
		}
	}
	return logger
}

func loadConfig() (*config.Config, error) {
	env := utils.EnvOrDefault("ORDERBOOK_ENV", "")
	return config.Load(env)
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the stream ingestor and query server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return utils.Wrap(err, "load config")
			}
			logger := newLogger(cfg)

			numeraire, err := types.AddressFromHex(cfg.Network.NumeraireAddr)
			if err != nil {
				return utils.Wrap(err, "parse numeraire address")
			}

			store := catalogue.New(logger)
			ingestor := catalogue.NewIngestor(
				store,
				catalogue.NewWSProtocolStream(cfg.Indexer.Endpoint, cfg.Indexer.AuthKey),
				catalogue.NewWSBalanceStream(cfg.Indexer.Endpoint, cfg.Indexer.AuthKey),
				logger,
			)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			go func() {
				if err := ingestor.RunProtocolStream(ctx); err != nil && ctx.Err() == nil {
					logger.WithError(err).Error("protocol ingest stopped")
				}
			}()
			go func() {
				if err := ingestor.RunBalanceStream(ctx); err != nil && ctx.Err() == nil {
					logger.WithError(err).Error("balance ingest stopped")
				}
			}()

			pricer := gaspricer.New(store, numeraire, nil, nil, logger)
			builder := orderbook.New(store, pricer, orderbook.Config{
				GridPoints:   cfg.Orderbook.GridPoints,
				GridLowMult:  cfg.Orderbook.GridLowMult,
				GridHighMult: cfg.Orderbook.GridHighMult,
			}, logger)

			r := chi.NewRouter()
			r.Use(middleware.RequestID)
			r.Use(middleware.Recoverer)
			query.Routes(r, store, builder)

			if addr == "" {
				addr = utils.EnvOrDefault("SERVER_ADDR", "127.0.0.1:8090")
			}
			logger.WithField("addr", addr).Info("query server listening")

			srv := &http.Server{Addr: addr, Handler: r}
			go func() {
				<-ctx.Done()
				_ = srv.Close()
			}()
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return utils.Wrap(err, "serve")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address")
	return cmd
}

func statusCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "fetch the /status endpoint of a running server and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = utils.EnvOrDefault("SERVER_ADDR", "127.0.0.1:8090")
			}
			resp, err := http.Get(fmt.Sprintf("http://%s/status", addr))
			if err != nil {
				return utils.Wrap(err, "fetch status")
			}
			defer resp.Body.Close()
			fmt.Printf("GET /status -> %s\n", resp.Status)
			if _, err := os.Stdout.ReadFrom(resp.Body); err != nil {
				return utils.Wrap(err, "read status")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "server HTTP address")
	return cmd
}
