package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pepu-name-service/internal/api"
	"pepu-name-service/internal/feed"
	"pepu-name-service/internal/payment"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the registration HTTP API",
	Long: `Runs the HTTP API:

  GET  /api/check-domain?name=teck
  POST /api/verify-payment {"wallet":"0x..","name":"teck","txHash":"0x.."}
  GET  /api/availability?name=teck
  GET  /api/domains/:name
  GET  /api/owners/:wallet/domain
  GET  /api/stats
  GET  /api/ws
  GET  /health
  GET  /metrics

The chain id reported by the node is checked against chain.chain_id
before the listener starts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	f := serveCmd.Flags()
	f.String("listen", "", "HTTP listen address")
	f.String("store", "", "store driver (memory, postgres)")
	f.String("cache", "", "name cache backend (none, lru, redis)")
	f.String("redis-url", "", "Redis URL for the name cache")
	f.Bool("poll", false, "allow registration without a tx hash by polling for the payment")
	_ = v.BindPFlag("server.listen", f.Lookup("listen"))
	_ = v.BindPFlag("store.driver", f.Lookup("store"))
	_ = v.BindPFlag("cache.backend", f.Lookup("cache"))
	_ = v.BindPFlag("cache.redis_url", f.Lookup("redis-url"))
	_ = v.BindPFlag("payment.poll_enabled", f.Lookup("poll"))

	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	svc, err := buildServices(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.close()

	if err := svc.validator.CheckChain(ctx); err != nil {
		return err
	}
	if cfg.Payment.PollEnabled && cfg.Payment.Strategy == string(payment.StrategyNative) {
		logger.Warn("payment polling needs token transfer logs; tx hash will be required",
			zap.String("strategy", cfg.Payment.Strategy))
	}

	hub := feed.NewHub(logger, cfg.Server.AllowedOrigins)
	defer hub.Close()

	reg := newRegistrar(cfg, svc, hub, logger)
	stats, err := reg.Stats(ctx)
	if err != nil {
		return err
	}

	price, err := cfg.Payment.Price()
	if err != nil {
		return err
	}
	router := api.NewRouter(reg, hub, api.Config{
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Price:          price.String(),
		Asset:          cfg.Payment.AssetSymbol,
	}, logger)

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: writeTimeout(cfg),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening",
			zap.String("addr", cfg.Server.Listen),
			zap.String("rpc", svc.chain.Endpoint()),
			zap.String("store", cfg.Store.Driver),
			zap.Int64("registered", stats.Registered),
			zap.Bool("polling", reg.PollingEnabled()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing exit", zap.String("signal", sig.String()))
			os.Exit(1)
		case <-done:
		}
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", zap.Error(err))
	}
	hub.Close()
	reg.Wait()

	logger.Info("shutdown complete")
	return nil
}
