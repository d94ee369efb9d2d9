package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/waapdemo/sui-demo-backend/internal/api"
	"github.com/waapdemo/sui-demo-backend/internal/config"
	"github.com/waapdemo/sui-demo-backend/internal/jobs"
	"github.com/waapdemo/sui-demo-backend/internal/log"
	"github.com/waapdemo/sui-demo-backend/internal/metrics"
	"github.com/waapdemo/sui-demo-backend/internal/onchain"
	"github.com/waapdemo/sui-demo-backend/internal/session"
	"github.com/waapdemo/sui-demo-backend/internal/store"
	"github.com/waapdemo/sui-demo-backend/internal/waap"
	"github.com/waapdemo/sui-demo-backend/internal/wallet"
	"github.com/waapdemo/sui-demo-backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := log.NewSugar(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Infow("Starting WaaP Sui demo API server",
		"env", cfg.Env,
		"addr", cfg.HTTPAddr,
		"network", cfg.Sui.DefaultNetwork,
	)

	metricsObj, metricsHandler, err := metrics.Setup("waap-sui-demo")
	if err != nil {
		logger.Fatalw("Failed to setup metrics", "error", err)
	}

	cache, err := store.NewCache(cfg.KVConfig(), logger, metricsObj)
	if err != nil {
		logger.Fatalw("Failed to setup cache", "error", err)
	}
	defer cache.Close()
	logger.Infow("Cache ready", "backend", cfg.Cache.Backend, "inMemory", cache.IsInMemoryMode())

	endpoints := cfg.Networks()
	chainNetworks := make([]onchain.Network, 0, len(endpoints))
	sessionNetworks := make([]session.Network, 0, len(endpoints))
	for _, e := range endpoints {
		chainNetworks = append(chainNetworks, onchain.Network{Name: e.Name, RPCURL: e.RPCURL, FaucetURL: e.FaucetURL})
		sessionNetworks = append(sessionNetworks, session.Network{Name: e.Name, RPCURL: e.RPCURL})
	}

	pool, err := onchain.NewPool(chainNetworks, cache, logger)
	if err != nil {
		logger.Fatalw("Failed to setup Sui clients", "error", err)
	}

	registry := wallet.NewRegistry()
	manager, err := session.NewManager(session.Config{
		Networks:       sessionNetworks,
		DefaultNetwork: cfg.Sui.DefaultNetwork,
		AutoConnect:    cfg.Wallet.AutoConnect,
	}, registry, cache.KV(), cache, metricsObj, logger)
	if err != nil {
		logger.Fatalw("Failed to setup session", "error", err)
	}
	defer manager.Close()
	manager.WatchRegistry()

	opts, err := walletOptions(cfg)
	if err != nil {
		logger.Fatalw("Invalid wallet key", "error", err)
	}

	// Registering the wallet triggers the silent reconnect through WatchRegistry.
	handle := waap.NewHandle(registry, pool, logger)
	defer handle.Close()
	if _, err := handle.Init(opts); err != nil {
		logger.Fatalw("Failed to initialize WaaP wallet", "error", err)
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := manager.AutoConnect(startupCtx); err != nil {
		logger.Warnw("Auto-connect failed", "error", err)
	}
	cancel()

	snapshot := func(ctx context.Context) interface{} { return manager.Status(ctx) }
	wsHub := ws.NewHub(cache, snapshot, cfg.Security.CORSAllowedOrigins, logger, metricsObj)
	sseHandler := ws.NewSSEHandler(cache, snapshot, logger, metricsObj)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go wsHub.Run(hubCtx)

	if cfg.Sui.BalancePollInterval > 0 {
		balancePublisher := jobs.NewBalancePublisher(manager, pool, cache, logger, jobs.BalancePublisherConfig{
			Interval: cfg.Sui.BalancePollInterval,
		})
		go func() {
			if err := balancePublisher.Start(hubCtx); err != nil && err != context.Canceled {
				logger.Errorw("Balance publisher error", "error", err)
			}
		}()
	}

	handler := api.NewHandler(manager, pool, handle, cache, wsHub.HandleWebSocket, sseHandler.HandleSSE, logger, metricsObj)
	middleware := api.NewMiddleware(logger, metricsObj)
	router := handler.Routes(middleware, api.RouteOptions{
		CORSOrigins:    cfg.Security.CORSAllowedOrigins,
		RateLimitRPM:   cfg.Security.RateLimitRPM,
		RequestTimeout: cfg.Security.RequestTimeout,
		MetricsHandler: metricsHandler,
	})
	logger.Infow("CORS configured", "allowed_origins", cfg.Security.CORSAllowedOrigins)

	// WriteTimeout stays unset so SSE and WebSocket streams are not cut off;
	// regular routes are bounded by the router's timeout middleware.
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Infow("API server starting", "addr", server.Addr)
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)

	for {
		select {
		case err := <-serverErrors:
			logger.Fatalw("Server startup failed", "error", err)
		case <-reload:
			reloadWallet(handle, logger)
		case sig := <-shutdown:
			logger.Infow("Shutdown signal received", "signal", sig.String())

			hubCancel()
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := server.Shutdown(ctx); err != nil {
				logger.Errorw("Graceful shutdown failed", "error", err)
				server.Close()
			}

			logger.Infow("Server stopped")
			return
		}
	}
}

func walletOptions(cfg *config.Config) (waap.Options, error) {
	keypair, err := cfg.Keypair()
	if err != nil {
		return waap.Options{}, err
	}
	opts := waap.DefaultOptions()
	opts.UseStaging = cfg.Wallet.UseStaging
	opts.AllowedSocials = cfg.Wallet.Socials
	opts.AuthenticationMethods = cfg.Wallet.AuthMethods
	opts.DarkMode = cfg.Wallet.DarkMode
	opts.ReferralCode = cfg.Wallet.ReferralCode
	opts.Keypair = keypair
	opts.DefaultChain = wallet.ChainForNetwork(cfg.Sui.DefaultNetwork)
	opts.RememberLogin = cfg.Wallet.RememberLogin
	opts.Email = cfg.Wallet.Email
	opts.AutoConsentEmail = cfg.Wallet.EmailConsent
	return opts, nil
}

// reloadWallet rebuilds the WaaP instance from a fresh config read. The
// session reconnects silently when the replacement registers.
func reloadWallet(handle *waap.Handle, logger *zap.SugaredLogger) {
	logger.Infow("Reloading WaaP wallet configuration")
	cfg, err := config.Load()
	if err != nil {
		logger.Errorw("Config reload failed", "error", err)
		return
	}
	opts, err := walletOptions(cfg)
	if err != nil {
		logger.Errorw("Invalid wallet key on reload", "error", err)
		return
	}
	if _, err := handle.Reload(opts); err != nil {
		logger.Errorw("WaaP wallet reload failed", "error", err)
		return
	}
	logger.Infow("WaaP wallet reloaded", "generation", handle.Generation())
}
