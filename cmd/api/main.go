package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/weatherhub/internal/auth"
	"github.com/geocoder89/weatherhub/internal/config"
	"github.com/geocoder89/weatherhub/internal/db"
	"github.com/geocoder89/weatherhub/internal/gateway"
	httpx "github.com/geocoder89/weatherhub/internal/http"
	"github.com/geocoder89/weatherhub/internal/http/handlers"
	"github.com/geocoder89/weatherhub/internal/observability"
	"github.com/geocoder89/weatherhub/internal/redisclient"
	"github.com/geocoder89/weatherhub/internal/repo/jsonfile"
	"github.com/geocoder89/weatherhub/internal/repo/memory"
	"github.com/geocoder89/weatherhub/internal/repo/postgres"
	"github.com/geocoder89/weatherhub/internal/security"
	"github.com/geocoder89/weatherhub/internal/weather"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type userStore interface {
	gateway.UserStore
	Ping(ctx context.Context) error
}

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := observability.InitTracer(ctx, observability.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracer init failed", "err", err)
		os.Exit(1)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("credential store unavailable", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	checks := map[string]handlers.Check{
		"store": store.Ping,
	}

	var denylist auth.Denylist
	if cfg.RedisAddr != "" {
		rdb := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer func() { _ = rdb.Close() }()

		denylist = auth.NewRedisDenylist(rdb)
		checks["denylist"] = rdb.Ping
		log.Info("token denylist on redis", "addr", cfg.RedisAddr)
	} else {
		mem := auth.NewMemoryDenylist()
		go sweepDenylist(ctx, mem, time.Minute)
		denylist = mem
	}

	gw := gateway.New(
		store,
		auth.NewManager(cfg.JWTSecret, auth.DefaultTTL),
		denylist,
		gateway.WithHasher(security.NewHasher(cfg.BcryptCost)),
		gateway.WithObserver(prom),
		gateway.WithLogger(log),
	)

	guard := weather.NewGuard(
		weather.NewClient(weather.ClientConfig{
			BaseURL: cfg.WeatherBaseURL,
			APIKey:  cfg.WeatherAPIKey,
			Timeout: cfg.WeatherTimeout(),
		}),
		weather.GuardConfig{Timeout: cfg.WeatherTimeout()},
		prom,
	)

	router := httpx.NewRouter(httpx.Deps{
		Env:            cfg.Env,
		Log:            log,
		Gateway:        gw,
		Weather:        weather.NewService(guard),
		Prom:           prom,
		Gatherer:       reg,
		Checks:         checks,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", "err", err)
	}

	log.Info("shutdown complete")
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (userStore, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		log.Warn("using in-memory credential store; accounts are lost on restart")
		return memory.NewUsersRepo(), func() {}, nil

	case config.StorePostgres:
		pool, err := db.NewPool(cfg.DBURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.NewUsersRepo(pool), pool.Close, nil

	default:
		repo, err := jsonfile.Open(cfg.UsersFile)
		if err != nil {
			return nil, nil, err
		}
		log.Info("credential store loaded", "path", cfg.UsersFile, "users", repo.Count())
		return repo, func() {}, nil
	}
}

func sweepDenylist(ctx context.Context, d *auth.MemoryDenylist, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Sweep()
		}
	}
}
