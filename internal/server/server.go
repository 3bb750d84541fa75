// Package server wires the storefront together: configuration, the document
// store and its live mirrors, the cache, background workers, and the HTTP
// surface, then runs until signalled.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/shashiranjanraj/storefront/app/controllers"
	"github.com/shashiranjanraj/storefront/app/routes"
	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/internal/auth"
	"github.com/shashiranjanraj/storefront/internal/cart"
	"github.com/shashiranjanraj/storefront/internal/catalog"
	"github.com/shashiranjanraj/storefront/internal/order"
	"github.com/shashiranjanraj/storefront/internal/realtime"
	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/middleware"
	"github.com/shashiranjanraj/storefront/pkg/queue"
	"github.com/shashiranjanraj/storefront/pkg/reqid"
	"github.com/shashiranjanraj/storefront/pkg/router"
	"github.com/shashiranjanraj/storefront/pkg/schedule"
	"github.com/shashiranjanraj/storefront/pkg/store"
	"github.com/shashiranjanraj/storefront/pkg/workerpool"
)

const (
	cartTTL         = 2 * time.Hour
	queueWorkers    = 4
	fanoutWorkers   = 32
	shutdownTimeout = 15 * time.Second
)

// Start boots the storefront and blocks until SIGINT/SIGTERM.
func Start() error {
	if err := config.Load(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close(context.Background())

	// Redis is optional in dev: revocation and queueing degrade to
	// in-process state when it is absent.
	if err := cache.Connect(); err != nil {
		logger.Warn("redis unavailable, using in-process fallbacks", "error", err)
	}

	// Ship logs to the store's log collection in production.
	if config.AppEnv() == "production" && config.StoreDriver() == "mongo" {
		if mh, err := logger.NewMongoHandler(config.MongoURI(), config.MongoDB(), "logs"); err == nil {
			logger.L = slog.New(logger.NewMultiHandler(logger.L.Handler(), mh))
			slog.SetDefault(logger.L)
			defer mh.Close()
		} else {
			logger.Warn("mongo log handler unavailable", "error", err)
		}
	}

	// Background job plumbing.
	if cache.RDB != nil {
		queue.SetDriver(queue.NewRedisDriver(cache.RDB))
	} else {
		queue.SetDriver(queue.NewMemoryDriver())
	}
	queue.UseStore(st.Collection("failed_jobs"))
	queue.Register("*auth.PasswordResetJob", func() queue.Job { return &auth.PasswordResetJob{} })
	queue.StartWorkers(ctx, queueWorkers)

	// Domain services.
	pool := workerpool.New(fanoutWorkers)
	defer pool.Shutdown()

	authSvc := auth.NewService(st)
	carts := cart.NewManager(cartTTL)
	catalogSvc := catalog.New(st, pool)
	orderCtrl := order.NewController(st, pool)

	supervise(ctx, "products", catalogSvc.Products)
	supervise(ctx, "categories", catalogSvc.Categories)
	supervise(ctx, "orders", orderCtrl.Feed)

	registerListeners()

	schedule.Every(15).Minutes().Name("cart.sweep").Run(func() {
		if n := carts.Sweep(); n > 0 {
			logger.Info("swept idle carts", "count", n)
		}
	})
	schedule.Start(ctx)

	// HTTP surface.
	session := func(r *http.Request) auth.Session {
		token, ok := middleware.TokenFromCtx(r)
		if !ok {
			return auth.Anonymous
		}
		return authSvc.CurrentSession(r.Context(), token)
	}

	ctrls := routes.Controllers{
		Auth:    controllers.NewAuthController(authSvc, carts),
		Catalog: controllers.NewCatalogController(catalogSvc, session),
		Cart:    controllers.NewCartController(carts, catalogSvc, session),
		Order:   controllers.NewOrderController(orderCtrl, carts, session),
	}
	go ctrls.Order.Run(ctx)

	r := router.New()
	r.Use(metrics.Middleware())
	r.Use(reqid.Middleware())
	r.Use(middleware.Recovery)
	r.Use(middleware.Logger)
	r.Use(middleware.CORS(middleware.DefaultCORSOptions()))
	r.Use(middleware.RateLimit(300, time.Minute))
	r.Use(middleware.Session(func(ctx context.Context, token string) (middleware.Principal, bool) {
		sess := authSvc.CurrentSession(ctx, token)
		if !sess.Authenticated {
			return middleware.Principal{}, false
		}
		return middleware.Principal{ID: sess.PrincipalID, Role: sess.Role.String()}, true
	}))

	routes.RegisterAPI(r, ctrls)
	r.Get("/metrics", "metrics", metrics.Handler())
	r.Get("/healthz", "healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              ":" + config.AppPort(),
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("storefront listening", "addr", srv.Addr, "env", config.AppEnv())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStore selects the store driver from configuration.
func openStore(ctx context.Context) (store.Store, error) {
	switch config.StoreDriver() {
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return store.ConnectMongo(connectCtx, config.MongoURI(), config.MongoDB())
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("server: unknown store driver %q", config.StoreDriver())
	}
}

// supervise runs a syncer, restarting it with backoff after feed failures.
// Each restart re-lists the collection, so subscribers that reconnect get a
// fresh authoritative snapshot.
func supervise[T any](ctx context.Context, name string, s *realtime.Syncer[T]) {
	go func() {
		backoff := time.Second
		for {
			err := s.Run(ctx)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				logger.Error("collection mirror failed, restarting", "collection", name, "backoff", backoff.String(), "error", err)
			}
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
		}
	}()
}
