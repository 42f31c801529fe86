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

	"github.com/google/uuid"
	"github.com/ikkim/storefront-sync/config"
	"github.com/ikkim/storefront-sync/internal/app/controller"
	"github.com/ikkim/storefront-sync/internal/app/service"
	"github.com/ikkim/storefront-sync/internal/auth"
	"github.com/ikkim/storefront-sync/internal/crosstab"
	"github.com/ikkim/storefront-sync/internal/db"
	"github.com/ikkim/storefront-sync/internal/middleware"
	"github.com/ikkim/storefront-sync/internal/router"
	"github.com/ikkim/storefront-sync/internal/scheduler"
	"github.com/ikkim/storefront-sync/internal/storage"
	ws "github.com/ikkim/storefront-sync/internal/websocket"
	"github.com/ikkim/storefront-sync/pkg/logger"
	pkgredis "github.com/ikkim/storefront-sync/pkg/redis"
	"github.com/ikkim/storefront-sync/pkg/storefront"
)

// backends is the persistent storage and the signal transport shared by
// every tab of the browser profile.
type backends struct {
	persistent storage.Backend
	transport  crosstab.Transport
	close      func()
}

func openBackends(ctx context.Context, cfg *config.Config, log *logger.Logger) (*backends, error) {
	switch cfg.Storage.Backend {
	case "redis":
		client, err := pkgredis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return nil, err
		}
		return &backends{
			persistent: storage.NewRedisBackend(client, cfg.Storage.Origin),
			transport:  crosstab.NewRedisNotifier(client, cfg.Storage.Origin, log),
			close: func() {
				if err := pkgredis.Close(client); err != nil {
					log.Error("Failed to close Redis connection", err)
				}
			},
		}, nil

	case "postgres":
		gormDB, err := db.Open(&cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(gormDB); err != nil {
			return nil, err
		}
		return &backends{
			persistent: storage.NewGormBackend(gormDB, cfg.Storage.Origin),
			transport:  crosstab.NewMemoryBroker(),
			close: func() {
				if err := db.Close(gormDB); err != nil {
					log.Error("Failed to close database connection", err)
				}
			},
		}, nil

	case "s3":
		client := storage.NewS3Client(ctx, cfg.S3)
		return &backends{
			persistent: storage.NewS3Backend(client, cfg.S3.Bucket, cfg.S3.Prefix, cfg.Storage.Origin),
			transport:  crosstab.NewMemoryBroker(),
			close:      func() {},
		}, nil

	default:
		return &backends{
			persistent: storage.NewMemoryBackend(),
			transport:  crosstab.NewMemoryBroker(),
			close:      func() {},
		}, nil
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", err)
	}

	logger.Initialize(logger.Config{
		Level:       cfg.LogLevel(),
		Format:      cfg.Log.Format,
		EnableColor: cfg.Log.Format == "console",
	})
	tabID := uuid.NewString()
	log := logger.WithContext(map[string]interface{}{"tab_id": tabID})

	log.Info("Starting cart sync", map[string]interface{}{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"backend":     cfg.Storage.Backend,
		"storefront":  cfg.Storefront.BaseURL,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, err := openBackends(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open storage backend", err, map[string]interface{}{
			"backend": cfg.Storage.Backend,
		})
	}
	defer be.close()

	// session storage lives and dies with this tab
	store := storage.NewLocalStore(be.persistent, storage.NewMemoryBackend(), log)
	channel, err := crosstab.NewSyncChannel(ctx, store, be.transport, tabID, log)
	if err != nil {
		log.Fatal("Failed to open sync channel", err)
	}
	defer channel.Close()

	observer := auth.NewObserver(cfg.Auth.TokenSecret, log)
	client, err := storefront.NewClient(storefront.Config{
		BaseURL:          cfg.Storefront.BaseURL,
		Timeout:          cfg.Storefront.Timeout,
		EmptyCartRetries: cfg.Storefront.EmptyCartRetry,
		RetryDelay:       cfg.Storefront.RetryDelay,
		SendIdentityHint: cfg.Storefront.SendIdentityHint,
		Logger:           log,
	}, observer)
	if err != nil {
		log.Fatal("Failed to create storefront client", err)
	}

	sess := service.NewSession(ctx, service.SessionDeps{
		Observer:    observer,
		Store:       store,
		Channel:     channel,
		CartAPI:     client,
		WishlistAPI: client,
		Options: service.Options{
			Logger:  log,
			Limiter: service.NewLimiter(cfg.Sync.SignalPacing, cfg.Sync.SignalBurst),
		},
	})
	defer sess.Close()

	if err := sess.Start(ctx, os.Getenv("STOREFRONT_ACCESS_TOKEN")); err != nil {
		log.Warn("Stored access token rejected, starting as guest", map[string]interface{}{
			"error": err.Error(),
		})
	}

	refresher := scheduler.NewRefreshScheduler(sess, cfg.Sync.RefreshSpec, cfg.Storefront.Timeout, log)
	if err := refresher.Start(); err != nil {
		log.Fatal("Failed to start refresh scheduler", err)
	}
	defer refresher.Stop()

	hub := ws.NewHub(log)
	go hub.Run(ctx)
	unfollow := hub.Follow(sess)
	defer unfollow()

	r := router.NewRouter(
		controller.NewSessionController(sess),
		controller.NewCartController(sess.Cart()),
		controller.NewWishlistController(sess.Wishlist(), sess.Cart()),
		controller.NewWsController(sess, hub, cfg.CORS.AllowedOrigins),
		middleware.NewAuthMiddleware(cfg.Auth.TokenSecret),
		log,
		cfg,
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r.Setup(),
	}

	go func() {
		log.Info("Server started successfully", map[string]interface{}{
			"address": srv.Addr,
			"pid":     os.Getpid(),
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", err)
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down server gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", err)
	}
	log.Info("Server stopped successfully")
}
