package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/client"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/events"
	h "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/store"
	"github.com/fjod/storefront/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer lg.Sync()
	zap.ReplaceGlobals(lg)

	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		lg.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer st.Close()
	lg.Info("store opened", zap.String("driver", cfg.StoreDriver))

	api := client.NewClient(cfg.APIURL, cfg.DefaultUserID, cfg.APITimeout)

	manager := cart.Open(ctx, st, lg)
	pending := checkout.NewPendingLog(st)

	var opts []checkout.Option
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		publisher := events.NewKafkaPublisher(cfg.KafkaTopic, brokers...)
		defer publisher.Close()
		opts = append(opts, checkout.WithPublisher(publisher))
		lg.Info("queued order notifications enabled", zap.Strings("brokers", brokers), zap.String("topic", cfg.KafkaTopic))
	}
	svc := checkout.NewService(api, manager, pending, lg, opts...)

	router := h.NewRouter(h.Handlers{
		Cart:     h.NewCartHandler(manager, api, cfg.RequestTimeout, lg),
		Products: h.NewProductHandler(api, cfg.RequestTimeout, lg),
		Checkout: h.NewCheckoutHandler(svc, manager, lg),
		Orders:   h.NewOrdersHandler(api, pending, cfg.RequestTimeout, lg),
	}, cfg.RequestTimeout, lg)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		lg.Info("storefront listening", zap.String("port", cfg.HTTPPort), zap.String("api_url", cfg.APIURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Error("server forced to shutdown", zap.Error(err))
	}
	lg.Info("storefront stopped")
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		return store.NewMemoryStore(), nil

	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		return store.NewRedisStore(rdb), nil

	case "sqlite", "postgres":
		var (
			s   *store.SQLStore
			err error
		)
		if cfg.StoreDriver == "sqlite" {
			s, err = store.NewSQLiteStore(cfg.SQLitePath)
		} else {
			s, err = store.NewPostgresStore(cfg.PostgresDSN)
		}
		if err != nil {
			return nil, err
		}
		if err := s.RunMigrations(); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil

	case "mongo":
		db, err := store.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, err
		}
		return store.NewMongoStore(db), nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}
