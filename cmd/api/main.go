package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/usherhq/invitation-core/internal/adapters/guestapi"
	"github.com/usherhq/invitation-core/internal/adapters/linkapi"
	mongoadapter "github.com/usherhq/invitation-core/internal/adapters/mongo"
	"github.com/usherhq/invitation-core/internal/adapters/paymentapi"
	"github.com/usherhq/invitation-core/internal/adapters/rabbit"
	redisadapter "github.com/usherhq/invitation-core/internal/adapters/redis"
	"github.com/usherhq/invitation-core/internal/checkout"
	"github.com/usherhq/invitation-core/internal/config"
	httphandler "github.com/usherhq/invitation-core/internal/http"
	"github.com/usherhq/invitation-core/internal/idempotency"
	"github.com/usherhq/invitation-core/internal/identity"
	"github.com/usherhq/invitation-core/internal/observability"
	"github.com/usherhq/invitation-core/internal/rateLimit"
	"github.com/usherhq/invitation-core/internal/shortlink"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()
	observability.InitMetrics()

	httpClient := &http.Client{Timeout: 10 * time.Second}
	lookup := linkapi.NewClient(cfg.LinkAPIBase, httpClient)
	directory := guestapi.NewClient(cfg.GuestAPIBase, httpClient)
	gateway := paymentapi.NewClient(cfg.PaymentAPIBase, httpClient)

	resolver := shortlink.NewResolver(lookup, cfg.RegistrationBaseURL, logger)

	var redisIdemp *redisadapter.Idempotency
	var redisCache *redisadapter.Cache
	if cfg.RedisAddr != "" {
		redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
		redisCache = redisadapter.NewCache(redisClient)
		redisIdemp = redisadapter.NewIdempotency(redisClient)
		resolver.WithCache(redisCache, cfg.LinkCacheTTL)
	}
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)

	var auditRepo *mongoadapter.AuditRepository
	if cfg.MongoURI != "" {
		mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			log.Fatalf("failed to connect to mongo: %v", err)
		}
		defer mongoClient.Disconnect(context.Background())
		auditRepo = mongoadapter.NewAuditRepository(mongoClient.Database("ifc"), logger)
		resolver.WithAudit(auditRepo)
	}

	var sink checkout.EventSink
	if cfg.RabbitURL != "" {
		rabbitConn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		defer rabbitConn.Close()
		rabbitPub, err := rabbit.NewPublisher(rabbitConn)
		if err != nil {
			log.Fatalf("failed to create publisher: %v", err)
		}
		sink = rabbitPub
	}

	policy := checkout.Policy{
		InitialDelay: cfg.PollInitialDelay,
		Interval:     cfg.PollInterval,
		MaxAttempts:  cfg.PollMaxAttempts,
	}
	registry := checkout.NewRegistry(gateway, sink, policy, logger)
	checker := identity.NewChecker(directory, cfg.DebounceSettle, logger)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go registry.Sweep(sweepCtx, time.Minute, 10*time.Minute)

	handlers := httphandler.NewHandlers(cfg, resolver, checker, registry, idemp, logger)
	if auditRepo != nil {
		handlers.WithAuditLog(auditRepo)
	}
	r := httphandler.SetupRouter(cfg, handlers, logger, rl, idemp)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
		case <-ctx.Done():
			return ctx.Err()
		}
		logger.Info("Shutdown Server ...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("server error: %v", err)
	}
	logger.Info("Server exiting")
}
