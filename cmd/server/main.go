package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/docflow/modules/docs/domain/events"
	"github.com/iota-uz/docflow/modules/docs/infrastructure/persistence"
	"github.com/iota-uz/docflow/modules/docs/infrastructure/storage"
	"github.com/iota-uz/docflow/modules/docs/presentation/controllers"
	"github.com/iota-uz/docflow/modules/docs/services"
	"github.com/iota-uz/docflow/pkg/configuration"
	"github.com/iota-uz/docflow/pkg/eventbus"
	"github.com/iota-uz/docflow/pkg/middleware"
	"github.com/iota-uz/docflow/pkg/server"
)

func main() {
	conf := configuration.Use()
	log := conf.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, conf.Database.ConnectionString())
	if err != nil {
		log.WithError(err).Fatal("failed to create database pool")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.WithError(err).Fatal("database is unreachable")
	}

	var redisClient *redis.Client
	if conf.Redis.URL != "" {
		opts, err := redis.ParseURL(conf.Redis.URL)
		if err != nil {
			log.WithError(err).Fatal("invalid REDIS_URL")
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis is unreachable, stats cache disabled")
			redisClient = nil
		}
	}

	uploads, err := storage.NewLocalStorage(conf.Uploads)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize upload storage")
	}

	publisher := eventbus.NewEventPublisher(log)
	publisher.Subscribe(func(e events.StepDecided) {
		log.WithFields(logrus.Fields{
			"request_id": e.RequestID,
			"step":       e.StepNumber,
			"action":     e.Action,
			"status":     e.NewStatus,
		}).Info("workflow step decided")
	})
	publisher.Subscribe(func(e events.ChangeRequestPublished) {
		log.WithField("request_id", e.RequestID).Info("change request published")
	})

	statsCache := services.NewStatsCache(redisClient, conf.StatsCacheTTL)
	requestRepo := persistence.NewPgChangeRequestRepository()
	approvalRepo := persistence.NewPgApprovalRepository()
	commentRepo := persistence.NewPgCommentRepository()

	requestService := services.NewChangeRequestService(requestRepo, approvalRepo, uploads, publisher, statsCache)
	commentService := services.NewCommentService(commentRepo, requestRepo)

	srv := server.New(conf, log,
		middleware.RequestID(),
		middleware.WithLogger(log),
		middleware.ProvidePool(pool),
		middleware.ProvideActor(),
	)
	srv.RegisterControllers(
		controllers.NewChangeRequestAPIController(requestService, commentService),
	)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("shutting down")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.WithError(err).Error("shutdown failed")
		}
		cancel()
	}()

	if err := srv.Start(); err != nil {
		log.WithError(err).Fatal("http server failed")
	}
}
