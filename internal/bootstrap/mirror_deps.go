package bootstrap

import (
	"context"
	"os"

	"mirror_server/adapter/out/messaging"
	"mirror_server/adapter/out/mongodb"
	"mirror_server/adapter/out/provider"
	"mirror_server/adapter/out/provider/gmail"
	"mirror_server/config"
	"mirror_server/core/port/in"
	"mirror_server/core/port/out"
	"mirror_server/core/service/sync"
	"mirror_server/core/service/timeline"
	"mirror_server/infra/database"
	"mirror_server/pkg/cache"
	"mirror_server/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
)

type Dependencies struct {
	Config *config.Config
	Redis  *redis.Client
	Mongo  *mongo.Client

	// Repositories
	AccountRepo out.AccountRepository
	ThreadRepo  out.ThreadRepository
	MessageRepo out.MessageRepository

	// Cache
	Cache out.Cache

	// Messaging (Redis Streams)
	EventPublisher out.EventPublisher

	// Provider (circuit breaker 래핑)
	MailboxProvider out.MailboxProvider

	// Services
	SyncService     in.SyncService
	TimelineService in.TimelineService
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	cleanup := func() {
		// 생성 역순으로 정리
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// MongoDB
	mongoClient, err := mongodb.NewClient(cfg.MongoDBURL)
	if err != nil {
		return nil, nil, err
	}
	deps.Mongo = mongoClient
	cleanups = append(cleanups, func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Warn("MongoDB disconnect failed: %v", err)
		}
	})
	logger.Info("MongoDB connected (db=%s)", cfg.MongoDBName)

	db := mongoClient.Database(cfg.MongoDBName)

	// Repositories
	accountAdapter := mongodb.NewAccountAdapter(db)
	threadAdapter := mongodb.NewThreadAdapter(db)
	messageAdapter := mongodb.NewMessageAdapter(db)

	indexCtx := context.Background()
	if err := accountAdapter.EnsureIndexes(indexCtx); err != nil {
		logger.Warn("Failed to ensure account indexes: %v", err)
	}
	if err := threadAdapter.EnsureIndexes(indexCtx); err != nil {
		logger.Warn("Failed to ensure thread indexes: %v", err)
	}
	if err := messageAdapter.EnsureIndexes(indexCtx); err != nil {
		logger.Warn("Failed to ensure message indexes: %v", err)
	}

	deps.AccountRepo = accountAdapter
	deps.ThreadRepo = threadAdapter
	deps.MessageRepo = messageAdapter

	// Redis
	redisClient, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Redis = redisClient
	cleanups = append(cleanups, func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Redis close failed: %v", err)
		}
	})
	deps.Cache = cache.NewRedisCache(redisClient)
	logger.Info("Redis connected")

	// Event publisher (Redis Streams) - 요약 파이프라인이 구독
	deps.EventPublisher = messaging.NewRedisProducer(redisClient)

	// Mailbox provider (Gmail + circuit breaker)
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Str("component", "mirror").Logger()
	gmailClient := gmail.NewClient(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
	deps.MailboxProvider = provider.NewBreakerProvider(gmailClient, zlog)

	// Services
	deps.SyncService = sync.NewService(
		deps.AccountRepo,
		deps.ThreadRepo,
		deps.MessageRepo,
		deps.MailboxProvider,
		deps.Cache,
		deps.EventPublisher,
		cfg.SyncPageSize,
		cfg.StatusCacheTTL,
	)
	deps.TimelineService = timeline.NewService(deps.ThreadRepo, deps.MessageRepo)

	return deps, cleanup, nil
}
