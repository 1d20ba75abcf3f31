package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"dtw-backend/internal/config"
	"dtw-backend/internal/database"
	"dtw-backend/internal/events"
	"dtw-backend/internal/handlers"
	"dtw-backend/internal/llm"
	"dtw-backend/internal/logger"
	"dtw-backend/internal/repository"
	"dtw-backend/internal/router"
	"dtw-backend/internal/services"
	"dtw-backend/internal/websocket"
)

// stores groups the persistence a given STORAGE_BACKEND provides.
type stores struct {
	users    repository.UserStore
	checkins repository.CheckinStore
	chats    repository.ChatStore
}

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	zlog, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("✗ Logger initialization failed: %v", err)
	}
	defer zlog.Sync()
	zlog.Info("starting DTW backend", zap.String("env", cfg.Env))

	ctx := context.Background()
	health := handlers.NewHealthHandler()

	// ──── Step 2: Storage ────
	var st stores
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			zlog.Fatal("PostgreSQL connection failed", zap.Error(err))
		}
		defer pool.Close()

		if err := database.RunMigrations(ctx, pool); err != nil {
			zlog.Fatal("database migration failed", zap.Error(err))
		}
		health.Register("postgres", pool.Ping)

		st.users = repository.NewUserRepo(pool)
		st.checkins = repository.NewCheckinRepo(pool)
		st.chats = repository.NewChatRepo(pool)
		zlog.Info("✓ PostgreSQL connected, migrations applied")
	default:
		mem := repository.NewMemoryStore()
		st.users, st.checkins, st.chats = mem, mem, mem
		zlog.Info("✓ In-memory store initialized")
	}

	// ──── Step 3: Redis ────
	var redisClients *database.RedisClients
	if cfg.RedisURL != "" {
		redisClients, err = database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			zlog.Fatal("Redis connection failed", zap.Error(err))
		}
		defer redisClients.Close()
		health.Register("redis", func(ctx context.Context) error {
			return redisClients.Cache.Ping(ctx).Err()
		})
		zlog.Info("✓ Redis connected")
	}

	if cfg.ChatHistoryBackend == config.HistoryRedis {
		st.chats = repository.NewRedisChatStore(redisClients.Cache, cfg.ChatHistoryTTL)
		zlog.Info("✓ Chat history stored in Redis", zap.Duration("ttl", cfg.ChatHistoryTTL))
	}

	// ──── Step 4: LLM client ────
	var client llm.Client
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if err != nil {
			zlog.Fatal("Gemini client initialization failed", zap.Error(err))
		}
		defer gemini.Close()
		client = gemini
	case config.ProviderMock:
		client = llm.NewMockClient()
	default:
		client = llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	}
	zlog.Info("✓ LLM client initialized",
		zap.String("provider", cfg.LLMProvider),
		zap.String("model", cfg.DefaultModel),
	)

	// ──── Step 5: Events and WebSocket hub ────
	var wsHub *websocket.Hub
	var publisher events.Publisher
	if redisClients != nil {
		wsHub = websocket.NewHub(redisClients.PubSub, st.users, zlog)
		publisher = events.NewRedisPublisher(redisClients.PubSub)
	} else {
		wsHub = websocket.NewHub(nil, st.users, zlog)
		publisher = wsHub
	}
	defer wsHub.Close()

	// ──── Step 6: Services and handlers ────
	onboardingService := services.NewOnboardingService(st.users, zlog)
	checkinService := services.NewCheckinService(st.users, st.checkins, publisher, zlog)

	var chatService *services.ChatService
	if cfg.ProfileExtraction {
		extractor := services.NewProfileExtractor(client, cfg.ProfileModel)
		chatService = services.NewChatService(st.users, st.chats, client, extractor, publisher, cfg.DefaultModel, zlog)
	} else {
		chatService = services.NewChatService(st.users, st.chats, client, nil, publisher, cfg.DefaultModel, zlog)
	}

	r := router.New(
		zlog,
		handlers.NewOnboardingHandler(onboardingService),
		handlers.NewCheckinHandler(checkinService),
		handlers.NewChatHandler(chatService),
		health,
		wsHub.HandleWebSocket,
		cfg.FrontendURL,
	)

	// ──── Step 7: Start HTTP Server ────
	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		// Chat turns wait on the model provider.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		zlog.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			zlog.Warn("shutdown did not complete cleanly", zap.Error(err))
		}
	}()

	zlog.Info("✓ DTW backend ready",
		zap.String("api", fmt.Sprintf("http://localhost:%s/api", cfg.Port)),
		zap.String("ws", fmt.Sprintf("ws://localhost:%s/api/ws", cfg.Port)),
	)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		zlog.Fatal("server error", zap.Error(err))
	}
	<-done
}
