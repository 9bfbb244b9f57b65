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

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cryptopal-backend/internal/assets"
	"cryptopal-backend/internal/config"
	"cryptopal-backend/internal/database"
	"cryptopal-backend/internal/handlers"
	"cryptopal-backend/internal/middleware"
	"cryptopal-backend/internal/repository"
	"cryptopal-backend/internal/router"
	"cryptopal-backend/internal/services"
	"cryptopal-backend/internal/websocket"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	setupLogging(cfg)
	log.Info().Msg("🚀 Starting CryptoPal AI...")

	// ──── Step 2: Load Asset Dataset ────
	dataset, err := loadDataset(cfg.AssetsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("✗ Asset dataset failed to load")
	}
	log.Info().Int("assets", dataset.Len()).Msg("✓ Asset dataset loaded")

	// ──── Step 3: Open Conversation Store ────
	store, closeStore, err := openStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("✗ Conversation store failed to open")
	}
	defer closeStore()

	// ──── Step 4: Initialize Redis Clients (optional) ────
	var (
		locker    services.SessionLocker = services.NewLocalLocker()
		redisClients *database.RedisClients
	)
	if cfg.RedisURL != "" {
		redisClients, err = database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("✗ Redis connection failed")
		}
		defer redisClients.Close()
		locker = services.NewRedisLocker(redisClients.Locks, 2*cfg.GeminiTimeout+30*time.Second)
		log.Info().Msg("✓ Redis connected")
	}

	// ──── Step 5: Initialize Gemini Client ────
	var ai services.AICapability
	if cfg.GeminiAPIKey != "" {
		gemini, err := services.NewGeminiClient(context.Background(), cfg.GeminiAPIKey)
		if err != nil {
			log.Fatal().Err(err).Msg("✗ Gemini client initialization failed")
		}
		defer gemini.Close()
		ai = gemini
		log.Info().Msg("✓ Gemini client initialized")
	} else {
		log.Warn().Msg("⚠️  GEMINI_API_KEY not set, replies will use fallback mode")
	}

	generator := services.NewGenerator(ai, dataset, cfg.GeminiConcurrentReqs, cfg.GeminiTimeout)

	// ──── Step 6: Start WebSocket Hub ────
	wsHub := newHub(redisClients)
	defer wsHub.Close()
	log.Info().Msg("✓ WebSocket hub started")

	// ──── Initialize Services ────
	chatService := services.NewChatService(store, generator,
		services.WithLocker(locker),
		services.WithPublisher(wsHub),
		services.WithHistoryLimit(cfg.HistoryLimit),
		services.WithLockWait(cfg.GeminiTimeout+15*time.Second),
	)
	sessions := middleware.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL, cfg.CookieSecure)

	sweeper := services.NewRetentionSweeper(store, cfg.TurnRetention)
	sweeper.Start()

	// ──── Initialize Handlers ────
	chatHandler := handlers.NewChatHandler(chatService, generator, store, dataset.Len())

	// ──── Step 7: Start HTTP Server ────
	r := router.New(sessions, chatHandler, wsHub, cfg.ChatRateLimit)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GeminiTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("Shutting down...")
		sweeper.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Info().Msgf("✓ CryptoPal AI ready on http://localhost:%s", cfg.Port)
	log.Info().Msgf("  WS:  ws://localhost:%s/ws", cfg.Port)

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server error")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func loadDataset(path string) (*assets.Dataset, error) {
	if path == "" {
		return assets.Default()
	}
	return assets.LoadFile(path)
}

// openStore picks PostgreSQL for postgres:// URLs and SQLite for anything else.
func openStore(databaseURL string) (repository.ConversationStore, func(), error) {
	if database.IsPostgresURL(databaseURL) {
		pool, err := database.NewPostgresPool(databaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunMigrations(pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		log.Info().Msg("✓ PostgreSQL connected, migrations applied")
		return repository.NewPostgresConversationRepo(pool), pool.Close, nil
	}

	db, err := database.NewSQLiteDB(databaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.RunSQLiteMigrations(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	log.Info().Str("path", databaseURL).Msg("✓ SQLite connected, migrations applied")
	return repository.NewSQLiteConversationRepo(db), func() { db.Close() }, nil
}

func newHub(redisClients *database.RedisClients) *websocket.Hub {
	if redisClients == nil {
		return websocket.NewHub(nil)
	}
	return websocket.NewHub(redisClients.PubSub)
}
