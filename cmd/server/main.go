package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/yanghwi/daily-dungeon/auth"
	"github.com/yanghwi/daily-dungeon/config"
	"github.com/yanghwi/daily-dungeon/content"
	"github.com/yanghwi/daily-dungeon/crypto"
	"github.com/yanghwi/daily-dungeon/game"
	"github.com/yanghwi/daily-dungeon/logger"
	"github.com/yanghwi/daily-dungeon/migrations"
	"github.com/yanghwi/daily-dungeon/narrative"
	"github.com/yanghwi/daily-dungeon/storage"
)

func CreateServer(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(ctx *gin.Context) { ctx.String(http.StatusOK, "healthy") })

	r.Use(func(ctx *gin.Context) {
		origin := ctx.Request.Header.Get("Origin")

		if slices.Contains(allowedOrigins, origin) {
			ctx.Next()
			return
		}
		ctx.String(http.StatusForbidden, "forbidden origin")
		ctx.Abort()
	})

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Authorization",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
	}))

	return r
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	level := logger.Setup(cfg.LogLevel, cfg.LogPretty)
	if level > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := migrations.Migrate(cfg.PostgresURL); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Dependencies
	pgRepo, err := storage.NewPostgresRepo(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres unreachable")
	}
	defer pgRepo.Close()

	passwordHasher := crypto.NewPasswordHasher(cfg.HashParams())
	tokenManager := crypto.NewSessionTokens(cfg.JWTKey, cfg.TokenMaxAge)
	authService := auth.NewService(pgRepo, passwordHasher, tokenManager)
	authHandler := auth.NewAuthHandler(authService, cfg.TokenMaxAge)

	tables, err := content.Load(cfg.DefaultPlayerCount)
	if err != nil {
		log.Fatal().Err(err).Msg("game content is invalid")
	}

	var narrator game.Narrator
	if cfg.OpenAIAPIKey != "" {
		completer := narrative.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.NarrativeModel)
		narrator = narrative.NewService(completer, cfg.NarrativeCacheSize, cfg.NarrativeCacheTTL)
	} else {
		log.Info().Msg("no OPENAI_API_KEY, narration uses static lines")
	}

	registry := game.NewRegistry(
		cfg.GameSettings(),
		game.RoomDeps{Content: tables, Narrator: narrator, Store: pgRepo},
		pgRepo,
		game.NewCodeGenerator(6),
		game.NewTickerGen(),
	)
	registryStarted := make(chan struct{})
	go registry.Run(ctx, registryStarted)
	<-registryStarted

	r := CreateServer(cfg.AllowedOrigins)
	requireAuth := authHandler.RequireAuthMiddleware(time.Second * 2)

	{
		auth := r.Group("/auth")
		auth.POST("/signup", authHandler.SignupHandler)
		auth.POST("/login", authHandler.LoginHandler)
		auth.POST("/logout", authHandler.LogoutHandler)
		auth.GET("/refresh", authHandler.RefreshSessionHandler)
	}

	gameHandler := game.NewGameHandler(registry, pgRepo, cfg.AllowedOrigins)
	{
		gameGroup := r.Group("/game")
		gameGroup.Use(requireAuth)
		gameGroup.GET("/create", gameHandler.CreateRoomHandler)
		gameGroup.GET("/join/:code", gameHandler.JoinRoomHandler)
		gameGroup.GET("/quick", gameHandler.QuickJoinHandler)
		gameGroup.GET("/reconnect", gameHandler.ReconnectHandler)
		gameGroup.GET("/rooms", gameHandler.PublicRoomsHandler)
	}
	r.GET("/runs", requireAuth, gameHandler.RunsHandler)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := registry.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("rooms did not close in time")
	}
}
