package main

import (
	"context"
	"encoding/base64"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	apiecho "github.com/pitchlyapp/accounts-pitchly/api/echo"
	"github.com/pitchlyapp/accounts-pitchly/cache"
	redisstore "github.com/pitchlyapp/accounts-pitchly/cache/redis"
	"github.com/pitchlyapp/accounts-pitchly/config"
	"github.com/pitchlyapp/accounts-pitchly/domain"
	"github.com/pitchlyapp/accounts-pitchly/internal/metrics"
	"github.com/pitchlyapp/accounts-pitchly/internal/secrets"
	applog "github.com/pitchlyapp/accounts-pitchly/log"
	sessionauth "github.com/pitchlyapp/accounts-pitchly/middleware"
	"github.com/pitchlyapp/accounts-pitchly/mongodb"
	"github.com/pitchlyapp/accounts-pitchly/pitchly"
	"github.com/pitchlyapp/accounts-pitchly/services"
	"github.com/pitchlyapp/accounts-pitchly/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger := applog.NewZerologAdapter(level, cfg.LogPretty)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize tracer provider")
	}
	defer func() {
		_ = tp.Shutdown(context.Background())
	}()

	mongoClient, db, err := mongodb.Connect(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	defer func() {
		_ = mongoClient.Disconnect(context.Background())
	}()

	sealer := buildSealer(cfg)

	users, err := mongodb.NewUserRepository(ctx, db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize user repository")
	}
	configRepo := mongodb.NewServiceConfigRepository(db)
	seedServiceConfig(ctx, cfg, configRepo, sealer)

	configTTL := time.Duration(cfg.ConfigCacheTTLSec) * time.Second
	cachedConfigs := cache.NewCachedServiceConfigRepository(configRepo, configTTL)
	defer cachedConfigs.Stop()

	var (
		sessions cache.SessionStore
		locks    services.UserLocker
	)
	if cfg.RedisAddr != "" {
		redisClient := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		sessions = redisstore.NewSessionStore(redisClient, "pitchly")
		locks = redisstore.NewRefreshLock(redisClient, "pitchly", 30*time.Second, 100*time.Millisecond)
		log.Info().Str("addr", cfg.RedisAddr).Msg("Using Redis session store and refresh lock")
	} else {
		memSessions := cache.NewMemorySessionStore()
		defer memSessions.Stop()
		sessions = memSessions
		locks = services.NewMemoryUserLocker()
	}

	client := pitchly.NewClient()
	refreshSvc := services.NewRefreshService(users, cachedConfigs, sealer, client, locks, logger)
	loginSvc := services.NewLoginService(users, cachedConfigs, sealer, client, sessions, logger)

	metrics.InitCustomMetrics(prometheus.DefaultRegisterer)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(sessionauth.SessionAuth(sessions))

	apiecho.NewAccountsAPI(refreshSvc, loginSvc, users, sealer).RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/healthz", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	go func() {
		if err := e.Start(":" + cfg.HTTPPort); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()
	log.Info().Str("port", cfg.HTTPPort).Msg("Accounts server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during HTTP server shutdown")
	}
}

func buildSealer(cfg *config.ServerConfig) secrets.Sealer {
	if cfg.SealKey == "" {
		log.Warn().Msg("SEAL_KEY not set; storing tokens unsealed (development only)")
		return secrets.PlainSealer{}
	}
	key, err := base64.StdEncoding.DecodeString(cfg.SealKey)
	if err != nil {
		log.Fatal().Err(err).Msg("SEAL_KEY is not valid base64")
	}
	sealer, err := secrets.NewSecretboxSealer(key)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid sealing key")
	}
	return sealer
}

// seedServiceConfig upserts the Pitchly configuration row from the
// environment so deployments don't need a manual insert.
func seedServiceConfig(ctx context.Context, cfg *config.ServerConfig, repo *mongodb.ServiceConfigRepository, sealer secrets.Sealer) {
	if cfg.PitchlyClientID == "" {
		return
	}
	sealedSecret, err := sealer.Seal(cfg.PitchlySecret)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seal Pitchly client secret")
	}
	err = repo.UpsertServiceConfig(ctx, &domain.ServiceConfig{
		ClientID:         cfg.PitchlyClientID,
		Secret:           sealedSecret,
		Origin:           cfg.PitchlyOrigin,
		AccessTokenScope: cfg.ScopeList(),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to seed Pitchly service configuration")
	}
	log.Info().Msg("Pitchly service configuration seeded")
}
