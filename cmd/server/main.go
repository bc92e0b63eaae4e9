package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"portal/internal/api"
	"portal/internal/api/handlers"
	"portal/internal/api/middleware"
	"portal/internal/engine/authflow"
	"portal/internal/engine/session"
	"portal/internal/engine/tenant"
	"portal/internal/pkg/logger"
	"portal/internal/platform/audit"
	"portal/internal/platform/auth"
	"portal/internal/platform/config"
	"portal/internal/platform/database"
	"portal/internal/platform/mailer"
	"portal/internal/platform/oauth"
	"portal/internal/platform/repositories"
	"portal/internal/platform/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	// Repositories
	companyRepo := repositories.NewCompanyRepository(db)
	userRepo := repositories.NewUserRepository(db)
	authRepo := repositories.NewAuthenticationRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	auditLogger := audit.NewLogger(auditRepo)
	googleClient := oauth.NewGoogleClient(cfg.Google)
	defer googleClient.Close()

	flows := authflow.NewService(authflow.Deps{
		Users:           userRepo,
		Authentications: authRepo,
		Tokens:          tokenSvc,
		Audit:           auditLogger,
		Mailer:          mailer.NewLogMailer(cfg.Email),
		Google:          googleClient,
	})

	var (
		sessionStore session.Store = session.NewMemoryStore()
		redisClient  redis.UniversalClient
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		redisClient = client
		sessionStore = session.NewRedisStore(client, cfg.JWT.RefreshTokenTTL)
	}

	var refresher session.Refresher = authflow.SessionRefresher{Service: flows}
	if cfg.Session.RemoteRefreshURL != "" {
		refresher = session.NewHTTPRefresher(cfg.Session.RemoteRefreshURL, cfg.Session.RemoteRefreshTimeout)
	}
	sessions := session.NewResolver(sessionStore, refresher, nil)

	var assets storage.AssetURLs = storage.StaticAssets{BaseURL: cfg.Storage.PublicBaseURL}
	if cfg.Storage.Endpoint != "" {
		minioAssets, err := storage.NewMinioAssets(cfg.Storage)
		if err != nil {
			log.Warn().Err(err).Msg("object storage unavailable, serving asset paths from public base url")
		} else {
			assets = minioAssets
		}
	}

	whiteLabelHandler := handlers.NewWhiteLabelHandler(companyRepo, assets)
	var finder tenant.CompanyFinder = companyRepo
	if cfg.Tenancy.CacheTTL > 0 {
		cached := tenant.NewCachedFinder(companyRepo, cfg.Tenancy.CacheTTL)
		whiteLabelHandler.WithCache(cached)
		finder = cached
	}
	tenantResolver := tenant.NewResolver(finder)

	// Middleware
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.AuthPerMinute)
	defer rateLimiter.Stop()

	deps := &api.Dependencies{
		AuthHandler:       handlers.NewAuthHandler(flows, sessions, cfg.Session, cfg.Tenancy),
		TenantHandler:     handlers.NewTenantHandler(tenantResolver, assets),
		WhiteLabelHandler: whiteLabelHandler,
		UserHandler:       handlers.NewUserHandler(companyRepo),
		AuditHandler:      handlers.NewAuditHandler(auditRepo),
		HealthHandler:     handlers.NewHealthHandler(db, redisClient),
		AuthMiddleware:    middleware.NewAuthMiddleware(tokenSvc, userRepo),
		TenantMiddleware:  middleware.NewTenantMiddleware(tenantResolver, cfg.Tenancy.Mode),
		RateLimiter:       rateLimiter,
		InFlight:          middleware.NewInFlight(cfg.Session.CookieName),
		TenancyMode:       cfg.Tenancy.Mode,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Str("tenancy", cfg.Tenancy.Mode).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	auditLogger.Wait()
}
