package app

import (
	"context"
	"fmt"

	"github.com/upb/llm-router/config"
	"github.com/upb/llm-router/middleware"
	"github.com/upb/llm-router/repositories"
	"github.com/upb/llm-router/repositories/postgres"
	"github.com/upb/llm-router/services/audit"
	"github.com/upb/llm-router/services/providers"
	"github.com/upb/llm-router/services/providers/openai"
	"github.com/upb/llm-router/services/routing"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Dependencies holds all application dependencies. This is the central
// wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repositories
	Attempts repositories.AttemptRepository

	// Services
	Audit  *audit.AuditService
	Router *routing.Router

	// Auth
	AuthMiddleware *middleware.AuthMiddleware
	AuthEnabled    bool
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initAuditStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize audit store: %w", err)
	}

	deps.initRouter(cfg)
	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initAuditStore initializes the optional attempt audit trail. Absent
// DATABASE_URL disables it without error.
func (d *Dependencies) initAuditStore(ctx context.Context, cfg *config.Config) error {
	if cfg.Database == nil {
		d.Logger.Info("audit store not configured, attempt auditing disabled")
		return nil
	}

	db, err := postgres.NewDB(*cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	if err := db.InitSchema(ctx); err != nil {
		return err
	}

	d.DB = db
	d.Attempts = postgres.NewAttemptRepository(db, d.Logger)
	d.Audit = audit.NewAuditService(d.Attempts, d.Logger, audit.DefaultConfig())
	if err := d.Audit.Start(); err != nil {
		return err
	}

	return nil
}

// initRouter builds the router's backend topology from configuration.
func (d *Dependencies) initRouter(cfg *config.Config) {
	routerCfg := routing.Config{}

	if cfg.Providers.OpenAI.APIKey != "" {
		routerCfg.Primary = &providers.Endpoint{
			BaseURL: cfg.Providers.OpenAI.BaseURL,
			APIKey:  cfg.Providers.OpenAI.APIKey,
			Family:  providers.FamilyOpenAI,
		}
		d.Logger.Info("primary provider configured")
	}

	azure := cfg.Providers.Azure
	if azure.Enabled() {
		routerCfg.Deployments = routing.Deployments{
			routing.FamilyGPT35Turbo16K: azure.DeploymentGPT35,
			routing.FamilyGPT4:          azure.DeploymentGPT4,
			routing.FamilyGPT432K:       azure.DeploymentGPT432K,
		}

		if azure.BaseURL != "" && azure.APIKey != "" {
			routerCfg.Secondary = &providers.Endpoint{
				BaseURL:    azure.BaseURL,
				APIKey:     azure.APIKey,
				APIVersion: azure.APIVersion,
				Family:     providers.FamilyAzure,
			}
			d.Logger.Info("secondary provider configured",
				zap.String("endpoint", routerCfg.Secondary.Host()))
		}

		if azure.PoolMalformed() {
			d.Logger.Warn("multi-region pool configuration is malformed, using single-endpoint secondary")
		}
		for _, region := range azure.Pool {
			routerCfg.Pool = append(routerCfg.Pool, providers.Endpoint{
				BaseURL:    region.URL,
				APIKey:     region.APIKey,
				APIVersion: azure.APIVersion,
				Family:     providers.FamilyAzure,
			})
		}
		if len(routerCfg.Pool) > 0 {
			d.Logger.Info("multi-region pool configured",
				zap.Int("regions", len(routerCfg.Pool)))
		}
	}

	if d.Audit != nil {
		routerCfg.Observer = d.Audit
	}

	client := openai.NewClient(openai.Config{Timeout: cfg.Providers.OpenAI.Timeout})
	d.Router = routing.NewRouter(routerCfg, client, d.Logger)
}

// initAuth configures gateway authentication from the shared HMAC secret.
func (d *Dependencies) initAuth(cfg *config.Config) {
	if cfg.Auth.JWTSecret == "" {
		d.Logger.Warn("GATEWAY_JWT_SECRET not set, authentication disabled")
		return
	}

	validator := middleware.NewHMACValidator(cfg.Auth.JWTSecret)
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	d.AuthEnabled = true
	d.Logger.Info("gateway authentication enabled")
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Audit != nil {
		d.Audit.Stop()
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

// NewLogger builds a zap logger from the observability configuration.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Observability.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Observability.LogLevel, err)
	}

	var zapCfg zap.Config
	if cfg.Observability.LogFormat == "text" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
