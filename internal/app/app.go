// Package app wires configuration, storage, providers and servers together.
package app

import (
	"context"
	"fmt"

	"github.com/partscout/partscout/internal/archive"
	"github.com/partscout/partscout/internal/cache"
	"github.com/partscout/partscout/internal/config"
	"github.com/partscout/partscout/internal/database"
	"github.com/partscout/partscout/internal/httpapi"
	"github.com/partscout/partscout/internal/logging"
	"github.com/partscout/partscout/internal/oauth"
	"github.com/partscout/partscout/internal/orchestrator"
	"github.com/partscout/partscout/internal/providers"
	"github.com/partscout/partscout/internal/ratelimit"
	"github.com/partscout/partscout/internal/retriever"
)

// App holds all application dependencies
type App struct {
	Config       *config.Config
	Logger       *logging.Logger
	Cache        cache.Cache
	Registry     *providers.Registry
	Tokens       *oauth.Manager
	Retriever    *retriever.Service
	Orchestrator *orchestrator.Service
	Worker       *orchestrator.Worker
	HTTPServer   *httpapi.Server

	db        *database.DB
	jobStore  *database.JobStore
	partStore *database.PartStore
}

// New creates and initializes a new App instance
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}

	app.Logger = app.initLogger()
	app.Cache = app.initCache()

	limiter := ratelimit.New(cfg.Server.RateLimitDur)

	app.Tokens = app.initTokens()
	app.Registry = app.initProviders(limiter)

	app.Retriever = retriever.New(app.Registry, app.Cache, app.Logger, retriever.Config{
		DetailTTL:   cfg.Retriever.DetailTTL,
		CallTimeout: cfg.Retriever.CallTimeout,
	})

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}

	archiver, err := app.initArchiver(ctx)
	if err != nil {
		return nil, err
	}

	app.Orchestrator = orchestrator.New(app.jobStore, app.partStore, app.Retriever,
		app.Registry, archiver, app.Logger, orchestrator.Config{
			MaxConcurrentJobs: cfg.Jobs.MaxConcurrent,
			PollInterval:      cfg.Jobs.PollInterval,
		})
	app.Worker = orchestrator.NewWorker(app.Orchestrator, app.Logger)

	app.HTTPServer = httpapi.New(app.Registry, app.Retriever, app.Orchestrator, app.Logger)

	return app, nil
}

// Run starts the background worker and the HTTP server. Blocks until the
// server stops.
func (a *App) Run(ctx context.Context) error {
	a.Worker.Start(ctx)
	return a.HTTPServer.Start(a.Config.Server.HTTPAddr)
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTP server shutdown error", logging.WithField("error", err.Error()))
		}
	}

	if a.Worker != nil {
		a.Worker.Stop()
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error("Database close error", logging.WithField("error", err.Error()))
		}
	}

	return nil
}

func (a *App) initLogger() *logging.Logger {
	return logging.New(logging.ParseLevel(a.Config.Logging.Level))
}

func (a *App) initCache() cache.Cache {
	switch a.Config.Cache.Backend {
	case "redis":
		a.Logger.Info("Using Redis cache backend", logging.WithField("addr", a.Config.Cache.RedisAddr))
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Addr:   a.Config.Cache.RedisAddr,
			Prefix: "partscout:",
		}, a.Config.Cache.TTL)
		if err != nil {
			a.Logger.Error("Failed to connect to Redis, falling back to memory cache", logging.WithField("error", err.Error()))
			return cache.NewMemory(a.Config.Cache.TTL)
		}
		return redisCache
	default:
		a.Logger.Info("Using in-memory cache backend")
		return cache.NewMemory(a.Config.Cache.TTL)
	}
}

func (a *App) initTokens() *oauth.Manager {
	apps := map[string]oauth.AppConfig{}

	dk := a.Config.Providers.DigiKey
	if dk.ClientID != "" && dk.ClientSecret != "" {
		apps[providers.OAuthAppDigiKey] = oauth.AppConfig{
			ClientID:     dk.ClientID,
			ClientSecret: dk.ClientSecret,
			TokenURL:     dk.TokenURL,
		}
	}

	return oauth.NewManager(apps, a.Cache, a.Logger)
}

// initProviders registers every known provider. Providers with missing
// credentials still register so the API can report them as disabled.
func (a *App) initProviders(limiter *ratelimit.Limiter) *providers.Registry {
	p := a.Config.Providers
	registry := providers.NewRegistry()

	registry.Register(providers.NewLCSC(providers.LCSCConfig{
		Enabled:  p.LCSC.Enabled,
		Currency: p.LCSC.Currency,
	}, limiter))

	registry.Register(providers.NewMouser(providers.MouserConfig{
		APIKey:      p.Mouser.APIKey,
		SearchLimit: p.Mouser.SearchLimit,
	}, limiter))

	registry.Register(providers.NewDigiKey(providers.DigiKeyConfig{
		ClientID:   p.DigiKey.ClientID,
		Currency:   p.DigiKey.Currency,
		SiteLocale: p.DigiKey.SiteLocale,
	}, a.Tokens, limiter))

	registry.Register(providers.NewTME(providers.TMEConfig{
		Token:    p.TME.Token,
		Secret:   p.TME.Secret,
		Country:  p.TME.Country,
		Language: p.TME.Language,
		Currency: p.TME.Currency,
	}, limiter))

	registry.Register(providers.NewElement14(providers.Element14Config{
		APIKey:      p.Element14.APIKey,
		StoreDomain: p.Element14.StoreDomain,
	}, limiter))

	registry.Register(providers.NewReichelt(providers.ReicheltConfig{
		Enabled:  p.Reichelt.Enabled,
		Country:  p.Reichelt.Country,
		Language: p.Reichelt.Language,
		Currency: p.Reichelt.Currency,
	}, limiter))

	registry.Register(providers.NewPollin(providers.PollinConfig{
		Enabled: p.Pollin.Enabled,
	}, limiter))

	registry.Register(providers.NewGenericWeb(providers.GenericWebConfig{
		Enabled: p.GenericWeb.Enabled,
	}, limiter))

	a.Logger.Info("Registered part information providers",
		logging.WithField("total", len(registry.All())),
		logging.WithField("active", len(registry.ActiveProviders())))

	return registry
}

func (a *App) initDatabase(ctx context.Context) error {
	db, err := database.New(database.Config{
		Host:     a.Config.Database.Host,
		Port:     a.Config.Database.Port,
		User:     a.Config.Database.User,
		Password: a.Config.Database.Password,
		Database: a.Config.Database.Database,
		SSLMode:  a.Config.Database.SSLMode,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	a.Logger.Info("Connected to PostgreSQL")
	a.db = db
	a.jobStore = database.NewJobStore(db)
	a.partStore = database.NewPartStore(db)
	return nil
}

func (a *App) initArchiver(ctx context.Context) (orchestrator.Archiver, error) {
	if a.Config.Archive.Bucket == "" {
		a.Logger.Info("Datasheet archiving disabled, no bucket configured")
		return nil, nil
	}

	archiver, err := archive.NewS3(ctx, archive.Config{
		Region: a.Config.Archive.AWSRegion,
		Bucket: a.Config.Archive.Bucket,
		Prefix: a.Config.Archive.Prefix,
	}, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize datasheet archiver: %w", err)
	}

	a.Logger.Info("Datasheet archiving enabled",
		logging.WithField("bucket", a.Config.Archive.Bucket))
	return archiver, nil
}
