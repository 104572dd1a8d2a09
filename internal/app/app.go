package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/db"
	apphttp "github.com/JamesQQQ1/propvisions-web-sub001/internal/http"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/observability"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/envutil"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *db.DBService
	Cfg      Config
	Clients  Clients
	Repos    Repos
	Services Services
	Server   *apphttp.Server

	otelShutdown func(context.Context) error
}

// Open loads config and connects the database. It is all the CLI needs.
func Open(ctx context.Context) (*App, error) {
	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	cfg, err := LoadConfig(log)
	if err != nil {
		log.Sync()
		return nil, err
	}
	dbs, err := db.Open(cfg.DB, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := db.AutoMigrateAll(dbs.DB()); err != nil {
			_ = dbs.Close()
			log.Sync()
			return nil, err
		}
	}
	a := &App{Log: log, DB: dbs, Cfg: cfg, otelShutdown: func(context.Context) error { return nil }}
	a.Repos = wireRepos(dbs.DB(), log)
	return a, nil
}

// New builds the full server: clients, services and the HTTP stack.
func New(ctx context.Context) (*App, error) {
	a, err := Open(ctx)
	if err != nil {
		return nil, err
	}
	if a.Cfg.LogMode == "production" || a.Cfg.LogMode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	a.otelShutdown = observability.InitOTel(ctx, a.Log, a.Cfg.Otel)
	metrics := observability.Init(a.Log)

	clients, err := wireClients(ctx, a.Log, a.Cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Clients = clients
	a.Services = wireServices(a.DB.DB(), a.Log, a.Cfg, a.Repos, clients)
	handlers := wireHandlers(a.Log, a.Cfg, a.DB.DB(), a.Services, clients)
	a.Server = wireServer(a.Log, a.Cfg, handlers, metrics)
	return a, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("HTTP server listening", "port", a.Cfg.Port)
		errCh <- a.Server.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.Log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errCh
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = a.otelShutdown(ctx)
		cancel()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
