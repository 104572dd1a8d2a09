package app

import (
	"context"

	"gorm.io/gorm"

	apphttp "github.com/JamesQQQ1/propvisions-web-sub001/internal/http"
	httpH "github.com/JamesQQQ1/propvisions-web-sub001/internal/http/handlers"
	httpMW "github.com/JamesQQQ1/propvisions-web-sub001/internal/http/middleware"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/observability"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/services"
)

type Handlers struct {
	Health      *httpH.HealthHandler
	Pipeline    *httpH.PipelineHandler
	Runs        *httpH.RunHandler
	Feedback    *httpH.FeedbackHandler
	Uploads     *httpH.UploadHandler
	MissingRoom *httpH.MissingRoomHandler
}

func wireHandlers(log *logger.Logger, cfg Config, db *gorm.DB, svc Services, clients Clients) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Pinger{
		"db": httpH.PingFunc(func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
	}
	if clients.Redis != nil {
		checks["redis"] = httpH.PingFunc(func(ctx context.Context) error { return clients.Redis.Ping(ctx).Err() })
	}
	if clients.Bucket != nil {
		checks["storage"] = clients.Bucket
	}

	maxBody := int64(0)
	if cfg.MaxUploadFileBytes > 0 {
		maxBody = cfg.MaxUploadFileBytes*services.MaxUploadFiles + 1<<20
	}
	return Handlers{
		Health:      httpH.NewHealthHandler(checks),
		Pipeline:    httpH.NewPipelineHandler(svc.PipelineQuery),
		Runs:        httpH.NewRunHandler(svc.Runs),
		Feedback:    httpH.NewFeedbackHandler(svc.Feedback),
		Uploads:     httpH.NewUploadHandler(log, svc.Uploads, maxBody),
		MissingRoom: httpH.NewMissingRoomHandler(svc.Uploads),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics) *apphttp.Server {
	routerCfg := apphttp.RouterConfig{
		Log:                log,
		AllowedOrigins:     cfg.AllowedOrigins,
		MaxMultipartMemory: 8 << 20,
		DashboardAuth:      httpMW.NewDashboardAuth(log, cfg.DashboardJWTSecret),
		PipelineHandler:    handlers.Pipeline,
		RunHandler:         handlers.Runs,
		FeedbackHandler:    handlers.Feedback,
		UploadHandler:      handlers.Uploads,
		MissingRoomHandler: handlers.MissingRoom,
		HealthHandler:      handlers.Health,
	}
	if cfg.MetricsEnabled {
		routerCfg.Metrics = metrics
	}
	if cfg.Otel.Enabled {
		routerCfg.TracingService = cfg.Otel.ServiceName
	}
	return apphttp.NewServer(":"+cfg.Port, routerCfg)
}
