package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/JamesQQQ1/propvisions-web-sub001/internal/http/handlers"
	httpMW "github.com/JamesQQQ1/propvisions-web-sub001/internal/http/middleware"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/observability"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	AllowedOrigins []string

	// TracingService enables otelgin spans when set.
	TracingService string

	// MaxMultipartMemory bounds in-memory multipart buffering; the rest spills to disk.
	MaxMultipartMemory int64

	DashboardAuth *httpMW.DashboardAuth

	PipelineHandler    *httpH.PipelineHandler
	RunHandler         *httpH.RunHandler
	FeedbackHandler    *httpH.FeedbackHandler
	UploadHandler      *httpH.UploadHandler
	MissingRoomHandler *httpH.MissingRoomHandler
	HealthHandler      *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.MaxMultipartMemory > 0 {
		r.MaxMultipartMemory = cfg.MaxMultipartMemory
	}
	if cfg.TracingService != "" {
		r.Use(otelgin.Middleware(cfg.TracingService))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")

	// Token-holders (public; the token is the credential)
	if cfg.UploadHandler != nil {
		api.GET("/uploads/missing-room", cfg.UploadHandler.Validate)
		api.POST("/uploads/missing-room", cfg.UploadHandler.Accept)
	}
	// Feedback comes from the public report page
	if cfg.FeedbackHandler != nil {
		api.POST("/feedback", cfg.FeedbackHandler.Record)
	}

	protected := api.Group("/")
	if cfg.DashboardAuth != nil {
		protected.Use(cfg.DashboardAuth.RequireAuth())
	}

	// Dashboard reads
	if cfg.PipelineHandler != nil {
		protected.GET("/jobs", cfg.PipelineHandler.ListJobs)
		protected.GET("/runs", cfg.PipelineHandler.ListRuns)
		protected.GET("/properties", cfg.PipelineHandler.ListProperties)
	}
	if cfg.FeedbackHandler != nil {
		protected.GET("/metrics", cfg.FeedbackHandler.Metrics)
	}

	// Runs
	if cfg.RunHandler != nil {
		protected.GET("/runs/:run_id", cfg.RunHandler.Get)
		protected.POST("/runs/:run_id/stages", cfg.RunHandler.RecordStage)
		protected.POST("/runs/:run_id/cancel", cfg.RunHandler.Cancel)
	}

	// Missing room requests (operator)
	if cfg.MissingRoomHandler != nil {
		protected.POST("/missing-rooms", cfg.MissingRoomHandler.Create)
		protected.GET("/missing-rooms/:id", cfg.MissingRoomHandler.Get)
		protected.POST("/missing-rooms/:id/token", cfg.MissingRoomHandler.IssueToken)
		protected.POST("/missing-rooms/:id/emailed", cfg.MissingRoomHandler.MarkEmailed)
		protected.POST("/missing-rooms/:id/processing", cfg.MissingRoomHandler.MarkProcessing)
		protected.POST("/missing-rooms/:id/close", cfg.MissingRoomHandler.Close)
	}

	return r
}
