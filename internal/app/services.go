package app

import (
	"gorm.io/gorm"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/notify"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/services"
)

type Services struct {
	PipelineQuery services.PipelineQueryService
	Runs          services.RunService
	Feedback      services.FeedbackService
	Uploads       services.UploadTokenService
	Notifier      *notify.Fanout
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos, clients Clients) Services {
	log.Info("Wiring services...")

	latency := services.NewLatencyJoiner(log, reposet.StageRun)
	notifier := wireNotifier(log, cfg, clients)

	var blobs services.BlobStore
	if clients.Bucket != nil {
		blobs = clients.Bucket
	}

	return Services{
		PipelineQuery: services.NewPipelineQueryService(log, reposet.IngestJob, reposet.Run, reposet.Property, latency),
		Runs:          services.NewRunService(db, log, reposet.Run, reposet.StageRun),
		Feedback:      services.NewFeedbackService(log, reposet.FeedbackEvent, cfg.FeedbackWindowDays),
		Uploads: services.NewUploadTokenService(log, reposet.MissingRoomRequest, blobs, notifier, services.UploadTokenConfig{
			TokenTTL:       cfg.UploadTokenTTL,
			NotifyTimeout:  cfg.NotifyTimeout,
			MaxUploadBytes: cfg.MaxUploadFileBytes,
		}),
		Notifier: notifier,
	}
}

// wireNotifier only adds sinks whose backing client is configured.
func wireNotifier(log *logger.Logger, cfg Config, clients Clients) *notify.Fanout {
	var sinks []notify.Sink
	if s := notify.NewWebhookSink(notify.WebhookConfig{URL: cfg.NotifyWebhookURL, Timeout: cfg.NotifyTimeout}); s != nil {
		sinks = append(sinks, s)
	}
	if clients.Redis != nil {
		sinks = append(sinks, notify.NewRedisSink(clients.Redis, cfg.RedisChannel))
	}
	if clients.Temporal != nil {
		sinks = append(sinks, notify.NewTemporalSink(clients.Temporal, cfg.Temporal.TaskQueue, cfg.MissingRoomWorkflow))
	}
	f := notify.NewFanout(log, sinks...)
	log.Info("upload notifier configured", "sinks", f.Sinks())
	return f
}
