package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/notify"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/gcp"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/temporalx"
)

// Clients holds the optional external connections. Any of them may be nil
// when its configuration is absent.
type Clients struct {
	Redis    *goredis.Client
	Temporal temporalclient.Client
	Bucket   *gcp.UploadBucket
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")
	var out Clients

	rdb, err := notify.DialRedis(ctx, cfg.RedisAddr)
	if err != nil {
		return out, fmt.Errorf("init redis: %w", err)
	}
	out.Redis = rdb

	tc, err := temporalx.NewClient(ctx, log, cfg.Temporal)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init temporal: %w", err)
	}
	out.Temporal = tc

	if cfg.UploadBucket == "" {
		log.Warn("UPLOAD_GCS_BUCKET_NAME not set; missing-room uploads disabled")
		return out, nil
	}
	storageCfg, err := gcp.ResolveStorageConfig(cfg.ObjectStorageMode, cfg.StorageEmulatorHost, cfg.UploadBucket, cfg.UploadCDNDomain, cfg.StoragePublicBase)
	if err != nil {
		out.Close()
		return Clients{}, err
	}
	bucket, err := gcp.NewUploadBucket(ctx, log, storageCfg)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init upload bucket: %w", err)
	}
	out.Bucket = bucket
	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Bucket != nil {
		_ = c.Bucket.Close()
	}
}
