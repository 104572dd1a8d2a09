package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JamesQQQ1/propvisions-web-sub001/internal/data/db"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/observability"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/envutil"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/platform/logger"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/services"
	"github.com/JamesQQQ1/propvisions-web-sub001/internal/temporalx"
)

type Config struct {
	Port    string
	LogMode string

	DB          db.Options
	AutoMigrate bool

	UploadTokenTTL     time.Duration
	MaxUploadFileBytes int64
	FeedbackWindowDays int

	NotifyWebhookURL string
	NotifyTimeout    time.Duration
	RedisAddr        string
	RedisChannel     string

	Temporal            temporalx.Config
	MissingRoomWorkflow string

	ObjectStorageMode   string
	StorageEmulatorHost string
	UploadBucket        string
	UploadCDNDomain     string
	StoragePublicBase   string

	DashboardJWTSecret string
	AllowedOrigins     []string

	Otel           observability.OtelConfig
	MetricsEnabled bool
}

// LoadConfig reads the environment. When APP_CONFIG_FILE names a YAML file of
// KEY: value pairs, those values fill in any variable the environment leaves unset.
func LoadConfig(log *logger.Logger) (Config, error) {
	if path := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); path != "" {
		n, err := applyOverlay(path)
		if err != nil {
			return Config{}, err
		}
		log.Info("config overlay applied", "path", path, "keys", n)
	}

	otelEndpoint := envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cfg := Config{
		Port:    envutil.String("PORT", "8080"),
		LogMode: envutil.String("LOG_MODE", "development"),
		DB: db.Options{
			Driver:     envutil.String("DB_DRIVER", "postgres"),
			Host:       envutil.String("POSTGRES_HOST", "localhost"),
			Port:       envutil.String("POSTGRES_PORT", "5432"),
			User:       envutil.String("POSTGRES_USER", "postgres"),
			Password:   envutil.String("POSTGRES_PASSWORD", ""),
			Name:       envutil.String("POSTGRES_NAME", "propvisions"),
			SSLMode:    envutil.String("POSTGRES_SSLMODE", "disable"),
			SQLitePath: envutil.String("SQLITE_PATH", ""),
			LogLevel:   envutil.String("DB_LOG_LEVEL", "warn"),
		},
		AutoMigrate: envutil.Bool("DB_AUTO_MIGRATE", true),

		UploadTokenTTL:     time.Duration(envutil.Int("UPLOAD_TOKEN_TTL_HOURS", 7*24)) * time.Hour,
		MaxUploadFileBytes: int64(envutil.Int("UPLOAD_MAX_FILE_MB", 20)) << 20,
		FeedbackWindowDays: envutil.Int("FEEDBACK_WINDOW_DAYS", services.DefaultWindowDays),

		NotifyWebhookURL: envutil.String("NOTIFY_WEBHOOK_URL", ""),
		NotifyTimeout:    envutil.Seconds("NOTIFY_TIMEOUT_SECONDS", 10*time.Second),
		RedisAddr:        envutil.String("REDIS_ADDR", ""),
		RedisChannel:     envutil.String("REDIS_CHANNEL", ""),

		Temporal: temporalx.Config{
			Address:        envutil.String("TEMPORAL_ADDRESS", ""),
			Namespace:      envutil.String("TEMPORAL_NAMESPACE", "default"),
			TaskQueue:      envutil.String("TEMPORAL_TASK_QUEUE", "propvisions"),
			ClientCertPath: envutil.String("TEMPORAL_CLIENT_CERT_PATH", ""),
			ClientKeyPath:  envutil.String("TEMPORAL_CLIENT_KEY_PATH", ""),
			ClientCAPath:   envutil.String("TEMPORAL_CLIENT_CA_PATH", ""),
			DialTimeout:    envutil.Seconds("TEMPORAL_DIAL_TIMEOUT_SECONDS", 5*time.Second),
			MaxWait:        envutil.Seconds("TEMPORAL_DIAL_MAX_WAIT_SECONDS", 30*time.Second),
		},
		MissingRoomWorkflow: envutil.String("MISSING_ROOM_WORKFLOW", ""),

		ObjectStorageMode:   envutil.String("OBJECT_STORAGE_MODE", ""),
		StorageEmulatorHost: envutil.String("STORAGE_EMULATOR_HOST", ""),
		UploadBucket:        envutil.String("UPLOAD_GCS_BUCKET_NAME", ""),
		UploadCDNDomain:     envutil.String("UPLOAD_CDN_DOMAIN", ""),
		StoragePublicBase:   envutil.String("OBJECT_STORAGE_PUBLIC_BASE_URL", ""),

		DashboardJWTSecret: envutil.String("DASHBOARD_JWT_SECRET", ""),
		AllowedOrigins:     envutil.List("CORS_ALLOWED_ORIGINS", nil),

		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", otelEndpoint != ""),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "propvisions-api"),
			Environment: envutil.String("OTEL_ENVIRONMENT", "development"),
			Version:     envutil.String("OTEL_SERVICE_VERSION", ""),
			Endpoint:    otelEndpoint,
			Headers:     observability.ParseHeaders(envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "")),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
			SampleRatio: envutil.Float("OTEL_SAMPLE_RATIO", 1),
		},
		MetricsEnabled: envutil.Bool("METRICS_ENABLED", true),
	}
	if cfg.UploadTokenTTL <= 0 {
		cfg.UploadTokenTTL = services.DefaultTokenTTL
	}
	return cfg, nil
}

func applyOverlay(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read config overlay %q: %w", path, err)
	}
	values := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return 0, fmt.Errorf("parse config overlay %q: %w", path, err)
	}
	n := 0
	for k, v := range values {
		key := strings.ToUpper(strings.TrimSpace(k))
		if key == "" || v == nil {
			continue
		}
		if _, set := os.LookupEnv(key); set {
			continue
		}
		if err := os.Setenv(key, overlayString(v)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func overlayString(v interface{}) string {
	switch t := v.(type) {
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}
