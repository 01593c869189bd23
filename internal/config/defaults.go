package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key when read from the environment.
const EnvPrefix = "ENRICH"

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	// Worker defaults
	v.SetDefault("worker.client_id", "")
	v.SetDefault("worker.poll_interval_ms", 30000)
	v.SetDefault("worker.max_retry_attempts", 3)
	v.SetDefault("worker.retry_backoff_minutes", []int{5, 10, 20})
	v.SetDefault("worker.max_error_backoff", "5m")
	v.SetDefault("worker.job_timeout", "15m")
	v.SetDefault("worker.fail_fast_permanent", true)
	v.SetDefault("worker.temp_dir", "")
	v.SetDefault("worker.language", "en")
	v.SetDefault("worker.transcription_threshold", "60s")
	v.SetDefault("worker.chunk_duration", "60s")
	v.SetDefault("worker.chunk_concurrency", 2)
	v.SetDefault("worker.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "postgres")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "analytics")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.schema", "public")
	v.SetDefault("database.max_connections", 5)
	v.SetDefault("database.min_connections", 1)

	// Media defaults
	v.SetDefault("media.max_image_bytes", 10*1024*1024)
	v.SetDefault("media.max_video_bytes", 500*1024*1024)
	v.SetDefault("media.image_timeout", "15s")
	v.SetDefault("media.video_timeout", "30s")

	// Vertex AI defaults
	v.SetDefault("vertex.project", "")
	v.SetDefault("vertex.location", "us-central1")
	v.SetDefault("vertex.model", "multimodalembedding@001")
	v.SetDefault("vertex.dimension", 1408)
	v.SetDefault("vertex.timeout", "60s")
	v.SetDefault("vertex.use_adc", true)
	v.SetDefault("vertex.api_key", "")
	v.SetDefault("vertex.endpoint", "")

	// Embedding defaults
	v.SetDefault("embedding.model_tag", "embedding-001")
	v.SetDefault("embedding.max_text_bytes", 1024)

	// Speech defaults
	v.SetDefault("speech.api_key", "")
	v.SetDefault("speech.base_url", "https://speech.googleapis.com/v1")
	v.SetDefault("speech.timeout", "60s")
	v.SetDefault("speech.use_enhanced", true)
	v.SetDefault("speech.use_adc", false)

	// FFmpeg defaults
	v.SetDefault("ffmpeg.ffmpeg_path", "ffmpeg")
	v.SetDefault("ffmpeg.ffprobe_path", "ffprobe")

	// NATS defaults
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("nats.max_reconnects", 5)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.stream", "ENRICHMENT")
	v.SetDefault("nats.subject_prefix", "enrichment")
	v.SetDefault("nats.wake_subject", "enrichment.jobs.enqueued")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.export_interval", "60s")

	// Logging defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
}

// legacyEnv maps keys to the variable names used by existing deployments.
var legacyEnv = map[string]string{ //nolint:gochecknoglobals // static lookup table
	"worker.poll_interval_ms":      "POLL_INTERVAL_MS",
	"worker.max_retry_attempts":    "MAX_RETRY_ATTEMPTS",
	"worker.retry_backoff_minutes": "RETRY_BACKOFF_MINUTES",
	"worker.client_id":             "CLIENT_ID",
	"database.host":                "POSTGRES_HOST",
	"database.port":                "POSTGRES_PORT",
	"database.name":                "POSTGRES_DB",
	"database.user":                "POSTGRES_USER",
	"database.password":            "POSTGRES_PASSWORD",
	"speech.api_key":               "GOOGLE_API_KEY",
	"vertex.project":               "GOOGLE_CLOUD_PROJECT",
	"vertex.location":              "VERTEX_AI_LOCATION",
	"log.level":                    "LOG_LEVEL",
}

// BindEnv enables ENRICH_* variables and the legacy names. The prefixed name wins
// when both are set.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return err
		}
	}
	return nil
}
