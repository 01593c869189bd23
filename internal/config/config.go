package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config holds the complete application configuration.
type Config struct {
	Worker    WorkerConfig    `mapstructure:"worker"    yaml:"worker"`
	Database  DatabaseConfig  `mapstructure:"database"  yaml:"database"`
	Media     MediaConfig     `mapstructure:"media"     yaml:"media"`
	Vertex    VertexConfig    `mapstructure:"vertex"    yaml:"vertex"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding"`
	Speech    SpeechConfig    `mapstructure:"speech"    yaml:"speech"`
	FFmpeg    FFmpegConfig    `mapstructure:"ffmpeg"    yaml:"ffmpeg"`
	NATS      NATSConfig      `mapstructure:"nats"      yaml:"nats"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   yaml:"metrics"`
	Log       LogConfig       `mapstructure:"log"       yaml:"log"`
}

// WorkerConfig holds the enrichment loop configuration.
type WorkerConfig struct {
	ClientID               string        `mapstructure:"client_id"               yaml:"client_id"`
	PollIntervalMS         int           `mapstructure:"poll_interval_ms"        yaml:"poll_interval_ms"`
	MaxRetryAttempts       int           `mapstructure:"max_retry_attempts"      yaml:"max_retry_attempts"`
	RetryBackoffMinutes    []int         `mapstructure:"retry_backoff_minutes"   yaml:"retry_backoff_minutes"`
	MaxErrorBackoff        time.Duration `mapstructure:"max_error_backoff"       yaml:"max_error_backoff"`
	JobTimeout             time.Duration `mapstructure:"job_timeout"             yaml:"job_timeout"`
	FailFastPermanent      bool          `mapstructure:"fail_fast_permanent"     yaml:"fail_fast_permanent"`
	TempDir                string        `mapstructure:"temp_dir"                yaml:"temp_dir"`
	Language               string        `mapstructure:"language"                yaml:"language"`
	TranscriptionThreshold time.Duration `mapstructure:"transcription_threshold" yaml:"transcription_threshold"`
	ChunkDuration          time.Duration `mapstructure:"chunk_duration"          yaml:"chunk_duration"`
	ChunkConcurrency       int           `mapstructure:"chunk_concurrency"       yaml:"chunk_concurrency"`
	ShutdownTimeout        time.Duration `mapstructure:"shutdown_timeout"        yaml:"shutdown_timeout"`
}

// PollInterval returns the idle sleep between claims.
func (w WorkerConfig) PollInterval() time.Duration {
	return time.Duration(w.PollIntervalMS) * time.Millisecond
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host           string `mapstructure:"host"            yaml:"host"`
	Port           int    `mapstructure:"port"            yaml:"port"`
	User           string `mapstructure:"user"            yaml:"user"`
	Password       string `mapstructure:"password"        yaml:"password"`
	Name           string `mapstructure:"name"            yaml:"name"`
	SSLMode        string `mapstructure:"sslmode"         yaml:"sslmode"`
	Schema         string `mapstructure:"schema"          yaml:"schema"`
	MaxConnections int    `mapstructure:"max_connections" yaml:"max_connections"`
	MinConnections int    `mapstructure:"min_connections" yaml:"min_connections"`
}

// DSN returns the database connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// MediaConfig bounds remote media downloads.
type MediaConfig struct {
	MaxImageBytes int64         `mapstructure:"max_image_bytes" yaml:"max_image_bytes"`
	MaxVideoBytes int64         `mapstructure:"max_video_bytes" yaml:"max_video_bytes"` // 0 = unlimited
	ImageTimeout  time.Duration `mapstructure:"image_timeout"   yaml:"image_timeout"`
	VideoTimeout  time.Duration `mapstructure:"video_timeout"   yaml:"video_timeout"`
}

// VertexConfig holds Vertex AI multimodal embedding configuration.
type VertexConfig struct {
	Project   string        `mapstructure:"project"   yaml:"project"`
	Location  string        `mapstructure:"location"  yaml:"location"`
	Model     string        `mapstructure:"model"     yaml:"model"`
	Dimension int           `mapstructure:"dimension" yaml:"dimension"`
	Timeout   time.Duration `mapstructure:"timeout"   yaml:"timeout"`
	UseADC    bool          `mapstructure:"use_adc"   yaml:"use_adc"`
	APIKey    string        `mapstructure:"api_key"   yaml:"api_key"`
	Endpoint  string        `mapstructure:"endpoint"  yaml:"endpoint"` // overrides the regional endpoint
}

// EmbeddingConfig controls how embeddings are produced and tagged.
type EmbeddingConfig struct {
	ModelTag     string `mapstructure:"model_tag"      yaml:"model_tag"`
	MaxTextBytes int    `mapstructure:"max_text_bytes" yaml:"max_text_bytes"`
}

// SpeechConfig holds Google Speech-to-Text configuration.
type SpeechConfig struct {
	APIKey      string        `mapstructure:"api_key"      yaml:"api_key"`
	BaseURL     string        `mapstructure:"base_url"     yaml:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"      yaml:"timeout"`
	UseEnhanced bool          `mapstructure:"use_enhanced" yaml:"use_enhanced"`
	UseADC      bool          `mapstructure:"use_adc"      yaml:"use_adc"`
}

// FFmpegConfig locates the media toolchain binaries.
type FFmpegConfig struct {
	FFmpegPath  string `mapstructure:"ffmpeg_path"  yaml:"ffmpeg_path"`
	FFprobePath string `mapstructure:"ffprobe_path" yaml:"ffprobe_path"`
}

// NATSConfig holds NATS configuration.
type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled"        yaml:"enabled"`
	URL           string        `mapstructure:"url"            yaml:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects" yaml:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait" yaml:"reconnect_wait"`
	Stream        string        `mapstructure:"stream"         yaml:"stream"`
	SubjectPrefix string        `mapstructure:"subject_prefix" yaml:"subject_prefix"`
	WakeSubject   string        `mapstructure:"wake_subject"   yaml:"wake_subject"`
}

// MetricsConfig controls the OpenTelemetry meter provider.
type MetricsConfig struct {
	Enabled        bool          `mapstructure:"enabled"         yaml:"enabled"`
	ExportInterval time.Duration `mapstructure:"export_interval" yaml:"export_interval"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// New creates a new Config instance from Viper.
func New(v *viper.Viper) *Config {
	config, err := Load(v)
	if err != nil {
		panic(err)
	}
	return config
}

// Load decodes and validates the configuration.
func Load(v *viper.Viper) (*Config, error) {
	config, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// Decode unmarshals the configuration without validating it.
func Decode(v *viper.Viper) (*Config, error) {
	var config Config

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		StringToIntSliceHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&config, hook); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if config.Worker.TempDir == "" {
		config.Worker.TempDir = os.TempDir()
	}

	return &config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.User == "" {
		return errors.New("database.user is required")
	}

	if c.Database.Name == "" {
		return errors.New("database.name is required")
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return errors.New("database.port must be between 1 and 65535")
	}

	if c.Database.MaxConnections < 1 {
		return errors.New("database.max_connections must be at least 1")
	}

	if c.Database.MinConnections < 0 || c.Database.MinConnections > c.Database.MaxConnections {
		return errors.New("database.min_connections must be between 0 and database.max_connections")
	}

	if c.Vertex.Dimension < 1 {
		return errors.New("vertex.dimension must be at least 1")
	}

	if c.Embedding.MaxTextBytes < 1 {
		return errors.New("embedding.max_text_bytes must be at least 1")
	}

	if c.Media.MaxImageBytes < 1 {
		return errors.New("media.max_image_bytes must be at least 1")
	}

	return nil
}

// ValidateWorker checks the settings only the worker loop needs.
func (c *Config) ValidateWorker() error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Worker.ClientID == "" {
		return errors.New("worker.client_id is required")
	}

	if c.Worker.PollIntervalMS < 1 {
		return errors.New("worker.poll_interval_ms must be at least 1")
	}

	if c.Worker.MaxRetryAttempts < 1 {
		return errors.New("worker.max_retry_attempts must be at least 1")
	}

	if len(c.Worker.RetryBackoffMinutes) == 0 {
		return errors.New("worker.retry_backoff_minutes cannot be empty")
	}

	for _, m := range c.Worker.RetryBackoffMinutes {
		if m < 0 {
			return errors.New("worker.retry_backoff_minutes cannot contain negative values")
		}
	}

	if c.Worker.ChunkDuration <= 0 {
		return errors.New("worker.chunk_duration must be positive")
	}

	if c.Worker.ChunkConcurrency < 1 {
		return errors.New("worker.chunk_concurrency must be at least 1")
	}

	if c.Worker.JobTimeout <= 0 {
		return errors.New("worker.job_timeout must be positive")
	}

	if c.Vertex.Project == "" {
		return errors.New("vertex.project is required")
	}

	if !c.Vertex.UseADC && c.Vertex.APIKey == "" {
		return errors.New("vertex.api_key is required when vertex.use_adc is false")
	}

	if !c.Speech.UseADC && c.Speech.APIKey == "" {
		return errors.New("speech.api_key is required when speech.use_adc is false")
	}

	return nil
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() Config {
	out := *c
	out.Worker.RetryBackoffMinutes = append([]int(nil), c.Worker.RetryBackoffMinutes...)
	out.Database.Password = redact(out.Database.Password)
	out.Vertex.APIKey = redact(out.Vertex.APIKey)
	out.Speech.APIKey = redact(out.Speech.APIKey)
	return out
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}
