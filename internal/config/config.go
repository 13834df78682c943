package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

var ErrInvalidValue = errors.New("invalid configuration value")

type Config struct {
	// Dead-letter store
	DBHost        string `envconfig:"DB_HOST" default:"postgres"`
	DBPort        int    `envconfig:"DB_PORT" default:"5432"`
	DBUser        string `envconfig:"DB_USER" default:"newsdesk"`
	DBPass        string `envconfig:"DB_PASS" default:"password"`
	DBName        string `envconfig:"DB_NAME" default:"newsdesk"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`
	// NSQMaxMsgTimeoutMinutes must equal nsqd's --max-msg-timeout. nsqd refuses
	// longer msg timeouts and stops honouring TOUCH past it.
	NSQMaxMsgTimeoutMinutes int `envconfig:"NSQ_MAX_MSG_TIMEOUT_MINUTES" default:"90"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"redis:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Object storage
	S3Endpoint      string `envconfig:"S3_ENDPOINT" default:"s3.ap-south-1.amazonaws.com"`
	S3Region        string `envconfig:"S3_REGION" default:"ap-south-1"`
	S3Bucket        string `envconfig:"S3_BUCKET"`
	S3AccessKey     string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey     string `envconfig:"S3_SECRET_KEY"`
	S3UseSSL        bool   `envconfig:"S3_USE_SSL" default:"true"`
	S3PublicBaseURL string `envconfig:"S3_PUBLIC_BASE_URL"`
	S3KeyPrefix     string `envconfig:"S3_KEY_PREFIX" default:"digital"`

	// Classification oracle
	GeminiAPIKeys      []string `envconfig:"GEMINI_API_KEYS"`
	GeminiEndpoint     string   `envconfig:"GEMINI_ENDPOINT"`
	GeminiContentModel string   `envconfig:"GEMINI_CONTENT_MODEL" default:"gemini-2.5-flash"`
	GeminiTextModel    string   `envconfig:"GEMINI_TEXT_MODEL" default:"gemini-2.0-flash"`
	GeminiAdModel      string   `envconfig:"GEMINI_AD_MODEL" default:"gemini-2.0-flash"`
	KeyCounterName     string   `envconfig:"KEY_COUNTER_NAME" default:"celery_worker_ML_key_idx_v2"`
	// TopicTaxonomy replaces the built-in ministry list when set.
	TopicTaxonomy      []string `envconfig:"TOPIC_TAXONOMY"`

	// Segmentation oracle
	SegmentationURL            string `envconfig:"SEGMENTATION_URL" default:"http://segmentation:8000/segment"`
	SegmentationAPIKey         string `envconfig:"SEGMENTATION_API_KEY"`
	SegmentationTimeoutSeconds int    `envconfig:"SEGMENTATION_TIMEOUT_SECONDS" default:"120"`

	// Rasterization
	MutoolPath           string `envconfig:"MUTOOL_PATH" default:"mutool"`
	RasterChunkSize      int    `envconfig:"RASTER_CHUNK_SIZE" default:"3"`
	RasterTimeoutSeconds int    `envconfig:"RASTER_TIMEOUT_SECONDS" default:"90"`
	RasterMaxRetries     int    `envconfig:"RASTER_MAX_RETRIES" default:"3"`
	RasterMemoryLimitMB  int    `envconfig:"RASTER_MEMORY_LIMIT_MB" default:"1500"`
	RasterMaxDimension   int    `envconfig:"RASTER_MAX_DIMENSION" default:"3000"`
	RasterConvertWorkers int    `envconfig:"RASTER_CONVERT_WORKERS" default:"4"`

	SegmentMaxDimension int `envconfig:"SEGMENT_MAX_DIMENSION" default:"3000"`
	CropQuality         int `envconfig:"CROP_QUALITY" default:"85"`
	AnalyzeMaxDimension int `envconfig:"ANALYZE_MAX_DIMENSION" default:"2000"`
	AnalyzeQuality      int `envconfig:"ANALYZE_QUALITY" default:"85"`

	// 0 leaves per-stage fan-out unbounded.
	FanoutLimit int    `envconfig:"FANOUT_LIMIT" default:"0"`
	ScratchDir  string `envconfig:"SCRATCH_DIR"`

	// Downstream receiver
	NotifyURL              string `envconfig:"NOTIFY_URL"`
	NotifyTimeoutSeconds   int    `envconfig:"NOTIFY_TIMEOUT_SECONDS" default:"45"`
	NotifyMaxRetries       int    `envconfig:"NOTIFY_MAX_RETRIES" default:"5"`
	NotifyBaseDelaySeconds int    `envconfig:"NOTIFY_BASE_DELAY_SECONDS" default:"600"`

	// Queue-level task retry
	DocumentMaxRetries        int `envconfig:"DOCUMENT_MAX_RETRIES" default:"3"`
	DocumentRetryDelaySeconds int `envconfig:"DOCUMENT_RETRY_DELAY_SECONDS" default:"300"`
	DigitalMaxRetries         int `envconfig:"DIGITAL_MAX_RETRIES" default:"3"`
	DigitalRetryDelaySeconds  int `envconfig:"DIGITAL_RETRY_DELAY_SECONDS" default:"180"`
	DocumentTimeoutMinutes    int `envconfig:"DOCUMENT_TIMEOUT_MINUTES" default:"60"`

	ProgressTTLSeconds int `envconfig:"PROGRESS_TTL_SECONDS" default:"3600"`

	EnableAPI            bool `envconfig:"ENABLE_API" default:"true"`
	EnableDocumentWorker bool `envconfig:"ENABLE_DOCUMENT_WORKER" default:"true"`
	EnableDigitalWorker  bool `envconfig:"ENABLE_DIGITAL_WORKER" default:"true"`
	EnableNotifyWorker   bool `envconfig:"ENABLE_NOTIFY_WORKER" default:"true"`
	WorkerConcurrency    int  `envconfig:"WORKER_CONCURRENCY" default:"2"`

	// Server
	ServerPort  int    `envconfig:"SERVER_PORT" default:"8081"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	UploadMaxMB int64  `envconfig:"UPLOAD_MAX_MB" default:"50"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Try loading .env from current dir and repo root
	// Ignore errors, as env vars might be set in the shell
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("%w: REDIS_ADDR", ErrMissingRequired)
	}
	if c.EnableDocumentWorker || c.EnableDigitalWorker {
		if c.S3Bucket == "" {
			return fmt.Errorf("%w: S3_BUCKET", ErrMissingRequired)
		}
		if len(c.APIKeys()) == 0 {
			return fmt.Errorf("%w: GEMINI_API_KEYS", ErrMissingRequired)
		}
	}
	if c.RasterChunkSize < 1 {
		return fmt.Errorf("%w: RASTER_CHUNK_SIZE must be positive", ErrInvalidValue)
	}
	if c.RasterMaxRetries < 0 {
		return fmt.Errorf("%w: RASTER_MAX_RETRIES must not be negative", ErrInvalidValue)
	}
	if c.FanoutLimit < 0 {
		return fmt.Errorf("%w: FANOUT_LIMIT must not be negative", ErrInvalidValue)
	}
	if c.NSQMaxMsgTimeoutMinutes < 1 {
		return fmt.Errorf("%w: NSQ_MAX_MSG_TIMEOUT_MINUTES must be positive", ErrInvalidValue)
	}
	if c.EnableDocumentWorker && c.DocumentTimeout()+MsgTimeoutGrace > c.NSQMaxMsgTimeout() {
		return fmt.Errorf("%w: DOCUMENT_TIMEOUT_MINUTES plus %s exceeds NSQ_MAX_MSG_TIMEOUT_MINUTES",
			ErrInvalidValue, MsgTimeoutGrace)
	}
	return nil
}

// MsgTimeoutGrace is how long nsq keeps a message in flight after the
// attempt's deadline, so the requeue or dead-letter write lands before
// nsqd redelivers it.
const MsgTimeoutGrace = time.Minute

func (c *Config) DocumentTimeout() time.Duration {
	return time.Duration(c.DocumentTimeoutMinutes) * time.Minute
}

func (c *Config) NSQMaxMsgTimeout() time.Duration {
	return time.Duration(c.NSQMaxMsgTimeoutMinutes) * time.Minute
}

// APIKeys returns the non-empty oracle credentials in pool order.
func (c *Config) APIKeys() []string {
	keys := make([]string, 0, len(c.GeminiAPIKeys))
	for _, k := range c.GeminiAPIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPass, c.DBName)
}

func (c *Config) RasterTimeout() time.Duration {
	return time.Duration(c.RasterTimeoutSeconds) * time.Second
}

func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.NotifyTimeoutSeconds) * time.Second
}

func (c *Config) NotifyBaseDelay() time.Duration {
	return time.Duration(c.NotifyBaseDelaySeconds) * time.Second
}

func (c *Config) DocumentRetryDelay() time.Duration {
	return time.Duration(c.DocumentRetryDelaySeconds) * time.Second
}

func (c *Config) DigitalRetryDelay() time.Duration {
	return time.Duration(c.DigitalRetryDelaySeconds) * time.Second
}

func (c *Config) ProgressTTL() time.Duration {
	return time.Duration(c.ProgressTTLSeconds) * time.Second
}
