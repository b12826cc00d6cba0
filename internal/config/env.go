package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvLocal = "local"
	EnvCloud = "cloud"
)

type Config struct {
	RunningEnv  string   `yaml:"running_env"`
	Port        string   `yaml:"port"`
	LogLevel    string   `yaml:"log_level"`
	LogFormat   string   `yaml:"log_format"`
	CORSOrigins []string `yaml:"cors_origins"`
	JWTSecret   string   `yaml:"jwt_secret"`

	// object storage
	BucketName      string `yaml:"bucket_name"`
	AwsRegion       string `yaml:"aws_region"`
	AwsAccessKey    string `yaml:"aws_access_key"`
	AwsSecretKey    string `yaml:"aws_secret_key"`
	S3Endpoint      string `yaml:"s3_endpoint"`
	LocalStorageDir string `yaml:"local_storage_dir"`

	// models
	AIAPIKey            string  `yaml:"gemini_api_key"`
	EmbedModel          string  `yaml:"embed_model"`
	GenModel            string  `yaml:"gen_model"`
	LocalOpenAIBaseURL  string  `yaml:"local_openai_base_url"`
	LocalOpenAIAPIKey   string  `yaml:"local_openai_api_key"`
	LocalEmbeddingModel string  `yaml:"local_embedding_model"`
	LocalChatModel      string  `yaml:"local_chat_model"`
	ChatTemperature     float64 `yaml:"chat_temperature"`
	EmbedConcurrency    int     `yaml:"embed_concurrency"`
	EmbedRateLimit      float64 `yaml:"embed_rate_limit"`

	// vector index
	DatabaseURL      string `yaml:"database_url"`
	SslCertPath      string `yaml:"ssl_cert_path"`
	IndexName        string `yaml:"index_name"`
	EmbedDim         int    `yaml:"embed_dim"`
	QdrantURL        string `yaml:"qdrant_url"`
	QdrantAPIKey     string `yaml:"qdrant_api_key"`
	QdrantCollection string `yaml:"qdrant_collection"`
	IndexBatchSize   int    `yaml:"index_batch_size"`
	IngestCategory   string `yaml:"ingest_category"`

	// background ingestion
	IngestWorkers   int           `yaml:"ingest_workers"`
	IngestQueueSize int           `yaml:"ingest_queue_size"`
	IngestTimeout   time.Duration `yaml:"ingest_timeout"`

	// ragctl
	APIURL string `yaml:"api_url"`

	RedisAddr         string        `yaml:"redis_addr"`
	RedisPassword     string        `yaml:"redis_password"`
	EmbedCacheTTL     time.Duration `yaml:"embed_cache_ttl"`
	KafkaBrokers      []string      `yaml:"kafka_brokers"`
	KafkaOutcomeTopic string        `yaml:"kafka_outcome_topic"`
	MetricsEnabled    bool          `yaml:"metrics_enabled"`
}

// IsLocal reports whether the local stack was selected.
func (c *Config) IsLocal() bool {
	return c.RunningEnv == EnvLocal
}

func defaults() *Config {
	return &Config{
		RunningEnv:          EnvCloud,
		Port:                "8080",
		LogLevel:            "info",
		LogFormat:           "json",
		CORSOrigins:         []string{"*"},
		BucketName:          "documents",
		AwsRegion:           "us-east-2",
		LocalStorageDir:     "./data/blobs",
		EmbedModel:          "text-embedding-004",
		GenModel:            "gemini-1.5-flash",
		LocalOpenAIBaseURL:  "http://localhost:11434/v1",
		LocalOpenAIAPIKey:   "ollama",
		LocalEmbeddingModel: "nomic-embed-text",
		LocalChatModel:      "llama3",
		ChatTemperature:     0.3,
		EmbedConcurrency:    5,
		IndexName:           "document_chunks",
		EmbedDim:            768,
		QdrantURL:           "http://localhost:6333",
		QdrantCollection:    "documents",
		IndexBatchSize:      1000,
		IngestCategory:      "automatic-ingest",
		IngestWorkers:       2,
		IngestQueueSize:     64,
		IngestTimeout:       5 * time.Minute,
		APIURL:              "http://localhost:8080",
		EmbedCacheTTL:       24 * time.Hour,
		KafkaOutcomeTopic:   "ingestion-outcomes",
		MetricsEnabled:      true,
	}
}

// Load builds the configuration from defaults, the optional YAML file named by
// CONFIG_FILE and the environment, in increasing order of precedence. A .env
// file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.RunningEnv = strings.ToLower(getEnv("RUNNING_ENV", c.RunningEnv))
	c.Port = getEnv("PORT", c.Port)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.CORSOrigins = getEnvList("CORS_ORIGINS", c.CORSOrigins)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)

	c.BucketName = getEnv("BUCKET_NAME", c.BucketName)
	c.AwsRegion = getEnv("AWS_REGION", c.AwsRegion)
	c.AwsAccessKey = getEnv("AWS_ACCESS_KEY", c.AwsAccessKey)
	c.AwsSecretKey = getEnv("AWS_SECRET_KEY", c.AwsSecretKey)
	c.S3Endpoint = getEnv("S3_ENDPOINT", c.S3Endpoint)
	c.LocalStorageDir = getEnv("LOCAL_STORAGE_DIR", c.LocalStorageDir)

	c.AIAPIKey = getEnv("GEMINI_API_KEY", c.AIAPIKey)
	c.EmbedModel = getEnv("EMBED_MODEL", c.EmbedModel)
	c.GenModel = getEnv("GEN_MODEL", c.GenModel)
	c.LocalOpenAIBaseURL = getEnv("LOCAL_OPENAI_BASE_URL", c.LocalOpenAIBaseURL)
	c.LocalOpenAIAPIKey = getEnv("LOCAL_OPENAI_API_KEY", c.LocalOpenAIAPIKey)
	c.LocalEmbeddingModel = getEnv("LOCAL_EMBEDDING_MODEL", c.LocalEmbeddingModel)
	c.LocalChatModel = getEnv("LOCAL_CHAT_MODEL", c.LocalChatModel)
	c.ChatTemperature = getEnvFloat("CHAT_TEMPERATURE", c.ChatTemperature)
	c.EmbedConcurrency = getEnvInt("EMBED_CONCURRENCY", c.EmbedConcurrency)
	c.EmbedRateLimit = getEnvFloat("EMBED_RATE_LIMIT", c.EmbedRateLimit)

	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.SslCertPath = getEnv("SSL_CERT_PATH", c.SslCertPath)
	c.IndexName = getEnv("INDEX_NAME", c.IndexName)
	c.EmbedDim = getEnvInt("EMBED_DIM", c.EmbedDim)
	c.QdrantURL = getEnv("QDRANT_URL", c.QdrantURL)
	c.QdrantAPIKey = getEnv("QDRANT_API_KEY", c.QdrantAPIKey)
	c.QdrantCollection = getEnv("QDRANT_COLLECTION", c.QdrantCollection)
	c.IndexBatchSize = getEnvInt("INDEX_BATCH_SIZE", c.IndexBatchSize)
	c.IngestCategory = getEnv("INGEST_CATEGORY", c.IngestCategory)
	c.IngestWorkers = getEnvInt("INGEST_WORKERS", c.IngestWorkers)
	c.IngestQueueSize = getEnvInt("INGEST_QUEUE_SIZE", c.IngestQueueSize)
	c.IngestTimeout = getEnvDuration("INGEST_TIMEOUT", c.IngestTimeout)
	c.APIURL = getEnv("API_URL", c.APIURL)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.EmbedCacheTTL = getEnvDuration("EMBED_CACHE_TTL", c.EmbedCacheTTL)
	c.KafkaBrokers = getEnvList("KAFKA_BROKERS", c.KafkaBrokers)
	c.KafkaOutcomeTopic = getEnv("KAFKA_OUTCOME_TOPIC", c.KafkaOutcomeTopic)
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)
}

// Validate checks that the selected stack has what it needs to start.
func (c *Config) Validate() error {
	var errs []error
	switch c.RunningEnv {
	case EnvLocal:
		if c.LocalStorageDir == "" {
			errs = append(errs, errors.New("LOCAL_STORAGE_DIR not set"))
		}
		if c.QdrantURL == "" {
			errs = append(errs, errors.New("QDRANT_URL not set"))
		}
	case EnvCloud:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL not set"))
		}
		if c.AIAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY not set"))
		}
		if c.BucketName == "" {
			errs = append(errs, errors.New("BUCKET_NAME not set"))
		}
		if c.EmbedDim <= 0 {
			errs = append(errs, fmt.Errorf("EMBED_DIM must be positive, got %d", c.EmbedDim))
		}
	default:
		errs = append(errs, fmt.Errorf("RUNNING_ENV must be %q or %q, got %q", EnvLocal, EnvCloud, c.RunningEnv))
	}
	return errors.Join(errs...)
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("config value is not an int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("config value is not a number, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func getEnvBool(key string, def bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn("config value is not a bool, using default", "key", key, "value", v, "default", def)
		return def
	}
	return b
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("config value is not a duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

// getEnvList splits a comma separated value, dropping empty entries.
func getEnvList(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
