package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Queue     QueueConfig     `yaml:"queue" mapstructure:"queue"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	RAG       RAGConfig       `yaml:"rag" mapstructure:"rag"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Pinecone  PineconeConfig  `yaml:"pinecone" mapstructure:"pinecone"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite" or "postgres"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// QueueConfig configures the scrape job queue.
type QueueConfig struct {
	Broker           string `yaml:"broker" mapstructure:"broker"` // "memory" or "redis"
	RedisAddr        string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword    string `yaml:"redis_password" mapstructure:"redis_password"`
	Concurrency      int    `yaml:"concurrency" mapstructure:"concurrency"`
	MaxAttempts      int    `yaml:"max_attempts" mapstructure:"max_attempts"`
	FailOnIndexError bool   `yaml:"fail_on_index_error" mapstructure:"fail_on_index_error"`
}

// BrowserConfig configures the headless browser sessions used by scrapers.
type BrowserConfig struct {
	UserAgent   string        `yaml:"user_agent" mapstructure:"user_agent"`
	NavTimeout  time.Duration `yaml:"nav_timeout" mapstructure:"nav_timeout"`
	WaitTimeout time.Duration `yaml:"wait_timeout" mapstructure:"wait_timeout"`
}

// ScrapeConfig configures per-scrape retry behavior.
type ScrapeConfig struct {
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
}

// RAGConfig configures chunking and retrieval.
type RAGConfig struct {
	ChunkSize        int  `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkOverlap     int  `yaml:"chunk_overlap" mapstructure:"chunk_overlap"`
	RetrievalTopK    int  `yaml:"retrieval_top_k" mapstructure:"retrieval_top_k"`
	HybridSearch     bool `yaml:"hybrid_search" mapstructure:"hybrid_search"`
	Rerank           bool `yaml:"rerank" mapstructure:"rerank"`
	EmbedConcurrency int  `yaml:"embed_concurrency" mapstructure:"embed_concurrency"`
}

// OpenAIConfig holds embedding API settings.
type OpenAIConfig struct {
	Key            string  `yaml:"key" mapstructure:"key"`
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	EmbeddingModel string  `yaml:"embedding_model" mapstructure:"embedding_model"`
	RatePerSecond  float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// PineconeConfig holds vector index settings.
type PineconeConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	IndexHost string `yaml:"index_host" mapstructure:"index_host"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}

// AnthropicConfig holds Anthropic API settings for reranking and synthesis.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	RerankModel string `yaml:"rerank_model" mapstructure:"rerank_model"`
	AnswerModel string `yaml:"answer_model" mapstructure:"answer_model"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// AuthConfig configures JWT bearer auth for the API.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("EVENTSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "eventscope.db")
	v.SetDefault("queue.broker", "memory")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.fail_on_index_error", false)
	v.SetDefault("browser.nav_timeout", "30s")
	v.SetDefault("browser.wait_timeout", "10s")
	v.SetDefault("browser.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36")
	v.SetDefault("scrape.max_retries", 3)
	v.SetDefault("scrape.retry_delay", "1s")
	v.SetDefault("rag.chunk_size", 1000)
	v.SetDefault("rag.chunk_overlap", 200)
	v.SetDefault("rag.retrieval_top_k", 5)
	v.SetDefault("rag.hybrid_search", true)
	v.SetDefault("rag.rerank", false)
	v.SetDefault("rag.embed_concurrency", 4)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.rate_per_second", 5)
	v.SetDefault("pinecone.namespace", "events-rag")
	v.SetDefault("anthropic.rerank_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.answer_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
