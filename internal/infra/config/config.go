package config

import (
	"os"
	"strconv"
	"strings"
)

// Config carries every tunable the engine exposes. Score weights are
// configuration on purpose: the fusion and pool splits have no
// derivation worth hardcoding.
type Config struct {
	Env  string
	Port string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Embedding/completion gateway (OpenAI-compatible API).
	GatewayBaseURL      string
	GatewayAPIKey       string
	EmbeddingModel      string
	CompletionModel     string
	GatewayTimeoutSec   int
	GatewayMaxRetries   int
	GatewayRatePerSec   float64
	EmbeddingCacheSize  int
	EmbeddingDimensions int

	// Catalog/content-item metadata source.
	CatalogBaseURL    string
	CatalogTimeoutSec int

	// Hybrid retrieval fusion.
	SemanticWeight float64
	LexicalWeight  float64

	// Pool builder signal weights.
	PoolBrandWeight    float64
	PoolCategoryWeight float64
	PoolPriceWeight    float64
	PoolTagWeight      float64

	// Price re-rank default split.
	RerankSemanticWeight float64
	RerankPriceWeight    float64

	// Answer composition bounds.
	MaxTranscriptChunks  int
	MaxCatalogCandidates int
	MaxCommentChunks     int
	MaxOutboundLinks     int
	AnswerMaxTokens      int
	AnswerTemperature    float64

	// Batch orchestration.
	BatchConcurrency int

	// Ingestion worker backpressure.
	WorkerBatchSize   int
	WorkerPauseMS     int
	WorkerPollMS      int
	ChunkEmbedRetries int
}

// Load reads configuration from the environment with defaults suitable
// for local development.
func Load() *Config {
	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "9020"),

		DBHost:     getEnv("DB_HOST", "reply-db"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "reply_user"),
		DBPassword: getSecret("DB_PASSWORD", "DB_PASSWORD_FILE", "reply_password"),
		DBName:     getEnv("DB_NAME", "reply_db"),

		GatewayBaseURL:      getEnv("GATEWAY_BASE_URL", "http://localhost:11434/v1"),
		GatewayAPIKey:       getSecret("GATEWAY_API_KEY", "GATEWAY_API_KEY_FILE", ""),
		EmbeddingModel:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		CompletionModel:     getEnv("COMPLETION_MODEL", "gpt-4o-mini"),
		GatewayTimeoutSec:   getEnvInt("GATEWAY_TIMEOUT_SEC", 60),
		GatewayMaxRetries:   getEnvInt("GATEWAY_MAX_RETRIES", 3),
		GatewayRatePerSec:   getEnvFloat("GATEWAY_RATE_PER_SEC", 5),
		EmbeddingCacheSize:  getEnvInt("EMBEDDING_CACHE_SIZE", 512),
		EmbeddingDimensions: getEnvInt("EMBEDDING_DIMENSIONS", 1536),

		CatalogBaseURL:    getEnv("CATALOG_BASE_URL", "http://localhost:9021"),
		CatalogTimeoutSec: getEnvInt("CATALOG_TIMEOUT_SEC", 10),

		SemanticWeight: getEnvFloat("RETRIEVAL_SEMANTIC_WEIGHT", 0.8),
		LexicalWeight:  getEnvFloat("RETRIEVAL_LEXICAL_WEIGHT", 0.2),

		PoolBrandWeight:    getEnvFloat("POOL_BRAND_WEIGHT", 0.3),
		PoolCategoryWeight: getEnvFloat("POOL_CATEGORY_WEIGHT", 0.3),
		PoolPriceWeight:    getEnvFloat("POOL_PRICE_WEIGHT", 0.2),
		PoolTagWeight:      getEnvFloat("POOL_TAG_WEIGHT", 0.2),

		RerankSemanticWeight: getEnvFloat("RERANK_SEMANTIC_WEIGHT", 0.6),
		RerankPriceWeight:    getEnvFloat("RERANK_PRICE_WEIGHT", 0.4),

		MaxTranscriptChunks:  getEnvInt("ANSWER_MAX_TRANSCRIPT_CHUNKS", 6),
		MaxCatalogCandidates: getEnvInt("ANSWER_MAX_CATALOG_CANDIDATES", 8),
		MaxCommentChunks:     getEnvInt("ANSWER_MAX_COMMENT_CHUNKS", 4),
		MaxOutboundLinks:     getEnvInt("ANSWER_MAX_OUTBOUND_LINKS", 3),
		AnswerMaxTokens:      getEnvInt("ANSWER_MAX_TOKENS", 768),
		AnswerTemperature:    getEnvFloat("ANSWER_TEMPERATURE", 0.4),

		BatchConcurrency: getEnvInt("BATCH_CONCURRENCY", 4),

		WorkerBatchSize:   getEnvInt("WORKER_BATCH_SIZE", 10),
		WorkerPauseMS:     getEnvInt("WORKER_PAUSE_MS", 2000),
		WorkerPollMS:      getEnvInt("WORKER_POLL_MS", 500),
		ChunkEmbedRetries: getEnvInt("CHUNK_EMBED_RETRIES", 2),
	}
}

// DSN renders the Postgres connection string.
func (c *Config) DSN() string {
	return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=disable"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		if content, err := os.ReadFile(filePath); err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
