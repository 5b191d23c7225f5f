// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AnswerDedupScope selects the key used by the answered-once check.
type AnswerDedupScope string

const (
	// DedupPerUser rejects a second submission for the same (user, test)
	// pair; anonymous submissions (empty user id) are never deduplicated.
	DedupPerUser AnswerDedupScope = "user"
	// DedupPerTest allows a single submission per test id regardless of user.
	DedupPerTest AnswerDedupScope = "test"
)

// Config holds the full service configuration.
type Config struct {
	// Service
	Port             string
	LogLevel         string
	GracefulShutdown time.Duration

	// OpenAI-compatible model endpoint
	LLMAPIURL      string
	LLMAPIKey      string
	LLMModel       string
	EmbeddingModel string
	LLMTemperature float32
	LLMMaxTokens   int

	// Weaviate
	WeaviateHost   string
	WeaviateScheme string
	WeaviateAPIKey string

	// Object storage (S3 / MinIO)
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3RootPath  string

	// Relational store
	SQLitePath string

	// Embedding cache (optional)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	Chunking  ChunkingConfig
	Retrieval RetrievalConfig

	// Grading
	DedupScope AnswerDedupScope
}

// ChunkingConfig holds the chunk-size policy constants. The defaults match
// the behavior the corpus documents were tuned against.
type ChunkingConfig struct {
	MinChunkSize int `json:"min_chunk_size"` // merge forward below this
	MaxChunkSize int `json:"max_chunk_size"` // split above this
	ChunkOverlap int `json:"chunk_overlap"`  // carried across split boundaries
}

// RetrievalConfig holds the hybrid retrieval fan-out.
type RetrievalConfig struct {
	TopKSemantic int `json:"top_k_semantic"`
	TopKLexical  int `json:"top_k_lexical"`
}

// DefaultChunkingConfig returns the tuned chunking thresholds.
func DefaultChunkingConfig() ChunkingConfig {
	return ChunkingConfig{
		MinChunkSize: 800,
		MaxChunkSize: 1000,
		ChunkOverlap: 150,
	}
}

// DefaultRetrievalConfig returns the default hybrid fan-out: 3 semantic
// plus 2 lexical candidates.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{TopKSemantic: 3, TopKLexical: 2}
}

// Load reads configuration from the environment, applying defaults and
// validating the values that have no sane fallback.
func Load() (*Config, error) {
	var errs []string

	cfg := &Config{
		Port:             getEnv("PORT", "8090"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		GracefulShutdown: parseDuration("GRACEFUL_SHUTDOWN", 15*time.Second, &errs),

		LLMAPIURL:      getEnv("OPENAI_API_URL", ""),
		LLMAPIKey:      getEnv("LLM_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", ""),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", ""),
		LLMTemperature: float32(parseFloat("LLM_TEMPERATURE", 0.01, &errs)),
		LLMMaxTokens:   parseInt("LLM_MAX_TOKENS", 2000, &errs),

		WeaviateHost:   getEnv("WEAVIATE_HOST", "localhost:8080"),
		WeaviateScheme: getEnv("WEAVIATE_SCHEME", "http"),
		WeaviateAPIKey: getEnv("WEAVIATE_API_KEY", ""),

		S3Endpoint:  getEnv("MINIO_ENDPOINT", ""),
		S3Region:    getEnv("MINIO_REGION", "us-east-1"),
		S3AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		S3SecretKey: getEnv("MINIO_SECRET_KEY", ""),
		S3Bucket:    getEnv("MINIO_BUCKET_NAME", "documents"),
		S3RootPath:  strings.Trim(getEnv("MINIO_ROOT_PATH", ""), "/"),

		SQLitePath: getEnv("SQLITE_PATH", "docsapi.db"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       parseInt("REDIS_DB", 0, &errs),
		CacheTTL:      parseDuration("EMBEDDING_CACHE_TTL", 24*time.Hour, &errs),

		Chunking: ChunkingConfig{
			MinChunkSize: parseInt("CHUNK_MIN_SIZE", 800, &errs),
			MaxChunkSize: parseInt("CHUNK_MAX_SIZE", 1000, &errs),
			ChunkOverlap: parseInt("CHUNK_OVERLAP", 150, &errs),
		},
		Retrieval: RetrievalConfig{
			TopKSemantic: parseInt("RETRIEVAL_TOP_K_SEMANTIC", 3, &errs),
			TopKLexical:  parseInt("RETRIEVAL_TOP_K_LEXICAL", 2, &errs),
		},

		DedupScope: AnswerDedupScope(getEnv("ANSWER_DEDUP_SCOPE", string(DedupPerUser))),
	}

	if cfg.LLMAPIURL == "" {
		errs = append(errs, "OPENAI_API_URL is required")
	}
	if cfg.LLMModel == "" {
		errs = append(errs, "LLM_MODEL is required")
	}
	if cfg.EmbeddingModel == "" {
		errs = append(errs, "EMBEDDING_MODEL is required")
	}
	if cfg.Chunking.MinChunkSize >= cfg.Chunking.MaxChunkSize {
		errs = append(errs, "CHUNK_MIN_SIZE must be below CHUNK_MAX_SIZE")
	}
	if cfg.Chunking.ChunkOverlap >= cfg.Chunking.MaxChunkSize {
		errs = append(errs, "CHUNK_OVERLAP must be below CHUNK_MAX_SIZE")
	}
	if cfg.DedupScope != DedupPerUser && cfg.DedupScope != DedupPerTest {
		errs = append(errs, fmt.Sprintf("ANSWER_DEDUP_SCOPE must be %q or %q", DedupPerUser, DedupPerTest))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(key string, def int, errs *[]string) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return n
}

func parseFloat(key string, def float64, errs *[]string) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return f
}

func parseDuration(key string, def time.Duration, errs *[]string) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return d
}
