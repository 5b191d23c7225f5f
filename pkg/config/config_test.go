package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("OPENAI_API_URL", "http://llm.local/v1")
	t.Setenv("LLM_MODEL", "qwen2.5-32b")
	t.Setenv("EMBEDDING_MODEL", "nomic-embed-text")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8090", cfg.Port)
	assert.Equal(t, 800, cfg.Chunking.MinChunkSize)
	assert.Equal(t, 1000, cfg.Chunking.MaxChunkSize)
	assert.Equal(t, 150, cfg.Chunking.ChunkOverlap)
	assert.Equal(t, 3, cfg.Retrieval.TopKSemantic)
	assert.Equal(t, 2, cfg.Retrieval.TopKLexical)
	assert.Equal(t, DedupPerUser, cfg.DedupScope)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.InDelta(t, 0.01, float64(cfg.LLMTemperature), 1e-6)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("OPENAI_API_URL", "")
	t.Setenv("LLM_MODEL", "")
	t.Setenv("EMBEDDING_MODEL", "m")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_URL")
	assert.Contains(t, err.Error(), "LLM_MODEL")
}

func TestLoadRejectsBadThresholds(t *testing.T) {
	setRequired(t)
	t.Setenv("CHUNK_MIN_SIZE", "1200")
	t.Setenv("CHUNK_MAX_SIZE", "1000")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHUNK_MIN_SIZE")
}

func TestLoadRejectsUnknownDedupScope(t *testing.T) {
	setRequired(t)
	t.Setenv("ANSWER_DEDUP_SCOPE", "session")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANSWER_DEDUP_SCOPE")
}
