package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("data", "chunks.jsonl"), cfg.Paths.Chunks)
	assert.Equal(t, filepath.Join("index", "embeddings.parquet"), cfg.Paths.Index)
	assert.Equal(t, "hashing", cfg.Embedder.Type)
	assert.Equal(t, 100, cfg.Embedder.BatchSize)
	assert.Equal(t, 384, cfg.Embedder.Hashing.Dimension)
	assert.Equal(t, "gemini", cfg.Generator.Type)
	require.NotNil(t, cfg.Generator.Gemini)
	assert.Equal(t, "gemini-2.0-flash", cfg.Generator.Gemini.Model)
	assert.Equal(t, 1000, cfg.Generator.Gemini.MaxOutputTokens)
	assert.Equal(t, "from-env", cfg.Generator.Gemini.APIKey)
	assert.Equal(t, 5, cfg.Search.ChatTopK)
	assert.Equal(t, 15, cfg.Search.EvalTopK)
	assert.Equal(t, "memory", cfg.VectorStore.Type)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileWithOverrides(t *testing.T) {
	t.Setenv("MY_OPENAI_KEY", "sk-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
paths:
  index: out/idx.parquet
embedder:
  type: openai
  openai:
    api_key_env: MY_OPENAI_KEY
generator:
  type: extractive
vector_store:
  type: qdrant
search:
  chat_top_k: 3
log:
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "out/idx.parquet", cfg.Paths.Index)
	assert.Equal(t, filepath.Join("data", "full_manual_text.txt"), cfg.Paths.Text)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "sk-env", cfg.Embedder.OpenAI.APIKey)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, 30, cfg.Embedder.OpenAI.TimeoutSecs)
	assert.Equal(t, 3, cfg.Generator.Extractive.MaxSentences)
	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "localhost:6334", cfg.VectorStore.Qdrant.Addr)
	assert.Equal(t, "manual", cfg.VectorStore.Qdrant.Collection)
	assert.Equal(t, 3, cfg.Search.ChatTopK)
	assert.Equal(t, 15, cfg.Search.EvalTopK)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ExplicitKeyWinsOverEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generator:\n  gemini:\n    api_key: explicit\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "explicit", cfg.Generator.Gemini.APIKey)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"bad yaml":      "embedder: [",
		"bad embedder":  "embedder:\n  type: word2vec\n",
		"bad generator": "generator:\n  type: gpt2\n",
		"bad store":     "vector_store:\n  type: faiss\n",
		"bad log":       "log:\n  format: xml\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Search.ChatTopK = 7
	require.NoError(t, Save(path, cfg))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, back.Search.ChatTopK)
	assert.Equal(t, cfg.Paths, back.Paths)
}
