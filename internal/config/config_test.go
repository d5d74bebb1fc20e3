package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
server:
  mode: test
database:
  driver: sqlite
  path: ":memory:"
`)

	cfg, err := Load("test", path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "auto", cfg.Splitter.Mode)
	assert.Equal(t, 1000, cfg.Splitter.MaxSize)
	assert.InDelta(t, 0.2, cfg.Splitter.OverlapRatio, 1e-9)
	assert.Equal(t, 4, cfg.Worker.Concurrency)
	assert.Equal(t, "milvus", cfg.VectorStore.Type)
	assert.Equal(t, "IVF_FLAT", cfg.VectorStore.Milvus.IndexType)
	assert.Equal(t, "L2", cfg.VectorStore.Milvus.Metric)
	assert.Equal(t, 1024, cfg.VectorStore.Milvus.NList)
	assert.Equal(t, 10, cfg.VectorStore.Milvus.NProbe)
	assert.Equal(t, 1024, cfg.VectorStore.PGVector.Lists)
}

func TestLoad_Explicit(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
splitter:
  mode: hierarchical
  max_size: 800
  overlap_ratio: 0.1
worker:
  concurrency: 8
vector_store:
  type: pgvector
`)

	cfg, err := Load("test", path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "hierarchical", cfg.Splitter.Mode)
	assert.Equal(t, 800, cfg.Splitter.MaxSize)
	assert.Equal(t, 8, cfg.Worker.Concurrency)
	assert.Equal(t, "pgvector", cfg.VectorStore.Type)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("test", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestGetDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host: "db.local", Port: 5432, User: "kb", Password: "secret",
		DBName: "knowbase", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db.local port=5432 user=kb password=secret dbname=knowbase sslmode=disable",
		cfg.GetDSN(),
	)
}
