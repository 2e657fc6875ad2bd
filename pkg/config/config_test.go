package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "qgram:3", cfg.Join.Tokenizer)
	assert.Equal(t, "l_", cfg.Join.LeftPrefix)
	assert.Equal(t, "r_", cfg.Join.RightPrefix)
	assert.Positive(t, cfg.Join.Workers)
	assert.Equal(t, "join-requests", cfg.Kafka.Topics.JoinRequests)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simjoin.yaml")
	data := []byte(`
join:
  tokenizer: words
  threshold: 0.6
  workers: 2
  requestTimeout: 30s
redis:
  cacheTTL: 1m
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	t.Setenv("SJ_JOIN_WORKERS", "3")
	t.Setenv("SJ_POSTGRES_HOST", "db.internal")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "words", cfg.Join.Tokenizer)
	assert.InDelta(t, 0.6, cfg.Join.Threshold, 1e-12)
	assert.Equal(t, 3, cfg.Join.Workers)
	assert.Equal(t, 30*time.Second, cfg.Join.RequestTimeout)
	assert.Equal(t, time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, "l_", cfg.Join.LeftPrefix)
}

func TestLoadRejectsInvalidThreshold(t *testing.T) {
	t.Setenv("SJ_JOIN_THRESHOLD", "1.5")
	_, err := Load("")
	assert.ErrorContains(t, err, "join.threshold")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config file")
}
