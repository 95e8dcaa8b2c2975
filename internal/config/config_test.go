package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 5, cfg.PageSize)
	assert.Equal(t, time.Second, cfg.ContentDebounce.Duration)
	assert.Equal(t, 500*time.Millisecond, cfg.IdentifierDebounce.Duration)
}

func TestLoad_YAML(t *testing.T) {
	key := strings.Repeat("ab", 32)
	path := writeFile(t, "arbor.yaml", `
groups_dir: ./groups
page_size: 10
content_debounce: 250ms
log_level: debug
store:
  kind: redis
redis:
  addr: redis:6379
  db: 2
  ttl: 24h
encryption_key: `+key+`
pii_patterns: ["ssn", "password"]
http:
  port: 9090
metrics:
  enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "./groups", cfg.GroupsDir)
	assert.Equal(t, 10, cfg.PageSize)
	assert.Equal(t, 250*time.Millisecond, cfg.ContentDebounce.Duration)
	assert.Equal(t, 500*time.Millisecond, cfg.IdentifierDebounce.Duration, "unset keys keep defaults")
	assert.Equal(t, StoreRedis, cfg.Store.Kind)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "arbor:session:", cfg.Redis.Prefix)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL.Duration)
	assert.Equal(t, []string{"ssn", "password"}, cfg.PIIPatterns)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.True(t, cfg.Metrics.Enabled)

	k, err := cfg.Key()
	require.NoError(t, err)
	assert.Len(t, k, 32)

	level, err := ParseLevel(cfg.LogLevel)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "arbor.json", `{"page_size": 3, "identifier_debounce": "1s", "store": {"kind": "file", "path": "/tmp/s"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.PageSize)
	assert.Equal(t, time.Second, cfg.IdentifierDebounce.Duration)
	assert.Equal(t, StoreFile, cfg.Store.Kind)
	assert.Equal(t, "/tmp/s", cfg.Store.Path)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"store kind", "store:\n  kind: s3\n", "unknown store kind"},
		{"page size", "page_size: 0\n", "page_size"},
		{"short key", "encryption_key: abcd\n", "32 bytes"},
		{"hex key", "encryption_key: zz\n", "hex"},
		{"duration", "content_debounce: soon\n", "parse"},
		{"log level", "log_level: loud\n", "log_level"},
		{"port", "http:\n  port: 70000\n", "http.port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "arbor.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
