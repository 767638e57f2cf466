package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseDuration は "d" 単位を含む期間文字列の解析を検証します。
func TestParseDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "30d", want: 30 * 24 * time.Hour},
		{in: "3h", want: 3 * time.Hour},
		{in: "15m", want: 15 * time.Minute},
		{in: "xd", wantErr: true},
		{in: "soon", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestLoad_Defaults は環境変数が無い場合に既定値が使われることを検証します。
func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "ILS", cfg.Engine.BaseCurrency)
	assert.Equal(t, "@every 15m", cfg.Engine.LiveUpdateSchedule)
	assert.Equal(t, 24*time.Hour, cfg.Engine.PriceFreshnessTTL)
	assert.Equal(t, 15*time.Minute, cfg.Engine.FXFreshnessTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.Engine.TrackingExpiry)
	assert.Equal(t, 3*time.Hour, cfg.Engine.SyncInterval)
	assert.Equal(t, 50, cfg.Engine.BackfillMinRows)
	assert.Equal(t, 365*24*time.Hour, cfg.Engine.BackfillLookback)
	assert.Equal(t, 4, cfg.Engine.WorkerConcurrency)
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

// TestLoad_Precedence は 環境変数 > YAML > 既定値 の優先順位を検証します。
func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "engine.yaml")
	require.NoError(t, os.WriteFile(path, []byte("BASE_CURRENCY: usd\nSYNC_INTERVAL: 6h\nWORKER_CONCURRENCY: \"8\"\n"), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("WORKER_CONCURRENCY", "2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "USD", cfg.Engine.BaseCurrency)
	assert.Equal(t, 6*time.Hour, cfg.Engine.SyncInterval)
	assert.Equal(t, 2, cfg.Engine.WorkerConcurrency)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "bad duration", key: "SYNC_INTERVAL", val: "often"},
		{name: "bad schedule", key: "LIVE_UPDATE_SCHEDULE", val: "every now and then"},
		{name: "bad driver", key: "DB_DRIVER", val: "oracle"},
		{name: "bad currency", key: "BASE_CURRENCY", val: "SHEKEL"},
		{name: "zero workers", key: "WORKER_CONCURRENCY", val: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv("CONFIG_FILE", "")
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewLogger(&buf, "json", "warn")
	log.Info("hidden")
	log.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
}
