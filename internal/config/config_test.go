package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsUnmarshal(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "stormdesk", cfg.Logger.ServiceName)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.True(t, cfg.Store.Seed)
	assert.Equal(t, "gpt-oss-120b", cfg.Inference.Model)
	assert.Equal(t, 30*time.Second, cfg.Inference.APITimeout)
	assert.Equal(t, 10, cfg.Collab.HistoryWindow)
	assert.Equal(t, 5, cfg.Collab.PromptWindow)
	assert.Equal(t, 20*time.Second, cfg.Feeds.Interval)

	require.NoError(t, cfg.Validate())
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("STORMDESK_INFERENCE_API_KEY", "sekrit")

	v := viper.New()
	SetDefaults(v)
	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "sekrit", cfg.Inference.APIKey)
}

func TestValidateRejectsBadDriver(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Driver = "postgres"
	assert.ErrorContains(t, cfg.Validate(), "store.driver")
}

func TestValidateRequiresSQLiteDSN(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Store.Driver = "sqlite"
	cfg.Store.DSN = ""
	assert.ErrorContains(t, cfg.Validate(), "store.dsn")
}

func TestValidateWindows(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Collab.HistoryWindow = 0
	assert.ErrorContains(t, cfg.Validate(), "history_window")

	cfg = NewDefaultConfig()
	cfg.Feeds.Interval = 0
	assert.ErrorContains(t, cfg.Validate(), "feeds.interval")
}
