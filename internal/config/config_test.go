package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/telecom-support-go/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "LLM_PROVIDER", "LLM_MAX_RETRIES", "MAX_TOOL_STEPS", "KAFKA_BROKERS", "REDIS_ADDR"} {
		t.Setenv(k, "")
	}

	cfg := config.Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, config.ProviderOpenAI, cfg.LLMProvider)
	assert.Equal(t, 0, cfg.MaxRetries)
	assert.Equal(t, 12, cfg.MaxToolSteps)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, "support:customers", cfg.RedisKey)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LLM_PROVIDER", "None")
	t.Setenv("LLM_RATE_PER_SECOND", "2.5")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("MAX_TOOL_STEPS", "not-a-number")

	cfg := config.Load()

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, config.ProviderNone, cfg.LLMProvider)
	assert.Equal(t, 2.5, cfg.RatePerSecond)
	assert.Equal(t, 5*time.Minute, cfg.SessionTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 12, cfg.MaxToolSteps)
}

func TestLoadDotEnv_ExistingEnvWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("REDIS_KEY=from-file\nKAFKA_TICKETS_TOPIC=\"tickets.v2\"\n"), 0o600))

	t.Setenv("REDIS_KEY", "from-env")
	t.Setenv("KAFKA_TICKETS_TOPIC", "")
	require.NoError(t, os.Unsetenv("KAFKA_TICKETS_TOPIC"))

	require.NoError(t, config.LoadDotEnv(path))
	t.Cleanup(func() { _ = os.Unsetenv("KAFKA_TICKETS_TOPIC") })

	cfg := config.Load()
	assert.Equal(t, "from-env", cfg.RedisKey)
	assert.Equal(t, "tickets.v2", cfg.KafkaTicketsTopic)
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	assert.Error(t, config.LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}
