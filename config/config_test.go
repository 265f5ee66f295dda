package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"Cancelled", "Pending Payment"}, cfg.Business.SalesExcludedStatuses)
	assert.Equal(t, 5, cfg.Business.RecentOrdersDefault)
	assert.Equal(t, 30*time.Second, cfg.Business.IdempotencyLockTTL)
	assert.Equal(t, "User", cfg.Auth.DefaultRole)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("JWT_KEY", "a-very-long-signing-key-for-tests-only")
	t.Setenv("JWT_DURATION_HOURS", "3")
	t.Setenv("SALES_EXCLUDED_STATUSES", "Cancelled")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "a-very-long-signing-key-for-tests-only", cfg.Auth.JWTKey)
	assert.Equal(t, 3, cfg.Auth.JWTDurationHours)
	assert.Equal(t, []string{"Cancelled"}, cfg.Business.SalesExcludedStatuses)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	t.Setenv("JWT_DURATION_HOURS", "soon")

	_, err := Load()
	assert.Error(t, err)
}
