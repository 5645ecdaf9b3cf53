package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("GATEHOUSE_GUILD_ID", "900")
	t.Setenv("GATEHOUSE_VERIFIED_ROLE_ID", "555")
	t.Setenv("GATEHOUSE_BOT_TOKEN", "token")
	t.Setenv("GATEHOUSE_MODERATOR_ROLES", "1,2")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, []string{"1", "2"}, cfg.Server.ModeratorRoles)
	assert.Equal(t, "guild.members", cfg.Kafka.Topic)
	assert.Equal(t, 24*time.Hour, cfg.Redis.DedupeTTL)
	assert.Equal(t, 5, cfg.Guild.BreakerThreshold)
	assert.False(t, cfg.FeedEnabled())
}

func TestFromEnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("GATEHOUSE_KAFKA_BROKERS", "a:9092, b:9092,,a:9092")
	t.Setenv("GATEHOUSE_MODERATOR_ROLES", " 7 ,8,7")
	t.Setenv("GATEHOUSE_GUILD_BREAKER_COOLDOWN", "1m")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"7", "8"}, cfg.Server.ModeratorRoles)
	assert.Equal(t, time.Minute, cfg.Guild.BreakerCooldown)
	assert.True(t, cfg.FeedEnabled())
}

func TestFromEnvRequiresGuild(t *testing.T) {
	t.Setenv("GATEHOUSE_GUILD_ID", "")
	t.Setenv("GATEHOUSE_MODERATOR_ROLES", "")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GATEHOUSE_GUILD_ID")
	assert.Contains(t, err.Error(), "GATEHOUSE_MODERATOR_ROLES")
}

func TestFromEnvRejectsBadDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("GATEHOUSE_SHUTDOWN_TIMEOUT", "soon")

	_, err := FromEnv()
	require.Error(t, err)
}
