package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XIANQI_JWT_SECRET", "test-secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, "xianqi.db", cfg.SQLitePath)
	assert.Equal(t, 8, cfg.RoomCount)
	assert.Equal(t, time.Hour, cfg.AccessTokenExpiry)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoadRequiresSecret(t *testing.T) {
	t.Setenv("XIANQI_JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XIANQI_JWT_SECRET")
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("XIANQI_JWT_SECRET", "test-secret")
	t.Setenv("XIANQI_LISTEN_ADDR", "0.0.0.0:9000")
	t.Setenv("XIANQI_ROOM_COUNT", "3")
	t.Setenv("XIANQI_ACCESS_TOKEN_EXPIRE_SECONDS", "120")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	assert.Equal(t, 3, cfg.RoomCount)
	assert.Equal(t, 2*time.Minute, cfg.AccessTokenExpiry)
}

func TestLoadRejectsBadRoomCount(t *testing.T) {
	t.Setenv("XIANQI_JWT_SECRET", "test-secret")
	t.Setenv("XIANQI_ROOM_COUNT", "0")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsAccessLongerThanRefresh(t *testing.T) {
	t.Setenv("XIANQI_JWT_SECRET", "test-secret")
	t.Setenv("XIANQI_ACCESS_TOKEN_EXPIRE_SECONDS", "7200")
	t.Setenv("XIANQI_REFRESH_TOKEN_EXPIRE_SECONDS", "3600")

	_, err := Load()
	require.Error(t, err)
}
