// Package config loads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings. Every field maps to one XIANQI_
// environment variable.
type Config struct {
	ListenAddr string

	JWTSecret          string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration

	SQLitePath string
	RoomCount  int

	// RedisAddr enables the action historian when non-empty.
	RedisAddr string

	// GameLogDir enables per-game file traces when non-empty.
	GameLogDir string
}

// Load reads settings from the process environment, after sourcing an
// optional .env file. A missing .env is not an error.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr: getEnv("XIANQI_LISTEN_ADDR", "127.0.0.1:8080"),
		JWTSecret:  os.Getenv("XIANQI_JWT_SECRET"),
		SQLitePath: getEnv("XIANQI_SQLITE_PATH", "xianqi.db"),
		RedisAddr:  os.Getenv("XIANQI_REDIS_ADDR"),
		GameLogDir: os.Getenv("XIANQI_GAME_LOG_DIR"),
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("XIANQI_JWT_SECRET is required")
	}

	var err error
	if cfg.AccessTokenExpiry, err = getSeconds("XIANQI_ACCESS_TOKEN_EXPIRE_SECONDS", 3600); err != nil {
		return Config{}, err
	}
	if cfg.RefreshTokenExpiry, err = getSeconds("XIANQI_REFRESH_TOKEN_EXPIRE_SECONDS", 90*24*3600); err != nil {
		return Config{}, err
	}
	if cfg.AccessTokenExpiry >= cfg.RefreshTokenExpiry {
		return Config{}, fmt.Errorf("access token expiry must be shorter than refresh token expiry")
	}

	if cfg.RoomCount, err = getInt("XIANQI_ROOM_COUNT", 8); err != nil {
		return Config{}, err
	}
	if cfg.RoomCount < 1 {
		return Config{}, fmt.Errorf("XIANQI_ROOM_COUNT must be >= 1")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return value, nil
}

func getSeconds(key string, fallback int) (time.Duration, error) {
	value, err := getInt(key, fallback)
	if err != nil {
		return 0, err
	}
	if value < 1 {
		return 0, fmt.Errorf("%s must be >= 1", key)
	}
	return time.Duration(value) * time.Second, nil
}
