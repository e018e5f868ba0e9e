// Command xianqi-server runs the HTTP/WebSocket game service.
package main

import (
	"github.com/sirupsen/logrus"

	"github.com/tontyoutoure/xianqi/internal/auth"
	"github.com/tontyoutoure/xianqi/internal/config"
	"github.com/tontyoutoure/xianqi/internal/database"
	"github.com/tontyoutoure/xianqi/internal/history"
	"github.com/tontyoutoure/xianqi/internal/room"
	"github.com/tontyoutoure/xianqi/internal/server"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	db, err := database.Open(cfg.SQLitePath)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	var publisher *history.Publisher
	if cfg.RedisAddr != "" {
		publisher = history.New(cfg.RedisAddr, log)
		defer publisher.Close()
		log.WithField("addr", cfg.RedisAddr).Info("action history enabled")
	}

	registry := room.NewRegistry(cfg.RoomCount, room.Options{
		DB:         db,
		History:    publisher,
		GameLogDir: cfg.GameLogDir,
		Log:        log,
	})
	authService := auth.New(db, cfg.JWTSecret, cfg.AccessTokenExpiry, cfg.RefreshTokenExpiry)

	srv := server.New(registry, authService, log)
	if err := srv.Run(cfg.ListenAddr); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
