package main

import (
	"shopadmin/internal/config"
	"shopadmin/internal/db"
	clog "shopadmin/internal/log"
	"shopadmin/internal/server"
	"shopadmin/internal/ws"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	// main 函数负责加载配置、初始化日志、连接数据库并启动 Gin 服务。
	_ = godotenv.Load()
	cfg := config.Load()
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validate")
	}
	clog.Init(cfg.Env)

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}
	if err := db.EnsureOwner(gdb, cfg); err != nil {
		log.Fatal().Err(err).Msg("db ensure owner")
	}

	hub := ws.NewHub()
	r := server.SetupRouter(cfg, gdb, hub)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
