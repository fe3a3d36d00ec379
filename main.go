// @title EduMate 后端 API
// @version 1.0
// @description EduMate 学习平台的测验与激励服务。

// @host localhost:8080
// @BasePath /api
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

package main

import (
	"edumate_backend/internal/app"
	"edumate_backend/internal/config"
	"edumate_backend/pkg/logger"
	"flag"
	"log"

	"go.uber.org/zap"
)

func main() {
	// 命令行参数
	configDir := flag.String("config", "configs", "配置文件目录，环境变量 EDUMATE_* 优先")
	migrateOnly := flag.Bool("migrate-only", false, "只执行数据库迁移，完成后退出")
	migrate := flag.Bool("migrate", false, "启动时强制执行数据库迁移（即使是 release 模式）")
	flag.Parse()

	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Fatalf("Failed to load config from %s: %v", *configDir, err)
	}

	cfg.ForceMigrate = *migrate || *migrateOnly
	cfg.MigrateOnly = *migrateOnly

	application := app.NewApp(cfg)
	defer logger.Log.Sync()

	// 迁移完成后直接退出
	if *migrateOnly {
		logger.Log.Info("Database migration finished, exiting", zap.String("driver", cfg.Database.Driver))
		return
	}

	logger.Log.Info("Starting EduMate quiz and rewards service",
		zap.String("mode", cfg.Server.Mode),
		zap.String("port", cfg.Server.Port),
		zap.String("database", cfg.Database.Driver),
		zap.Bool("redis", cfg.Redis.Enabled),
	)
	application.Run()
}
