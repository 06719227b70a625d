package main

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"opsdash/backend/internal/config"
	"opsdash/backend/internal/logger"
	sqlstore "opsdash/backend/internal/storage/sql"
)

// main 对配置的 Postgres 数据库执行表结构迁移。
//
// 服务启动时也会自动迁移；本命令用于部署流水线里
// 在滚动发布前单独跑迁移。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	if cfg.Database.DSN == "" {
		log.Fatal("OPSDASH_DATABASE_DSN is required for migration")
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}

	if err := sqlstore.Migrate(db); err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}

	log.Info("migration completed")
}
