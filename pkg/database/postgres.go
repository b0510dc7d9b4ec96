// Package database 负责初始化数据库与缓存连接。
package database

import (
	"time"
	"visamate-go/pkg/log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitPostgres 初始化 PostgreSQL 数据库连接。
func InitPostgres(dsn string) {
	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	// 配置连接池。statement_timeout 不在 DSN 上全局设置，
	// 而是由 Query Guard 在借出的单个连接上按调用设置并复位，
	// 避免超时配置泄漏到连接池中被其他请求复用的连接上。
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Info("PostgreSQL database connected successfully")
}
