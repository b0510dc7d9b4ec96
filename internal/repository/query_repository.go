// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"

	"gorm.io/gorm"
)

// QueryExecutor 在数据库上执行调用方提供的 SELECT 语句。
// 超时语义要求在单个借出的连接上设置并复位，因此单独抽象出来，
// 也方便测试中用假实现替换真实数据库。
type QueryExecutor interface {
	RunScoped(ctx context.Context, sql string, params []string) ([]map[string]interface{}, error)
}

type gormQueryExecutor struct {
	db *gorm.DB
}

// NewQueryExecutor 创建一个基于 gorm 的 QueryExecutor 实例。
func NewQueryExecutor(db *gorm.DB) QueryExecutor {
	return &gormQueryExecutor{db: db}
}

// RunScoped 从连接池借出一个连接，先设置 10 秒的 statement_timeout，
// 执行查询后复位超时再归还连接。超时配置严格限定在本次调用借出的
// 连接上，不会泄漏给连接池中被其他请求复用的连接。
func (e *gormQueryExecutor) RunScoped(ctx context.Context, sqlText string, params []string) ([]map[string]interface{}, error) {
	args := make([]interface{}, 0, len(params))
	for _, p := range params {
		args = append(args, p)
	}

	var rows []map[string]interface{}
	err := e.db.WithContext(ctx).Connection(func(tx *gorm.DB) error {
		if err := tx.Exec("SET statement_timeout = 10000").Error; err != nil {
			return err
		}
		// 无论查询成功与否都在归还连接前复位超时
		defer tx.Exec("RESET statement_timeout")

		return tx.Raw(sqlText, args...).Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
