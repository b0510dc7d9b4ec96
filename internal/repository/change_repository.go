package repository

import (
	"context"
	"visamate-go/internal/model"

	"gorm.io/gorm"
)

// ChangeRepository 定义了对 content_changes 表的告警读取与标记接口。
type ChangeRepository interface {
	FindUnnotified(ctx context.Context, limit int) ([]model.ContentChange, error)
	MarkNotified(ctx context.Context, ids []int64) error
}

type changeRepository struct {
	db *gorm.DB
}

// NewChangeRepository 创建一个新的 ChangeRepository 实例。
func NewChangeRepository(db *gorm.DB) ChangeRepository {
	return &changeRepository{db: db}
}

// FindUnnotified 按检测时间顺序返回尚未推送的内容变更，
// 回联 uscis_pages 以取得页面 URL。
func (r *changeRepository) FindUnnotified(ctx context.Context, limit int) ([]model.ContentChange, error) {
	const query = `
		SELECT
			cc.id,
			cc.page_id,
			cc.change_type,
			cc.change_summary,
			cc.detected_at,
			cc.notified,
			p.url AS page_url
		FROM content_changes cc
		JOIN uscis_pages p ON cc.page_id = p.id
		WHERE cc.notified = false
		ORDER BY cc.detected_at
		LIMIT ?`

	var changes []model.ContentChange
	if err := r.db.WithContext(ctx).Raw(query, limit).Scan(&changes).Error; err != nil {
		return nil, err
	}
	return changes, nil
}

// MarkNotified 将指定变更标记为已推送。
func (r *changeRepository) MarkNotified(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Exec("UPDATE content_changes SET notified = true WHERE id IN ?", ids).Error
}
