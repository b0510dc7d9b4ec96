package service

import (
	"context"
	"time"
	"visamate-go/internal/model"
	"visamate-go/internal/repository"
	"visamate-go/pkg/log"
)

// AlertPublisher 把内容变更告警事件推送到消息队列。
type AlertPublisher interface {
	Publish(ctx context.Context, event model.AlertEvent) error
}

// AlertService 轮询 content_changes 表中尚未推送的页面变更，
// 发布告警事件并标记为已通知。
type AlertService interface {
	Run(ctx context.Context, interval time.Duration)
	PublishPending(ctx context.Context) (int, error)
}

// 单次轮询最多处理的变更条数。
const alertBatchSize = 100

type alertService struct {
	changeRepo repository.ChangeRepository
	publisher  AlertPublisher
}

// NewAlertService 创建一个新的 AlertService 实例。
func NewAlertService(changeRepo repository.ChangeRepository, publisher AlertPublisher) AlertService {
	return &alertService{
		changeRepo: changeRepo,
		publisher:  publisher,
	}
}

// Run 以固定间隔轮询并推送，直到 ctx 取消。作为后台 goroutine
// 从 main 启动。
func (s *alertService) Run(ctx context.Context, interval time.Duration) {
	log.Infof("[AlertService] 告警轮询已启动, interval: %s", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("[AlertService] 告警轮询已停止")
			return
		case <-ticker.C:
			if n, err := s.PublishPending(ctx); err != nil {
				log.Errorf("[AlertService] 推送告警失败: %v", err)
			} else if n > 0 {
				log.Infof("[AlertService] 本轮推送 %d 条内容变更告警", n)
			}
		}
	}
}

// PublishPending 读取未通知的变更，逐条发布后统一标记。
// 某条发布失败则该条不标记，留待下一轮重试。
func (s *alertService) PublishPending(ctx context.Context) (int, error) {
	changes, err := s.changeRepo.FindUnnotified(ctx, alertBatchSize)
	if err != nil {
		return 0, err
	}
	if len(changes) == 0 {
		return 0, nil
	}

	published := make([]int64, 0, len(changes))
	for _, change := range changes {
		event := model.AlertEvent{
			ChangeID:      change.ID,
			PageURL:       change.PageURL,
			ChangeType:    change.ChangeType,
			ChangeSummary: change.ChangeSummary,
			DetectedAt:    change.DetectedAt,
			PublishedAt:   time.Now(),
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			log.Errorf("[AlertService] 发布告警事件失败, changeId: %d, error: %v", change.ID, err)
			continue
		}
		published = append(published, change.ID)
	}

	if err := s.changeRepo.MarkNotified(ctx, published); err != nil {
		return len(published), err
	}
	return len(published), nil
}
