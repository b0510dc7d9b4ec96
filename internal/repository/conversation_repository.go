package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"visamate-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// ConversationRepository 定义了对话快照缓存的操作接口。
// 缓存按调用方提供的会话 ID 组织，保留最近 20 条消息，7 天过期。
type ConversationRepository interface {
	GetConversationHistory(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
	UpdateConversationHistory(ctx context.Context, sessionID string, messages []model.ChatMessage) error
}

const (
	conversationTTL         = 7 * 24 * time.Hour
	conversationMaxMessages = 20
)

type redisConversationRepository struct {
	redisClient *redis.Client
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(redisClient *redis.Client) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient}
}

// GetConversationHistory 从 Redis 获取对话快照。
func (r *redisConversationRepository) GetConversationHistory(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	key := fmt.Sprintf("conversation:%s", sessionID)
	jsonData, err := r.redisClient.Get(ctx, key).Result()
	if err == redis.Nil {
		return []model.ChatMessage{}, nil // 尚无历史
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
	}
	return messages, nil
}

// UpdateConversationHistory 在 Redis 中更新对话快照。
func (r *redisConversationRepository) UpdateConversationHistory(ctx context.Context, sessionID string, messages []model.ChatMessage) error {
	key := fmt.Sprintf("conversation:%s", sessionID)
	if len(messages) > conversationMaxMessages {
		messages = messages[len(messages)-conversationMaxMessages:]
	}
	jsonData, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}
	if err := r.redisClient.Set(ctx, key, jsonData, conversationTTL).Err(); err != nil {
		return fmt.Errorf("failed to set conversation history: %w", err)
	}
	return nil
}
