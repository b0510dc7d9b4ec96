package service

import (
	"context"
	"visamate-go/internal/model"
	"visamate-go/internal/repository"
)

// ConversationService 提供对话快照缓存的读取。
type ConversationService interface {
	GetConversation(ctx context.Context, sessionID string) ([]model.ChatMessage, error)
}

type conversationService struct {
	conversationRepo repository.ConversationRepository
}

// NewConversationService 创建一个新的 ConversationService 实例。
func NewConversationService(conversationRepo repository.ConversationRepository) ConversationService {
	return &conversationService{conversationRepo: conversationRepo}
}

// GetConversation 返回指定会话的快照，没有历史时返回空列表。
func (s *conversationService) GetConversation(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	return s.conversationRepo.GetConversationHistory(ctx, sessionID)
}
