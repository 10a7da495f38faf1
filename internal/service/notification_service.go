package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Ynate-byte/gradpro-sub001/internal/dto"
	"github.com/Ynate-byte/gradpro-sub001/internal/lifecycle"
	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	"github.com/Ynate-byte/gradpro-sub001/internal/repository"
	"github.com/Ynate-byte/gradpro-sub001/pkg/validate"
)

// NotificationService 站内通知业务接口
type NotificationService interface {
	List(ctx context.Context, actor lifecycle.Actor, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error)
	// MarkRead 标记已读，返回实际更新条数
	MarkRead(ctx context.Context, actor lifecycle.Actor, req *dto.MarkReadRequest) (int64, error)
}

type notificationService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewNotificationService 创建 NotificationService 实例
func NewNotificationService(repo *repository.Repository, logger *zap.Logger) NotificationService {
	return &notificationService{repo: repo, logger: logger}
}

func (s *notificationService) List(ctx context.Context, actor lifecycle.Actor, req *dto.NotificationListRequest) ([]dto.NotificationResponse, int64, error) {
	if err := validate.Struct(req); err != nil {
		return nil, 0, err
	}
	list, total, err := s.repo.Notification.ListByUser(ctx, actor.UserID, req.UnreadOnly, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询通知失败", zap.Error(err))
		return nil, 0, err
	}
	result := make([]dto.NotificationResponse, 0, len(list))
	for i := range list {
		result = append(result, toNotificationResponse(&list[i]))
	}
	return result, total, nil
}

func (s *notificationService) MarkRead(ctx context.Context, actor lifecycle.Actor, req *dto.MarkReadRequest) (int64, error) {
	if err := validate.Struct(req); err != nil {
		return 0, err
	}
	n, err := s.repo.Notification.MarkRead(ctx, actor.UserID, req.IDs)
	if err != nil {
		s.logger.Error("标记通知已读失败", zap.Error(err))
		return 0, err
	}
	return n, nil
}

func toNotificationResponse(n *model.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:          n.NotificationID,
		Type:        n.Type,
		Title:       n.Title,
		Content:     n.Content,
		IsRead:      n.IsRead,
		RelatedType: n.RelatedType,
		RelatedID:   n.RelatedID,
		CreatedAt:   formatTime(n.CreatedAt),
	}
}
