package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/Ynate-byte/gradpro-sub001/internal/model"
)

// InvitationRepository 组队邀请数据访问接口
type InvitationRepository interface {
	Create(ctx context.Context, inv *model.Invitation) error
	GetByID(ctx context.Context, id string) (*model.Invitation, error)
	GetByIDForUpdate(ctx context.Context, id string) (*model.Invitation, error)
	// FindLivePending 查询 (小组, 被邀请人) 上未过期的待处理邀请
	FindLivePending(ctx context.Context, groupID, inviteeID string, now time.Time) (*model.Invitation, error)
	ListByInvitee(ctx context.Context, inviteeID string) ([]model.Invitation, error)
	ListByGroup(ctx context.Context, groupID string) ([]model.Invitation, error)
	// UpdateStatus 仅当当前状态仍为 pending 时生效，返回受影响行数
	UpdateStatus(ctx context.Context, id, status string, at time.Time) (int64, error)
	// CancelPendingByUser 取消该用户收到的其余待处理邀请
	CancelPendingByUser(ctx context.Context, userID, exceptID string, at time.Time) (int64, error)
	// CancelPendingByGroup 取消发往该小组的全部待处理邀请（小组解散时）
	CancelPendingByGroup(ctx context.Context, groupID string, at time.Time) (int64, error)
}

type invitationRepo struct {
	db *gorm.DB
}

// NewInvitationRepo 创建 InvitationRepository 实例
func NewInvitationRepo(db *gorm.DB) InvitationRepository {
	return &invitationRepo{db: db}
}

func (r *invitationRepo) Create(ctx context.Context, inv *model.Invitation) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *invitationRepo) GetByID(ctx context.Context, id string) (*model.Invitation, error) {
	var inv model.Invitation
	if err := r.db.WithContext(ctx).Where("invitation_id = ?", id).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invitationRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Invitation, error) {
	var inv model.Invitation
	if err := forUpdate(r.db.WithContext(ctx)).Where("invitation_id = ?", id).First(&inv).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invitationRepo) FindLivePending(ctx context.Context, groupID, inviteeID string, now time.Time) (*model.Invitation, error) {
	var inv model.Invitation
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND invitee_id = ? AND status = ? AND expires_at > ?",
			groupID, inviteeID, model.InvitationStatusPending, now).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *invitationRepo) ListByInvitee(ctx context.Context, inviteeID string) ([]model.Invitation, error) {
	var list []model.Invitation
	err := r.db.WithContext(ctx).
		Where("invitee_id = ?", inviteeID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *invitationRepo) ListByGroup(ctx context.Context, groupID string) ([]model.Invitation, error) {
	var list []model.Invitation
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *invitationRepo) UpdateStatus(ctx context.Context, id, status string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Invitation{}).
		Where("invitation_id = ? AND status = ?", id, model.InvitationStatusPending).
		Updates(map[string]interface{}{
			"status":       status,
			"responded_at": at,
			"updated_at":   at,
		})
	return result.RowsAffected, result.Error
}

func (r *invitationRepo) CancelPendingByUser(ctx context.Context, userID, exceptID string, at time.Time) (int64, error) {
	db := r.db.WithContext(ctx).
		Model(&model.Invitation{}).
		Where("invitee_id = ? AND status = ? AND expires_at > ?", userID, model.InvitationStatusPending, at)
	if exceptID != "" {
		db = db.Where("invitation_id <> ?", exceptID)
	}
	result := db.Updates(map[string]interface{}{
		"status":       model.InvitationStatusCancelled,
		"responded_at": at,
		"updated_at":   at,
	})
	return result.RowsAffected, result.Error
}

func (r *invitationRepo) CancelPendingByGroup(ctx context.Context, groupID string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Invitation{}).
		Where("group_id = ? AND status = ? AND expires_at > ?", groupID, model.InvitationStatusPending, at).
		Updates(map[string]interface{}{
			"status":       model.InvitationStatusCancelled,
			"responded_at": at,
			"updated_at":   at,
		})
	return result.RowsAffected, result.Error
}

// ── JoinRequest Repository ──

// JoinRequestRepository 入组申请数据访问接口
type JoinRequestRepository interface {
	Create(ctx context.Context, req *model.JoinRequest) error
	GetByID(ctx context.Context, id string) (*model.JoinRequest, error)
	GetByIDForUpdate(ctx context.Context, id string) (*model.JoinRequest, error)
	FindPending(ctx context.Context, groupID, requesterID string) (*model.JoinRequest, error)
	ListByGroup(ctx context.Context, groupID string) ([]model.JoinRequest, error)
	ListByRequester(ctx context.Context, requesterID string) ([]model.JoinRequest, error)
	// UpdateStatus 仅当当前状态仍为 pending 时生效，返回受影响行数
	UpdateStatus(ctx context.Context, id, status string, responderID *string, at time.Time) (int64, error)
	CancelPendingByUser(ctx context.Context, userID, exceptID string, at time.Time) (int64, error)
	CancelPendingByGroup(ctx context.Context, groupID string, at time.Time) (int64, error)
}

type joinRequestRepo struct {
	db *gorm.DB
}

// NewJoinRequestRepo 创建 JoinRequestRepository 实例
func NewJoinRequestRepo(db *gorm.DB) JoinRequestRepository {
	return &joinRequestRepo{db: db}
}

func (r *joinRequestRepo) Create(ctx context.Context, req *model.JoinRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *joinRequestRepo) GetByID(ctx context.Context, id string) (*model.JoinRequest, error) {
	var req model.JoinRequest
	if err := r.db.WithContext(ctx).Where("request_id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *joinRequestRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.JoinRequest, error) {
	var req model.JoinRequest
	if err := forUpdate(r.db.WithContext(ctx)).Where("request_id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *joinRequestRepo) FindPending(ctx context.Context, groupID, requesterID string) (*model.JoinRequest, error) {
	var req model.JoinRequest
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND requester_id = ? AND status = ?", groupID, requesterID, model.JoinRequestStatusPending).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *joinRequestRepo) ListByGroup(ctx context.Context, groupID string) ([]model.JoinRequest, error) {
	var list []model.JoinRequest
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *joinRequestRepo) ListByRequester(ctx context.Context, requesterID string) ([]model.JoinRequest, error) {
	var list []model.JoinRequest
	err := r.db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *joinRequestRepo) UpdateStatus(ctx context.Context, id, status string, responderID *string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.JoinRequest{}).
		Where("request_id = ? AND status = ?", id, model.JoinRequestStatusPending).
		Updates(map[string]interface{}{
			"status":       status,
			"responder_id": responderID,
			"responded_at": at,
			"updated_at":   at,
		})
	return result.RowsAffected, result.Error
}

func (r *joinRequestRepo) CancelPendingByUser(ctx context.Context, userID, exceptID string, at time.Time) (int64, error) {
	db := r.db.WithContext(ctx).
		Model(&model.JoinRequest{}).
		Where("requester_id = ? AND status = ?", userID, model.JoinRequestStatusPending)
	if exceptID != "" {
		db = db.Where("request_id <> ?", exceptID)
	}
	result := db.Updates(map[string]interface{}{
		"status":       model.JoinRequestStatusCancelled,
		"responded_at": at,
		"updated_at":   at,
	})
	return result.RowsAffected, result.Error
}

func (r *joinRequestRepo) CancelPendingByGroup(ctx context.Context, groupID string, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.JoinRequest{}).
		Where("group_id = ? AND status = ?", groupID, model.JoinRequestStatusPending).
		Updates(map[string]interface{}{
			"status":       model.JoinRequestStatusCancelled,
			"responded_at": at,
			"updated_at":   at,
		})
	return result.RowsAffected, result.Error
}
