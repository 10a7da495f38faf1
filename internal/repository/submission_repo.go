package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	pkgerrors "github.com/Ynate-byte/gradpro-sub001/pkg/errors"
)

// SubmissionRepository 提交物数据访问接口
type SubmissionRepository interface {
	Create(ctx context.Context, s *model.Submission) error
	GetByID(ctx context.Context, id string) (*model.Submission, error)
	GetByIDForUpdate(ctx context.Context, id string) (*model.Submission, error)
	// ListByAssignment 按提交时间倒序
	ListByAssignment(ctx context.Context, assignmentID string) ([]model.Submission, error)
	CountAwaiting(ctx context.Context, assignmentID string) (int64, error)
	// Review 写入审核结果，仅当当前状态仍为 from 时生效
	Review(ctx context.Context, s *model.Submission, from string) error
}

type submissionRepo struct {
	db *gorm.DB
}

// NewSubmissionRepo 创建 SubmissionRepository 实例
func NewSubmissionRepo(db *gorm.DB) SubmissionRepository {
	return &submissionRepo{db: db}
}

func (r *submissionRepo) Create(ctx context.Context, s *model.Submission) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *submissionRepo) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	var s model.Submission
	if err := r.db.WithContext(ctx).Where("submission_id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *submissionRepo) GetByIDForUpdate(ctx context.Context, id string) (*model.Submission, error) {
	var s model.Submission
	if err := forUpdate(r.db.WithContext(ctx)).Where("submission_id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *submissionRepo) ListByAssignment(ctx context.Context, assignmentID string) ([]model.Submission, error) {
	var list []model.Submission
	err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("submitted_at DESC, created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *submissionRepo) CountAwaiting(ctx context.Context, assignmentID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("assignment_id = ? AND status = ?", assignmentID, model.SubmissionStatusAwaiting).
		Count(&count).Error
	return count, err
}

func (r *submissionRepo) Review(ctx context.Context, s *model.Submission, from string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Submission{}).
		Where("submission_id = ? AND status = ?", s.SubmissionID, from).
		Updates(map[string]interface{}{
			"status":      s.Status,
			"reviewer_id": s.ReviewerID,
			"feedback":    s.Feedback,
			"reviewed_at": s.ReviewedAt,
			"updated_by":  s.UpdatedBy,
			"updated_at":  s.ReviewedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}
