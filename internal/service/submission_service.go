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

// SubmissionService 阶段提交物业务接口
type SubmissionService interface {
	Create(ctx context.Context, actor lifecycle.Actor, assignmentID string, req *dto.CreateSubmissionRequest) (*dto.SubmissionResponse, error)
	// Confirm 导师确认提交物，选题随之完成
	Confirm(ctx context.Context, actor lifecycle.Actor, submissionID string, req *dto.ConfirmSubmissionRequest) (*dto.SubmissionResponse, error)
	RequestResubmission(ctx context.Context, actor lifecycle.Actor, submissionID string, req *dto.RequestResubmissionRequest) (*dto.SubmissionResponse, error)
	ListByAssignment(ctx context.Context, actor lifecycle.Actor, assignmentID string) ([]dto.SubmissionResponse, error)
}

type submissionService struct {
	wf     *workflow
	logger *zap.Logger
}

// NewSubmissionService 创建 SubmissionService 实例
func NewSubmissionService(repo *repository.Repository, events EventSink, logger *zap.Logger) SubmissionService {
	return &submissionService{wf: newWorkflow(repo, events, logger), logger: logger}
}

func (s *submissionService) Create(ctx context.Context, actor lifecycle.Actor, assignmentID string, req *dto.CreateSubmissionRequest) (*dto.SubmissionResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	var sub *model.Submission
	err := s.wf.run(ctx, "submission.create", func(tx *repository.Repository, emit func(Event)) error {
		a, err := tx.Assignment.GetByIDForUpdate(ctx, assignmentID)
		if err != nil {
			return notFound(err, ErrAssignmentNotFound)
		}
		if a.Status != model.AssignmentStatusInProgress {
			return ErrAssignmentNotActive
		}
		if err := requireMemberOf(ctx, tx, actor.UserID, a.GroupID); err != nil {
			return err
		}
		awaiting, err := tx.Submission.CountAwaiting(ctx, a.AssignmentID)
		if err != nil {
			return err
		}
		if awaiting > 0 {
			return ErrAwaitingSubmission
		}

		sub = &model.Submission{
			AssignmentID: a.AssignmentID,
			SubmitterID:  actor.UserID,
			Title:        req.Title,
			DocumentRef:  req.DocumentRef,
			Note:         req.Note,
			Status:       model.SubmissionStatusAwaiting,
			SubmittedAt:  s.wf.now(),
		}
		sub.CreatedBy = &actor.UserID
		sub.UpdatedBy = &actor.UserID
		if err := tx.Submission.Create(ctx, sub); err != nil {
			return err
		}
		emit(Event{
			Type:        EventSubmissionCreated,
			Recipients:  []string{a.AdvisorID},
			Title:       "收到新的阶段提交物",
			Content:     req.Title,
			RelatedType: "submission",
			RelatedID:   sub.SubmissionID,
			ActorID:     actor.UserID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := toSubmissionResponse(sub)
	return &resp, nil
}

func (s *submissionService) Confirm(ctx context.Context, actor lifecycle.Actor, submissionID string, req *dto.ConfirmSubmissionRequest) (*dto.SubmissionResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	return s.review(ctx, actor, submissionID, lifecycle.ActionConfirm, req.Feedback)
}

func (s *submissionService) RequestResubmission(ctx context.Context, actor lifecycle.Actor, submissionID string, req *dto.RequestResubmissionRequest) (*dto.SubmissionResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	return s.review(ctx, actor, submissionID, lifecycle.ActionReject, req.Feedback)
}

// review 审核流程：仅选题导师可操作；确认时选题同事务迁移到 completed
func (s *submissionService) review(ctx context.Context, actor lifecycle.Actor, submissionID, action, feedback string) (*dto.SubmissionResponse, error) {
	var sub *model.Submission
	err := s.wf.run(ctx, "submission."+action, func(tx *repository.Repository, emit func(Event)) error {
		peek, err := tx.Submission.GetByID(ctx, submissionID)
		if err != nil {
			return notFound(err, ErrSubmissionNotFound)
		}
		// 加锁顺序：选题 → 提交物，与 Create 一致
		a, err := tx.Assignment.GetByIDForUpdate(ctx, peek.AssignmentID)
		if err != nil {
			return notFound(err, ErrAssignmentNotFound)
		}
		sub, err = tx.Submission.GetByIDForUpdate(ctx, submissionID)
		if err != nil {
			return notFound(err, ErrSubmissionNotFound)
		}

		facts := lifecycle.Facts{IsReviewer: a.AdvisorID == actor.UserID}
		to, err := lifecycle.Submission.Next(sub.Status, action, actor, facts)
		if err != nil {
			return err
		}
		if a.Status != model.AssignmentStatusInProgress {
			return ErrAssignmentNotActive
		}

		now := s.wf.now()
		from := sub.Status
		sub.Status = to
		sub.ReviewerID = &actor.UserID
		sub.Feedback = feedback
		sub.ReviewedAt = &now
		sub.UpdatedBy = &actor.UserID
		if err := tx.Submission.Review(ctx, sub, from); err != nil {
			return stale(err)
		}

		if action == lifecycle.ActionConfirm {
			n, err := tx.Assignment.UpdateStatus(ctx, a.AssignmentID,
				model.AssignmentStatusInProgress, model.AssignmentStatusCompleted)
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrAssignmentNotActive
			}
		}

		title := "提交物已确认"
		if action == lifecycle.ActionReject {
			title = "提交物需要重新提交"
		}
		emit(Event{
			Type:        EventSubmissionReviewed,
			Recipients:  []string{sub.SubmitterID},
			Title:       title,
			Content:     feedback,
			RelatedType: "submission",
			RelatedID:   sub.SubmissionID,
			ActorID:     actor.UserID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	resp := toSubmissionResponse(sub)
	return &resp, nil
}

func (s *submissionService) ListByAssignment(ctx context.Context, actor lifecycle.Actor, assignmentID string) ([]dto.SubmissionResponse, error) {
	a, err := s.wf.repo.Assignment.GetByID(ctx, assignmentID)
	if err != nil {
		return nil, notFound(err, ErrAssignmentNotFound)
	}
	if a.AdvisorID != actor.UserID && !actor.IsAdmin() && !actor.IsDepartmentHead() {
		if err := requireMemberOf(ctx, s.wf.repo, actor.UserID, a.GroupID); err != nil {
			return nil, err
		}
	}
	list, err := s.wf.repo.Submission.ListByAssignment(ctx, assignmentID)
	if err != nil {
		s.logger.Error("查询提交物失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.SubmissionResponse, 0, len(list))
	for i := range list {
		result = append(result, toSubmissionResponse(&list[i]))
	}
	return result, nil
}

func toSubmissionResponse(s *model.Submission) dto.SubmissionResponse {
	return dto.SubmissionResponse{
		ID:           s.SubmissionID,
		AssignmentID: s.AssignmentID,
		SubmitterID:  s.SubmitterID,
		Title:        s.Title,
		DocumentRef:  s.DocumentRef,
		Note:         s.Note,
		Status:       s.Status,
		ReviewerID:   s.ReviewerID,
		Feedback:     s.Feedback,
		SubmittedAt:  formatTime(s.SubmittedAt),
		ReviewedAt:   formatTimePtr(s.ReviewedAt),
	}
}
