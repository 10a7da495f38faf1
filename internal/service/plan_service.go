package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Ynate-byte/gradpro-sub001/internal/dto"
	"github.com/Ynate-byte/gradpro-sub001/internal/lifecycle"
	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	"github.com/Ynate-byte/gradpro-sub001/internal/repository"
	"github.com/Ynate-byte/gradpro-sub001/pkg/validate"
)

// PlanService 毕业设计计划业务接口
type PlanService interface {
	Create(ctx context.Context, actor lifecycle.Actor, req *dto.CreatePlanRequest) (*dto.PlanResponse, error)
	Get(ctx context.Context, actor lifecycle.Actor, id string) (*dto.PlanResponse, error)
	List(ctx context.Context, actor lifecycle.Actor, req *dto.PlanListRequest) ([]dto.PlanResponse, error)
	Update(ctx context.Context, actor lifecycle.Actor, id string, req *dto.UpdatePlanRequest) (*dto.PlanResponse, error)
	AddMilestone(ctx context.Context, actor lifecycle.Actor, planID string, req *dto.MilestoneInput) (*dto.MilestoneResponse, error)
	RemoveMilestone(ctx context.Context, actor lifecycle.Actor, planID, milestoneID string) error

	// ── 生命周期 ──
	Submit(ctx context.Context, actor lifecycle.Actor, id string) (*dto.PlanResponse, error)
	Resubmit(ctx context.Context, actor lifecycle.Actor, id string) (*dto.PlanResponse, error)
	Decide(ctx context.Context, actor lifecycle.Actor, id string, req *dto.DecidePlanRequest) (*dto.PlanResponse, error)
	Activate(ctx context.Context, actor lifecycle.Actor, id string) (*dto.PlanResponse, error)
	Complete(ctx context.Context, actor lifecycle.Actor, id string) (*dto.PlanResponse, error)
	Cancel(ctx context.Context, actor lifecycle.Actor, id string) (*dto.PlanResponse, error)

	// ── 参与学生 ──
	EnrollStudents(ctx context.Context, actor lifecycle.Actor, planID string, req *dto.EnrollStudentsRequest) (*dto.EnrollResult, error)
	// ParseEnrollmentFile 解析报名 Excel，返回学号列表（不写库）
	ParseEnrollmentFile(reader io.Reader) ([]string, error)
	SetEligibility(ctx context.Context, actor lifecycle.Actor, planID, studentID string, req *dto.SetEligibilityRequest) error
	RemoveParticipant(ctx context.Context, actor lifecycle.Actor, planID, studentID string) error
	ListParticipants(ctx context.Context, actor lifecycle.Actor, planID string) ([]dto.ParticipantResponse, error)
}

type planService struct {
	wf     *workflow
	logger *zap.Logger
}

// NewPlanService 创建 PlanService 实例
func NewPlanService(repo *repository.Repository, events EventSink, logger *zap.Logger) PlanService {
	return &planService{wf: newWorkflow(repo, events, logger), logger: logger}
}

// ────────────────────── Create ──────────────────────

func (s *planService) Create(ctx context.Context, actor lifecycle.Actor, req *dto.CreatePlanRequest) (*dto.PlanResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if !(actor.IsAdvisor() || actor.IsDepartmentHead() || actor.IsAdmin()) {
		return nil, ErrForbidden
	}

	plan := &model.ThesisPlan{
		Title:         req.Title,
		AcademicYear:  req.AcademicYear,
		Term:          req.Term,
		TrainingLevel: req.TrainingLevel,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		MinMembers:    req.MinMembers,
		MaxMembers:    req.MaxMembers,
		MaxGroups:     req.MaxGroups,
		Status:        model.PlanStatusDraft,
		CreatorID:     actor.UserID,
	}
	plan.CreatedBy = &actor.UserID
	plan.UpdatedBy = &actor.UserID

	err := s.wf.run(ctx, "plan.create", func(tx *repository.Repository, _ func(Event)) error {
		if err := tx.Plan.Create(ctx, plan); err != nil {
			return fmt.Errorf("创建计划失败: %w", err)
		}
		for i := range req.Milestones {
			m := newMilestone(plan.PlanID, &req.Milestones[i], actor.UserID)
			if err := tx.Milestone.Create(ctx, m); err != nil {
				return fmt.Errorf("创建里程碑失败: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, plan.PlanID)
}

// ────────────────────── Get / List ──────────────────────

func (s *planService) Get(ctx context.Context, actor lifecycle.Actor, id string) (*dto.PlanResponse, error) {
	plan, err := s.wf.repo.Plan.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrPlanNotFound)
	}
	return toPlanResponse(plan, actor), nil
}

func (s *planService) List(ctx context.Context, actor lifecycle.Actor, req *dto.PlanListRequest) ([]dto.PlanResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	filter := repository.PlanFilter{Status: req.Status}
	if req.Mine {
		filter.CreatorID = actor.UserID
	}
	plans, err := s.wf.repo.Plan.List(ctx, filter)
	if err != nil {
		s.logger.Error("查询计划列表失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.PlanResponse, 0, len(plans))
	for i := range plans {
		result = append(result, *toPlanResponse(&plans[i], actor))
	}
	return result, nil
}

// ────────────────────── Update ──────────────────────

func (s *planService) Update(ctx context.Context, actor lifecycle.Actor, id string, req *dto.UpdatePlanRequest) (*dto.PlanResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	err := s.wf.run(ctx, "plan.update", func(tx *repository.Repository, _ func(Event)) error {
		plan, err := s.editablePlan(ctx, tx, actor, id)
		if err != nil {
			return err
		}
		plan.Title = req.Title
		plan.AcademicYear = req.AcademicYear
		plan.Term = req.Term
		plan.TrainingLevel = req.TrainingLevel
		plan.StartDate = req.StartDate
		plan.EndDate = req.EndDate
		plan.MinMembers = req.MinMembers
		plan.MaxMembers = req.MaxMembers
		plan.MaxGroups = req.MaxGroups
		plan.UpdatedBy = &actor.UserID
		// 以客户端持有的版本号作为乐观锁条件
		plan.Version = req.Version
		return tx.Plan.Update(ctx, plan)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, id)
}

// ────────────────────── Milestones ──────────────────────

func (s *planService) AddMilestone(ctx context.Context, actor lifecycle.Actor, planID string, req *dto.MilestoneInput) (*dto.MilestoneResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	var m *model.Milestone
	err := s.wf.run(ctx, "plan.add_milestone", func(tx *repository.Repository, _ func(Event)) error {
		if _, err := s.editablePlan(ctx, tx, actor, planID); err != nil {
			return err
		}
		m = newMilestone(planID, req, actor.UserID)
		return tx.Milestone.Create(ctx, m)
	})
	if err != nil {
		return nil, err
	}
	resp := toMilestoneResponse(m)
	return &resp, nil
}

func (s *planService) RemoveMilestone(ctx context.Context, actor lifecycle.Actor, planID, milestoneID string) error {
	return s.wf.run(ctx, "plan.remove_milestone", func(tx *repository.Repository, _ func(Event)) error {
		if _, err := s.editablePlan(ctx, tx, actor, planID); err != nil {
			return err
		}
		n, err := tx.Milestone.Delete(ctx, planID, milestoneID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrMilestoneNotFound
		}
		return nil
	})
}

// editablePlan 加锁读取计划并校验 edit 自环（草稿 / 待修改 + 创建者或管理员）
func (s *planService) editablePlan(ctx context.Context, tx *repository.Repository, actor lifecycle.Actor, id string) (*model.ThesisPlan, error) {
	plan, err := tx.Plan.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrPlanNotFound)
	}
	facts := lifecycle.Facts{IsOwner: plan.CreatorID == actor.UserID}
	if _, err := lifecycle.Plan.Next(plan.Status, lifecycle.ActionEdit, actor, facts); err != nil {
		return nil, ErrPlanNotEditable.Wrap(err)
	}
	return plan, nil
}

// ────────────────────── 生命周期 ──────────────────────

func (s *planService) Submit(ctx context.Context, actor lifecycle.Actor, id string) (*dto.PlanResponse, error) {
	return s.transition(ctx, actor, id, lifecycle.ActionSubmit, func(plan *model.ThesisPlan, now time.Time) Event {
		plan.SubmittedAt = &now
		return Event{Type: EventPlanSubmitted, Title: "计划已提交审批", Content: plan.Title}
	})
}

func (s *planService) Resubmit(ctx context.Context, actor lifecycle.Actor, id string) (*dto.PlanResponse, error) {
	return s.transition(ctx, actor, id, lifecycle.ActionResubmit, func(plan *model.ThesisPlan, now time.Time) Event {
		plan.SubmittedAt = &now
		return Event{Type: EventPlanSubmitted, Title: "计划已重新提交审批", Content: plan.Title}
	})
}

func (s *planService) Decide(ctx context.Context, actor lifecycle.Actor, id string, req *dto.DecidePlanRequest) (*dto.PlanResponse, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	action := lifecycle.ActionApprove
	if req.Decision == lifecycle.ActionRequestChanges {
		action = lifecycle.ActionRequestChanges
	}
	return s.transition(ctx, actor, id, action, func(plan *model.ThesisPlan, now time.Time) Event {
		plan.ApproverID = &actor.UserID
		plan.ApprovalComment = req.Comment
		title := "计划需要修改"
		if action == lifecycle.ActionApprove {
			plan.ApprovedAt = &now
			title = "计划已审批通过"
		}
		return Event{
			Type:       EventPlanDecided,
			Recipients: []string{plan.CreatorID},
			Title:      title,
			Content:    req.Comment,
		}
	})
}

func (s *planService) Activate(ctx context.Context, actor lifecycle.Actor, id string) (*dto.PlanResponse, error) {
	return s.transition(ctx, actor, id, lifecycle.ActionActivate, func(plan *model.ThesisPlan, _ time.Time) Event {
		return Event{Type: EventPlanActivated, Recipients: []string{plan.CreatorID}, Title: "计划已启动", Content: plan.Title}
	})
}

func (s *planService) Complete(ctx context.Context, actor lifecycle.Actor, id string) (*dto.PlanResponse, error) {
	return s.transition(ctx, actor, id, lifecycle.ActionComplete, func(plan *model.ThesisPlan, _ time.Time) Event {
		return Event{Type: EventPlanCompleted, Recipients: []string{plan.CreatorID}, Title: "计划已结束", Content: plan.Title}
	})
}

func (s *planService) Cancel(ctx context.Context, actor lifecycle.Actor, id string) (*dto.PlanResponse, error) {
	return s.transition(ctx, actor, id, lifecycle.ActionCancel, func(plan *model.ThesisPlan, _ time.Time) Event {
		return Event{Type: EventPlanCancelled, Recipients: []string{plan.CreatorID}, Title: "计划已取消", Content: plan.Title}
	})
}

// transition 计划状态迁移的通用流程：加锁读取 → 状态机裁决 → 条件更新 → 提交后通知
func (s *planService) transition(
	ctx context.Context,
	actor lifecycle.Actor,
	id, action string,
	apply func(plan *model.ThesisPlan, now time.Time) Event,
) (*dto.PlanResponse, error) {
	err := s.wf.run(ctx, "plan."+action, func(tx *repository.Repository, emit func(Event)) error {
		plan, err := tx.Plan.GetByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, ErrPlanNotFound)
		}
		milestones, err := tx.Milestone.CountByPlan(ctx, id)
		if err != nil {
			return err
		}
		facts := lifecycle.Facts{
			IsOwner:        plan.CreatorID == actor.UserID,
			MilestoneCount: int(milestones),
		}
		to, err := lifecycle.Plan.Next(plan.Status, action, actor, facts)
		if err != nil {
			return err
		}

		from := plan.Status
		plan.Status = to
		plan.UpdatedBy = &actor.UserID
		e := apply(plan, s.wf.now())
		if err := tx.Plan.UpdateStatus(ctx, plan, from); err != nil {
			return stale(err)
		}

		e.RelatedType = "plan"
		e.RelatedID = plan.PlanID
		e.ActorID = actor.UserID
		emit(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor, id)
}

// ────────────────────── 参与学生 ──────────────────────

func (s *planService) EnrollStudents(ctx context.Context, actor lifecycle.Actor, planID string, req *dto.EnrollStudentsRequest) (*dto.EnrollResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	codes := dedupe(trimAll(req.StudentCodes))
	result := &dto.EnrollResult{AlreadyEnrolled: []string{}, NotFound: []string{}}

	err := s.wf.run(ctx, "plan.enroll", func(tx *repository.Repository, _ func(Event)) error {
		if _, err := s.managedPlan(ctx, tx, actor, planID); err != nil {
			return err
		}
		users, err := tx.User.ListByStudentCodes(ctx, codes)
		if err != nil {
			return err
		}
		byCode := make(map[string]*model.User, len(users))
		for i := range users {
			if users[i].Role == model.RoleStudent {
				byCode[users[i].StudentCode] = &users[i]
			}
		}

		now := s.wf.now()
		for _, code := range codes {
			u, ok := byCode[code]
			if !ok {
				result.NotFound = append(result.NotFound, code)
				continue
			}
			if _, err := tx.Participant.Get(ctx, planID, u.UserID); err == nil {
				result.AlreadyEnrolled = append(result.AlreadyEnrolled, code)
				continue
			} else if !isNotFound(err) {
				return err
			}
			p := &model.Participant{
				PlanID:     planID,
				StudentID:  u.UserID,
				IsEligible: true,
				JoinedAt:   now,
			}
			p.CreatedBy = &actor.UserID
			p.UpdatedBy = &actor.UserID
			if err := tx.Participant.Create(ctx, p); err != nil {
				return fmt.Errorf("报名学生 %s 失败: %w", code, err)
			}
			result.Enrolled++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

const maxImportRows = 1000

func (s *planService) ParseEnrollmentFile(reader io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, ErrImportInvalidFile.Wrap(err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, ErrImportInvalidFile.Wrap(err)
	}
	if len(rows) < 2 {
		return nil, ErrImportEmpty
	}

	col := studentCodeColumn(rows[0])
	if col < 0 {
		return nil, ErrImportNoCodeColumn
	}
	if len(rows)-1 > maxImportRows {
		return nil, ErrImportTooManyRows
	}

	codes := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		if code := strings.TrimSpace(row[col]); code != "" {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return nil, ErrImportEmpty
	}
	return dedupe(codes), nil
}

// studentCodeColumn 在表头中查找学号列
func studentCodeColumn(header []string) int {
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "学号", "student_code", "mssv", "mã sinh viên", "ma sinh vien":
			return i
		}
	}
	return -1
}

func (s *planService) SetEligibility(ctx context.Context, actor lifecycle.Actor, planID, studentID string, req *dto.SetEligibilityRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	return s.wf.run(ctx, "plan.set_eligibility", func(tx *repository.Repository, _ func(Event)) error {
		if _, err := s.managedPlan(ctx, tx, actor, planID); err != nil {
			return err
		}
		n, err := tx.Participant.SetEligibility(ctx, planID, studentID, *req.Eligible, actor.UserID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrParticipantNotFound
		}
		return nil
	})
}

func (s *planService) RemoveParticipant(ctx context.Context, actor lifecycle.Actor, planID, studentID string) error {
	return s.wf.run(ctx, "plan.remove_participant", func(tx *repository.Repository, _ func(Event)) error {
		if _, err := s.managedPlan(ctx, tx, actor, planID); err != nil {
			return err
		}
		grouped, err := inPlanGroup(ctx, tx, planID, studentID)
		if err != nil {
			return err
		}
		if grouped {
			return ErrParticipantGrouped
		}
		n, err := tx.Participant.Delete(ctx, planID, studentID)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrParticipantNotFound
		}
		return nil
	})
}

func (s *planService) ListParticipants(ctx context.Context, actor lifecycle.Actor, planID string) ([]dto.ParticipantResponse, error) {
	if _, err := s.wf.repo.Plan.GetByID(ctx, planID); err != nil {
		return nil, notFound(err, ErrPlanNotFound)
	}
	list, err := s.wf.repo.Participant.ListByPlan(ctx, planID)
	if err != nil {
		s.logger.Error("查询参与学生失败", zap.Error(err))
		return nil, err
	}
	result := make([]dto.ParticipantResponse, 0, len(list))
	for i := range list {
		p := &list[i]
		item := dto.ParticipantResponse{
			StudentID:  p.StudentID,
			IsEligible: p.IsEligible,
			JoinedAt:   formatTime(p.JoinedAt),
		}
		if p.Student != nil {
			item.StudentCode = p.Student.StudentCode
			item.Name = p.Student.Name
			item.MajorID = p.Student.MajorID
			item.HomeClass = p.Student.HomeClass
		}
		result = append(result, item)
	}
	return result, nil
}

// managedPlan 加锁读取计划，要求操作者可管理且计划未进入终态
func (s *planService) managedPlan(ctx context.Context, tx *repository.Repository, actor lifecycle.Actor, id string) (*model.ThesisPlan, error) {
	plan, err := tx.Plan.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrPlanNotFound)
	}
	if !canManagePlan(actor, plan) {
		return nil, ErrForbidden
	}
	if planClosed(plan) {
		return nil, ErrPlanClosed
	}
	return plan, nil
}

// inPlanGroup 学生当前是否在该计划的某个小组中
func inPlanGroup(ctx context.Context, tx *repository.Repository, planID, userID string) (bool, error) {
	m, err := tx.Membership.GetByUser(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	g, err := tx.Group.GetByIDForUpdate(ctx, m.GroupID)
	if err != nil {
		return false, err
	}
	return g.PlanID == planID, nil
}

// ────────────────────── 辅助 ──────────────────────

func newMilestone(planID string, in *dto.MilestoneInput, actorID string) *model.Milestone {
	m := &model.Milestone{
		PlanID:          planID,
		Name:            in.Name,
		StartAt:         in.StartAt,
		EndAt:           in.EndAt,
		Description:     in.Description,
		ResponsibleRole: in.ResponsibleRole,
		SortOrder:       in.SortOrder,
	}
	m.CreatedBy = &actorID
	m.UpdatedBy = &actorID
	return m
}

func toPlanResponse(plan *model.ThesisPlan, actor lifecycle.Actor) *dto.PlanResponse {
	facts := lifecycle.Facts{
		IsOwner:        plan.CreatorID == actor.UserID,
		MilestoneCount: len(plan.Milestones),
	}
	resp := &dto.PlanResponse{
		ID:              plan.PlanID,
		Title:           plan.Title,
		AcademicYear:    plan.AcademicYear,
		Term:            plan.Term,
		TrainingLevel:   plan.TrainingLevel,
		StartDate:       plan.StartDate.Format("2006-01-02"),
		EndDate:         plan.EndDate.Format("2006-01-02"),
		MinMembers:      plan.MinMembers,
		MaxMembers:      plan.MaxMembers,
		MaxGroups:       plan.MaxGroups,
		GroupCount:      plan.GroupCount,
		Status:          plan.Status,
		CreatorID:       plan.CreatorID,
		ApproverID:      plan.ApproverID,
		ApprovalComment: plan.ApprovalComment,
		SubmittedAt:     formatTimePtr(plan.SubmittedAt),
		ApprovedAt:      formatTimePtr(plan.ApprovedAt),
		AllowedActions:  lifecycle.Plan.Actions(plan.Status, actor, facts),
		Version:         plan.Version,
		CreatedAt:       formatTime(plan.CreatedAt),
		UpdatedAt:       formatTime(plan.UpdatedAt),
	}
	for i := range plan.Milestones {
		resp.Milestones = append(resp.Milestones, toMilestoneResponse(&plan.Milestones[i]))
	}
	return resp
}

func toMilestoneResponse(m *model.Milestone) dto.MilestoneResponse {
	return dto.MilestoneResponse{
		ID:              m.MilestoneID,
		PlanID:          m.PlanID,
		Name:            m.Name,
		StartAt:         formatTime(m.StartAt),
		EndAt:           formatTime(m.EndAt),
		Description:     m.Description,
		ResponsibleRole: m.ResponsibleRole,
		SortOrder:       m.SortOrder,
	}
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.TrimSpace(s))
	}
	return out
}
