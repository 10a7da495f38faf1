package service

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Ynate-byte/gradpro-sub001/internal/dto"
	"github.com/Ynate-byte/gradpro-sub001/internal/lifecycle"
	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	pkgerrors "github.com/Ynate-byte/gradpro-sub001/pkg/errors"
)

func createPlanRequest(milestones int) *dto.CreatePlanRequest {
	start := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	req := &dto.CreatePlanRequest{
		Title:        "2026 春季毕业设计",
		AcademicYear: "2025-2026",
		Term:         2,
		StartDate:    start,
		EndDate:      start.AddDate(0, 5, 0),
		MinMembers:   2,
		MaxMembers:   4,
	}
	for i := 0; i < milestones; i++ {
		req.Milestones = append(req.Milestones, dto.MilestoneInput{
			Name:      "阶段",
			StartAt:   start.AddDate(0, i, 0),
			EndAt:     start.AddDate(0, i+1, 0),
			SortOrder: i,
		})
	}
	return req
}

func TestPlan_FullLifecycle(t *testing.T) {
	f := newFixture(t)
	owner := actorOf(f.advisor)

	plan, err := f.svc.Plan.Create(f.ctx, owner, createPlanRequest(2))
	if err != nil {
		t.Fatalf("创建计划失败: %v", err)
	}
	if plan.Status != model.PlanStatusDraft || len(plan.Milestones) != 2 {
		t.Fatalf("新计划应为带 2 个里程碑的草稿, got %+v", plan)
	}

	steps := []struct {
		name string
		call func() (*dto.PlanResponse, error)
		want string
	}{
		{"提交", func() (*dto.PlanResponse, error) { return f.svc.Plan.Submit(f.ctx, owner, plan.ID) }, model.PlanStatusPendingApproval},
		{"要求修改", func() (*dto.PlanResponse, error) {
			return f.svc.Plan.Decide(f.ctx, actorOf(f.head), plan.ID, &dto.DecidePlanRequest{Decision: lifecycle.ActionRequestChanges, Comment: "补充评分标准"})
		}, model.PlanStatusChangesRequested},
		{"重新提交", func() (*dto.PlanResponse, error) { return f.svc.Plan.Resubmit(f.ctx, owner, plan.ID) }, model.PlanStatusPendingApproval},
		{"审批通过", func() (*dto.PlanResponse, error) {
			return f.svc.Plan.Decide(f.ctx, actorOf(f.head), plan.ID, &dto.DecidePlanRequest{Decision: lifecycle.ActionApprove})
		}, model.PlanStatusApproved},
		{"启动", func() (*dto.PlanResponse, error) { return f.svc.Plan.Activate(f.ctx, owner, plan.ID) }, model.PlanStatusInProgress},
		{"结束", func() (*dto.PlanResponse, error) { return f.svc.Plan.Complete(f.ctx, owner, plan.ID) }, model.PlanStatusCompleted},
	}
	for _, step := range steps {
		got, err := step.call()
		if err != nil {
			t.Fatalf("%s 失败: %v", step.name, err)
		}
		if got.Status != step.want {
			t.Fatalf("%s 后状态 = %s, want %s", step.name, got.Status, step.want)
		}
	}

	final, _ := f.svc.Plan.Get(f.ctx, owner, plan.ID)
	if final.ApproverID == nil || *final.ApproverID != f.head.UserID || final.ApprovedAt == nil {
		t.Errorf("审批信息未记录: %+v", final)
	}
	if len(final.AllowedActions) != 0 {
		t.Errorf("completed 为终态, got actions %v", final.AllowedActions)
	}
	for _, e := range []string{EventPlanSubmitted, EventPlanDecided, EventPlanActivated, EventPlanCompleted} {
		if !f.sink.has(e) {
			t.Errorf("缺少事件 %s", e)
		}
	}

	// 终态计划不再接受报名
	_, err = f.svc.Plan.EnrollStudents(f.ctx, owner, plan.ID, &dto.EnrollStudentsRequest{StudentCodes: []string{"S001"}})
	assertErr(t, err, ErrPlanClosed)
}

func TestPlan_SubmitWithoutMilestones(t *testing.T) {
	f := newFixture(t)
	plan, err := f.svc.Plan.Create(f.ctx, actorOf(f.advisor), createPlanRequest(0))
	if err != nil {
		t.Fatalf("创建计划失败: %v", err)
	}
	before := f.row(t, "thesis_plans", "plan_id", plan.ID)

	_, err = f.svc.Plan.Submit(f.ctx, actorOf(f.advisor), plan.ID)
	assertKind(t, err, pkgerrors.KindInvalidTransition)
	f.assertUnchanged(t, before, "thesis_plans", "plan_id", plan.ID)
	if f.sink.count() != 0 {
		t.Errorf("失败的迁移不应投递事件, got %d", f.sink.count())
	}
}

func TestPlan_RoleGuards(t *testing.T) {
	f := newFixture(t)
	s := f.student(t, "S001", nil)
	_, err := f.svc.Plan.Create(f.ctx, actorOf(s), createPlanRequest(1))
	assertErr(t, err, ErrForbidden)

	plan, err := f.svc.Plan.Create(f.ctx, actorOf(f.advisor), createPlanRequest(1))
	if err != nil {
		t.Fatalf("创建计划失败: %v", err)
	}
	other := f.user(t, "T002", model.RoleAdvisor, nil)
	_, err = f.svc.Plan.Submit(f.ctx, actorOf(other), plan.ID)
	assertKind(t, err, pkgerrors.KindInvalidTransition)

	if _, err := f.svc.Plan.Submit(f.ctx, actorOf(f.advisor), plan.ID); err != nil {
		t.Fatalf("提交失败: %v", err)
	}
	// 仅系主任可审批
	_, err = f.svc.Plan.Decide(f.ctx, actorOf(f.admin), plan.ID, &dto.DecidePlanRequest{Decision: lifecycle.ActionApprove})
	assertKind(t, err, pkgerrors.KindInvalidTransition)
	_, err = f.svc.Plan.Decide(f.ctx, actorOf(f.head), plan.ID, &dto.DecidePlanRequest{Decision: "maybe"})
	assertKind(t, err, pkgerrors.KindValidation)
}

// 审批与要求修改并发：恰好一个生效
func TestPlan_ConcurrentDecisions(t *testing.T) {
	f := newFixture(t)
	plan, err := f.svc.Plan.Create(f.ctx, actorOf(f.advisor), createPlanRequest(1))
	if err != nil {
		t.Fatalf("创建计划失败: %v", err)
	}
	if _, err := f.svc.Plan.Submit(f.ctx, actorOf(f.advisor), plan.ID); err != nil {
		t.Fatalf("提交失败: %v", err)
	}

	decisions := []string{lifecycle.ActionApprove, lifecycle.ActionRequestChanges}
	errs := make([]error, len(decisions))
	var wg sync.WaitGroup
	for i, d := range decisions {
		wg.Add(1)
		go func(i int, d string) {
			defer wg.Done()
			_, errs[i] = f.svc.Plan.Decide(f.ctx, actorOf(f.head), plan.ID, &dto.DecidePlanRequest{Decision: d})
		}(i, d)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			if winner >= 0 {
				t.Fatal("两个审批决定都生效了")
			}
			winner = i
			continue
		}
		assertKind(t, err, pkgerrors.KindInvalidTransition)
	}
	if winner < 0 {
		t.Fatal("应有一个审批决定生效")
	}
	want := model.PlanStatusApproved
	if decisions[winner] == lifecycle.ActionRequestChanges {
		want = model.PlanStatusChangesRequested
	}
	if row := f.row(t, "thesis_plans", "plan_id", plan.ID); row["status"] != want {
		t.Errorf("最终状态 = %v, want %s", row["status"], want)
	}
}

func TestPlan_UpdateGuards(t *testing.T) {
	f := newFixture(t)
	plan, err := f.svc.Plan.Create(f.ctx, actorOf(f.advisor), createPlanRequest(1))
	if err != nil {
		t.Fatalf("创建计划失败: %v", err)
	}
	req := &dto.UpdatePlanRequest{
		Title:        "改名后的计划",
		AcademicYear: "2025-2026",
		Term:         2,
		StartDate:    time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC),
		MinMembers:   1,
		MaxMembers:   3,
		Version:      plan.Version,
	}
	updated, err := f.svc.Plan.Update(f.ctx, actorOf(f.advisor), plan.ID, req)
	if err != nil {
		t.Fatalf("编辑失败: %v", err)
	}
	if updated.Title != "改名后的计划" || updated.Version != plan.Version+1 {
		t.Errorf("updated = %+v", updated)
	}

	// 旧版本号提交视为并发冲突
	_, err = f.svc.Plan.Update(f.ctx, actorOf(f.advisor), plan.ID, req)
	if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Fatalf("期望乐观锁冲突, got %v", err)
	}

	if _, err := f.svc.Plan.Submit(f.ctx, actorOf(f.advisor), plan.ID); err != nil {
		t.Fatalf("提交失败: %v", err)
	}
	req.Version = updated.Version + 1
	_, err = f.svc.Plan.Update(f.ctx, actorOf(f.advisor), plan.ID, req)
	assertErr(t, err, ErrPlanNotEditable)
	_, err = f.svc.Plan.AddMilestone(f.ctx, actorOf(f.advisor), plan.ID, &createPlanRequest(1).Milestones[0])
	assertErr(t, err, ErrPlanNotEditable)
}

func TestPlan_EnrollStudents(t *testing.T) {
	f := newFixture(t)
	plan := f.plan(t, model.PlanStatusApproved, 1, 4, 0)
	s1, s2 := f.student(t, "S001", nil), f.student(t, "S002", nil)
	f.enroll(t, plan, s2)

	res, err := f.svc.Plan.EnrollStudents(f.ctx, actorOf(f.advisor), plan.PlanID, &dto.EnrollStudentsRequest{
		StudentCodes: []string{" S001 ", "S001", "S002", "S404", f.head.StudentCode},
	})
	if err != nil {
		t.Fatalf("报名失败: %v", err)
	}
	if res.Enrolled != 1 {
		t.Errorf("Enrolled = %d, want 1", res.Enrolled)
	}
	if len(res.AlreadyEnrolled) != 1 || res.AlreadyEnrolled[0] != "S002" {
		t.Errorf("AlreadyEnrolled = %v", res.AlreadyEnrolled)
	}
	// 非学生账号按未找到处理
	if len(res.NotFound) != 2 {
		t.Errorf("NotFound = %v, want [S404 H001]", res.NotFound)
	}

	list, err := f.svc.Plan.ListParticipants(f.ctx, actorOf(f.advisor), plan.PlanID)
	if err != nil {
		t.Fatalf("ListParticipants 失败: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("参与学生 = %d, want 2", len(list))
	}

	// 已在小组中的学生不能被移出计划
	f.group(t, plan, s1)
	err = f.svc.Plan.RemoveParticipant(f.ctx, actorOf(f.advisor), plan.PlanID, s1.UserID)
	assertErr(t, err, ErrParticipantGrouped)
	if err := f.svc.Plan.RemoveParticipant(f.ctx, actorOf(f.advisor), plan.PlanID, s2.UserID); err != nil {
		t.Errorf("移出未分组学生失败: %v", err)
	}

	err = f.svc.Plan.SetEligibility(f.ctx, actorOf(f.advisor), plan.PlanID, s2.UserID, &dto.SetEligibilityRequest{Eligible: boolPtr(false)})
	assertErr(t, err, ErrParticipantNotFound)
}

func enrollmentWorkbook(t *testing.T, header string, codes ...string) *bytes.Buffer {
	t.Helper()
	x := excelize.NewFile()
	defer x.Close()
	sheet := x.GetSheetName(0)
	_ = x.SetCellValue(sheet, "A1", "姓名")
	_ = x.SetCellValue(sheet, "B1", header)
	for i, c := range codes {
		_ = x.SetCellValue(sheet, fmt.Sprintf("A%d", i+2), "学生")
		_ = x.SetCellValue(sheet, fmt.Sprintf("B%d", i+2), c)
	}
	buf, err := x.WriteToBuffer()
	if err != nil {
		t.Fatalf("生成 Excel 失败: %v", err)
	}
	return buf
}

func TestPlan_ParseEnrollmentFile(t *testing.T) {
	f := newFixture(t)

	codes, err := f.svc.Plan.ParseEnrollmentFile(enrollmentWorkbook(t, "MSSV", "S001", " S002 ", "", "S001"))
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(codes) != 2 || codes[0] != "S001" || codes[1] != "S002" {
		t.Errorf("codes = %v, want [S001 S002]", codes)
	}

	_, err = f.svc.Plan.ParseEnrollmentFile(enrollmentWorkbook(t, "电话", "0901"))
	assertErr(t, err, ErrImportNoCodeColumn)

	_, err = f.svc.Plan.ParseEnrollmentFile(enrollmentWorkbook(t, "学号"))
	assertErr(t, err, ErrImportEmpty)

	_, err = f.svc.Plan.ParseEnrollmentFile(bytes.NewBufferString("not an xlsx"))
	assertErr(t, err, ErrImportInvalidFile)
}
