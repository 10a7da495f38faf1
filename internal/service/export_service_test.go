package service

import (
	"strings"
	"testing"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"

	"github.com/Ynate-byte/gradpro-sub001/internal/dto"
	"github.com/Ynate-byte/gradpro-sub001/internal/model"
)

func TestExportService_Roster(t *testing.T) {
	f := newFixture(t)
	plan := f.plan(t, model.PlanStatusInProgress, 1, 4, 0)
	l, m := f.student(t, "S001", nil), f.student(t, "S002", nil)
	f.enroll(t, plan, l, m)
	g := f.group(t, plan, l, m)
	topicID := f.approvedTopic(t, plan, 2)
	if _, err := f.svc.Topic.Register(f.ctx, actorOf(l), topicID, &dto.RegisterTopicRequest{GroupID: g}); err != nil {
		t.Fatalf("登记课题失败: %v", err)
	}

	buf, filename, err := f.svc.Export.ExportRoster(f.ctx, actorOf(f.advisor), plan.PlanID)
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}
	if !strings.HasSuffix(filename, ".xlsx") {
		t.Errorf("文件名 = %s", filename)
	}

	x, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("导出内容不是合法的 xlsx: %v", err)
	}
	defer x.Close()
	rows, err := x.GetRows("小组名单")
	if err != nil {
		t.Fatalf("读取工作表失败: %v", err)
	}
	// 标题 + 表头 + 2 名成员
	if len(rows) != 4 {
		t.Fatalf("期望 4 行，实际 %d", len(rows))
	}
	if rows[1][0] != "小组" || rows[1][5] != "课题" {
		t.Errorf("表头 = %v", rows[1])
	}
	var leaders int
	for _, r := range rows[2:] {
		if r[1] == "★" {
			leaders++
			if r[2] != "S001" {
				t.Errorf("组长行学号 = %s", r[2])
			}
		}
		if r[5] != "基于图神经网络的推荐系统" {
			t.Errorf("课题列 = %q", r[5])
		}
	}
	if leaders != 1 {
		t.Errorf("应恰有 1 个组长标记, got %d", leaders)
	}
}

func TestExportService_RosterGuards(t *testing.T) {
	f := newFixture(t)
	plan := f.plan(t, model.PlanStatusInProgress, 1, 4, 0)

	_, _, err := f.svc.Export.ExportRoster(f.ctx, actorOf(f.admin), plan.PlanID)
	assertErr(t, err, ErrExportNoGroups)

	s := f.student(t, "S001", nil)
	_, _, err = f.svc.Export.ExportRoster(f.ctx, actorOf(s), plan.PlanID)
	assertErr(t, err, ErrForbidden)
}

func TestExportService_Milestones(t *testing.T) {
	f := newFixture(t)
	plan := f.plan(t, model.PlanStatusApproved, 1, 4, 0)

	buf, filename, err := f.svc.Export.ExportMilestones(f.ctx, actorOf(f.advisor), plan.PlanID)
	if err != nil {
		t.Fatalf("导出失败: %v", err)
	}
	if !strings.HasSuffix(filename, ".ics") {
		t.Errorf("文件名 = %s", filename)
	}

	cal, err := ics.ParseCalendar(buf)
	if err != nil {
		t.Fatalf("导出内容不是合法的 iCalendar: %v", err)
	}
	events := cal.Events()
	if len(events) != 1 {
		t.Fatalf("期望 1 个事件，实际 %d", len(events))
	}
	if p := events[0].GetProperty(ics.ComponentPropertySummary); p == nil || p.Value != "组队登记" {
		t.Errorf("SUMMARY = %v", p)
	}
	start, err := events[0].GetStartAt()
	if err != nil {
		t.Fatalf("DTSTART 解析失败: %v", err)
	}
	if !start.Equal(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("DTSTART = %v", start)
	}
}

func TestExportService_MilestonesEmpty(t *testing.T) {
	f := newFixture(t)
	plan, err := f.svc.Plan.Create(f.ctx, actorOf(f.advisor), createPlanRequest(0))
	if err != nil {
		t.Fatalf("创建计划失败: %v", err)
	}
	_, _, err = f.svc.Export.ExportMilestones(f.ctx, actorOf(f.advisor), plan.ID)
	assertErr(t, err, ErrExportNoMilestones)
}
