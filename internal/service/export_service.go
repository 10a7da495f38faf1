package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/Ynate-byte/gradpro-sub001/internal/lifecycle"
	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	"github.com/Ynate-byte/gradpro-sub001/internal/repository"
	pkgerrors "github.com/Ynate-byte/gradpro-sub001/pkg/errors"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoGroups     = pkgerrors.New(pkgerrors.KindNotFound, "该计划暂无小组")
	ErrExportNoMilestones = pkgerrors.New(pkgerrors.KindNotFound, "该计划暂无里程碑")
)

const icsProductID = "-//gradpro//thesis milestones//CN"

// ExportService 导出业务接口
//
// 导出只读取已提交的数据，不参与任何事务；
// 结果以 bytes.Buffer 返回，由 Handler 层设置响应头后写出。
type ExportService interface {
	// ExportRoster 导出计划的小组名单为 Excel
	ExportRoster(ctx context.Context, actor lifecycle.Actor, planID string) (*bytes.Buffer, string, error)
	// ExportMilestones 导出计划里程碑为 iCalendar
	ExportMilestones(ctx context.Context, actor lifecycle.Actor, planID string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportRoster 小组名单
// ═══════════════════════════════════════════════════════════
//
// 输出格式：
//   - 第 1 行：计划标题
//   - 第 2 行：表头 小组 | 组长 | 学号 | 姓名 | 班级 | 课题
//   - 每名成员一行，同组成员连续排列，组长行标记 ★

func (s *exportService) ExportRoster(ctx context.Context, actor lifecycle.Actor, planID string) (*bytes.Buffer, string, error) {
	plan, err := s.repo.Plan.GetByID(ctx, planID)
	if err != nil {
		return nil, "", notFound(err, ErrPlanNotFound)
	}
	if !canManagePlan(actor, plan) && !actor.IsAdvisor() {
		return nil, "", ErrForbidden
	}

	groups, err := s.repo.Group.ListByPlan(ctx, planID)
	if err != nil {
		s.logger.Error("查询小组失败", zap.Error(err))
		return nil, "", err
	}
	if len(groups) == 0 {
		return nil, "", ErrExportNoGroups
	}

	// 课题标题索引: group_id → title
	topicTitles := make(map[string]string, len(groups))
	for i := range groups {
		a, err := s.repo.Assignment.GetByGroup(ctx, groups[i].GroupID)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, "", err
		}
		if a.Topic != nil {
			topicTitles[groups[i].GroupID] = a.Topic.Title
		}
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "小组名单"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "A", 16)
	f.SetColWidth(sheetName, "B", "B", 6)
	f.SetColWidth(sheetName, "C", "C", 14)
	f.SetColWidth(sheetName, "D", "D", 14)
	f.SetColWidth(sheetName, "E", "E", 12)
	f.SetColWidth(sheetName, "F", "F", 40)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s 小组名单", plan.Title))
	f.MergeCell(sheetName, "A1", "F1")
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	for i, h := range []string{"小组", "组长", "学号", "姓名", "班级", "课题"} {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", "F2", headerStyle)

	row := 3
	for _, g := range groups {
		for _, m := range g.Members {
			leader := ""
			if m.UserID == g.LeaderID {
				leader = "★"
			}
			var code, name, class string
			if m.User != nil {
				code, name, class = m.User.StudentCode, m.User.Name, m.User.HomeClass
			}
			f.SetCellValue(sheetName, cell("A", row), g.Name)
			f.SetCellValue(sheetName, cell("B", row), leader)
			f.SetCellValue(sheetName, cell("C", row), code)
			f.SetCellValue(sheetName, cell("D", row), name)
			f.SetCellValue(sheetName, cell("E", row), class)
			f.SetCellValue(sheetName, cell("F", row), topicTitles[g.GroupID])
			row++
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", fmt.Errorf("生成 Excel 文件失败: %w", err)
	}

	filename := fmt.Sprintf("小组名单_%s.xlsx", plan.Title)
	return buf, filename, nil
}

// ═══════════════════════════════════════════════════════════
// ExportMilestones 里程碑日历
// ═══════════════════════════════════════════════════════════

func (s *exportService) ExportMilestones(ctx context.Context, _ lifecycle.Actor, planID string) (*bytes.Buffer, string, error) {
	plan, err := s.repo.Plan.GetByID(ctx, planID)
	if err != nil {
		return nil, "", notFound(err, ErrPlanNotFound)
	}
	if len(plan.Milestones) == 0 {
		return nil, "", ErrExportNoMilestones
	}

	cal := buildMilestoneCalendar(plan, time.Now())
	buf := bytes.NewBufferString(cal.Serialize())
	filename := fmt.Sprintf("里程碑_%s.ics", plan.Title)
	return buf, filename, nil
}

// buildMilestoneCalendar 每个里程碑一个 VEVENT，UID 取里程碑 ID 以便客户端去重
func buildMilestoneCalendar(plan *model.ThesisPlan, stamp time.Time) *ics.Calendar {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(icsProductID)
	cal.SetXWRCalName(plan.Title)

	for _, m := range plan.Milestones {
		evt := cal.AddEvent(m.MilestoneID + "@gradpro")
		evt.SetDtStampTime(stamp.UTC())
		evt.SetStartAt(m.StartAt.UTC())
		evt.SetEndAt(m.EndAt.UTC())
		evt.SetSummary(m.Name)
		if m.Description != "" {
			evt.SetDescription(m.Description)
		}
	}
	return cal
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
