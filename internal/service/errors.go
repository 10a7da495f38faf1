package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	pkgerrors "github.com/Ynate-byte/gradpro-sub001/pkg/errors"
)

// ── 不存在 ──

var (
	ErrUserNotFound        = pkgerrors.New(pkgerrors.KindNotFound, "用户不存在")
	ErrPlanNotFound        = pkgerrors.New(pkgerrors.KindNotFound, "计划不存在")
	ErrMilestoneNotFound   = pkgerrors.New(pkgerrors.KindNotFound, "里程碑不存在")
	ErrParticipantNotFound = pkgerrors.New(pkgerrors.KindNotFound, "该学生未报名此计划")
	ErrNotEligible         = pkgerrors.New(pkgerrors.KindNotFound, "该学生不是此计划的合格参与者")
	ErrGroupNotFound       = pkgerrors.New(pkgerrors.KindNotFound, "小组不存在")
	ErrInvitationNotFound  = pkgerrors.New(pkgerrors.KindNotFound, "邀请不存在")
	ErrJoinRequestNotFound = pkgerrors.New(pkgerrors.KindNotFound, "入组申请不存在")
	ErrTopicNotFound       = pkgerrors.New(pkgerrors.KindNotFound, "课题不存在")
	ErrAssignmentNotFound  = pkgerrors.New(pkgerrors.KindNotFound, "选题记录不存在")
	ErrSubmissionNotFound  = pkgerrors.New(pkgerrors.KindNotFound, "提交物不存在")
)

// ── 容量 ──

var (
	ErrGroupFull           = pkgerrors.New(pkgerrors.KindCapacityExceeded, "小组人数已满")
	ErrTopicFull           = pkgerrors.New(pkgerrors.KindCapacityExceeded, "课题名额已满")
	ErrPlanGroupLimit      = pkgerrors.New(pkgerrors.KindCapacityExceeded, "计划小组数量已达上限")
	ErrCounterInconsistent = errors.New("计数器释放下溢，数据不一致")
)

// ── 唯一性 ──

var (
	ErrAlreadyMember        = pkgerrors.New(pkgerrors.KindUniqueness, "该学生已加入小组")
	ErrAlreadyInvited       = pkgerrors.New(pkgerrors.KindUniqueness, "已存在待处理的邀请")
	ErrAlreadyRequested     = pkgerrors.New(pkgerrors.KindUniqueness, "已存在待处理的入组申请")
	ErrGroupAlreadyAssigned = pkgerrors.New(pkgerrors.KindUniqueness, "该小组已登记课题")
	ErrAwaitingSubmission   = pkgerrors.New(pkgerrors.KindUniqueness, "已有待确认的提交物")
	ErrDuplicate            = pkgerrors.New(pkgerrors.KindUniqueness, "记录已存在")
)

// ── 状态不允许 ──

var (
	ErrLeaderCannotLeave     = pkgerrors.New(pkgerrors.KindInvalidTransition, "组长在仍有其他成员时不能退出，请先转让组长")
	ErrPlanNotOpen           = pkgerrors.New(pkgerrors.KindInvalidTransition, "计划当前状态不允许组队或选题")
	ErrPlanNotEditable       = pkgerrors.New(pkgerrors.KindInvalidTransition, "计划当前状态不允许编辑")
	ErrGroupLocked           = pkgerrors.New(pkgerrors.KindInvalidTransition, "小组已锁定")
	ErrInvitationNotPending  = pkgerrors.New(pkgerrors.KindInvalidTransition, "邀请已处理")
	ErrInvitationExpired     = pkgerrors.New(pkgerrors.KindInvalidTransition, "邀请已过期")
	ErrJoinRequestNotPending = pkgerrors.New(pkgerrors.KindInvalidTransition, "入组申请已处理")
	ErrTopicNotOpen          = pkgerrors.New(pkgerrors.KindInvalidTransition, "课题当前状态不接受登记")
	ErrGroupBelowMinimum     = pkgerrors.New(pkgerrors.KindInvalidTransition, "小组人数未达到计划最低人数")
	ErrGroupHasAssignment    = pkgerrors.New(pkgerrors.KindInvalidTransition, "小组已登记课题，不能解散")
	ErrAssignmentNotActive   = pkgerrors.New(pkgerrors.KindInvalidTransition, "选题不在进行中")
	ErrCannotRemoveLeader    = pkgerrors.New(pkgerrors.KindInvalidTransition, "不能移除组长，请先转让组长")
	ErrStateChanged          = pkgerrors.New(pkgerrors.KindInvalidTransition, "记录状态已被其他操作修改")
	ErrPlanMismatch          = pkgerrors.New(pkgerrors.KindInvalidTransition, "小组与课题不属于同一计划")
	ErrPlanClosed            = pkgerrors.New(pkgerrors.KindInvalidTransition, "计划已结束或已取消")
	ErrParticipantGrouped    = pkgerrors.New(pkgerrors.KindInvalidTransition, "该学生已在本计划的小组中，请先退出小组")
)

// ── 无权限 ──

var (
	ErrForbidden          = pkgerrors.New(pkgerrors.KindUnauthorized, "无权执行此操作")
	ErrNotGroupMember     = pkgerrors.New(pkgerrors.KindUnauthorized, "不是该小组成员")
	ErrNotGroupLeader     = pkgerrors.New(pkgerrors.KindUnauthorized, "仅组长或管理员可执行此操作")
	ErrInvalidCredentials = pkgerrors.New(pkgerrors.KindUnauthorized, "学号或密码错误")
	ErrAccountDisabled    = pkgerrors.New(pkgerrors.KindUnauthorized, "账号已停用")
)

// ── 参数 ──

var (
	ErrGroupSizeTooLarge = pkgerrors.Validation("分组人数超过计划上限",
		pkgerrors.FieldError{Field: "group_size", Message: "不能超过计划的最大人数"})

	ErrLeaderRequired = pkgerrors.Validation("请指定组长",
		pkgerrors.FieldError{Field: "leader_id", Message: "该字段为必填项"})

	ErrImportNoCodeColumn = pkgerrors.Validation("Excel 表头缺少学号列",
		pkgerrors.FieldError{Field: "file", Message: "表头需包含 学号 / student_code / mssv"})

	ErrImportInvalidFile = pkgerrors.Validation("无法解析 Excel 文件")
	ErrImportEmpty       = pkgerrors.Validation("Excel 文件没有数据行")
	ErrImportTooManyRows = pkgerrors.Validation(fmt.Sprintf("数据行数超过上限 %d 行", maxImportRows))
)

// notFound 将 gorm 未找到错误映射为具体的业务错误，其他错误原样返回
func notFound(err error, target *pkgerrors.Error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return target
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// duplicate 将唯一约束冲突映射为具体的业务错误
func duplicate(err error, target *pkgerrors.Error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return target.Wrap(err)
	}
	return err
}

// stale 将状态守卫 UPDATE 落空映射为状态已变更
func stale(err error) error {
	if errors.Is(err, pkgerrors.ErrOptimisticLock) {
		return ErrStateChanged
	}
	return err
}
