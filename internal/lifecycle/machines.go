package lifecycle

import "github.com/Ynate-byte/gradpro-sub001/internal/model"

// ── 动作 ──

const (
	ActionSubmit         = "submit"
	ActionRequestChanges = "request_changes"
	ActionResubmit       = "resubmit"
	ActionApprove        = "approve"
	ActionActivate       = "activate"
	ActionComplete       = "complete"
	ActionCancel         = "cancel"
	ActionEdit           = "edit"

	ActionReject      = "reject"
	ActionRequestEdit = "request_edit"
	ActionFill        = "fill"
	ActionLock        = "lock"

	ActionConfirm = "confirm"
)

// Plan 计划状态机
var Plan = NewMachine("计划", []string{
	model.PlanStatusDraft,
	model.PlanStatusPendingApproval,
	model.PlanStatusChangesRequested,
	model.PlanStatusApproved,
	model.PlanStatusInProgress,
	model.PlanStatusCompleted,
	model.PlanStatusCancelled,
}, []Transition{
	{
		From:   []string{model.PlanStatusDraft},
		Action: ActionSubmit,
		To:     model.PlanStatusPendingApproval,
		Guard:  all(anyOf(isOwner, isAdmin), hasMilestones),
	},
	{
		From:   []string{model.PlanStatusPendingApproval},
		Action: ActionRequestChanges,
		To:     model.PlanStatusChangesRequested,
		Guard:  isDeptHead,
	},
	{
		From:   []string{model.PlanStatusChangesRequested},
		Action: ActionResubmit,
		To:     model.PlanStatusPendingApproval,
		Guard:  all(anyOf(isOwner, isAdmin), hasMilestones),
	},
	{
		From:   []string{model.PlanStatusPendingApproval},
		Action: ActionApprove,
		To:     model.PlanStatusApproved,
		Guard:  isDeptHead,
	},
	{
		From:   []string{model.PlanStatusApproved},
		Action: ActionActivate,
		To:     model.PlanStatusInProgress,
		Guard:  anyOf(isOwner, isAdmin, isDeptHead),
	},
	{
		From:   []string{model.PlanStatusInProgress},
		Action: ActionComplete,
		To:     model.PlanStatusCompleted,
		Guard:  anyOf(isOwner, isAdmin),
	},
	{
		From: []string{
			model.PlanStatusDraft,
			model.PlanStatusPendingApproval,
			model.PlanStatusChangesRequested,
		},
		Action: ActionCancel,
		To:     model.PlanStatusCancelled,
		Guard:  anyOf(isOwner, isAdmin),
	},
	{
		From:   []string{model.PlanStatusDraft, model.PlanStatusChangesRequested},
		Action: ActionEdit,
		Guard:  anyOf(isOwner, isAdmin),
	},
})

// Topic 课题状态机
var Topic = NewMachine("课题", []string{
	model.TopicStatusDraft,
	model.TopicStatusPendingApproval,
	model.TopicStatusChangesRequested,
	model.TopicStatusApproved,
	model.TopicStatusRejected,
	model.TopicStatusFull,
	model.TopicStatusLocked,
}, []Transition{
	{
		From:   []string{model.TopicStatusDraft},
		Action: ActionSubmit,
		To:     model.TopicStatusPendingApproval,
		Guard:  isOwner,
	},
	{
		From:   []string{model.TopicStatusPendingApproval},
		Action: ActionApprove,
		To:     model.TopicStatusApproved,
		Guard:  isAdmin,
	},
	{
		From:   []string{model.TopicStatusPendingApproval},
		Action: ActionReject,
		To:     model.TopicStatusRejected,
		Guard:  isAdmin,
	},
	{
		From:   []string{model.TopicStatusPendingApproval},
		Action: ActionRequestEdit,
		To:     model.TopicStatusChangesRequested,
		Guard:  isAdmin,
	},
	{
		From:   []string{model.TopicStatusChangesRequested},
		Action: ActionResubmit,
		To:     model.TopicStatusPendingApproval,
		Guard:  isOwner,
	},
	{
		From:   []string{model.TopicStatusApproved},
		Action: ActionFill,
		To:     model.TopicStatusFull,
		Guard: all(isSystem, func(_ Actor, f Facts) bool {
			return f.MaxGroups > 0 && f.RegisteredCount == f.MaxGroups
		}),
	},
	{
		From:   []string{model.TopicStatusApproved, model.TopicStatusFull},
		Action: ActionLock,
		To:     model.TopicStatusLocked,
		Guard:  isAdmin,
	},
	{
		From:   []string{model.TopicStatusDraft, model.TopicStatusChangesRequested},
		Action: ActionEdit,
		Guard:  isOwner,
	},
})

// Submission 提交物状态机
// 仅审核导师可以确认或要求重交
var Submission = NewMachine("提交物", []string{
	model.SubmissionStatusAwaiting,
	model.SubmissionStatusConfirmed,
	model.SubmissionStatusResubmitRequested,
}, []Transition{
	{
		From:   []string{model.SubmissionStatusAwaiting},
		Action: ActionConfirm,
		To:     model.SubmissionStatusConfirmed,
		Guard:  isReviewer,
	},
	{
		From:   []string{model.SubmissionStatusAwaiting},
		Action: ActionReject,
		To:     model.SubmissionStatusResubmitRequested,
		Guard:  isReviewer,
	},
})
