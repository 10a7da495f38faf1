package service

import (
	"testing"

	"github.com/Ynate-byte/gradpro-sub001/internal/dto"
	"github.com/Ynate-byte/gradpro-sub001/internal/model"
	pkgerrors "github.com/Ynate-byte/gradpro-sub001/pkg/errors"
)

func TestNotification_ListAndMarkRead(t *testing.T) {
	f := newFixture(t)
	stu := f.student(t, "S001", nil)
	other := f.student(t, "S002", nil)

	list := []model.Notification{
		{UserID: stu.UserID, Type: "invitation", Title: "邀请 1", Content: "c"},
		{UserID: stu.UserID, Type: "invitation", Title: "邀请 2", Content: "c"},
		{UserID: stu.UserID, Type: "topic", Title: "课题", Content: "c"},
		{UserID: other.UserID, Type: "topic", Title: "他人", Content: "c"},
	}
	if err := f.repo.Notification.BatchCreate(f.ctx, list); err != nil {
		t.Fatalf("写入通知失败: %v", err)
	}

	got, total, err := f.svc.Notification.List(f.ctx, actorOf(stu), &dto.NotificationListRequest{})
	if err != nil {
		t.Fatalf("查询通知失败: %v", err)
	}
	if total != 3 || len(got) != 3 {
		t.Fatalf("只应看到自己的 3 条通知，实际 total=%d len=%d", total, len(got))
	}

	n, err := f.svc.Notification.MarkRead(f.ctx, actorOf(stu), &dto.MarkReadRequest{IDs: []string{got[0].ID}})
	if err != nil {
		t.Fatalf("标记已读失败: %v", err)
	}
	if n != 1 {
		t.Errorf("期望标记 1 条，实际 %d", n)
	}

	_, unread, _ := f.svc.Notification.List(f.ctx, actorOf(stu), &dto.NotificationListRequest{UnreadOnly: true})
	if unread != 2 {
		t.Errorf("期望未读 2 条，实际 %d", unread)
	}

	// 其他用户标记全部已读只影响自己
	n, _ = f.svc.Notification.MarkRead(f.ctx, actorOf(other), &dto.MarkReadRequest{})
	if n != 1 {
		t.Errorf("ids 为空时应标记自己的全部未读，实际 %d", n)
	}
	_, unread, _ = f.svc.Notification.List(f.ctx, actorOf(stu), &dto.NotificationListRequest{UnreadOnly: true})
	if unread != 2 {
		t.Errorf("他人操作不应影响自己的未读数，实际 %d", unread)
	}

	_, err = f.svc.Notification.MarkRead(f.ctx, actorOf(stu), &dto.MarkReadRequest{IDs: []string{"not-a-uuid"}})
	assertKind(t, err, pkgerrors.KindValidation)
}
