package response

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newContext(requestID string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/", nil)
	if requestID != "" {
		c.Set(RequestIDKey, requestID)
	}
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
	return out
}

func TestError_EchoesRequestID(t *testing.T) {
	c, w := newContext("rid-42")
	Conflict(c, 20002, "小组已满")

	if w.Code != http.StatusConflict {
		t.Errorf("期望 409，实际 %d", w.Code)
	}
	body := decode(t, w)
	if body["request_id"] != "rid-42" {
		t.Errorf("响应应回显 request_id，实际 %v", body["request_id"])
	}
	if body["code"].(float64) != 20002 {
		t.Errorf("业务码不符: %v", body["code"])
	}

	c, w = newContext("")
	OK(c, gin.H{"x": 1})
	if _, ok := decode(t, w)["request_id"]; ok {
		t.Error("无请求 ID 时不应输出该字段")
	}
}

func TestOKPage_TotalPages(t *testing.T) {
	tests := []struct {
		total    int64
		pageSize int
		want     float64
	}{
		{0, 20, 0},
		{20, 20, 1},
		{21, 20, 2},
		{5, 0, 0},
	}
	for _, tt := range tests {
		c, w := newContext("")
		OKPage(c, []int{}, tt.total, 1, tt.pageSize)
		data := decode(t, w)["data"].(map[string]interface{})
		got := data["pagination"].(map[string]interface{})["total_pages"].(float64)
		if got != tt.want {
			t.Errorf("total=%d page_size=%d: 期望 %v 页，实际 %v", tt.total, tt.pageSize, tt.want, got)
		}
	}
}

func TestAttachment(t *testing.T) {
	c, w := newContext("")
	Attachment(c, "Nhóm 1 名单.xlsx", "application/octet-stream", bytes.NewBufferString("data"))

	want := "attachment; filename*=UTF-8''Nh%C3%B3m%201%20%E5%90%8D%E5%8D%95.xlsx"
	if got := w.Header().Get("Content-Disposition"); got != want {
		t.Errorf("Content-Disposition = %q, want %q", got, want)
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Error("导出文件不应被缓存")
	}
	if w.Body.String() != "data" {
		t.Errorf("文件内容不符: %q", w.Body.String())
	}
}
