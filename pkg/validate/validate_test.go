package validate

import (
	"errors"
	"testing"

	pkgerrors "github.com/Ynate-byte/gradpro-sub001/pkg/errors"
)

type sample struct {
	GroupSize int    `json:"group_size" binding:"required,min=2"`
	Priority  string `json:"priority"   binding:"required,oneof=major class none"`
}

func TestStruct_ReportsJSONFieldNames(t *testing.T) {
	err := Struct(&sample{GroupSize: 1, Priority: "dept"})
	if !errors.Is(err, pkgerrors.ErrValidation) {
		t.Fatalf("期望校验错误，实际: %v", err)
	}

	fields := pkgerrors.FieldsOf(err)
	got := make(map[string]bool)
	for _, f := range fields {
		got[f.Field] = true
	}
	if !got["group_size"] || !got["priority"] {
		t.Errorf("期望 group_size 与 priority 两个字段错误，实际: %+v", fields)
	}
}

func TestStruct_Valid(t *testing.T) {
	if err := Struct(&sample{GroupSize: 3, Priority: "none"}); err != nil {
		t.Errorf("合法请求不应报错: %v", err)
	}
}
