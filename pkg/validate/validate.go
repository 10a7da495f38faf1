package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/Ynate-byte/gradpro-sub001/pkg/errors"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator 返回进程内共享的校验器。
// 使用 binding 标签，与 gin 请求绑定共用同一套规则；错误字段名取 json 标签。
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		v.SetTagName("binding")
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})
		instance = v
	})
	return instance
}

// Struct 校验请求结构体，失败时返回 KindValidation 类型错误
func Struct(s interface{}) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	return FromValidator(err)
}

// FromValidator 将 validator 错误转换为带字段详情的校验错误
func FromValidator(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return pkgerrors.Validation("参数校验失败").Wrap(err)
	}
	fields := make([]pkgerrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, pkgerrors.FieldError{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}
	return pkgerrors.Validation("参数校验失败", fields...)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "该字段为必填项"
	case "min":
		return fmt.Sprintf("不能小于 %s", fe.Param())
	case "max":
		return fmt.Sprintf("不能大于 %s", fe.Param())
	case "gte":
		return fmt.Sprintf("必须大于等于 %s", fe.Param())
	case "lte":
		return fmt.Sprintf("必须小于等于 %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("必须是以下值之一: %s", fe.Param())
	case "uuid":
		return "必须是合法的 UUID"
	case "gtefield":
		return fmt.Sprintf("不能早于 %s", fe.Param())
	case "dive":
		return "列表元素不合法"
	default:
		return fmt.Sprintf("校验规则 %s 未通过", fe.Tag())
	}
}
