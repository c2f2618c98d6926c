// Package rule 封装 go-playground/validator，统一使用 rule 标签并注册业务校验规则.
package rule

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	inst *validator.Validate
	once sync.Once

	sectorCodeRe = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,15}$`)
)

// initValidator 复用 gin 的 validator 引擎，使请求绑定与手动校验共享规则.
func initValidator() {
	inst = validator.New()

	if engine := binding.Validator.Engine(); engine != nil {
		if v, ok := engine.(*validator.Validate); ok {
			inst = v
		}
	}

	inst.SetTagName("rule")
	inst.RegisterTagNameFunc(fieldName)

	_ = inst.RegisterValidation("sector_code", func(fl validator.FieldLevel) bool {
		return sectorCodeRe.MatchString(fl.Field().String())
	})
	_ = inst.RegisterValidation("ratelimit_key", func(fl validator.FieldLevel) bool {
		k := strings.ToLower(strings.TrimSpace(fl.Field().String()))
		switch k {
		case "global", "ip", "email":
			return true
		}

		return strings.HasPrefix(k, "header:") && len(k) > len("header:")
	})
}

// fieldName 错误信息里的字段名依次取 form、json、mapstructure 标签.
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"form", "json", "mapstructure"} {
		if name, _, _ := strings.Cut(f.Tag.Get(tag), ","); name != "" && name != "-" {
			return name
		}
	}

	return f.Name
}

func lazyInit() {
	once.Do(initValidator)
}

// Engine 返回全局 *validator.Validate.
func Engine() *validator.Validate {
	lazyInit()

	return inst
}

// RegisterValidation 注册自定义规则.
func RegisterValidation(tag string, fn validator.Func, opts ...bool) error {
	lazyInit()

	return inst.RegisterValidation(tag, fn, opts...)
}

// ValidationErrors 字段名到错误描述.
type ValidationErrors map[string]string

// Errors 把校验错误展开为 ValidationErrors，非校验错误返回 nil.
func Errors(err error) ValidationErrors {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	out := make(ValidationErrors, len(verrs))

	for _, fe := range verrs {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		}

		out[fe.Field()] = "failed on " + msg
	}

	return out
}

// ValidateStruct 校验结构体，可用 Errors 展开结果.
func ValidateStruct(s any) error {
	lazyInit()

	return inst.Struct(s)
}

// ValidateVar 按规则校验单个值，例如 ValidateVar("abc", "required,email").
func ValidateVar(field any, tag string) error {
	lazyInit()

	return inst.Var(field, tag)
}

// RegisterAlias 注册规则别名.
func RegisterAlias(alias, rules string) {
	lazyInit()

	inst.RegisterAlias(alias, rules)
}
