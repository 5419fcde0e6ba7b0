package validator

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// MaxFractionDigits 原生币最小单位为 10^-18
const MaxFractionDigits = 18

var (
	validate *validator.Validate
	once     sync.Once
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New()
		register(validate)
	})
	return validate
}

// Init 把自定义规则注册到 gin 的 binding 校验器上
func Init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		register(v)
	}
}

func register(v *validator.Validate) {
	_ = v.RegisterValidation("positive_decimal", positiveDecimal)
}

// positiveDecimal 大于 0 且小数位不超过 18 位
func positiveDecimal(fl validator.FieldLevel) bool {
	_, err := ParsePositiveDecimal(fl.Field().String())
	return err == nil
}

// ParsePositiveDecimal 解析用户输入的金额
func ParsePositiveDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, errors.New("amount is empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q is not a decimal number", s)
	}
	if d.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("amount %q must be positive", s)
	}
	// 去掉尾部 0 后再看精度，"1.500" 与 "1.5" 等价
	if exp := d.Exponent(); exp < 0 {
		trimmed, _ := decimal.NewFromString(d.String())
		if -trimmed.Exponent() > MaxFractionDigits {
			return decimal.Zero, fmt.Errorf("amount %q has more than %d decimal places", s, MaxFractionDigits)
		}
	}
	return d, nil
}

// Struct 校验结构体的 validate tag
func Struct(s interface{}) error {
	return instance().Struct(s)
}

// GetErrorMsg translates validation errors into user-friendly messages
func GetErrorMsg(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var errMsgs []string
		for _, e := range validationErrors {
			field := e.Field()
			tag := e.Tag()
			param := e.Param()

			switch tag {
			case "required":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 不能为空", field))
			case "positive_decimal":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 必须是大于 0 且不超过 %d 位小数的数字", field, MaxFractionDigits))
			case "max":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 长度不能超过 %s", field, param))
			case "oneof":
				errMsgs = append(errMsgs, fmt.Sprintf("%s 必须是 [%s] 之一", field, param))
			default:
				errMsgs = append(errMsgs, fmt.Sprintf("%s 校验失败 (%s)", field, tag))
			}
		}
		return strings.Join(errMsgs, "; ")
	}
	return "请求参数错误"
}
