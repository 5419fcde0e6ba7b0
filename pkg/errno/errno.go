package errno

import (
	"errors"
	"fmt"
)

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// OpError 记录失败的操作名、错误类别和原始错误
// errors.Is(err, errno.ErrBusy) 按 Code 匹配
type OpError struct {
	Op   string
	Kind Errno
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind.Message, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func (e *OpError) Is(target error) bool {
	switch t := target.(type) {
	case Errno:
		return t.Code == e.Kind.Code
	case *Errno:
		return t != nil && t.Code == e.Kind.Code
	}
	return false
}

// Wrap 构造一个 OpError
// cause 本身已经是 OpError 时保留其类别，只补充外层操作名
func Wrap(op string, kind Errno, cause error) *OpError {
	var inner *OpError
	if errors.As(cause, &inner) {
		return &OpError{Op: op, Kind: inner.Kind, Err: cause}
	}
	return &OpError{Op: op, Kind: kind, Err: cause}
}

// New 构造一个没有底层原因的 OpError (例如校验失败)
func New(op string, kind Errno, format string, args ...interface{}) *OpError {
	return &OpError{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf 返回错误所属的类别
func KindOf(err error) (Errno, bool) {
	if err == nil {
		return OK, false
	}
	var op *OpError
	if errors.As(err, &op) {
		return op.Kind, true
	}
	var e Errno
	if errors.As(err, &e) {
		return e, true
	}
	return InternalServerError, false
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	switch typed := err.(type) {
	case *OpError:
		return typed.Kind.Code, typed.Error()
	case *Errno:
		return typed.Code, typed.Message
	case Errno:
		return typed.Code, typed.Message
	default:
		var op *OpError
		if errors.As(err, &op) {
			return op.Kind.Code, err.Error()
		}
		return InternalServerError.Code, err.Error()
	}
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
)

// Transfer lifecycle errors (30000+)
var (
	ErrProviderMissing        = Errno{Code: 30001, Message: "wallet provider not found, please install a wallet"}
	ErrUserRejected           = Errno{Code: 30002, Message: "user rejected the request"}
	ErrChainRejected          = Errno{Code: 30003, Message: "chain rejected the request"}
	ErrBusy                   = Errno{Code: 30004, Message: "another submission is in progress"}
	ErrPersistenceUnavailable = Errno{Code: 30005, Message: "durable store unavailable"}
	ErrInvalidInput           = Errno{Code: 30006, Message: "invalid form input"}
	ErrNotConnected           = Errno{Code: 30007, Message: "wallet not connected"}
)
