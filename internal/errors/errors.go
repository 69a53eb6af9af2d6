package errors

import "fmt"

type ErrorCode int

const (
	ErrInvalidConfig ErrorCode = iota + 1
	ErrDuplicateListener
	ErrArchive
)

func (c ErrorCode) String() string {
	switch c {
	case ErrInvalidConfig:
		return "invalid_config"
	case ErrDuplicateListener:
		return "duplicate_listener"
	case ErrArchive:
		return "archive"
	default:
		return fmt.Sprintf("code_%d", int(c))
	}
}

type MetricsError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *MetricsError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *MetricsError) Unwrap() error {
	return e.Err
}

// Is 按错误码匹配，便于 errors.Is(err, &MetricsError{Code: ...})
func (e *MetricsError) Is(target error) bool {
	t, ok := target.(*MetricsError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// New 创建不带底层错误的 MetricsError
func New(code ErrorCode, format string, args ...interface{}) *MetricsError {
	return &MetricsError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// HasCode 判断错误链中是否包含指定错误码
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if me, ok := err.(*MetricsError); ok && me.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
