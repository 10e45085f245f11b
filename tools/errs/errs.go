package errs

import "github.com/pkg/errors"

// 预定义业务错误码：1xxx 通用，2xxx 账号，3xxx 消息
var (
	ErrInternal       = NewCodeError(1000, "internal server error")
	ErrArgs           = NewCodeError(1001, "bad request args")
	ErrTokenExpired   = NewCodeError(2001, "token expired or invalid")
	ErrUnauthorized   = NewCodeError(2002, "unauthorized")
	ErrUserNotFound   = NewCodeError(2003, "user not found")
	ErrEmailExists    = NewCodeError(2004, "email already registered")
	ErrBadCredentials = NewCodeError(2005, "invalid credentials")
	ErrEmptyMessage   = NewCodeError(3001, "message must have text or an image")
)

// New 构造一个带栈的普通错误。
func New(msg string, kv ...any) error {
	return errors.New(toString(msg, kv))
}

// Wrap 捕获调用栈，err 为 nil 时返回 nil。
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(err)
}

// WrapMsg 捕获调用栈并附加上下文。
func WrapMsg(err error, msg string, kv ...any) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, toString(msg, kv))
}
