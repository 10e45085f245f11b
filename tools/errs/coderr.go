package errs

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CodeError 是带业务码的错误，HTTP 层直接序列化返回。
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// WithDetail 返回附加了明细的拷贝，原值不动。
func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

// WrapMsg 附加明细并捕获调用栈。
func (e *CodeError) WrapMsg(msg string, kv ...any) error {
	return errors.WithStack(e.WithDetail(toString(msg, kv)))
}

func (e *CodeError) Is(err error) bool {
	var ce *CodeError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == e.Code
}

func toString(msg string, kv []any) string {
	var sb strings.Builder
	sb.WriteString(msg)
	for i := 0; i+1 < len(kv); i += 2 {
		sb.WriteString(" ")
		sb.WriteString(toStr(kv[i]))
		sb.WriteString("=")
		sb.WriteString(toStr(kv[i+1]))
	}
	return sb.String()
}

func toStr(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case error:
		return t.Error()
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
