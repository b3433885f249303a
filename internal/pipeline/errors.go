package pipeline

import (
	"errors"
	"fmt"
)

// 定义基础错误类型，handler 层据此映射 HTTP 状态码
var (
	ErrValidation    = errors.New("请求参数不合法")
	ErrNotFound      = errors.New("资源不存在")
	ErrAuthorization = errors.New("无权执行该操作")
	ErrConflict      = errors.New("存在依赖数据，操作被拒绝")
	ErrNoNextRound   = errors.New("未找到下一轮")
	ErrStore         = errors.New("存储操作失败")
)

// ErrRecordNotFound 由仓储实现返回，表示查询没有命中任何记录
var ErrRecordNotFound = errors.New("record not found")

// Error 包含详细错误信息的自定义错误
type Error struct {
	Op     string // 出错的操作，例如 "SetStatus"
	Kind   error  // 上面的基础错误之一
	Detail string // 面向调用方的说明
	Err    error  // 底层错误（可选）
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s (操作:%s)", e.Kind, e.Op)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 实现 errors.Is 接口以支持按基础错误比较
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

// Message 返回可直接展示给调用方的信息；存储错误不暴露底层细节
func (e *Error) Message() string {
	if e.Kind == ErrStore {
		return ErrStore.Error()
	}
	if e.Detail != "" {
		return e.Detail
	}
	return e.Kind.Error()
}

// 错误构造函数
func NewValidationError(op, format string, args ...any) error {
	return &Error{Op: op, Kind: ErrValidation, Detail: fmt.Sprintf(format, args...)}
}

func NewNotFoundError(op, format string, args ...any) error {
	return &Error{Op: op, Kind: ErrNotFound, Detail: fmt.Sprintf(format, args...)}
}

func NewAuthorizationError(op, format string, args ...any) error {
	return &Error{Op: op, Kind: ErrAuthorization, Detail: fmt.Sprintf(format, args...)}
}

func NewConflictError(op, format string, args ...any) error {
	return &Error{Op: op, Kind: ErrConflict, Detail: fmt.Sprintf(format, args...)}
}

func NewNoNextRoundError(op, format string, args ...any) error {
	return &Error{Op: op, Kind: ErrNoNextRound, Detail: fmt.Sprintf(format, args...)}
}

func NewStoreError(op, detail string, err error) error {
	return &Error{Op: op, Kind: ErrStore, Detail: detail, Err: err}
}

// passThrough 已经是 *Error 的错误原样返回，其余包装为存储错误。
// 事务回调里抛出的业务错误需要保留原始类型。
func passThrough(op, detail string, err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	return NewStoreError(op, detail, err)
}

// notFoundOr 把仓储的 ErrRecordNotFound 转换为业务 NotFound，其余视为存储错误
func notFoundOr(op string, err error, format string, args ...any) error {
	if errors.Is(err, ErrRecordNotFound) {
		return NewNotFoundError(op, format, args...)
	}
	return passThrough(op, "查询失败", err)
}
