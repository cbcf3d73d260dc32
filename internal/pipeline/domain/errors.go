package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrApplicationNotFound 申请不存在
	ErrApplicationNotFound = errors.New("application not found")
	// ErrStaleStage CAS 更新时持久化阶段已被并发修改，仓储内部错误，调用方重读后重试
	ErrStaleStage = errors.New("stale stage: application modified concurrently")
	// ErrTransitionConflict CAS 重试次数耗尽
	ErrTransitionConflict = errors.New("transition conflict: concurrent updates exhausted retries")
	// ErrStoreTimeout 存储操作超时
	ErrStoreTimeout = errors.New("pipeline store timed out")
	// ErrAuditWriteFailed 审计写入在重试预算内未成功
	ErrAuditWriteFailed = errors.New("transition audit write failed")
)

// IllegalTransitionError 非法流转。
// 携带当前阶段与请求阶段，让客户端可以决定是否刷新后重试。
type IllegalTransitionError struct {
	Current   Stage
	Requested Stage
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition from %q to %q", e.Current, e.Requested)
}

// AsIllegalTransition 判断错误是否为非法流转
func AsIllegalTransition(err error) (*IllegalTransitionError, bool) {
	var ite *IllegalTransitionError
	if errors.As(err, &ite) {
		return ite, true
	}
	return nil, false
}
