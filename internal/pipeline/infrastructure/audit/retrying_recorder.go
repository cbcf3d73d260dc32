// Package audit 提供审计记录写入的重试装饰器
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fundflow/backoffice/internal/pipeline/domain"
	"github.com/fundflow/backoffice/pkg/logger"
)

// RetryingRecorder 包装底层 TransitionRecorder，写入失败时做指数退避重试。
// 重试耗尽后返回 domain.ErrAuditWriteFailed，由调用方决定是否继续（阶段变更本身不回滚）。
type RetryingRecorder struct {
	inner          domain.TransitionRecorder
	maxAttempts    uint64
	initialBackoff time.Duration
}

// NewRetryingRecorder 创建重试装饰器。
// maxAttempts 是总尝试次数（含首次），小于等于零时取 3。
func NewRetryingRecorder(inner domain.TransitionRecorder, maxAttempts int, initialBackoff time.Duration) *RetryingRecorder {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if initialBackoff <= 0 {
		initialBackoff = 50 * time.Millisecond
	}
	return &RetryingRecorder{
		inner:          inner,
		maxAttempts:    uint64(maxAttempts),
		initialBackoff: initialBackoff,
	}
}

// Record 带重试地写入审计记录
func (r *RetryingRecorder) Record(ctx context.Context, record *domain.TransitionRecord) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = r.initialBackoff

	attempt := 0
	op := func() error {
		attempt++
		if err := r.inner.Record(ctx, record); err != nil {
			logger.Warn(ctx, "Audit record write failed, retrying",
				"record_id", record.RecordID,
				"app_id", record.AppID,
				"attempt", attempt,
				"error", err)
			return err
		}
		return nil
	}

	// maxAttempts 为总次数，WithMaxRetries 的参数是首次之后的重试次数
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, r.maxAttempts-1), ctx))
	if err != nil {
		logger.Error(ctx, "Audit record write retries exhausted",
			"record_id", record.RecordID,
			"app_id", record.AppID,
			"attempts", attempt,
			"error", err)
		return fmt.Errorf("%w: %v", domain.ErrAuditWriteFailed, err)
	}
	return nil
}

// ListByApplication 读取直接透传底层仓储
func (r *RetryingRecorder) ListByApplication(ctx context.Context, appID string, limit, offset int) ([]*domain.TransitionRecord, error) {
	return r.inner.ListByApplication(ctx, appID, limit, offset)
}
