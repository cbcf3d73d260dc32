package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundflow/backoffice/internal/pipeline/domain"
)

// flakyRecorder 前 failures 次写入失败
type flakyRecorder struct {
	failures int
	calls    int
	records  []*domain.TransitionRecord
}

func (f *flakyRecorder) Record(ctx context.Context, record *domain.TransitionRecord) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("audit store unavailable")
	}
	f.records = append(f.records, record)
	return nil
}

func (f *flakyRecorder) ListByApplication(ctx context.Context, appID string, limit, offset int) ([]*domain.TransitionRecord, error) {
	return f.records, nil
}

func testRecord() *domain.TransitionRecord {
	return domain.NewTransitionRecord("r1", "APP1", domain.StageInReview, domain.StageOffer, true, "", 7)
}

func TestRetryingRecorderSucceedsAfterTransientFailure(t *testing.T) {
	inner := &flakyRecorder{failures: 2}
	recorder := NewRetryingRecorder(inner, 3, time.Millisecond)

	err := recorder.Record(context.Background(), testRecord())
	require.NoError(t, err)
	assert.Equal(t, 3, inner.calls)
	assert.Len(t, inner.records, 1)
}

func TestRetryingRecorderExhaustsBudget(t *testing.T) {
	inner := &flakyRecorder{failures: 100}
	recorder := NewRetryingRecorder(inner, 3, time.Millisecond)

	err := recorder.Record(context.Background(), testRecord())
	assert.ErrorIs(t, err, domain.ErrAuditWriteFailed)
	// 总尝试次数受预算约束
	assert.Equal(t, 3, inner.calls)
}

func TestRetryingRecorderStopsOnContextCancel(t *testing.T) {
	inner := &flakyRecorder{failures: 100}
	recorder := NewRetryingRecorder(inner, 10, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := recorder.Record(ctx, testRecord())
	assert.Error(t, err)
	// 取消后不再继续重试
	assert.LessOrEqual(t, inner.calls, 2)
}

func TestRetryingRecorderDefaults(t *testing.T) {
	inner := &flakyRecorder{}
	recorder := NewRetryingRecorder(inner, 0, 0)

	require.NoError(t, recorder.Record(context.Background(), testRecord()))
	assert.Equal(t, 1, inner.calls)
}
