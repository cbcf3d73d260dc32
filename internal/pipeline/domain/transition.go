package domain

import (
	"context"
	"time"
)

// TransitionRecord 阶段流转审计记录，追加写入，写入后不可变。
// 每次被接受或被拒绝的流转尝试都恰好产生一条记录。
type TransitionRecord struct {
	ID        uint      `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	// 记录 ID
	RecordID string `json:"record_id"`
	// 申请业务主键
	AppID string `json:"app_id"`
	// 流转前阶段
	FromStage Stage `json:"from_stage"`
	// 请求的目标阶段
	ToStage Stage `json:"to_stage"`
	// 是否被接受
	Accepted bool `json:"accepted"`
	// 拒绝原因（接受时为空）
	Reason string `json:"reason"`
	// 发起人用户 ID
	ActorID uint `json:"actor_id"`
	// 发生时间
	RecordedAt time.Time `json:"recorded_at"`
}

// NewTransitionRecord 创建审计记录
func NewTransitionRecord(recordID, appID string, from, to Stage, accepted bool, reason string, actorID uint) *TransitionRecord {
	return &TransitionRecord{
		RecordID:   recordID,
		AppID:      appID,
		FromStage:  from,
		ToStage:    to,
		Accepted:   accepted,
		Reason:     reason,
		ActorID:    actorID,
		RecordedAt: time.Now(),
	}
}

// TransitionRecorder 审计记录接口
type TransitionRecorder interface {
	// 写入一条审计记录
	Record(ctx context.Context, record *TransitionRecord) error
	// 获取申请的审计轨迹（按时间倒序）
	ListByApplication(ctx context.Context, appID string, limit, offset int) ([]*TransitionRecord, error)
}
