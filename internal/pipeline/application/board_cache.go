package application

import (
	"context"

	"github.com/fundflow/backoffice/internal/pipeline/domain"
)

// BoardCache silo 看板读缓存接口。
// 缓存只是读路径的加速，任何失败都不阻塞业务。
type BoardCache interface {
	// GetBoard 读取 silo 看板缓存，未命中返回 (false, nil)
	GetBoard(ctx context.Context, siloID string) ([]*domain.Application, bool, error)
	// SetBoard 写入 silo 看板缓存
	SetBoard(ctx context.Context, siloID string, apps []*domain.Application) error
	// Invalidate 阶段变更后失效对应 silo 的看板
	Invalidate(ctx context.Context, siloID string) error
}
