// Package domain 包含申请文档元数据的领域模型。
// 文档内容本身存放在外部对象存储，这里只管理元数据与归属。
package domain

import (
	"context"
	"errors"
	"time"
)

// 文档领域错误
var (
	// ErrDocumentNotFound 文档不存在
	ErrDocumentNotFound = errors.New("document not found")
	// ErrApplicationNotFound 文档归属的申请不存在
	ErrApplicationNotFound = errors.New("application not found")
)

// DocumentKind 文档种类
type DocumentKind string

const (
	KindBankStatement  DocumentKind = "bank_statement"
	KindFinancials     DocumentKind = "financials"
	KindIdentity       DocumentKind = "identity"
	KindSignedContract DocumentKind = "signed_contract"
	KindOther          DocumentKind = "other"
)

// Document 申请文档元数据，归属 silo 与其申请一致
type Document struct {
	ID        uint      `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// 业务主键
	DocID string `json:"doc_id"`
	// 归属申请业务主键
	AppID string `json:"app_id"`
	// 归属 silo，冗余存储以便独立做访问校验
	SiloID   string       `json:"silo_id"`
	Kind     DocumentKind `json:"kind"`
	Filename string       `json:"filename"`
	// 对象存储键
	StorageKey string `json:"storage_key"`
	// 上传人用户 ID
	UploadedBy uint `json:"uploaded_by"`
}

// DocumentRepository 文档仓储接口
type DocumentRepository interface {
	Save(ctx context.Context, doc *Document) error
	// 按业务主键查找，不存在时返回 (nil, nil)
	Get(ctx context.Context, docID string) (*Document, error)
	// 列出申请的全部文档
	ListByApplication(ctx context.Context, appID string) ([]*Document, error)
	Delete(ctx context.Context, docID string) error
}

// ApplicationDirectory 申请目录端口，文档服务只需要归属 silo 与当前阶段
type ApplicationDirectory interface {
	// Lookup 返回申请的 silo 与当前阶段，申请不存在时返回 ErrApplicationNotFound
	Lookup(ctx context.Context, appID string) (siloID string, currentStage string, err error)
}

// DocumentReceivedEvent 文档接收事件，
// 仅当申请处于 requires_docs 阶段时发布，供管线侧推进使用
type DocumentReceivedEvent struct {
	DocID      string       `json:"doc_id"`
	AppID      string       `json:"app_id"`
	SiloID     string       `json:"silo_id"`
	Kind       DocumentKind `json:"kind"`
	UploadedBy uint         `json:"uploaded_by"`
	OccurredOn time.Time    `json:"occurred_on"`
}

// EventPublisher 领域事件发布接口
type EventPublisher interface {
	PublishDocumentReceived(ctx context.Context, event DocumentReceivedEvent) error
}
