// Package mysql 提供文档服务的 GORM 持久化实现
package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/fundflow/backoffice/internal/document/domain"
)

// DocumentModel 文档元数据数据库模型，对应 documents 表
type DocumentModel struct {
	gorm.Model
	DocID      string `gorm:"column:doc_id;type:varchar(32);uniqueIndex;not null"`
	AppID      string `gorm:"column:app_id;type:varchar(32);index;not null"`
	SiloID     string `gorm:"column:silo_id;type:varchar(64);index;not null"`
	Kind       string `gorm:"column:kind;type:varchar(32);not null"`
	Filename   string `gorm:"column:filename;type:varchar(255);not null"`
	StorageKey string `gorm:"column:storage_key;type:varchar(255);not null"`
	UploadedBy uint   `gorm:"column:uploaded_by;index;not null"`
}

// TableName 指定表名
func (DocumentModel) TableName() string {
	return "documents"
}

func toDocument(m *DocumentModel) *domain.Document {
	return &domain.Document{
		ID:         m.ID,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
		DocID:      m.DocID,
		AppID:      m.AppID,
		SiloID:     m.SiloID,
		Kind:       domain.DocumentKind(m.Kind),
		Filename:   m.Filename,
		StorageKey: m.StorageKey,
		UploadedBy: m.UploadedBy,
	}
}

// documentRepository 文档仓储实现
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建并返回一个新的 documentRepository 实例。
func NewDocumentRepository(db *gorm.DB) domain.DocumentRepository {
	return &documentRepository{db: db}
}

// Save 保存文档元数据
func (r *documentRepository) Save(ctx context.Context, doc *domain.Document) error {
	model := &DocumentModel{
		Model:      gorm.Model{ID: doc.ID},
		DocID:      doc.DocID,
		AppID:      doc.AppID,
		SiloID:     doc.SiloID,
		Kind:       string(doc.Kind),
		Filename:   doc.Filename,
		StorageKey: doc.StorageKey,
		UploadedBy: doc.UploadedBy,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	doc.ID = model.ID
	doc.CreatedAt = model.CreatedAt
	doc.UpdatedAt = model.UpdatedAt
	return nil
}

// Get 按业务主键查找文档，不存在时返回 (nil, nil)
func (r *documentRepository) Get(ctx context.Context, docID string) (*domain.Document, error) {
	var model DocumentModel
	if err := r.db.WithContext(ctx).Where("doc_id = ?", docID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toDocument(&model), nil
}

// ListByApplication 列出申请的全部文档
func (r *documentRepository) ListByApplication(ctx context.Context, appID string) ([]*domain.Document, error) {
	var models []*DocumentModel
	if err := r.db.WithContext(ctx).
		Where("app_id = ?", appID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	docs := make([]*domain.Document, len(models))
	for i, m := range models {
		docs[i] = toDocument(m)
	}
	return docs, nil
}

// Delete 删除文档元数据（软删除）
func (r *documentRepository) Delete(ctx context.Context, docID string) error {
	return r.db.WithContext(ctx).Where("doc_id = ?", docID).Delete(&DocumentModel{}).Error
}
