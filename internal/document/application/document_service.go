// Package application 编排文档用例：挂接、查询与移除申请文档
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/pkg/idgen"

	"github.com/fundflow/backoffice/internal/document/domain"
	"github.com/fundflow/backoffice/pkg/authn"
	"github.com/fundflow/backoffice/pkg/logger"
)

// 与管线服务保持一致的阶段字面量，文档服务只关心这一个
const stageRequiresDocs = "requires_docs"

// AttachDocumentCommand 挂接文档命令
type AttachDocumentCommand struct {
	AppID      string
	Kind       string
	Filename   string
	StorageKey string
}

// DocumentService 文档应用服务。
// 所有操作都以申请的归属 silo 做访问校验。
type DocumentService struct {
	repo      domain.DocumentRepository
	directory domain.ApplicationDirectory
	publisher domain.EventPublisher
	policy    authn.SiloPolicy
}

// NewDocumentService 创建文档应用服务实例，publisher 可为 nil
func NewDocumentService(
	repo domain.DocumentRepository,
	directory domain.ApplicationDirectory,
	publisher domain.EventPublisher,
	policy authn.SiloPolicy,
) *DocumentService {
	return &DocumentService{
		repo:      repo,
		directory: directory,
		publisher: publisher,
		policy:    policy,
	}
}

// Attach 挂接文档到申请。
// 申请处于 requires_docs 阶段时发布 document.received 事件。
func (s *DocumentService) Attach(ctx context.Context, caller authn.Identity, cmd AttachDocumentCommand) (*domain.Document, error) {
	siloID, stage, err := s.directory.Lookup(ctx, cmd.AppID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CheckAccess(caller, siloID); err != nil {
		return nil, err
	}

	kind := domain.DocumentKind(cmd.Kind)
	if kind == "" {
		kind = domain.KindOther
	}

	doc := &domain.Document{
		DocID:      fmt.Sprintf("DOC%d", idgen.GenID()),
		AppID:      cmd.AppID,
		SiloID:     siloID,
		Kind:       kind,
		Filename:   cmd.Filename,
		StorageKey: cmd.StorageKey,
		UploadedBy: caller.UserID,
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		return nil, err
	}

	if s.publisher != nil && stage == stageRequiresDocs {
		event := domain.DocumentReceivedEvent{
			DocID:      doc.DocID,
			AppID:      doc.AppID,
			SiloID:     doc.SiloID,
			Kind:       doc.Kind,
			UploadedBy: doc.UploadedBy,
			OccurredOn: time.Now(),
		}
		if err := s.publisher.PublishDocumentReceived(ctx, event); err != nil {
			// 事件只是推进提示，发布失败不回滚挂接
			logger.Warn(ctx, "Failed to publish document received event", "doc_id", doc.DocID, "error", err)
		}
	}

	logger.Info(ctx, "Document attached", "doc_id", doc.DocID, "app_id", doc.AppID, "kind", doc.Kind)
	return doc, nil
}

// List 列出申请的全部文档
func (s *DocumentService) List(ctx context.Context, caller authn.Identity, appID string) ([]*domain.Document, error) {
	siloID, _, err := s.directory.Lookup(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := s.policy.CheckAccess(caller, siloID); err != nil {
		return nil, err
	}
	return s.repo.ListByApplication(ctx, appID)
}

// Remove 移除文档元数据
func (s *DocumentService) Remove(ctx context.Context, caller authn.Identity, docID string) error {
	doc, err := s.repo.Get(ctx, docID)
	if err != nil {
		return err
	}
	if doc == nil {
		return domain.ErrDocumentNotFound
	}
	if err := s.policy.CheckAccess(caller, doc.SiloID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, docID); err != nil {
		return err
	}
	logger.Info(ctx, "Document removed", "doc_id", docID, "app_id", doc.AppID, "actor_id", caller.UserID)
	return nil
}
