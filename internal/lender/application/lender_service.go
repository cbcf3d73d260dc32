// Package application 编排放款方用例：登记放款方与产品、silo 范围内的可用性查询
package application

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/idgen"

	"github.com/fundflow/backoffice/internal/lender/domain"
	"github.com/fundflow/backoffice/pkg/authn"
	"github.com/fundflow/backoffice/pkg/logger"
)

// CreateLenderCommand 登记放款方命令
type CreateLenderCommand struct {
	Name  string
	Silos []string
}

// CreateProductCommand 登记产品命令
type CreateProductCommand struct {
	LenderID string
	Name     string
	Category string
	Rate     decimal.Decimal
}

// LenderService 放款方应用服务。
// 变更操作仅限管理员；查询按调用者的 silo 访问权限过滤。
type LenderService struct {
	lenders  domain.LenderRepository
	products domain.ProductRepository
	policy   authn.SiloPolicy
}

// NewLenderService 创建放款方应用服务实例
func NewLenderService(lenders domain.LenderRepository, products domain.ProductRepository, policy authn.SiloPolicy) *LenderService {
	return &LenderService{
		lenders:  lenders,
		products: products,
		policy:   policy,
	}
}

// CreateLender 登记放款方，仅管理员可调用
func (s *LenderService) CreateLender(ctx context.Context, caller authn.Identity, cmd CreateLenderCommand) (*domain.Lender, error) {
	if caller.Role != authn.RoleAdmin {
		return nil, authn.ErrForbidden
	}

	silos := cmd.Silos
	if silos == nil {
		silos = []string{}
	}
	lender := &domain.Lender{
		LenderID: fmt.Sprintf("LND%d", idgen.GenID()),
		Name:     cmd.Name,
		Silos:    silos,
		Active:   true,
	}
	if err := s.lenders.Save(ctx, lender); err != nil {
		return nil, err
	}

	logger.Info(ctx, "Lender registered", "lender_id", lender.LenderID, "name", lender.Name)
	return lender, nil
}

// CreateProduct 登记产品，仅管理员可调用
func (s *LenderService) CreateProduct(ctx context.Context, caller authn.Identity, cmd CreateProductCommand) (*domain.Product, error) {
	if caller.Role != authn.RoleAdmin {
		return nil, authn.ErrForbidden
	}

	lender, err := s.lenders.Get(ctx, cmd.LenderID)
	if err != nil {
		return nil, err
	}
	if lender == nil {
		return nil, domain.ErrLenderNotFound
	}

	product := &domain.Product{
		ProductID: fmt.Sprintf("PRD%d", idgen.GenID()),
		LenderID:  lender.LenderID,
		Name:      cmd.Name,
		Category:  cmd.Category,
		Rate:      cmd.Rate,
		Active:    true,
	}
	if err := s.products.Save(ctx, product); err != nil {
		return nil, err
	}

	logger.Info(ctx, "Product registered", "product_id", product.ProductID, "lender_id", lender.LenderID)
	return product, nil
}

// SetLenderActive 启用或停用放款方，仅管理员可调用
func (s *LenderService) SetLenderActive(ctx context.Context, caller authn.Identity, lenderID string, active bool) (*domain.Lender, error) {
	if caller.Role != authn.RoleAdmin {
		return nil, authn.ErrForbidden
	}

	lender, err := s.lenders.Get(ctx, lenderID)
	if err != nil {
		return nil, err
	}
	if lender == nil {
		return nil, domain.ErrLenderNotFound
	}

	lender.Active = active
	if err := s.lenders.Save(ctx, lender); err != nil {
		return nil, err
	}
	return lender, nil
}

// ListLendersForSilo 列出服务指定 silo 的在用放款方
func (s *LenderService) ListLendersForSilo(ctx context.Context, caller authn.Identity, siloID string) ([]*domain.Lender, error) {
	if err := s.policy.CheckAccess(caller, siloID); err != nil {
		return nil, err
	}

	lenders, err := s.lenders.ListBySilo(ctx, siloID)
	if err != nil {
		return nil, err
	}

	active := lenders[:0]
	for _, l := range lenders {
		if l.Active {
			active = append(active, l)
		}
	}
	return active, nil
}

// ListProducts 列出放款方的产品
func (s *LenderService) ListProducts(ctx context.Context, caller authn.Identity, lenderID string) ([]*domain.Product, error) {
	lender, err := s.lenders.Get(ctx, lenderID)
	if err != nil {
		return nil, err
	}
	if lender == nil {
		return nil, domain.ErrLenderNotFound
	}

	// 非管理员调用者必须与放款方有至少一个共同 silo
	if caller.Role != authn.RoleAdmin || !s.policy.AdminBypass {
		allowed := false
		for _, silo := range lender.Silos {
			if s.policy.CheckAccess(caller, silo) == nil {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, authn.ErrForbidden
		}
	}

	return s.products.ListByLender(ctx, lenderID)
}
