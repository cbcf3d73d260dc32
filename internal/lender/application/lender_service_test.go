package application

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundflow/backoffice/internal/lender/domain"
	"github.com/fundflow/backoffice/pkg/authn"
)

type fakeLenderRepo struct {
	lenders map[string]*domain.Lender
	nextID  uint
}

func newFakeLenderRepo() *fakeLenderRepo {
	return &fakeLenderRepo{lenders: make(map[string]*domain.Lender), nextID: 1}
}

func (r *fakeLenderRepo) Save(ctx context.Context, lender *domain.Lender) error {
	if lender.ID == 0 {
		lender.ID = r.nextID
		r.nextID++
	}
	clone := *lender
	r.lenders[lender.LenderID] = &clone
	return nil
}

func (r *fakeLenderRepo) Get(ctx context.Context, lenderID string) (*domain.Lender, error) {
	l, ok := r.lenders[lenderID]
	if !ok {
		return nil, nil
	}
	clone := *l
	return &clone, nil
}

func (r *fakeLenderRepo) ListBySilo(ctx context.Context, siloID string) ([]*domain.Lender, error) {
	var out []*domain.Lender
	for _, l := range r.lenders {
		if l.ServesSilo(siloID) {
			clone := *l
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *fakeLenderRepo) List(ctx context.Context, limit, offset int) ([]*domain.Lender, error) {
	var out []*domain.Lender
	for _, l := range r.lenders {
		clone := *l
		out = append(out, &clone)
	}
	return out, nil
}

type fakeProductRepo struct {
	products map[string]*domain.Product
	nextID   uint
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[string]*domain.Product), nextID: 1}
}

func (r *fakeProductRepo) Save(ctx context.Context, product *domain.Product) error {
	if product.ID == 0 {
		product.ID = r.nextID
		r.nextID++
	}
	clone := *product
	r.products[product.ProductID] = &clone
	return nil
}

func (r *fakeProductRepo) Get(ctx context.Context, productID string) (*domain.Product, error) {
	p, ok := r.products[productID]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (r *fakeProductRepo) ListByLender(ctx context.Context, lenderID string) ([]*domain.Product, error) {
	var out []*domain.Product
	for _, p := range r.products {
		if p.LenderID == lenderID {
			clone := *p
			out = append(out, &clone)
		}
	}
	return out, nil
}

func newTestLenderService() (*LenderService, *fakeLenderRepo, *fakeProductRepo) {
	lenders := newFakeLenderRepo()
	products := newFakeProductRepo()
	return NewLenderService(lenders, products, authn.SiloPolicy{AdminBypass: true}), lenders, products
}

func admin() authn.Identity {
	return authn.Identity{UserID: 1, Role: authn.RoleAdmin}
}

func staff(silos ...string) authn.Identity {
	return authn.Identity{UserID: 2, Role: authn.RoleStaff, Silos: silos}
}

func TestCreateLenderRequiresAdmin(t *testing.T) {
	svc, _, _ := newTestLenderService()
	ctx := context.Background()

	_, err := svc.CreateLender(ctx, staff("silo-a"), CreateLenderCommand{Name: "First Capital"})
	assert.ErrorIs(t, err, authn.ErrForbidden)

	lender, err := svc.CreateLender(ctx, admin(), CreateLenderCommand{Name: "First Capital", Silos: []string{"silo-a"}})
	require.NoError(t, err)
	assert.NotEmpty(t, lender.LenderID)
	assert.True(t, lender.Active)
}

func TestListLendersForSiloFiltersByScopeAndActive(t *testing.T) {
	svc, _, _ := newTestLenderService()
	ctx := context.Background()

	inScope, err := svc.CreateLender(ctx, admin(), CreateLenderCommand{Name: "First Capital", Silos: []string{"silo-a"}})
	require.NoError(t, err)
	_, err = svc.CreateLender(ctx, admin(), CreateLenderCommand{Name: "Other Capital", Silos: []string{"silo-b"}})
	require.NoError(t, err)
	inactive, err := svc.CreateLender(ctx, admin(), CreateLenderCommand{Name: "Gone Capital", Silos: []string{"silo-a"}})
	require.NoError(t, err)
	_, err = svc.SetLenderActive(ctx, admin(), inactive.LenderID, false)
	require.NoError(t, err)

	lenders, err := svc.ListLendersForSilo(ctx, staff("silo-a"), "silo-a")
	require.NoError(t, err)
	require.Len(t, lenders, 1)
	assert.Equal(t, inScope.LenderID, lenders[0].LenderID)

	// silo 之外的调用者被拒绝
	_, err = svc.ListLendersForSilo(ctx, staff("silo-b"), "silo-a")
	assert.ErrorIs(t, err, authn.ErrForbidden)
}

func TestCreateAndListProducts(t *testing.T) {
	svc, _, _ := newTestLenderService()
	ctx := context.Background()

	lender, err := svc.CreateLender(ctx, admin(), CreateLenderCommand{Name: "First Capital", Silos: []string{"silo-a"}})
	require.NoError(t, err)

	product, err := svc.CreateProduct(ctx, admin(), CreateProductCommand{
		LenderID: lender.LenderID,
		Name:     "Working Capital Loan",
		Category: "standard",
		Rate:     decimal.RequireFromString("8.75"),
	})
	require.NoError(t, err)
	assert.Equal(t, lender.LenderID, product.LenderID)

	// 共享 silo 的调用者可以查看产品
	products, err := svc.ListProducts(ctx, staff("silo-a"), lender.LenderID)
	require.NoError(t, err)
	assert.Len(t, products, 1)

	// 无共同 silo 的调用者被拒绝
	_, err = svc.ListProducts(ctx, staff("silo-b"), lender.LenderID)
	assert.ErrorIs(t, err, authn.ErrForbidden)

	_, err = svc.CreateProduct(ctx, admin(), CreateProductCommand{LenderID: "NOPE", Name: "x", Rate: decimal.Zero})
	assert.ErrorIs(t, err, domain.ErrLenderNotFound)
}
