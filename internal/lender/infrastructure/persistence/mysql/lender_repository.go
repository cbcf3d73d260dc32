// Package mysql 提供放款方服务的 GORM 持久化实现
package mysql

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fundflow/backoffice/internal/lender/domain"
)

// LenderModel 放款方数据库模型，对应 lenders 表
type LenderModel struct {
	gorm.Model
	LenderID string `gorm:"column:lender_id;type:varchar(32);uniqueIndex;not null"`
	Name     string `gorm:"column:name;type:varchar(128);not null"`
	// 可服务的 silo 集合，JSON 数组
	Silos  string `gorm:"column:silos;type:text"`
	Active bool   `gorm:"column:active;not null;default:true"`
}

// TableName 指定表名
func (LenderModel) TableName() string {
	return "lenders"
}

// ProductModel 产品数据库模型，对应 lender_products 表
type ProductModel struct {
	gorm.Model
	ProductID string          `gorm:"column:product_id;type:varchar(32);uniqueIndex;not null"`
	LenderID  string          `gorm:"column:lender_id;type:varchar(32);index;not null"`
	Name      string          `gorm:"column:name;type:varchar(128);not null"`
	Category  string          `gorm:"column:category;type:varchar(32);index"`
	Rate      decimal.Decimal `gorm:"column:rate;type:decimal(10,4);not null"`
	Active    bool            `gorm:"column:active;not null;default:true"`
}

// TableName 指定表名
func (ProductModel) TableName() string {
	return "lender_products"
}

func toLenderModel(l *domain.Lender) (*LenderModel, error) {
	silos, err := json.Marshal(l.Silos)
	if err != nil {
		return nil, err
	}
	return &LenderModel{
		Model:    gorm.Model{ID: l.ID, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt},
		LenderID: l.LenderID,
		Name:     l.Name,
		Silos:    string(silos),
		Active:   l.Active,
	}, nil
}

func toLender(m *LenderModel) (*domain.Lender, error) {
	silos := []string{}
	if m.Silos != "" {
		if err := json.Unmarshal([]byte(m.Silos), &silos); err != nil {
			return nil, err
		}
	}
	return &domain.Lender{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		LenderID:  m.LenderID,
		Name:      m.Name,
		Silos:     silos,
		Active:    m.Active,
	}, nil
}

func toProduct(m *ProductModel) *domain.Product {
	return &domain.Product{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
		ProductID: m.ProductID,
		LenderID:  m.LenderID,
		Name:      m.Name,
		Category:  m.Category,
		Rate:      m.Rate,
		Active:    m.Active,
	}
}

// lenderRepository 放款方仓储实现
type lenderRepository struct {
	db *gorm.DB
}

// NewLenderRepository 创建并返回一个新的 lenderRepository 实例。
func NewLenderRepository(db *gorm.DB) domain.LenderRepository {
	return &lenderRepository{db: db}
}

// Save 保存放款方，ID 为零值时新建
func (r *lenderRepository) Save(ctx context.Context, lender *domain.Lender) error {
	model, err := toLenderModel(lender)
	if err != nil {
		return err
	}

	if lender.ID == 0 {
		if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
			return err
		}
		lender.ID = model.ID
		lender.CreatedAt = model.CreatedAt
		lender.UpdatedAt = model.UpdatedAt
		return nil
	}

	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return err
	}
	lender.UpdatedAt = time.Now()
	return nil
}

// Get 按业务主键查找放款方，不存在时返回 (nil, nil)
func (r *lenderRepository) Get(ctx context.Context, lenderID string) (*domain.Lender, error) {
	var model LenderModel
	if err := r.db.WithContext(ctx).Where("lender_id = ?", lenderID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toLender(&model)
}

// ListBySilo 列出服务指定 silo 的放款方。
// silo 集合以 JSON 存储，匹配在应用侧完成。
func (r *lenderRepository) ListBySilo(ctx context.Context, siloID string) ([]*domain.Lender, error) {
	var models []*LenderModel
	if err := r.db.WithContext(ctx).Find(&models).Error; err != nil {
		return nil, err
	}

	var out []*domain.Lender
	for _, m := range models {
		lender, err := toLender(m)
		if err != nil {
			return nil, err
		}
		if lender.ServesSilo(siloID) {
			out = append(out, lender)
		}
	}
	return out, nil
}

// List 分页列出放款方
func (r *lenderRepository) List(ctx context.Context, limit, offset int) ([]*domain.Lender, error) {
	var models []*LenderModel
	if err := r.db.WithContext(ctx).Limit(limit).Offset(offset).Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*domain.Lender, 0, len(models))
	for _, m := range models {
		lender, err := toLender(m)
		if err != nil {
			return nil, err
		}
		out = append(out, lender)
	}
	return out, nil
}

// productRepository 产品仓储实现
type productRepository struct {
	db *gorm.DB
}

// NewProductRepository 创建并返回一个新的 productRepository 实例。
func NewProductRepository(db *gorm.DB) domain.ProductRepository {
	return &productRepository{db: db}
}

// Save 保存产品，ID 为零值时新建
func (r *productRepository) Save(ctx context.Context, product *domain.Product) error {
	model := &ProductModel{
		Model:     gorm.Model{ID: product.ID, CreatedAt: product.CreatedAt, UpdatedAt: product.UpdatedAt},
		ProductID: product.ProductID,
		LenderID:  product.LenderID,
		Name:      product.Name,
		Category:  product.Category,
		Rate:      product.Rate,
		Active:    product.Active,
	}

	if product.ID == 0 {
		if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
			return err
		}
		product.ID = model.ID
		product.CreatedAt = model.CreatedAt
		product.UpdatedAt = model.UpdatedAt
		return nil
	}
	return r.db.WithContext(ctx).Save(model).Error
}

// Get 按业务主键查找产品，不存在时返回 (nil, nil)
func (r *productRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	var model ProductModel
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toProduct(&model), nil
}

// ListByLender 列出放款方的产品
func (r *productRepository) ListByLender(ctx context.Context, lenderID string) ([]*domain.Product, error) {
	var models []*ProductModel
	if err := r.db.WithContext(ctx).Where("lender_id = ?", lenderID).Find(&models).Error; err != nil {
		return nil, err
	}

	out := make([]*domain.Product, len(models))
	for i, m := range models {
		out[i] = toProduct(m)
	}
	return out, nil
}
