// Package domain 包含放款方与信贷产品的领域模型
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// 放款方领域错误
var (
	// ErrLenderNotFound 放款方不存在
	ErrLenderNotFound = errors.New("lender not found")
	// ErrProductNotFound 产品不存在
	ErrProductNotFound = errors.New("product not found")
)

// Lender 放款方，服务范围限定在若干 silo 内
type Lender struct {
	ID        uint      `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// 业务主键
	LenderID string `json:"lender_id"`
	Name     string `json:"name"`
	// 可服务的 silo 集合
	Silos  []string `json:"silos"`
	Active bool     `json:"active"`
}

// ServesSilo 放款方是否服务指定 silo
func (l *Lender) ServesSilo(silo string) bool {
	for _, s := range l.Silos {
		if s == silo {
			return true
		}
	}
	return false
}

// Product 信贷产品
type Product struct {
	ID        uint      `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// 业务主键
	ProductID string `json:"product_id"`
	// 所属放款方业务主键
	LenderID string `json:"lender_id"`
	Name     string `json:"name"`
	// 适用的产品类别（standard / startup）
	Category string `json:"category"`
	// 年化利率
	Rate   decimal.Decimal `json:"rate"`
	Active bool            `json:"active"`
}

// LenderRepository 放款方仓储接口
type LenderRepository interface {
	Save(ctx context.Context, lender *Lender) error
	// 按业务主键查找，不存在时返回 (nil, nil)
	Get(ctx context.Context, lenderID string) (*Lender, error)
	// 列出服务指定 silo 的放款方
	ListBySilo(ctx context.Context, siloID string) ([]*Lender, error)
	List(ctx context.Context, limit, offset int) ([]*Lender, error)
}

// ProductRepository 产品仓储接口
type ProductRepository interface {
	Save(ctx context.Context, product *Product) error
	// 按业务主键查找，不存在时返回 (nil, nil)
	Get(ctx context.Context, productID string) (*Product, error)
	// 列出放款方的产品
	ListByLender(ctx context.Context, lenderID string) ([]*Product, error)
}
