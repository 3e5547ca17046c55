package product

import (
	"context"
	"time"
)

// Product 农产品挂牌（crop listing）
type Product struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	SellerID    int64     `gorm:"index;not null" json:"seller_id"` // 挂牌农户
	Name        string    `gorm:"size:128;not null" json:"name"`
	Description string    `gorm:"size:512" json:"description"`
	Category    string    `gorm:"size:32;index" json:"category"` // 分类：grains、vegetables、fruits、dairy
	Price       int64     `gorm:"not null" json:"price"`         // 分
	Unit        string    `gorm:"size:16" json:"unit"`           // 计价单位：kg、box、bag
	Status      int       `gorm:"index" json:"status"`           // 0:下架 1:在售
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Repository 商品仓储接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Product, error)
	ListAll(ctx context.Context) ([]*Product, error)
	ListOnline(ctx context.Context) ([]*Product, error)
	ListByCategory(ctx context.Context, category string) ([]*Product, error)
	ListBySeller(ctx context.Context, sellerID int64) ([]*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id int64) error
}
