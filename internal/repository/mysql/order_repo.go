package mysql

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/agrimaan/digital-sub001/internal/datamodels/order"
)

type orderRepo struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) order.Repository {
	return &orderRepo{db: db}
}

// historyOrdered 审计记录按时间升序预加载，末条即当前状态
func historyOrdered(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC, id ASC")
}

func (r *orderRepo) Create(ctx context.Context, o *order.Order) error {
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	var o order.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("StatusHistory", historyOrdered).
		First(&o, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) GetByOrderNo(ctx context.Context, orderNo string) (*order.Order, error) {
	var o order.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("StatusHistory", historyOrdered).
		Where("order_no = ?", orderNo).
		First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, order.ErrOrderNotFound
		}
		return nil, err
	}
	return &o, nil
}

// Save 聚合级原子提交：在同一事务内锁定订单行、校验版本号、
// 更新主行、按需重写行项目、追加新增的审计记录。
// 版本不匹配时整个事务回滚，返回 ErrConcurrentModification。
func (r *orderRepo) Save(ctx context.Context, o *order.Order, expectedVersion int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1) 锁定当前行并校验版本
		var current order.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current, o.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return order.ErrOrderNotFound
			}
			return err
		}
		if current.Version != expectedVersion {
			return order.ErrConcurrentModification
		}

		// 2) 更新订单主行
		o.Version = expectedVersion + 1
		o.UpdatedAt = time.Now()
		if err := tx.Omit("Items", "StatusHistory").Save(o).Error; err != nil {
			return err
		}

		// 3) 行项目有新条目（ID 为 0）时整体重写，仅 PENDING 阶段会走到这里
		if itemsDirty(o.Items) {
			if err := tx.Where("order_id = ?", o.ID).Delete(&order.OrderItem{}).Error; err != nil {
				return err
			}
			for i := range o.Items {
				o.Items[i].ID = 0
				o.Items[i].OrderID = o.ID
				if err := tx.Create(&o.Items[i]).Error; err != nil {
					return err
				}
			}
		}

		// 4) 追加新增的审计记录，已落库的记录绝不改写
		for i := range o.StatusHistory {
			if o.StatusHistory[i].ID != 0 {
				continue
			}
			o.StatusHistory[i].OrderID = o.ID
			if err := tx.Create(&o.StatusHistory[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func itemsDirty(items []order.OrderItem) bool {
	for i := range items {
		if items[i].ID == 0 {
			return true
		}
	}
	return false
}

func (r *orderRepo) List(ctx context.Context, q *order.ListQuery) ([]*order.Order, int64, error) {
	base := r.db.WithContext(ctx).Model(&order.Order{})

	if q.ViewerID != 0 {
		base = base.Where("orders.buyer_id = ? OR orders.seller_id = ?", q.ViewerID, q.ViewerID)
	}
	if q.Status != "" {
		base = base.Where("orders.status = ?", q.Status)
	}
	if !q.From.IsZero() {
		base = base.Where("orders.created_at >= ?", q.From)
	}
	if !q.To.IsZero() {
		base = base.Where("orders.created_at < ?", q.To)
	}
	if q.Search != "" {
		kw := "%" + strings.ToLower(q.Search) + "%"
		base = base.
			Joins("LEFT JOIN order_items ON order_items.order_id = orders.id").
			Joins("LEFT JOIN users AS buyers ON buyers.id = orders.buyer_id").
			Joins("LEFT JOIN users AS sellers ON sellers.id = orders.seller_id").
			Where("LOWER(orders.order_no) LIKE ? OR LOWER(buyers.username) LIKE ? OR LOWER(sellers.username) LIKE ? OR LOWER(order_items.product_name) LIKE ?",
				kw, kw, kw, kw).
			Group("orders.id")
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Distinct("orders.id").Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []*order.Order
	err := base.
		Preload("Items").
		Preload("StatusHistory", historyOrdered).
		Order("orders.created_at DESC, orders.id DESC").
		Offset(q.Offset).
		Limit(q.Limit).
		Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
