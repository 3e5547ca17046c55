package service

import (
	"context"
	"fmt"
	"time"

	"github.com/agrimaan/digital-sub001/internal/datamodels/order"
	"github.com/agrimaan/digital-sub001/internal/datamodels/user"
)

// 分页默认值与上限
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Scope 查询视角：管理员看全部，其余角色只能看到自己参与的订单
type Scope struct {
	ViewerID   int64
	ViewerRole user.Role
}

// Filters 列表过滤条件，全部可选，条件之间为 AND
type Filters struct {
	Status order.Status
	Search string
	From   time.Time
	To     time.Time
}

// PageRequest 分页请求，零值使用默认值
type PageRequest struct {
	Number int
	Size   int
}

// OrderPage 分页结果。Total 为过滤后、分页前的总数
type OrderPage struct {
	Items     []*order.Order `json:"items"`
	Total     int64          `json:"total"`
	Page      int            `json:"page"`
	PageSize  int            `json:"page_size"`
	PageCount int            `json:"page_count"`
}

// QueryService 订单查询引擎，纯读取，无副作用
type QueryService struct {
	repo order.Repository
}

// NewQueryService 创建查询服务
func NewQueryService(repo order.Repository) *QueryService {
	return &QueryService{repo: repo}
}

// ListOrders 按视角 + 过滤条件分页查询。
// 排序固定为 CreatedAt 倒序、ID 倒序兜底；
// 超出页数范围返回空列表而不是错误。
func (s *QueryService) ListOrders(ctx context.Context, scope Scope, f Filters, p PageRequest) (*OrderPage, error) {
	if p.Number < 0 || p.Size < 0 {
		return nil, fmt.Errorf("%w: page number and size must be positive", order.ErrValidation)
	}
	if p.Number == 0 {
		p.Number = 1
	}
	if p.Size == 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", order.ErrValidation, f.Status)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, fmt.Errorf("%w: date range end before start", order.ErrValidation)
	}

	q := &order.ListQuery{
		Status: f.Status,
		Search: f.Search,
		From:   f.From,
		To:     f.To,
		Offset: (p.Number - 1) * p.Size,
		Limit:  p.Size,
	}
	if scope.ViewerRole != user.RoleAdmin {
		if scope.ViewerID == 0 {
			return nil, fmt.Errorf("%w: viewer id required", order.ErrValidation)
		}
		q.ViewerID = scope.ViewerID
	}

	items, total, err := s.repo.List(ctx, q)
	if err != nil {
		GetMonitor().RecordDBError()
		return nil, err
	}

	pageCount := int((total + int64(p.Size) - 1) / int64(p.Size))
	GetMonitor().RecordQuery()
	return &OrderPage{
		Items:     items,
		Total:     total,
		Page:      p.Number,
		PageSize:  p.Size,
		PageCount: pageCount,
	}, nil
}

// GetOrder 按视角读取订单详情（含审计时间线）。
// 越权访问与不存在同样返回 ErrOrderNotFound，不泄露订单存在性。
// 物流角色需要按单号读取收货信息并确认送达，视同运营侧放行。
func (s *QueryService) GetOrder(ctx context.Context, scope Scope, orderID int64) (*order.Order, error) {
	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch scope.ViewerRole {
	case user.RoleAdmin, user.RoleLogistics:
	default:
		if !o.Involves(scope.ViewerID) {
			return nil, order.ErrOrderNotFound
		}
	}
	return o, nil
}
