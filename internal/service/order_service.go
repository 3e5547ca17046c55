package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agrimaan/digital-sub001/internal/datamodels/order"
	"github.com/agrimaan/digital-sub001/internal/datamodels/product"
)

// nowFunc 便于测试注入固定时钟
var nowFunc = time.Now

// PlaceOrderItem 下单时的行项目入参，单价以挂牌价为准
type PlaceOrderItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// PlaceOrderRequest 下单请求
type PlaceOrderRequest struct {
	BuyerID         int64            `json:"-"`
	Items           []PlaceOrderItem `json:"items"`
	ShippingAddress order.Address    `json:"shipping_address"`
	BillingAddress  order.Address    `json:"billing_address"`
}

// OrderService 订单创建与 PENDING 阶段的行项目维护
type OrderService struct {
	repo        order.Repository
	productRepo product.Repository
}

// NewOrderService 创建订单服务
func NewOrderService(repo order.Repository, productRepo product.Repository) *OrderService {
	return &OrderService{repo: repo, productRepo: productRepo}
}

// PlaceOrder 买家下单：校验行项目与地址，按挂牌价生成订单，
// 初始状态 PENDING / 支付 PENDING，审计记录第一条为创建事件。
func (s *OrderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*order.Order, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: order needs at least one item", order.ErrValidation)
	}
	if req.ShippingAddress.Empty() || req.BillingAddress.Empty() {
		return nil, fmt.Errorf("%w: shipping and billing address required", order.ErrValidation)
	}

	items, sellerID, err := s.resolveItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	if sellerID == req.BuyerID {
		return nil, fmt.Errorf("%w: buyer and seller must differ", order.ErrValidation)
	}

	now := nowFunc()
	o := &order.Order{
		OrderNo:         "ORD-" + uuid.New().String(),
		BuyerID:         req.BuyerID,
		SellerID:        sellerID,
		Items:           items,
		Status:          order.StatusPending,
		PaymentStatus:   order.PaymentPending,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	o.RecomputeTotal()
	o.StatusHistory = []order.StatusChange{{
		Status:    order.StatusPending,
		Comment:   "order placed",
		ActorID:   req.BuyerID,
		CreatedAt: now,
	}}

	if err := s.repo.Create(ctx, o); err != nil {
		GetMonitor().RecordDBError()
		return nil, err
	}

	GetMonitor().RecordOrderPlaced()
	zap.L().Info("order placed",
		zap.String("order_no", o.OrderNo),
		zap.Int64("buyer_id", o.BuyerID),
		zap.Int64("seller_id", o.SellerID),
		zap.Int64("total_amount", o.TotalAmount))
	return o, nil
}

// UpdateItems 替换行项目并重算总额，只允许在 PENDING 状态下进行
func (s *OrderService) UpdateItems(ctx context.Context, orderID, actorID int64, newItems []PlaceOrderItem) (*order.Order, error) {
	if len(newItems) == 0 {
		return nil, fmt.Errorf("%w: order needs at least one item", order.ErrValidation)
	}

	o, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	// 行项目只属于买家，路由层之外再拦一道
	if o.BuyerID != actorID {
		return nil, fmt.Errorf("%w: only the buyer may modify items", order.ErrValidation)
	}
	if o.Status != order.StatusPending {
		return nil, fmt.Errorf("%w: items are frozen after %s", order.ErrInvalidTransition, order.StatusPending)
	}

	items, sellerID, err := s.resolveItems(ctx, newItems)
	if err != nil {
		return nil, err
	}
	if sellerID != o.SellerID {
		return nil, fmt.Errorf("%w: items must stay with seller %d", order.ErrValidation, o.SellerID)
	}

	expectedVersion := o.Version
	o.Items = items
	o.RecomputeTotal()

	if err := s.repo.Save(ctx, o, expectedVersion); err != nil {
		return nil, err
	}
	return o, nil
}

// resolveItems 按挂牌解析行项目（名称、单价、卖家），要求同一订单只含一个卖家的商品
func (s *OrderService) resolveItems(ctx context.Context, in []PlaceOrderItem) ([]order.OrderItem, int64, error) {
	items := make([]order.OrderItem, 0, len(in))
	var sellerID int64
	for _, it := range in {
		if it.Quantity <= 0 {
			return nil, 0, fmt.Errorf("%w: quantity must be positive", order.ErrValidation)
		}
		p, err := s.productRepo.GetByID(ctx, it.ProductID)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: product %d not found", order.ErrValidation, it.ProductID)
		}
		if p.Status != 1 {
			return nil, 0, fmt.Errorf("%w: product %q is offline", order.ErrValidation, p.Name)
		}
		if p.Price < 0 {
			return nil, 0, fmt.Errorf("%w: product %q has invalid price", order.ErrValidation, p.Name)
		}
		if sellerID == 0 {
			sellerID = p.SellerID
		} else if sellerID != p.SellerID {
			return nil, 0, fmt.Errorf("%w: one order, one seller", order.ErrValidation)
		}
		items = append(items, order.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    it.Quantity,
			UnitPrice:   p.Price,
		})
	}
	return items, sellerID, nil
}
