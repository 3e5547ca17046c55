package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agrimaan/digital-sub001/internal/datamodels/order"
	"github.com/agrimaan/digital-sub001/internal/datamodels/product"
	"github.com/agrimaan/digital-sub001/internal/repository/memory"
)

// stubProductRepo 测试用的内存挂牌仓储
type stubProductRepo struct {
	byID map[int64]*product.Product
}

func newStubProducts(list ...*product.Product) *stubProductRepo {
	r := &stubProductRepo{byID: make(map[int64]*product.Product)}
	for _, p := range list {
		r.byID[p.ID] = p
	}
	return r
}

func (r *stubProductRepo) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, order.ErrValidation
	}
	return p, nil
}

func (r *stubProductRepo) ListAll(ctx context.Context) ([]*product.Product, error)    { return nil, nil }
func (r *stubProductRepo) ListOnline(ctx context.Context) ([]*product.Product, error) { return nil, nil }
func (r *stubProductRepo) ListByCategory(ctx context.Context, category string) ([]*product.Product, error) {
	return nil, nil
}
func (r *stubProductRepo) ListBySeller(ctx context.Context, sellerID int64) ([]*product.Product, error) {
	return nil, nil
}
func (r *stubProductRepo) Create(ctx context.Context, p *product.Product) error { return nil }
func (r *stubProductRepo) Update(ctx context.Context, p *product.Product) error { return nil }
func (r *stubProductRepo) Delete(ctx context.Context, id int64) error           { return nil }

// testEnv 服务层测试环境：内存订单仓储 + 固定挂牌
type testEnv struct {
	repo       order.Repository
	orders     *OrderService
	query      *QueryService
	notifier   *Notifier
	transition *TransitionService
}

const (
	testBuyerID  = int64(10)
	testSellerID = int64(20)
	testAdminID  = int64(1)
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := memory.NewOrderRepository(map[int64]string{
		testBuyerID:  "buyer_li",
		testSellerID: "farmer_zhang",
	})
	products := newStubProducts(
		&product.Product{ID: 1, SellerID: testSellerID, Name: "有机大米", Price: 25, Status: 1},
		&product.Product{ID: 2, SellerID: testSellerID, Name: "红富士苹果", Price: 60, Status: 1},
		&product.Product{ID: 3, SellerID: testSellerID, Name: "下架苹果", Price: 10, Status: 0},
	)
	notifier := NewNotifier()
	return &testEnv{
		repo:       repo,
		orders:     NewOrderService(repo, products),
		query:      NewQueryService(repo),
		notifier:   notifier,
		transition: NewTransitionService(repo, notifier),
	}
}

func testAddress() order.Address {
	return order.Address{
		Name:  "李女士",
		Line1: "幸福路 88 号",
		City:  "杭州",
	}
}

// placeOrder 下一笔标准测试订单：2x25 + 1x60 = 110
func (e *testEnv) placeOrder(t *testing.T) *order.Order {
	t.Helper()
	o, err := e.orders.PlaceOrder(context.Background(), &PlaceOrderRequest{
		BuyerID: testBuyerID,
		Items: []PlaceOrderItem{
			{ProductID: 1, Quantity: 2},
			{ProductID: 2, Quantity: 1},
		},
		ShippingAddress: testAddress(),
		BillingAddress:  testAddress(),
	})
	require.NoError(t, err)
	return o
}

// completePayment 模拟支付子系统上报支付完成
func (e *testEnv) completePayment(t *testing.T, orderNo string) {
	t.Helper()
	_, err := e.transition.ApplyPaymentReport(context.Background(), orderNo, order.PaymentCompleted)
	require.NoError(t, err)
}
