package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimaan/digital-sub001/internal/datamodels/order"
	"github.com/agrimaan/digital-sub001/internal/datamodels/product"
	"github.com/agrimaan/digital-sub001/internal/repository/memory"
)

func TestPlaceOrder(t *testing.T) {
	env := newTestEnv(t)

	o := env.placeOrder(t)
	assert.NotEmpty(t, o.OrderNo)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Equal(t, order.PaymentPending, o.PaymentStatus)
	assert.Equal(t, testSellerID, o.SellerID)
	assert.Equal(t, int64(110), o.TotalAmount)

	require.Len(t, o.Items, 2)
	assert.Equal(t, "有机大米", o.Items[0].ProductName)
	assert.Equal(t, int64(50), o.Items[0].LineTotal)

	// 审计第一条是创建事件，操作者是买家
	require.Len(t, o.StatusHistory, 1)
	assert.Equal(t, order.StatusPending, o.StatusHistory[0].Status)
	assert.Equal(t, testBuyerID, o.StatusHistory[0].ActorID)

	// 两笔订单号互不相同
	other := env.placeOrder(t)
	assert.NotEqual(t, o.OrderNo, other.OrderNo)
}

func TestPlaceOrderValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  *PlaceOrderRequest
	}{
		{"no items", &PlaceOrderRequest{
			BuyerID:         testBuyerID,
			ShippingAddress: testAddress(),
			BillingAddress:  testAddress(),
		}},
		{"missing address", &PlaceOrderRequest{
			BuyerID: testBuyerID,
			Items:   []PlaceOrderItem{{ProductID: 1, Quantity: 1}},
		}},
		{"zero quantity", &PlaceOrderRequest{
			BuyerID:         testBuyerID,
			Items:           []PlaceOrderItem{{ProductID: 1, Quantity: 0}},
			ShippingAddress: testAddress(),
			BillingAddress:  testAddress(),
		}},
		{"unknown product", &PlaceOrderRequest{
			BuyerID:         testBuyerID,
			Items:           []PlaceOrderItem{{ProductID: 77, Quantity: 1}},
			ShippingAddress: testAddress(),
			BillingAddress:  testAddress(),
		}},
		{"offline product", &PlaceOrderRequest{
			BuyerID:         testBuyerID,
			Items:           []PlaceOrderItem{{ProductID: 3, Quantity: 1}},
			ShippingAddress: testAddress(),
			BillingAddress:  testAddress(),
		}},
		{"buyer is seller", &PlaceOrderRequest{
			BuyerID:         testSellerID,
			Items:           []PlaceOrderItem{{ProductID: 1, Quantity: 1}},
			ShippingAddress: testAddress(),
			BillingAddress:  testAddress(),
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := env.orders.PlaceOrder(ctx, c.req)
			require.ErrorIs(t, err, order.ErrValidation)
		})
	}
}

// 一笔订单只能包含同一个卖家的商品
func TestPlaceOrderMixedSellers(t *testing.T) {
	repo := memory.NewOrderRepository(nil)
	products := newStubProducts(
		&product.Product{ID: 1, SellerID: testSellerID, Name: "有机大米", Price: 25, Status: 1},
		&product.Product{ID: 9, SellerID: 30, Name: "野生蜂蜜", Price: 80, Status: 1},
	)
	svc := NewOrderService(repo, products)

	_, err := svc.PlaceOrder(context.Background(), &PlaceOrderRequest{
		BuyerID:         testBuyerID,
		Items:           []PlaceOrderItem{{ProductID: 1, Quantity: 1}, {ProductID: 9, Quantity: 1}},
		ShippingAddress: testAddress(),
		BillingAddress:  testAddress(),
	})
	require.ErrorIs(t, err, order.ErrValidation)
}

func TestUpdateItems(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.placeOrder(t)

	updated, err := env.orders.UpdateItems(ctx, o.ID, testBuyerID, []PlaceOrderItem{
		{ProductID: 2, Quantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	assert.Equal(t, "红富士苹果", updated.Items[0].ProductName)
	assert.Equal(t, int64(180), updated.TotalAmount)

	got, err := env.repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(180), got.TotalAmount)
	require.Len(t, got.Items, 1)
}

// PENDING 之后行项目冻结
func TestUpdateItemsFrozenAfterConfirm(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.placeOrder(t)
	env.completePayment(t, o.OrderNo)

	_, err := env.transition.Apply(ctx, &TransitionRequest{
		OrderID: o.ID, Command: CommandConfirm, ActorID: testAdminID,
	})
	require.NoError(t, err)

	_, err = env.orders.UpdateItems(ctx, o.ID, testBuyerID, []PlaceOrderItem{
		{ProductID: 2, Quantity: 1},
	})
	require.ErrorIs(t, err, order.ErrInvalidTransition)

	// 失败的修改不留痕迹
	got, err := env.repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(110), got.TotalAmount)
	assert.Len(t, got.Items, 2)
}

func TestUpdateItemsValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.placeOrder(t)

	_, err := env.orders.UpdateItems(ctx, o.ID, testBuyerID, nil)
	require.ErrorIs(t, err, order.ErrValidation)

	_, err = env.orders.UpdateItems(ctx, 12345, testBuyerID, []PlaceOrderItem{{ProductID: 1, Quantity: 1}})
	require.ErrorIs(t, err, order.ErrOrderNotFound)

	// 非买家（如卖家）不能改行项目
	_, err = env.orders.UpdateItems(ctx, o.ID, testSellerID, []PlaceOrderItem{{ProductID: 1, Quantity: 1}})
	require.ErrorIs(t, err, order.ErrValidation)

	got, err := env.repo.GetByID(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(110), got.TotalAmount)
}
