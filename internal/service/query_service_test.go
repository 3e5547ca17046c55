package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrimaan/digital-sub001/internal/datamodels/order"
	"github.com/agrimaan/digital-sub001/internal/datamodels/user"
)

// seedOrder 直接向仓储写入一笔指定状态的订单，绕过下单校验
func seedOrder(t *testing.T, repo order.Repository, buyerID, sellerID int64, no string, status order.Status, createdAt time.Time) *order.Order {
	t.Helper()
	o := &order.Order{
		OrderNo:       no,
		BuyerID:       buyerID,
		SellerID:      sellerID,
		Status:        status,
		PaymentStatus: order.PaymentPending,
		Items: []order.OrderItem{
			{ProductID: 1, ProductName: "有机大米", Quantity: 1, UnitPrice: 2500},
		},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	o.RecomputeTotal()
	o.StatusHistory = []order.StatusChange{{Status: status, ActorID: buyerID, CreatedAt: createdAt}}
	require.NoError(t, repo.Create(context.Background(), o))
	return o
}

func TestListOrdersScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedOrder(t, env.repo, testBuyerID, testSellerID, "ORD-1", order.StatusPending, base)
	seedOrder(t, env.repo, 30, testSellerID, "ORD-2", order.StatusPending, base.Add(time.Hour))
	seedOrder(t, env.repo, testBuyerID, testSellerID, "ORD-3", order.StatusConfirmed, base.Add(2*time.Hour))

	// 买家只看到自己参与的两单，CreatedAt 倒序
	page, err := env.query.ListOrders(ctx,
		Scope{ViewerID: testBuyerID, ViewerRole: user.RoleBuyer}, Filters{}, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "ORD-3", page.Items[0].OrderNo)
	assert.Equal(t, "ORD-1", page.Items[1].OrderNo)

	// 卖家看到名下全部三单
	page, err = env.query.ListOrders(ctx,
		Scope{ViewerID: testSellerID, ViewerRole: user.RoleFarmer}, Filters{}, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)

	// 管理员不限范围
	page, err = env.query.ListOrders(ctx,
		Scope{ViewerID: testAdminID, ViewerRole: user.RoleAdmin}, Filters{}, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)

	// 无关用户什么都看不到
	page, err = env.query.ListOrders(ctx,
		Scope{ViewerID: 99, ViewerRole: user.RoleBuyer}, Filters{}, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), page.Total)
	assert.Empty(t, page.Items)

	// 非管理员必须带 ViewerID
	_, err = env.query.ListOrders(ctx,
		Scope{ViewerRole: user.RoleBuyer}, Filters{}, PageRequest{})
	require.ErrorIs(t, err, order.ErrValidation)
}

func TestListOrdersFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := Scope{ViewerID: testAdminID, ViewerRole: user.RoleAdmin}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seedOrder(t, env.repo, testBuyerID, testSellerID, "ORD-1", order.StatusPending, base)
	seedOrder(t, env.repo, testBuyerID, testSellerID, "ORD-2", order.StatusConfirmed, base.Add(time.Hour))

	page, err := env.query.ListOrders(ctx, admin, Filters{Status: order.StatusConfirmed}, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, "ORD-2", page.Items[0].OrderNo)

	// 时间窗口 [From, To)
	page, err = env.query.ListOrders(ctx, admin, Filters{
		From: base.Add(30 * time.Minute),
		To:   base.Add(90 * time.Minute),
	}, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, "ORD-2", page.Items[0].OrderNo)

	// 未知状态与倒置的时间窗口都算输入错误
	_, err = env.query.ListOrders(ctx, admin, Filters{Status: order.Status("FROZEN")}, PageRequest{})
	require.ErrorIs(t, err, order.ErrValidation)

	_, err = env.query.ListOrders(ctx, admin, Filters{
		From: base.Add(time.Hour),
		To:   base,
	}, PageRequest{})
	require.ErrorIs(t, err, order.ErrValidation)
}

func TestListOrdersPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := Scope{ViewerID: testAdminID, ViewerRole: user.RoleAdmin}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedOrder(t, env.repo, testBuyerID, testSellerID,
			"ORD-"+string(rune('a'+i)), order.StatusPending, base.Add(time.Duration(i)*time.Minute))
	}

	// 零值用默认分页
	page, err := env.query.ListOrders(ctx, admin, Filters{}, PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, DefaultPageSize, page.PageSize)
	assert.Equal(t, 1, page.PageCount)
	assert.Len(t, page.Items, 5)

	// 第二页
	page, err = env.query.ListOrders(ctx, admin, Filters{}, PageRequest{Number: 2, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 3, page.PageCount)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "ORD-c", page.Items[0].OrderNo)

	// 超出范围：空列表，total 不变
	page, err = env.query.ListOrders(ctx, admin, Filters{}, PageRequest{Number: 9, Size: 2})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, int64(5), page.Total)

	// 超大页长收敛到上限
	page, err = env.query.ListOrders(ctx, admin, Filters{}, PageRequest{Size: 500})
	require.NoError(t, err)
	assert.Equal(t, MaxPageSize, page.PageSize)

	// 负数拒绝
	_, err = env.query.ListOrders(ctx, admin, Filters{}, PageRequest{Number: -1})
	require.ErrorIs(t, err, order.ErrValidation)
	_, err = env.query.ListOrders(ctx, admin, Filters{}, PageRequest{Size: -5})
	require.ErrorIs(t, err, order.ErrValidation)
}

// 越权访问与不存在表现一致，不泄露订单存在性
func TestGetOrderScope(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	o := env.placeOrder(t)

	got, err := env.query.GetOrder(ctx, Scope{ViewerID: testBuyerID, ViewerRole: user.RoleBuyer}, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.OrderNo, got.OrderNo)
	require.NotEmpty(t, got.StatusHistory)

	_, err = env.query.GetOrder(ctx, Scope{ViewerID: testSellerID, ViewerRole: user.RoleFarmer}, o.ID)
	require.NoError(t, err)

	_, err = env.query.GetOrder(ctx, Scope{ViewerID: testAdminID, ViewerRole: user.RoleAdmin}, o.ID)
	require.NoError(t, err)

	// 物流角色无需是订单参与方
	_, err = env.query.GetOrder(ctx, Scope{ViewerID: 88, ViewerRole: user.RoleLogistics}, o.ID)
	require.NoError(t, err)

	_, err = env.query.GetOrder(ctx, Scope{ViewerID: 99, ViewerRole: user.RoleBuyer}, o.ID)
	require.ErrorIs(t, err, order.ErrOrderNotFound)

	_, err = env.query.GetOrder(ctx, Scope{ViewerID: testAdminID, ViewerRole: user.RoleAdmin}, 12345)
	require.ErrorIs(t, err, order.ErrOrderNotFound)
}
