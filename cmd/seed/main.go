package main

import (
	"context"
	"log"

	"github.com/agrimaan/digital-sub001/internal/config"
	"github.com/agrimaan/digital-sub001/internal/datamodels/order"
	"github.com/agrimaan/digital-sub001/internal/datamodels/product"
	"github.com/agrimaan/digital-sub001/internal/datamodels/user"
	"github.com/agrimaan/digital-sub001/internal/repository/mysql"
	"github.com/agrimaan/digital-sub001/internal/service"
)

// 开发环境初始化数据：演示账号、挂牌和一笔示例订单
func main() {
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db := mysql.Init(&cfg.MySQL)
	ctx := context.Background()

	userRepo := mysql.NewUserRepository(db)
	productRepo := mysql.NewProductRepository(db)
	orderRepo := mysql.NewOrderRepository(db)

	userSvc := service.NewUserService(userRepo, &cfg.JWT)
	orderSvc := service.NewOrderService(orderRepo, productRepo)

	farmer, err := userSvc.Register(ctx, "farmer_zhang", "password123", user.RoleFarmer)
	if err != nil {
		log.Fatalf("seed farmer: %v", err)
	}
	buyer, err := userSvc.Register(ctx, "buyer_li", "password123", user.RoleBuyer)
	if err != nil {
		log.Fatalf("seed buyer: %v", err)
	}
	if _, err := userSvc.Register(ctx, "logistics_wang", "password123", user.RoleLogistics); err != nil {
		log.Fatalf("seed logistics: %v", err)
	}

	crops := []*product.Product{
		{SellerID: farmer.ID, Name: "有机大米", Category: "grains", Price: 2500, Unit: "kg", Status: 1},
		{SellerID: farmer.ID, Name: "新鲜番茄", Category: "vegetables", Price: 600, Unit: "kg", Status: 1},
		{SellerID: farmer.ID, Name: "红富士苹果", Category: "fruits", Price: 6000, Unit: "box", Status: 1},
	}
	for _, c := range crops {
		if err := productRepo.Create(ctx, c); err != nil {
			log.Fatalf("seed crop %q: %v", c.Name, err)
		}
	}

	demoAddr := order.Address{
		Name:     "李女士",
		Phone:    "13800000000",
		Line1:    "幸福路 88 号",
		City:     "杭州",
		Province: "浙江",
		PostCode: "310000",
	}

	o, err := orderSvc.PlaceOrder(ctx, &service.PlaceOrderRequest{
		BuyerID: buyer.ID,
		Items: []service.PlaceOrderItem{
			{ProductID: crops[0].ID, Quantity: 2},
			{ProductID: crops[1].ID, Quantity: 5},
		},
		ShippingAddress: demoAddr,
		BillingAddress:  demoAddr,
	})
	if err != nil {
		log.Fatalf("seed order: %v", err)
	}

	log.Printf("seed done: farmer=%d buyer=%d order=%s total=%d",
		farmer.ID, buyer.ID, o.OrderNo, o.TotalAmount)
}
