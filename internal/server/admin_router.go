package server

import (
	"errors"
	"io"

	"github.com/kataras/iris/v12"

	"github.com/agrimaan/digital-sub001/internal/config"
	"github.com/agrimaan/digital-sub001/internal/datamodels/order"
	"github.com/agrimaan/digital-sub001/internal/datamodels/product"
	"github.com/agrimaan/digital-sub001/internal/datamodels/user"
	"github.com/agrimaan/digital-sub001/internal/infra/mq"
	"github.com/agrimaan/digital-sub001/internal/middleware"
	"github.com/agrimaan/digital-sub001/internal/repository/mysql"
	"github.com/agrimaan/digital-sub001/internal/service"
)

// RegisterAdminRoutes 注册后台管理端的 HTTP 路由
// 端口通常是 8081，与市场端服务分离。
func RegisterAdminRoutes(app *iris.Application, cfg *config.Config) {
	// 初始化基础设施
	db := mysql.Init(&cfg.MySQL)
	mqConn := mq.Init(&cfg.RabbitMQ)

	// 仓储与服务
	productRepo := mysql.NewProductRepository(db)
	orderRepo := mysql.NewOrderRepository(db)
	userRepo := mysql.NewUserRepository(db)

	productSvc := service.NewProductService(productRepo)
	querySvc := service.NewQueryService(orderRepo)

	notifier := service.NewNotifier()
	notifier.Subscribe(service.MQSubscriber(mqConn))
	transitionSvc := service.NewTransitionService(orderRepo, notifier)

	adminScope := service.Scope{ViewerRole: user.RoleAdmin}

	api := app.Party("/api")

	// ---------- 订单管理 ----------

	// 订单列表（全量视角，支持过滤与分页）
	api.Get("/orders", func(ctx iris.Context) {
		filters, err := filterParams(ctx)
		if err != nil {
			writeError(ctx, err)
			return
		}
		page, err := querySvc.ListOrders(ctx.Request().Context(), adminScope, filters, pageParams(ctx))
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": page})
	})

	// 订单详情
	api.Get("/orders/{id:uint64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		o, err := querySvc.GetOrder(ctx.Request().Context(), adminScope, int64(id))
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	// 流转接口：confirm / ship / deliver / cancel，统一限流
	transitions := api.Party("/", middleware.TransitionRateLimit())
	for _, cmd := range []service.Command{
		service.CommandConfirm,
		service.CommandShip,
		service.CommandDeliver,
		service.CommandCancel,
	} {
		cmd := cmd
		transitions.Post("/orders/{id:uint64}/"+string(cmd), func(ctx iris.Context) {
			id, _ := ctx.Params().GetUint64("id")
			var body transitionBody
			if err := ctx.ReadJSON(&body); err != nil && !errors.Is(err, io.EOF) {
				ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
				return
			}
			// 后台未接登录，审计归属到配置的运营操作者
			actorID := ctx.Values().GetInt64Default("user_id", cfg.Admin.OperatorID)
			o, err := transitionSvc.Apply(ctx.Request().Context(), &service.TransitionRequest{
				OrderID:        int64(id),
				Command:        cmd,
				Tracking:       body.tracking(),
				CashOnDelivery: body.CashOnDelivery,
				ActorID:        actorID,
				Comment:        body.Comment,
			})
			if err != nil {
				writeError(ctx, err)
				return
			}
			ctx.JSON(iris.Map{"code": 0, "data": o})
		})
	}

	// 手工录入支付结果（调试用，正式路径是 payment-worker 消费 MQ）
	api.Post("/payments/{orderNo:string}", func(ctx iris.Context) {
		orderNo := ctx.Params().GetString("orderNo")
		var req struct {
			Status string `json:"status"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		o, err := transitionSvc.ApplyPaymentReport(ctx.Request().Context(), orderNo, order.PaymentStatus(req.Status))
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	// ---------- 挂牌管理 ----------

	api.Get("/crops", func(ctx iris.Context) {
		list, err := productSvc.ListAll(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	api.Post("/crops", func(ctx iris.Context) {
		var req cropRequest
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		p := &product.Product{}
		if err := req.applyTo(p); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := productSvc.Create(ctx.Request().Context(), p); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	api.Put("/crops/{id:uint64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		p, err := productSvc.GetByID(ctx.Request().Context(), int64(id))
		if err != nil {
			ctx.StopWithJSON(404, iris.Map{"code": 404, "msg": "crop not found"})
			return
		}
		var req cropRequest
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := req.applyTo(p); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := productSvc.Update(ctx.Request().Context(), p); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	api.Delete("/crops/{id:uint64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		if err := productSvc.Delete(ctx.Request().Context(), int64(id)); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "deleted"})
	})

	// ---------- 用户 ----------

	api.Get("/users", func(ctx iris.Context) {
		list, err := userRepo.ListAll(ctx.Request().Context())
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// ---------- 监控 ----------

	api.Get("/stats", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "data": service.GetMonitor().GetStats()})
	})
}

// ---- 辅助结构与函数 ----

type cropRequest struct {
	SellerID    int64  `json:"seller_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Price       int64  `json:"price"`
	Unit        string `json:"unit"`
	Status      int    `json:"status"`
}

func (r *cropRequest) applyTo(p *product.Product) error {
	if r.Name == "" {
		return order.ErrValidation
	}
	if r.Price < 0 {
		return order.ErrValidation
	}
	if r.SellerID != 0 {
		p.SellerID = r.SellerID
	}
	p.Name = r.Name
	p.Description = r.Description
	if r.Category != "" {
		p.Category = r.Category
	}
	p.Price = r.Price
	if r.Unit != "" {
		p.Unit = r.Unit
	}
	p.Status = r.Status
	return nil
}
