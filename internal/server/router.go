package server

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/kataras/iris/v12"

	"github.com/agrimaan/digital-sub001/internal/auth"
	"github.com/agrimaan/digital-sub001/internal/config"
	"github.com/agrimaan/digital-sub001/internal/datamodels/product"
	"github.com/agrimaan/digital-sub001/internal/datamodels/user"
	"github.com/agrimaan/digital-sub001/internal/infra/mq"
	"github.com/agrimaan/digital-sub001/internal/infra/redis"
	"github.com/agrimaan/digital-sub001/internal/middleware"
	"github.com/agrimaan/digital-sub001/internal/repository/mysql"
	"github.com/agrimaan/digital-sub001/internal/service"
)

// RegisterRoutes 注册市场端（买家/农户）HTTP 路由
func RegisterRoutes(app *iris.Application, cfg *config.Config) {
	// 初始化基础设施
	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	mqConn := mq.Init(&cfg.RabbitMQ)

	// 仓储与服务
	userRepo := mysql.NewUserRepository(db)
	productRepo := mysql.NewProductRepository(db)
	orderRepo := mysql.NewOrderRepository(db)

	userSvc := service.NewUserService(userRepo, &cfg.JWT)
	productSvc := service.NewProductService(productRepo)
	orderSvc := service.NewOrderService(orderRepo, productRepo)
	querySvc := service.NewQueryService(orderRepo)

	notifier := service.NewNotifier()
	notifier.Subscribe(service.MQSubscriber(mqConn))
	transitionSvc := service.NewTransitionService(orderRepo, notifier)

	ring := auth.NewNodeRing(cfg.Auth.Nodes, cfg.Auth.HashReplicas)
	tokenCache := auth.NewTokenCache(redisClient, ring, time.Duration(cfg.Auth.TokenCacheTTLSeconds)*time.Second)

	api := app.Party("/api")

	// 健康检查
	api.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{
			"code": 0,
			"msg":  "ok",
		})
	})

	// 用户注册/登录
	api.Post("/register", func(ctx iris.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		u, err := userSvc.Register(ctx.Request().Context(), req.Username, req.Password, user.Role(req.Role))
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": u})
	})

	api.Post("/login", func(ctx iris.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		token, err := userSvc.Login(ctx.Request().Context(), req.Username, req.Password)
		if err != nil {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{"token": token}})
	})

	// 需要登录的接口，先查缓存的 claims，未命中再解析并回填
	authAPI := api.Party("/", func(ctx iris.Context) {
		token := ctx.GetHeader("Authorization")
		if token == "" {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "missing token"})
			return
		}
		claims, hit, err := tokenCache.Get(ctx.Request().Context(), token)
		if err != nil || !hit {
			claims, err = auth.ParseToken(&cfg.JWT, token)
			if err != nil {
				ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "invalid token"})
				return
			}
			_ = tokenCache.Set(ctx.Request().Context(), token, claims)
		}
		ctx.Values().Set("user_id", claims.UserID)
		ctx.Values().Set("username", claims.Username)
		ctx.Values().Set("role", string(claims.Role))
		ctx.Next()
	})

	viewerScope := func(ctx iris.Context) service.Scope {
		return service.Scope{
			ViewerID:   ctx.Values().GetInt64Default("user_id", 0),
			ViewerRole: user.Role(ctx.Values().GetStringDefault("role", "")),
		}
	}

	// ---------------- 挂牌 ----------------

	// 在售挂牌列表（支持分类与关键字）
	authAPI.Get("/crops", func(ctx iris.Context) {
		category := ctx.URLParam("category")
		keyword := ctx.URLParam("q")
		var list []*product.Product
		var err error
		if category != "" {
			list, err = productSvc.ListByCategory(ctx.Request().Context(), category)
		} else {
			list, err = productSvc.ListOnline(ctx.Request().Context())
		}
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}

		// 带关键字时在内存中按名称做简单过滤
		if keyword != "" {
			kw := strings.ToLower(keyword)
			filtered := make([]*product.Product, 0, len(list))
			for _, p := range list {
				if strings.Contains(strings.ToLower(p.Name), kw) {
					filtered = append(filtered, p)
				}
			}
			list = filtered
		}

		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// 农户自己的挂牌
	authAPI.Get("/crops/mine", func(ctx iris.Context) {
		sellerID := ctx.Values().GetInt64Default("user_id", 0)
		list, err := productSvc.ListBySeller(ctx.Request().Context(), sellerID)
		if err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	// 农户新建挂牌
	authAPI.Post("/crops", func(ctx iris.Context) {
		if user.Role(ctx.Values().GetStringDefault("role", "")) != user.RoleFarmer {
			ctx.StopWithJSON(403, iris.Map{"code": 403, "msg": "仅农户可以挂牌"})
			return
		}
		var req struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Category    string `json:"category"`
			Price       int64  `json:"price"`
			Unit        string `json:"unit"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if req.Name == "" || req.Price < 0 {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": "名称必填且价格不能为负"})
			return
		}
		p := &product.Product{
			SellerID:    ctx.Values().GetInt64Default("user_id", 0),
			Name:        req.Name,
			Description: req.Description,
			Category:    req.Category,
			Price:       req.Price,
			Unit:        req.Unit,
			Status:      1,
		}
		if err := productSvc.Create(ctx.Request().Context(), p); err != nil {
			ctx.StopWithJSON(500, iris.Map{"code": 500, "msg": err.Error()})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": p})
	})

	// ---------------- 订单 ----------------

	// 买家下单
	authAPI.Post("/orders", func(ctx iris.Context) {
		var req service.PlaceOrderRequest
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		req.BuyerID = ctx.Values().GetInt64Default("user_id", 0)
		o, err := orderSvc.PlaceOrder(ctx.Request().Context(), &req)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	// 自己参与的订单列表（买家视角、农户销售视角通用）
	authAPI.Get("/orders", func(ctx iris.Context) {
		filters, err := filterParams(ctx)
		if err != nil {
			writeError(ctx, err)
			return
		}
		page, err := querySvc.ListOrders(ctx.Request().Context(), viewerScope(ctx), filters, pageParams(ctx))
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": page})
	})

	// 订单详情（含审计时间线）
	authAPI.Get("/orders/{id:uint64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		o, err := querySvc.GetOrder(ctx.Request().Context(), viewerScope(ctx), int64(id))
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": o})
	})

	// 修改行项目（仅 PENDING，且只能是买家本人）
	authAPI.Put("/orders/{id:uint64}/items", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		scope := viewerScope(ctx)
		o, err := querySvc.GetOrder(ctx.Request().Context(), scope, int64(id))
		if err != nil {
			writeError(ctx, err)
			return
		}
		if o.BuyerID != scope.ViewerID {
			ctx.StopWithJSON(403, iris.Map{"code": 403, "msg": "只有买家可以修改行项目"})
			return
		}
		var req struct {
			Items []service.PlaceOrderItem `json:"items"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		updated, err := orderSvc.UpdateItems(ctx.Request().Context(), int64(id), scope.ViewerID, req.Items)
		if err != nil {
			writeError(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": updated})
	})

	// 流转接口统一限流
	transitions := authAPI.Party("/", middleware.TransitionRateLimit())

	// 取消订单（买卖双方均可，终态由引擎拒绝）
	transitions.Post("/orders/{id:uint64}/cancel", func(ctx iris.Context) {
		applyViewerTransition(ctx, querySvc, transitionSvc, service.CommandCancel, nil)
	})

	// 农户发货
	transitions.Post("/orders/{id:uint64}/ship", func(ctx iris.Context) {
		applyViewerTransition(ctx, querySvc, transitionSvc, service.CommandShip, func(ctx iris.Context, scope service.Scope, sellerID int64) bool {
			return scope.ViewerID == sellerID
		})
	})

	// 签收/送达确认（农户或物流方）
	transitions.Post("/orders/{id:uint64}/deliver", func(ctx iris.Context) {
		applyViewerTransition(ctx, querySvc, transitionSvc, service.CommandDeliver, func(ctx iris.Context, scope service.Scope, sellerID int64) bool {
			return scope.ViewerID == sellerID || scope.ViewerRole == user.RoleLogistics
		})
	})
}

// applyViewerTransition 市场端流转的公共骨架：
// 先按视角加载订单（顺带完成越权校验），再按需做角色检查，最后交给引擎。
func applyViewerTransition(
	ctx iris.Context,
	querySvc *service.QueryService,
	transitionSvc *service.TransitionService,
	cmd service.Command,
	allowed func(ctx iris.Context, scope service.Scope, sellerID int64) bool,
) {
	id, _ := ctx.Params().GetUint64("id")
	scope := service.Scope{
		ViewerID:   ctx.Values().GetInt64Default("user_id", 0),
		ViewerRole: user.Role(ctx.Values().GetStringDefault("role", "")),
	}
	o, err := querySvc.GetOrder(ctx.Request().Context(), scope, int64(id))
	if err != nil {
		writeError(ctx, err)
		return
	}
	if allowed != nil && !allowed(ctx, scope, o.SellerID) {
		ctx.StopWithJSON(403, iris.Map{"code": 403, "msg": "无权执行该操作"})
		return
	}

	// 请求体可为空（如取消、送达）
	var body transitionBody
	if err := ctx.ReadJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
		return
	}

	updated, err := transitionSvc.Apply(ctx.Request().Context(), &service.TransitionRequest{
		OrderID:        int64(id),
		Command:        cmd,
		Tracking:       body.tracking(),
		CashOnDelivery: body.CashOnDelivery,
		ActorID:        scope.ViewerID,
		Comment:        body.Comment,
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(iris.Map{"code": 0, "data": updated})
}
