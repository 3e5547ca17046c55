package order

import (
	"context"
	"time"
)

// Status 订单状态（主状态机）
type Status string

const (
	StatusPending   Status = "PENDING"   // 待确认
	StatusConfirmed Status = "CONFIRMED" // 已确认
	StatusShipped   Status = "SHIPPED"   // 已发货
	StatusDelivered Status = "DELIVERED" // 已送达（终态）
	StatusCancelled Status = "CANCELLED" // 已取消（终态）
)

// PaymentStatus 支付状态，独立于订单状态的另一条轴
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// PaymentMethodCOD 货到付款，确认订单时可作为支付完成的替代条件
const PaymentMethodCOD = "cod"

// statusTransitions 状态机合法边，除此之外一律拒绝。
// DELIVERED 和 CANCELLED 是终态，没有出边。
var statusTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered, StatusCancelled},
}

// Valid 是否为已知状态
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal 是否为终态
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo 判断 s -> target 是否在状态机的合法边上
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range statusTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Valid 是否为已知支付状态
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// Address 收货/账单地址，订单确认后不可再修改
type Address struct {
	Name     string `gorm:"size:64" json:"name"`
	Phone    string `gorm:"size:32" json:"phone"`
	Line1    string `gorm:"size:255" json:"line1"`
	City     string `gorm:"size:64" json:"city"`
	Province string `gorm:"size:64" json:"province"`
	PostCode string `gorm:"size:16" json:"post_code"`
}

// Empty 地址是否未填写（按必填字段判断）
func (a Address) Empty() bool {
	return a.Name == "" || a.Line1 == "" || a.City == ""
}

// TrackingInfo 物流信息，只有发货及之后才允许写入
type TrackingInfo struct {
	Provider       string `gorm:"size:64" json:"provider"`
	TrackingNumber string `gorm:"size:128" json:"tracking_number"`
	TrackingURL    string `gorm:"size:255" json:"tracking_url"`
}

// Empty 必填字段（承运方 + 单号）任一缺失即视为无效
func (t TrackingInfo) Empty() bool {
	return t.Provider == "" || t.TrackingNumber == ""
}

// OrderItem 订单行项目，单价单位为分
type OrderItem struct {
	ID          int64  `gorm:"primaryKey" json:"id"`
	OrderID     int64  `gorm:"index;not null" json:"order_id"`
	ProductID   int64  `gorm:"index;not null" json:"product_id"`
	ProductName string `gorm:"size:128;not null" json:"product_name"`
	Quantity    int64  `gorm:"not null" json:"quantity"`
	UnitPrice   int64  `gorm:"not null" json:"unit_price"`
	LineTotal   int64  `gorm:"not null" json:"line_total"` // Quantity * UnitPrice，派生值
}

// StatusChange 状态变更审计记录，只追加不修改。
// 第一条永远是创建订单时写入的 PENDING。
type StatusChange struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	OrderID   int64     `gorm:"index;not null" json:"order_id"`
	Status    Status    `gorm:"size:16;not null" json:"status"`
	Comment   string    `gorm:"size:255" json:"comment"`
	ActorID   int64     `gorm:"not null" json:"actor_id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// Order 订单聚合根
type Order struct {
	ID            int64         `gorm:"primaryKey" json:"id"`
	OrderNo       string        `gorm:"uniqueIndex;size:64;not null" json:"order_no"`
	BuyerID       int64         `gorm:"index;not null" json:"buyer_id"`
	SellerID      int64         `gorm:"index;not null" json:"seller_id"`
	Items         []OrderItem   `gorm:"foreignKey:OrderID" json:"items"`
	TotalAmount   int64         `gorm:"not null" json:"total_amount"` // 分，恒等于各行 LineTotal 之和
	Status        Status        `gorm:"size:16;index;not null" json:"status"`
	PaymentStatus PaymentStatus `gorm:"size:16;index;not null" json:"payment_status"`
	PaymentMethod string        `gorm:"size:32" json:"payment_method"`

	ShippingAddress Address      `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`
	BillingAddress  Address      `gorm:"embedded;embeddedPrefix:bill_" json:"billing_address"`
	Tracking        TrackingInfo `gorm:"embedded;embeddedPrefix:track_" json:"tracking"`

	StatusHistory []StatusChange `gorm:"foreignKey:OrderID" json:"status_history"`

	// Version 乐观锁版本号，Save 时校验，不匹配返回 ErrConcurrentModification
	Version   int64     `gorm:"not null;default:0" json:"version"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecomputeTotal 重算各行小计与订单总额，行项目变更后必须调用
func (o *Order) RecomputeTotal() {
	var total int64
	for i := range o.Items {
		o.Items[i].LineTotal = o.Items[i].Quantity * o.Items[i].UnitPrice
		total += o.Items[i].LineTotal
	}
	o.TotalAmount = total
}

// AppendHistory 追加一条审计记录，并保持订单当前状态与末条记录一致
func (o *Order) AppendHistory(status Status, actorID int64, comment string, at time.Time) {
	o.Status = status
	o.StatusHistory = append(o.StatusHistory, StatusChange{
		OrderID:   o.ID,
		Status:    status,
		Comment:   comment,
		ActorID:   actorID,
		CreatedAt: at,
	})
}

// Involves 用户是否为该订单的买方或卖方（查询可见性用）
func (o *Order) Involves(userID int64) bool {
	return o.BuyerID == userID || o.SellerID == userID
}

// ListQuery 订单列表查询条件。过滤条件之间为 AND 关系；
// ViewerID 为 0 表示不限制归属（管理员视角）。
type ListQuery struct {
	ViewerID int64     // 限定买方或卖方为该用户
	Status   Status    // 为空表示不过滤
	Search   string    // 订单号 / 对手方用户名 / 商品名，大小写不敏感子串匹配
	From     time.Time // 创建时间下界（含）
	To       time.Time // 创建时间上界（不含）
	Offset   int
	Limit    int
}

// Repository 订单仓储接口。
// Save 为聚合级原子提交：订单行、行项目、新增审计记录一次性落库，
// expectedVersion 不匹配时返回 ErrConcurrentModification 且不产生任何写入。
// List 按 CreatedAt 倒序、ID 倒序兜底排序，保证分页结果稳定。
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id int64) (*Order, error)
	GetByOrderNo(ctx context.Context, orderNo string) (*Order, error)
	Save(ctx context.Context, o *Order, expectedVersion int64) error
	List(ctx context.Context, q *ListQuery) ([]*Order, int64, error)
}
