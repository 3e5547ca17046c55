package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/agrimaan/digital-sub001/internal/datamodels/order"
)

// Command 状态流转指令
type Command string

const (
	CommandConfirm Command = "confirm"
	CommandShip    Command = "ship"
	CommandDeliver Command = "deliver"
	CommandCancel  Command = "cancel"
)

// commandTargets 指令对应的目标状态
var commandTargets = map[Command]order.Status{
	CommandConfirm: order.StatusConfirmed,
	CommandShip:    order.StatusShipped,
	CommandDeliver: order.StatusDelivered,
	CommandCancel:  order.StatusCancelled,
}

// TransitionRequest 一次流转请求
type TransitionRequest struct {
	OrderID int64
	Command Command
	// Tracking 发货指令必填（承运方 + 单号）
	Tracking order.TrackingInfo
	// CashOnDelivery 确认指令的货到付款豁免：支付未完成也允许确认
	CashOnDelivery bool
	ActorID        int64
	Comment        string
}

// TransitionService 状态流转引擎。
// 校验 -> 变更 -> 追加审计 -> 原子落库，失败时订单完全不变；
// 落库成功后事件恰好派发一次。
type TransitionService struct {
	repo     order.Repository
	notifier *Notifier
}

// NewTransitionService 创建流转引擎
func NewTransitionService(repo order.Repository, notifier *Notifier) *TransitionService {
	return &TransitionService{repo: repo, notifier: notifier}
}

// Apply 执行一次状态流转
func (s *TransitionService) Apply(ctx context.Context, req *TransitionRequest) (*order.Order, error) {
	target, ok := commandTargets[req.Command]
	if !ok {
		return nil, fmt.Errorf("%w: unknown command %q", order.ErrValidation, req.Command)
	}

	o, err := s.repo.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	prev := o.Status
	expectedVersion := o.Version

	// 状态机边校验，终态订单在这里直接被拒绝
	if !prev.CanTransitionTo(target) {
		GetMonitor().RecordTransitionRejected()
		return nil, fmt.Errorf("%w: %s -> %s", order.ErrInvalidTransition, prev, target)
	}

	switch req.Command {
	case CommandConfirm:
		// 未支付订单只有携带货到付款豁免才能确认
		if o.PaymentStatus != order.PaymentCompleted && !req.CashOnDelivery {
			GetMonitor().RecordTransitionRejected()
			return nil, order.ErrPaymentNotSettled
		}
		if req.CashOnDelivery && o.PaymentStatus != order.PaymentCompleted {
			o.PaymentMethod = order.PaymentMethodCOD
		}
	case CommandShip:
		if req.Tracking.Empty() {
			GetMonitor().RecordTransitionRejected()
			return nil, order.ErrMissingTrackingInfo
		}
		o.Tracking = req.Tracking
	case CommandCancel:
		// 资金安全：已收款订单取消时必须同一次提交内转退款
		if o.PaymentStatus == order.PaymentCompleted {
			o.PaymentStatus = order.PaymentRefunded
		}
	}

	now := nowFunc()
	o.AppendHistory(target, req.ActorID, req.Comment, now)

	if err := s.repo.Save(ctx, o, expectedVersion); err != nil {
		GetMonitor().RecordTransitionRejected()
		return nil, err
	}

	GetMonitor().RecordTransitionApplied()
	zap.L().Info("order transition applied",
		zap.String("order_no", o.OrderNo),
		zap.String("from", string(prev)),
		zap.String("to", string(target)),
		zap.Int64("actor_id", req.ActorID))

	if s.notifier != nil {
		s.notifier.Dispatch(NewEvent(o, prev, req.ActorID))
	}
	return o, nil
}

// ApplyPaymentReport 应用支付子系统的上报结果（COMPLETED / FAILED）。
// REFUNDED 只能由取消流转产生，不接受外部上报。
func (s *TransitionService) ApplyPaymentReport(ctx context.Context, orderNo string, status order.PaymentStatus) (*order.Order, error) {
	if status != order.PaymentCompleted && status != order.PaymentFailed {
		return nil, fmt.Errorf("%w: payment status %q not reportable", order.ErrValidation, status)
	}

	o, err := s.repo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	expectedVersion := o.Version

	// 允许 PENDING -> COMPLETED/FAILED，以及 FAILED -> COMPLETED（重试支付）
	switch o.PaymentStatus {
	case order.PaymentPending:
	case order.PaymentFailed:
		if status != order.PaymentCompleted {
			return nil, fmt.Errorf("%w: payment %s -> %s", order.ErrInvalidTransition, o.PaymentStatus, status)
		}
	default:
		return nil, fmt.Errorf("%w: payment %s -> %s", order.ErrInvalidTransition, o.PaymentStatus, status)
	}

	o.PaymentStatus = status
	// 资金安全：取消后才到账的款项在同一次提交内直接转退款，
	// 订单不得停留在「已取消但已收款」
	if o.Status == order.StatusCancelled && status == order.PaymentCompleted {
		o.PaymentStatus = order.PaymentRefunded
	}
	if err := s.repo.Save(ctx, o, expectedVersion); err != nil {
		return nil, err
	}

	GetMonitor().RecordPaymentEvent()
	zap.L().Info("payment status applied",
		zap.String("order_no", o.OrderNo),
		zap.String("payment_status", string(status)))
	return o, nil
}
