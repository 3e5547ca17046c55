package service

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/agrimaan/digital-sub001/internal/datamodels/order"
	"github.com/agrimaan/digital-sub001/internal/infra/mq"
)

// TransitionEvent 状态流转事件，流转提交成功后恰好派发一次
type TransitionEvent struct {
	EventID        string       `json:"event_id"`
	OrderID        int64        `json:"order_id"`
	OrderNo        string       `json:"order_no"`
	PreviousStatus order.Status `json:"previous_status"`
	NewStatus      order.Status `json:"new_status"`
	ActorID        int64        `json:"actor_id"`
	Timestamp      time.Time    `json:"timestamp"`
}

// Subscriber 事件订阅回调
type Subscriber func(evt TransitionEvent)

// Notifier 流转事件分发器。订阅者在提交之后被调用，
// 回调里的 panic 会被吞掉并计入监控，绝不影响已提交的流转。
type Notifier struct {
	mu   sync.RWMutex
	subs []Subscriber
}

// NewNotifier 创建分发器
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Subscribe 注册订阅者
func (n *Notifier) Subscribe(fn Subscriber) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = append(n.subs, fn)
}

// Dispatch 同步派发事件给所有订阅者
func (n *Notifier) Dispatch(evt TransitionEvent) {
	n.mu.RLock()
	subs := make([]Subscriber, len(n.subs))
	copy(subs, n.subs)
	n.mu.RUnlock()

	for _, fn := range subs {
		n.dispatchOne(fn, evt)
	}
}

func (n *Notifier) dispatchOne(fn Subscriber, evt TransitionEvent) {
	defer func() {
		if r := recover(); r != nil {
			GetMonitor().RecordNotifyFailure()
			zap.L().Error("transition subscriber panicked",
				zap.String("order_no", evt.OrderNo),
				zap.Any("panic", r))
		}
	}()
	fn(evt)
}

// NewEvent 构建事件并分配事件 ID
func NewEvent(o *order.Order, prev order.Status, actorID int64) TransitionEvent {
	return TransitionEvent{
		EventID:        uuid.New().String(),
		OrderID:        o.ID,
		OrderNo:        o.OrderNo,
		PreviousStatus: prev,
		NewStatus:      o.Status,
		ActorID:        actorID,
		Timestamp:      time.Now(),
	}
}

// MQSubscriber 把流转事件发布到 order_events 队列，供外部协作方消费。
// 发布失败只记录日志和监控，不回滚流转。
func MQSubscriber(conn *amqp.Connection) Subscriber {
	return func(evt TransitionEvent) {
		ch, err := conn.Channel()
		if err != nil {
			GetMonitor().RecordMQError()
			zap.L().Error("open mq channel failed", zap.Error(err))
			return
		}
		defer ch.Close()

		if _, err = ch.QueueDeclare(mq.OrderEventsQueue, true, false, false, false, nil); err != nil {
			GetMonitor().RecordMQError()
			zap.L().Error("declare order_events failed", zap.Error(err))
			return
		}

		body, err := json.Marshal(&evt)
		if err != nil {
			zap.L().Error("marshal transition event failed", zap.Error(err))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err = ch.PublishWithContext(
			ctx,
			"",
			mq.OrderEventsQueue,
			false,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Body:        body,
			},
		)
		if err != nil {
			GetMonitor().RecordMQError()
			zap.L().Error("publish transition event failed",
				zap.String("order_no", evt.OrderNo),
				zap.Error(err))
		}
	}
}
