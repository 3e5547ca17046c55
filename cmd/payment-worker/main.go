package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	radix "github.com/mediocregopher/radix/v3"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/agrimaan/digital-sub001/internal/config"
	"github.com/agrimaan/digital-sub001/internal/datamodels/order"
	"github.com/agrimaan/digital-sub001/internal/infra/logger"
	"github.com/agrimaan/digital-sub001/internal/infra/mq"
	"github.com/agrimaan/digital-sub001/internal/infra/redis"
	"github.com/agrimaan/digital-sub001/internal/repository/mysql"
	"github.com/agrimaan/digital-sub001/internal/service"
)

const (
	// 事件去重标记，24小时有效期；同一事件重复投递时直接 ack
	redisPaymentEventKey   = "payment:evt:%s"
	eventMarkExpireSeconds = 86400
)

// PaymentEvent 支付子系统上报的结算结果
type PaymentEvent struct {
	EventID string `json:"event_id"`
	OrderNo string `json:"order_no"`
	Status  string `json:"status"` // COMPLETED / FAILED
}

func main() {
	cfg, err := config.LoadConfig("./config")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger.Init()

	db := mysql.Init(&cfg.MySQL)
	mqConn := mq.Init(&cfg.RabbitMQ)
	redisClient := redis.Init(&cfg.Redis)

	orderRepo := mysql.NewOrderRepository(db)
	transitionSvc := service.NewTransitionService(orderRepo, nil)

	ch, err := mqConn.Channel()
	if err != nil {
		log.Fatalf("failed to open channel: %v", err)
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(mq.PaymentEventsQueue, true, false, false, false, nil); err != nil {
		log.Fatalf("failed to declare queue: %v", err)
	}

	// 手动确认模式（auto-ack=false）
	msgs, err := ch.Consume(mq.PaymentEventsQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("failed to consume: %v", err)
	}

	zap.L().Info("payment worker started, waiting for messages")

	for d := range msgs {
		var evt PaymentEvent
		if err := json.Unmarshal(d.Body, &evt); err != nil {
			zap.L().Warn("invalid payment event payload", zap.Error(err))
			// 消息格式错误，拒绝并丢弃
			_ = d.Nack(false, false)
			service.GetMonitor().RecordWorkerFailed()
			continue
		}
		handleEvent(context.Background(), transitionSvc, redisClient, &evt, d)
	}
}

func handleEvent(ctx context.Context, svc *service.TransitionService, redisClient radix.Client, evt *PaymentEvent, d amqp.Delivery) {
	if evt.EventID == "" || evt.OrderNo == "" {
		zap.L().Warn("payment event missing id or order_no")
		_ = d.Nack(false, false)
		service.GetMonitor().RecordWorkerFailed()
		return
	}

	// 幂等：同一 event_id 只处理一次
	markKey := fmt.Sprintf(redisPaymentEventKey, evt.EventID)
	var set string
	if err := redisClient.Do(radix.Cmd(&set, "SET", markKey, "1", "NX", "EX", fmt.Sprint(eventMarkExpireSeconds))); err != nil {
		service.GetMonitor().RecordRedisError()
		zap.L().Error("redis dedup failed, requeue", zap.Error(err))
		_ = d.Nack(false, true)
		return
	}
	if set == "" {
		// 重复投递，直接确认
		zap.L().Info("duplicate payment event skipped", zap.String("event_id", evt.EventID))
		_ = d.Ack(false)
		return
	}

	_, err := svc.ApplyPaymentReport(ctx, evt.OrderNo, order.PaymentStatus(evt.Status))
	switch {
	case err == nil:
		service.GetMonitor().RecordWorkerProcessed()
		_ = d.Ack(false)
	case errors.Is(err, order.ErrInvalidTransition), errors.Is(err, order.ErrValidation):
		// 状态已推进或上报非法，重试也不会成功，确认并丢弃
		zap.L().Warn("payment event not applicable",
			zap.String("order_no", evt.OrderNo),
			zap.Error(err))
		service.GetMonitor().RecordWorkerFailed()
		_ = d.Ack(false)
	case errors.Is(err, order.ErrOrderNotFound):
		zap.L().Warn("payment event for unknown order",
			zap.String("order_no", evt.OrderNo))
		service.GetMonitor().RecordWorkerFailed()
		_ = d.Nack(false, false)
	default:
		// 瞬态错误：清掉去重标记后重回队列
		_ = redisClient.Do(radix.Cmd(nil, "DEL", markKey))
		service.GetMonitor().RecordWorkerFailed()
		zap.L().Error("apply payment event failed, requeue",
			zap.String("order_no", evt.OrderNo),
			zap.Error(err))
		_ = d.Nack(false, true)
	}
}
