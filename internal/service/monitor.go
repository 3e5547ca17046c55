package service

import (
	"sync"
	"time"
)

// Monitor 监控服务，统计订单核心的运行指标
type Monitor struct {
	mu sync.RWMutex

	// 错误统计
	DBErrors       int64
	MQErrors       int64
	RedisErrors    int64
	WorkerErrors   int64
	NotifyFailures int64

	// 业务统计
	TransitionsApplied  int64
	TransitionsRejected int64
	OrdersPlaced        int64
	PaymentEvents       int64
	QueriesServed       int64
	WorkerProcessed     int64
	WorkerFailed        int64

	// 时间统计
	LastDBError    time.Time
	LastMQError    time.Time
	LastTransition time.Time
	LastWorkerTime time.Time
}

var globalMonitor = &Monitor{}

// GetMonitor 获取全局监控实例
func GetMonitor() *Monitor {
	return globalMonitor
}

// RecordDBError 记录数据库错误
func (m *Monitor) RecordDBError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DBErrors++
	m.LastDBError = time.Now()
}

// RecordMQError 记录MQ错误
func (m *Monitor) RecordMQError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MQErrors++
	m.LastMQError = time.Now()
}

// RecordRedisError 记录Redis错误
func (m *Monitor) RecordRedisError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors++
}

// RecordTransitionApplied 记录一次成功的状态流转
func (m *Monitor) RecordTransitionApplied() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransitionsApplied++
	m.LastTransition = time.Now()
}

// RecordTransitionRejected 记录一次被拒绝的状态流转
func (m *Monitor) RecordTransitionRejected() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TransitionsRejected++
}

// RecordOrderPlaced 记录下单
func (m *Monitor) RecordOrderPlaced() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OrdersPlaced++
}

// RecordPaymentEvent 记录一次支付子系统上报
func (m *Monitor) RecordPaymentEvent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PaymentEvents++
}

// RecordQuery 记录一次列表查询
func (m *Monitor) RecordQuery() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueriesServed++
}

// RecordNotifyFailure 记录订阅者回调失败（不影响已提交的流转）
func (m *Monitor) RecordNotifyFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NotifyFailures++
}

// RecordWorkerProcessed 记录Worker处理成功
func (m *Monitor) RecordWorkerProcessed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WorkerProcessed++
	m.LastWorkerTime = time.Now()
}

// RecordWorkerFailed 记录Worker处理失败
func (m *Monitor) RecordWorkerFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WorkerFailed++
	m.WorkerErrors++
}

// GetStats 获取统计信息
func (m *Monitor) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acceptRate := float64(0)
	totalTransitions := m.TransitionsApplied + m.TransitionsRejected
	if totalTransitions > 0 {
		acceptRate = float64(m.TransitionsApplied) / float64(totalTransitions) * 100
	}

	workerSuccessRate := float64(0)
	totalWorker := m.WorkerProcessed + m.WorkerFailed
	if totalWorker > 0 {
		workerSuccessRate = float64(m.WorkerProcessed) / float64(totalWorker) * 100
	}

	return map[string]interface{}{
		"errors": map[string]interface{}{
			"db":     m.DBErrors,
			"mq":     m.MQErrors,
			"redis":  m.RedisErrors,
			"worker": m.WorkerErrors,
			"notify": m.NotifyFailures,
		},
		"orders": map[string]interface{}{
			"placed":                 m.OrdersPlaced,
			"transitions_applied":    m.TransitionsApplied,
			"transitions_rejected":   m.TransitionsRejected,
			"transition_accept_rate": acceptRate,
			"payment_events":         m.PaymentEvents,
			"queries_served":         m.QueriesServed,
		},
		"worker": map[string]interface{}{
			"processed":    m.WorkerProcessed,
			"failed":       m.WorkerFailed,
			"success_rate": workerSuccessRate,
		},
		"last_events": map[string]interface{}{
			"db_error":   m.LastDBError,
			"mq_error":   m.LastMQError,
			"transition": m.LastTransition,
			"worker":     m.LastWorkerTime,
		},
	}
}

// Reset 重置统计（用于测试或定期清理）
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DBErrors = 0
	m.MQErrors = 0
	m.RedisErrors = 0
	m.WorkerErrors = 0
	m.NotifyFailures = 0
	m.TransitionsApplied = 0
	m.TransitionsRejected = 0
	m.OrdersPlaced = 0
	m.PaymentEvents = 0
	m.QueriesServed = 0
	m.WorkerProcessed = 0
	m.WorkerFailed = 0
}
