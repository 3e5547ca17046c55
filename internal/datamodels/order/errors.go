package order

import "errors"

// 订单核心的错误分类，上层用 errors.Is 判断并映射为对应的 HTTP 状态码
var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrPaymentNotSettled      = errors.New("payment not settled")
	ErrMissingTrackingInfo    = errors.New("missing tracking info")
	ErrConcurrentModification = errors.New("order modified concurrently")
	ErrValidation             = errors.New("invalid input")
)
