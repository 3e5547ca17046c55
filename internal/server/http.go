package server

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kataras/iris/v12"

	"github.com/agrimaan/digital-sub001/internal/datamodels/order"
	"github.com/agrimaan/digital-sub001/internal/service"
)

// writeError 把领域错误映射为 HTTP 状态码与统一响应体
func writeError(ctx iris.Context, err error) {
	code := 500
	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		code = 404
	case errors.Is(err, order.ErrValidation),
		errors.Is(err, order.ErrMissingTrackingInfo):
		code = 400
	case errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrPaymentNotSettled),
		errors.Is(err, order.ErrConcurrentModification):
		// 409：状态冲突，前端应重新拉取订单后提示用户重试
		code = 409
	}
	ctx.StopWithJSON(code, iris.Map{"code": code, "msg": err.Error()})
}

// pageParams 解析分页参数，非法值交给查询引擎统一校验
func pageParams(ctx iris.Context) service.PageRequest {
	page, _ := strconv.Atoi(ctx.URLParamDefault("page", "0"))
	size, _ := strconv.Atoi(ctx.URLParamDefault("page_size", "0"))
	return service.PageRequest{Number: page, Size: size}
}

// filterParams 解析列表过滤参数
func filterParams(ctx iris.Context) (service.Filters, error) {
	f := service.Filters{
		Status: order.Status(ctx.URLParam("status")),
		Search: ctx.URLParam("q"),
	}
	if v := ctx.URLParam("from"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			return f, fmt.Errorf("%w: invalid from: %s", order.ErrValidation, v)
		}
		f.From = t
	}
	if v := ctx.URLParam("to"); v != "" {
		t, err := parseTimeParam(v)
		if err != nil {
			return f, fmt.Errorf("%w: invalid to: %s", order.ErrValidation, v)
		}
		f.To = t
	}
	return f, nil
}

// 支持多种常见时间格式，精确到秒
func parseTimeParam(v string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time format: %s", v)
}

// transitionBody 流转接口的通用请求体
type transitionBody struct {
	Comment        string `json:"comment"`
	CashOnDelivery bool   `json:"cash_on_delivery"`
	Provider       string `json:"provider"`
	TrackingNumber string `json:"tracking_number"`
	TrackingURL    string `json:"tracking_url"`
}

func (b *transitionBody) tracking() order.TrackingInfo {
	return order.TrackingInfo{
		Provider:       b.Provider,
		TrackingNumber: b.TrackingNumber,
		TrackingURL:    b.TrackingURL,
	}
}
