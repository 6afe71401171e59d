package service

import (
	"errors"
)

// 创建/对账错误分级；handler 据此映射 HTTP 状态码
var (
	// ErrValidation 请求缺少必填字段，发生在任何写入之前
	ErrValidation = errors.New("missing required checkout fields")

	// ErrOrderCreation 订单号重试耗尽或插入失败；无残留写入
	ErrOrderCreation = errors.New("failed to create order")

	// ErrOrderItems 行项目插入失败；订单已回滚
	ErrOrderItems = errors.New("failed to create order items")

	// ErrPaymentAttempt 支付尝试插入失败；订单与行项目已回滚
	ErrPaymentAttempt = errors.New("failed to create payment attempt")

	// ErrPaymentNotSuccessful 网关判定交易未成功；终态，不自动重试
	ErrPaymentNotSuccessful = errors.New("payment not successful")

	// ErrAmountMismatch 实付金额与期望不符；终态，绝不自动修正
	ErrAmountMismatch = errors.New("paid amount does not match expected amount")
)
