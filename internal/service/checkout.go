package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/d60-Lab/quantum-checkout/internal/gateway"
	"github.com/d60-Lab/quantum-checkout/internal/model"
	"github.com/d60-Lab/quantum-checkout/internal/repository"
	"github.com/d60-Lab/quantum-checkout/pkg/logger"
)

const (
	orderNumberMaxTries = 5
	paymentRefPrefix    = "QEM"
)

// CheckoutItem 规范化后的行项目；Raw 保留客户端提交的完整快照
type CheckoutItem struct {
	ProductID          string
	ProductName        string
	ProductDescription string
	UnitPrice          float64
	Quantity           int
	TotalPrice         float64
	Raw                map[string]interface{}
}

// CheckoutDelivery 规范化后的配送信息
type CheckoutDelivery struct {
	Method          string // pickup | shipping
	ShippingAddress map[string]interface{}
	PickupLocation  string
	State           string
	Raw             map[string]interface{}
}

// CheckoutInput 边界适配层产出的唯一规范形态；业务逻辑只认它
type CheckoutInput struct {
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	CustomerState string
	Items         []CheckoutItem
	Subtotal      float64
	DeliveryFee   float64
	Total         float64
	Delivery      CheckoutDelivery
	Metadata      map[string]interface{}
}

// CheckoutResult 下单结果
type CheckoutResult struct {
	OrderID           string  `json:"orderId"`
	OrderNumber       string  `json:"orderNumber"`
	PaymentReference  string  `json:"paymentReference"`
	Amount            float64 `json:"amount"`
	AuthorizationURL  string  `json:"paystackAuthorizationUrl,omitempty"`
	PaystackReference string  `json:"paystackReference,omitempty"`
}

// CheckoutService 下单编排：订单号生成重试、占位商品、行项目批量
// 写入、支付尝试创建、可选的网关预初始化。任何报告出去的失败都
// 保证完整回滚。
type CheckoutService struct {
	orders   repository.OrderRepository
	products repository.ProductRepository
	payments repository.PaymentRepository
	gw       gateway.Client // nil 时退化为 inline 支付
	admin    *AdminNotifier
	baseURL  string
}

func NewCheckoutService(
	orders repository.OrderRepository,
	products repository.ProductRepository,
	payments repository.PaymentRepository,
	gw gateway.Client,
	admin *AdminNotifier,
	baseURL string,
) *CheckoutService {
	return &CheckoutService{
		orders:   orders,
		products: products,
		payments: payments,
		gw:       gw,
		admin:    admin,
		baseURL:  baseURL,
	}
}

// makeOrderNumber QM-YYYYMMDD-XXXX，4 位随机后缀
func makeOrderNumber(now time.Time) string {
	return fmt.Sprintf("QM-%s-%04d", now.Format("20060102"), rand.Intn(10000))
}

// makePaymentReference QEM_<orderId>_<epochMillis>
func makePaymentReference(orderID string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%d", paymentRefPrefix, orderID, now.UnixMilli())
}

// CreateOrder 执行下单编排
func (s *CheckoutService) CreateOrder(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	if err := validateCheckout(in); err != nil {
		return nil, err
	}

	order, err := s.insertOrderWithRetry(ctx, in)
	if err != nil {
		return nil, err
	}

	items := s.resolveItems(ctx, order, in.Items)
	if err := s.orders.CreateItems(ctx, items); err != nil {
		logger.Error("order items insert failed, rolling back order",
			zap.String("order_id", order.ID), zap.Error(err))
		if delErr := s.orders.Delete(ctx, order.ID); delErr != nil {
			logger.Error("order rollback failed", zap.String("order_id", order.ID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrOrderItems, err)
	}

	now := time.Now()
	reference := makePaymentReference(order.ID, now)
	attempt := &model.PaymentAttempt{
		OrderID:          order.ID,
		Email:            in.CustomerEmail,
		Phone:            in.CustomerPhone,
		PaymentReference: reference,
		Amount:           in.Total,
		Currency:         "NGN",
		Status:           model.AttemptStatusPending,
		PaymentProvider:  "paystack",
		Metadata: model.JSON{
			"customerEmail": in.CustomerEmail,
			"customerPhone": in.CustomerPhone,
			"delivery": map[string]interface{}{
				"delivery_method":  in.Delivery.Method,
				"shipping_address": in.Delivery.ShippingAddress,
				"pickup_location":  in.Delivery.PickupLocation,
				"shipping_state":   in.Delivery.State,
			},
			"orderNumber": order.OrderNumber,
		},
		InitiatedAt: now,
	}
	if err := s.payments.CreateAttempt(ctx, attempt); err != nil {
		logger.Error("payment attempt insert failed, rolling back order and items",
			zap.String("order_id", order.ID), zap.Error(err))
		if delErr := s.orders.DeleteItems(ctx, order.ID); delErr != nil {
			logger.Error("order items rollback failed", zap.String("order_id", order.ID), zap.Error(delErr))
		}
		if delErr := s.orders.Delete(ctx, order.ID); delErr != nil {
			logger.Error("order rollback failed", zap.String("order_id", order.ID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentAttempt, err)
	}

	result := &CheckoutResult{
		OrderID:          order.ID,
		OrderNumber:      order.OrderNumber,
		PaymentReference: reference,
		Amount:           in.Total,
	}
	s.preInitialize(ctx, in, order, reference, result)
	return result, nil
}

func validateCheckout(in CheckoutInput) error {
	switch {
	case in.CustomerName == "":
		return fmt.Errorf("%w: customerName", ErrValidation)
	case in.CustomerEmail == "":
		return fmt.Errorf("%w: customerEmail", ErrValidation)
	case in.CustomerPhone == "":
		return fmt.Errorf("%w: customerPhone", ErrValidation)
	case len(in.Items) == 0:
		return fmt.Errorf("%w: items", ErrValidation)
	}
	if math.Abs(in.Total-(in.Subtotal+in.DeliveryFee)) > 0.01 {
		return fmt.Errorf("%w: total must equal subtotal + deliveryFee", ErrValidation)
	}
	return nil
}

// insertOrderWithRetry 订单号后缀随机，唯一冲突时重新生成，最多 5 次
func (s *CheckoutService) insertOrderWithRetry(ctx context.Context, in CheckoutInput) (*model.Order, error) {
	var lastErr error
	for i := 0; i < orderNumberMaxTries; i++ {
		now := time.Now()
		order := &model.Order{
			OrderNumber:     makeOrderNumber(now),
			CustomerName:    in.CustomerName,
			CustomerEmail:   in.CustomerEmail,
			CustomerPhone:   in.CustomerPhone,
			Subtotal:        in.Subtotal,
			DeliveryFee:     in.DeliveryFee,
			Total:           in.Total,
			Status:          model.OrderStatusPending,
			PaymentStatus:   model.PaymentStatusPending,
			DeliveryMethod:  in.Delivery.Method,
			ShippingAddress: in.Delivery.ShippingAddress,
			PickupLocation:  in.Delivery.PickupLocation,
			ShippingState:   in.Delivery.State,
			Delivery:        deliveryJSON(in.Delivery),
			Metadata:        orderMetadata(in, now),
		}
		err := s.orders.Create(ctx, order)
		if err == nil {
			return order, nil
		}
		lastErr = err
		// duplicate order_number or transient store error: retry with a
		// fresh number either way
		logger.Warn("order insert attempt failed",
			zap.Int("attempt", i), zap.String("order_number", order.OrderNumber),
			zap.Bool("duplicate", errors.Is(err, gorm.ErrDuplicatedKey)), zap.Error(err))
	}
	return nil, fmt.Errorf("%w: %v", ErrOrderCreation, lastErr)
}

func deliveryJSON(d CheckoutDelivery) model.JSON {
	out := model.JSON{}
	for k, v := range d.Raw {
		out[k] = v
	}
	out["method"] = d.Method
	out["shippingAddress"] = d.ShippingAddress
	out["pickupLocation"] = d.PickupLocation
	out["state"] = d.State
	return out
}

func orderMetadata(in CheckoutInput, now time.Time) model.JSON {
	out := model.JSON{}
	for k, v := range in.Metadata {
		out[k] = v
	}
	out["source"] = "quantum-funnel"
	out["createdAt"] = now.UTC().Format(time.RFC3339)
	if in.CustomerState != "" {
		out["customerState"] = in.CustomerState
	}
	return out
}

// resolveItems 将行项目的 productId 解析为真实商品；不存在的商品
// best-effort 创建 inactive 占位行，占位也失败则仅存快照。任何一步
// 都不会阻塞下单。
func (s *CheckoutService) resolveItems(ctx context.Context, order *model.Order, items []CheckoutItem) []model.OrderItem {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if it.ProductID != "" {
			ids = append(ids, it.ProductID)
		}
	}

	existing := map[string]bool{}
	if len(ids) > 0 {
		var err error
		existing, err = s.products.ExistingIDs(ctx, ids)
		if err != nil {
			logger.Warn("product lookup failed during checkout", zap.Error(err))
			existing = map[string]bool{}
		}
	}

	// external productId -> created placeholder id
	created := map[string]string{}
	var placeholderIDs []string
	for _, it := range items {
		if it.ProductID == "" || existing[it.ProductID] || created[it.ProductID] != "" {
			continue
		}
		assigned := it.ProductID
		if _, err := uuid.Parse(assigned); err != nil {
			assigned = uuid.New().String()
		}
		p := &model.Product{
			ID:          assigned,
			Name:        fallback(it.ProductName, "Unknown Product"),
			Description: it.ProductDescription,
			Price:       it.UnitPrice,
			Stock:       0,
			IsActive:    false,
			Metadata: model.JSON{
				"_note":             "auto-created placeholder for funnel order",
				"externalProductId": it.ProductID,
				"sourceItem":        it.Raw,
			},
		}
		if err := s.products.Create(ctx, p); err != nil {
			logger.Warn("placeholder product create failed",
				zap.String("external_product_id", it.ProductID), zap.Error(err))
			continue
		}
		created[it.ProductID] = p.ID
		placeholderIDs = append(placeholderIDs, p.ID)
	}
	if len(placeholderIDs) > 0 {
		s.admin.Notify(ctx, map[string]interface{}{
			"event":             "placeholder_products_created",
			"orderId":           order.ID,
			"createdProductIds": placeholderIDs,
			"customerEmail":     order.CustomerEmail,
			"timestamp":         time.Now().UTC().Format(time.RFC3339),
		})
	}

	rows := make([]model.OrderItem, 0, len(items))
	now := time.Now()
	for _, it := range items {
		snapshot := model.JSON{}
		for k, v := range it.Raw {
			snapshot[k] = v
		}
		snapshot["capturedAt"] = now.UTC().Format(time.RFC3339)

		total := it.TotalPrice
		if total == 0 {
			total = it.UnitPrice * float64(it.Quantity)
		}
		row := model.OrderItem{
			OrderID:         order.ID,
			ProductName:     it.ProductName,
			ProductPrice:    it.UnitPrice,
			Quantity:        it.Quantity,
			TotalPrice:      total,
			ProductSnapshot: snapshot,
		}
		switch {
		case it.ProductID != "" && existing[it.ProductID]:
			pid := it.ProductID
			row.ProductID = &pid
		case it.ProductID != "" && created[it.ProductID] != "":
			pid := created[it.ProductID]
			row.ProductID = &pid
		case it.ProductID != "":
			snapshot["_note"] = "productId provided but not found in products table"
		}
		rows = append(rows, row)
	}
	return rows
}

// preInitialize 服务端预创建 hosted 交易；失败不致命，客户端退化为
// inline 支付
func (s *CheckoutService) preInitialize(ctx context.Context, in CheckoutInput, order *model.Order, reference string, result *CheckoutResult) {
	if s.gw == nil {
		return
	}
	callbackURL := ""
	if s.baseURL != "" {
		callbackURL = s.baseURL + "/api/paystack/hosted/callback"
	}
	init, err := s.gw.Initialize(ctx, gateway.InitializeRequest{
		Email:       in.CustomerEmail,
		AmountKobo:  toKobo(in.Total),
		CallbackURL: callbackURL,
		Metadata: map[string]interface{}{
			"paymentReference": reference,
			"orderId":          order.ID,
			"source":           "quantum-funnel",
			"customerPhone":    in.CustomerPhone,
			"delivery": map[string]interface{}{
				"delivery_method":  in.Delivery.Method,
				"shipping_address": in.Delivery.ShippingAddress,
				"pickup_location":  in.Delivery.PickupLocation,
				"shipping_state":   in.Delivery.State,
			},
		},
	})
	if err != nil {
		logger.Warn("paystack initialize failed, falling back to inline payment",
			zap.String("payment_reference", reference), zap.Error(err))
		return
	}
	result.AuthorizationURL = init.AuthorizationURL
	result.PaystackReference = init.Reference
	if init.Reference != "" {
		if err := s.payments.SetPaystackReference(ctx, reference, init.Reference); err != nil {
			logger.Warn("failed to store paystack reference", zap.Error(err))
		}
	}
}

// toKobo 货币主单位转最小单位
func toKobo(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
