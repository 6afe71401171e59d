package handler

import (
	"github.com/d60-Lab/quantum-checkout/internal/service"
)

// checkoutRequest 下单请求的宽容形态：历史客户端会在顶层或 delivery
// 下、camelCase 或 snake_case 混用地提交同一份信息。所有同义字段在
// 这里归一成 service.CheckoutInput，业务逻辑只见规范形态。
type checkoutRequest struct {
	ProductID     string                   `json:"productId"` // legacy, ignored
	CustomerName  string                   `json:"customerName" binding:"required"`
	CustomerEmail string                   `json:"customerEmail" binding:"required,email"`
	CustomerPhone string                   `json:"customerPhone" binding:"required,phone"`
	Items         []map[string]interface{} `json:"items" binding:"required,min=1"`
	Subtotal      float64                  `json:"subtotal"`
	DeliveryFee   float64                  `json:"deliveryFee"`
	Total         float64                  `json:"total"`
	Delivery      map[string]interface{}   `json:"delivery"`
	Metadata      map[string]interface{}   `json:"metadata"`

	// top-level synonyms some clients still send
	ShippingAddress      map[string]interface{} `json:"shippingAddress"`
	ShippingAddressSnake map[string]interface{} `json:"shipping_address"`
	PickupLocation       string                 `json:"pickupLocation"`
	PickupLocationSnake  string                 `json:"pickup_location"`
	DeliveryMethod       string                 `json:"deliveryMethod"`
	DeliveryMethodSnake  string                 `json:"delivery_method"`
	ShippingState        string                 `json:"shippingState"`
	ShippingStateSnake   string                 `json:"shipping_state"`
	CustomerState        string                 `json:"customerState"`
}

func (r *checkoutRequest) normalize() service.CheckoutInput {
	delivery := r.Delivery
	if delivery == nil {
		delivery = map[string]interface{}{}
	}

	address := firstMap(asMap(delivery["shippingAddress"]), asMap(delivery["shipping_address"]), r.ShippingAddress, r.ShippingAddressSnake)
	pickup := firstString(asString(delivery["pickupLocation"]), asString(delivery["pickup_location"]), asString(delivery["location"]), r.PickupLocation, r.PickupLocationSnake)
	method := firstString(asString(delivery["method"]), r.DeliveryMethod, r.DeliveryMethodSnake)
	state := firstString(
		asString(address["state"]), asString(address["shipping_state"]),
		asString(delivery["state"]), asString(delivery["shipping_state"]),
		r.ShippingState, r.ShippingStateSnake,
	)

	items := make([]service.CheckoutItem, 0, len(r.Items))
	for _, raw := range r.Items {
		items = append(items, normalizeItem(raw))
	}

	return service.CheckoutInput{
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
		CustomerPhone: r.CustomerPhone,
		CustomerState: r.CustomerState,
		Items:         items,
		Subtotal:      r.Subtotal,
		DeliveryFee:   r.DeliveryFee,
		Total:         r.Total,
		Delivery: service.CheckoutDelivery{
			Method:          method,
			ShippingAddress: address,
			PickupLocation:  pickup,
			State:           state,
			Raw:             delivery,
		},
		Metadata: r.Metadata,
	}
}

func normalizeItem(raw map[string]interface{}) service.CheckoutItem {
	unitPrice := firstFloat(asFloat(raw["unitPrice"]), asFloat(raw["unit_price"]), asFloat(raw["price"]))
	quantity := int(firstFloat(asFloat(raw["quantity"]), asFloat(raw["qty"])))
	total := firstFloat(asFloat(raw["totalPrice"]), asFloat(raw["total_price"]), asFloat(raw["total"]))
	if total == 0 {
		total = unitPrice * float64(quantity)
	}
	return service.CheckoutItem{
		ProductID:          firstString(asString(raw["productId"]), asString(raw["product_id"])),
		ProductName:        firstString(asString(raw["productName"]), asString(raw["product_name"]), asString(raw["name"])),
		ProductDescription: firstString(asString(raw["productDescription"]), asString(raw["description"])),
		UnitPrice:          unitPrice,
		Quantity:           quantity,
		TotalPrice:         total,
		Raw:                raw,
	}
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstFloat(vals ...float64) float64 {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstMap(vals ...map[string]interface{}) map[string]interface{} {
	for _, v := range vals {
		if len(v) > 0 {
			return v
		}
	}
	return nil
}
