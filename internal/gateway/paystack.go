package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrTransport 表示未能从网关拿到可判定的应答（网络错误 / 非 2xx）。
// 调用方应稍后重试，而不是把支付判为失败。
var ErrTransport = errors.New("paystack transport error")

// Client Paystack 交易接口
type Client interface {
	// Initialize 创建 hosted checkout 交易
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)

	// Verify 查询交易结果；业务性失败（status != success）通过返回值
	// 表达，error 仅表示传输层失败。
	Verify(ctx context.Context, reference string) (*Verification, error)
}

type InitializeRequest struct {
	Email       string
	AmountKobo  int64
	CallbackURL string
	Metadata    map[string]interface{}
}

type InitializeResult struct {
	AuthorizationURL string
	Reference        string
}

// Customer 网关返回的付款人信息
type Customer struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
}

// Verification 网关验证结果；AmountKobo 为最小货币单位（NGN 的 kobo）
type Verification struct {
	Status     string                 `json:"status"`
	Reference  string                 `json:"reference"`
	AmountKobo int64                  `json:"amount"`
	Currency   string                 `json:"currency"`
	Customer   Customer               `json:"customer"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// Succeeded 网关是否判定该笔交易成功
func (v *Verification) Succeeded() bool {
	return v != nil && v.Status == "success"
}

// Raw 以通用 map 形式返回验证数据（保存到 paystack_data 列）
func (v *Verification) Raw() map[string]interface{} {
	if v == nil {
		return nil
	}
	return map[string]interface{}{
		"status":    v.Status,
		"reference": v.Reference,
		"amount":    v.AmountKobo,
		"currency":  v.Currency,
		"customer": map[string]interface{}{
			"email":      v.Customer.Email,
			"first_name": v.Customer.FirstName,
			"last_name":  v.Customer.LastName,
			"phone":      v.Customer.Phone,
		},
		"metadata": v.Metadata,
	}
}

// PaystackClient HTTP 实现
type PaystackClient struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewPaystackClient(baseURL, secretKey string) *PaystackClient {
	if baseURL == "" {
		baseURL = "https://api.paystack.co"
	}
	return &PaystackClient{
		baseURL:   baseURL,
		secretKey: secretKey,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize 创建 hosted 交易
func (c *PaystackClient) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	body := map[string]interface{}{
		"email":  req.Email,
		"amount": req.AmountKobo,
	}
	if req.CallbackURL != "" {
		body["callback_url"] = req.CallbackURL
	}
	if req.Metadata != nil {
		body["metadata"] = req.Metadata
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transaction/initialize", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

	env, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	if !env.Status {
		return nil, fmt.Errorf("paystack initialize rejected: %s", env.Message)
	}
	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode initialize data: %w", err)
	}
	return &InitializeResult{AuthorizationURL: data.AuthorizationURL, Reference: data.Reference}, nil
}

// Verify 查询交易；传输层失败包裹 ErrTransport
func (c *PaystackClient) Verify(ctx context.Context, reference string) (*Verification, error) {
	u := c.baseURL + "/transaction/verify/" + url.PathEscape(reference)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

	env, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}
	var v Verification
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return nil, fmt.Errorf("decode verification data: %w", err)
	}
	if !env.Status {
		// Gateway answered but did not recognize the transaction as
		// successful; business failure, not retryable.
		v.Status = "failed"
	}
	if v.Reference == "" {
		v.Reference = reference
	}
	return &v, nil
}

func (c *PaystackClient) do(req *http.Request) (*envelope, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrTransport, resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrTransport, err)
	}
	return &env, nil
}
