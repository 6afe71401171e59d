package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/quantum-checkout/pkg/logger"
)

// AdminNotifier 向运营 webhook 推送事件；纯 best-effort，失败只记日志
type AdminNotifier struct {
	url  string
	http *http.Client
}

func NewAdminNotifier(url string) *AdminNotifier {
	return &AdminNotifier{url: url, http: &http.Client{Timeout: 5 * time.Second}}
}

func (n *AdminNotifier) Notify(ctx context.Context, payload map[string]interface{}) {
	if n == nil || n.url == "" {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.http.Do(req)
	if err != nil {
		logger.Warn("admin webhook notify failed", zap.Error(err))
		return
	}
	_ = resp.Body.Close()
}
