package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotConfigured 邮件服务未配置；调用方应直接走持久化队列
var ErrNotConfigured = errors.New("mailer not configured")

// Sender 发送一封 HTML 邮件
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SendGridSender SendGrid v3 mail/send 实现
type SendGridSender struct {
	apiKey string
	from   string
	base   string
	http   *http.Client
}

func NewSendGridSender(apiKey, from string) *SendGridSender {
	return &SendGridSender{
		apiKey: apiKey,
		from:   from,
		base:   "https://api.sendgrid.com",
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

// WithBaseURL 重定向 API 地址（测试用）
func (s *SendGridSender) WithBaseURL(base string) *SendGridSender {
	s.base = base
	return s
}

func (s *SendGridSender) Send(ctx context.Context, to, subject, html string) error {
	if s.apiKey == "" || s.from == "" {
		return ErrNotConfigured
	}
	payload, err := json.Marshal(map[string]interface{}{
		"personalizations": []map[string]interface{}{
			{"to": []map[string]string{{"email": to}}},
		},
		"from":    map[string]string{"email": s.from},
		"subject": subject,
		"content": []map[string]string{{"type": "text/html", "value": html}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.base+"/v3/mail/send", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sendgrid %d: %s", resp.StatusCode, body)
	}
	return nil
}
