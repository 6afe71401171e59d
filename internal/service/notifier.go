package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/quantum-checkout/internal/mailer"
	"github.com/d60-Lab/quantum-checkout/internal/model"
	"github.com/d60-Lab/quantum-checkout/internal/repository"
	"github.com/d60-Lab/quantum-checkout/pkg/logger"
)

// Notifier 支付成功后的邮件通知。Dispatch 永不阻塞、永不报错：
// 实时发送失败的邮件落入持久化队列，由 ProcessQueue 按指数退避重试。
// 对账成功与否和通知成功与否完全解耦。
type Notifier struct {
	sender     mailer.Sender
	queue      repository.EmailQueueRepository
	ownerEmail string
	ch         chan *model.Order
}

func NewNotifier(sender mailer.Sender, queue repository.EmailQueueRepository, ownerEmail string, queueSize int) *Notifier {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Notifier{
		sender:     sender,
		queue:      queue,
		ownerEmail: ownerEmail,
		ch:         make(chan *model.Order, queueSize),
	}
}

// Start 启动发送 worker 与队列重试 ticker；返回停止函数
func (n *Notifier) Start(workers int) func(context.Context) error {
	if workers <= 0 {
		workers = 2
	}
	stopCh := make(chan struct{})
	for i := 0; i < workers; i++ {
		go func() {
			for {
				select {
				case order := <-n.ch:
					ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
					n.deliver(ctx, order)
					cancel()
				case <-stopCh:
					return
				}
			}
		}()
	}
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				if _, err := n.ProcessQueue(ctx, 10); err != nil {
					logger.Warn("email queue drain failed", zap.Error(err))
				}
				cancel()
			case <-stopCh:
				return
			}
		}
	}()
	return func(ctx context.Context) error {
		close(stopCh)
		// 通道里尚未投递的订单落盘，停机不丢通知
		n.drainToQueue(ctx)
		return nil
	}
}

// drainToQueue 将缓冲中剩余的订单通知写入持久化队列
func (n *Notifier) drainToQueue(ctx context.Context) {
	for {
		select {
		case order := <-n.ch:
			for _, m := range n.render(order) {
				n.persist(ctx, m)
			}
		default:
			return
		}
	}
}

// Dispatch 入队一张已支付订单的通知；队列满时直接落持久化队列
func (n *Notifier) Dispatch(order *model.Order) {
	if n == nil || order == nil {
		return
	}
	select {
	case n.ch <- order:
	default:
		logger.Warn("notifier channel full, persisting to email queue",
			zap.String("order_id", order.ID))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, m := range n.render(order) {
			n.persist(ctx, m)
		}
	}
}

type outboundMail struct {
	to      string
	subject string
	html    string
}

func (n *Notifier) render(order *model.Order) []outboundMail {
	var out []outboundMail
	if order.CustomerEmail != "" {
		out = append(out, outboundMail{
			to:      order.CustomerEmail,
			subject: fmt.Sprintf("Order confirmation - %s", order.OrderNumber),
			html: fmt.Sprintf(
				"<p>Hi %s,</p><p>Thank you for your order <strong>%s</strong>. We received your payment of ₦%.2f and are processing your order.</p><p>We will notify you when your order ships.</p><p>— Coach Amara</p>",
				fallback(order.CustomerName, "Customer"), order.OrderNumber, order.Total),
		})
	}
	if n.ownerEmail != "" {
		out = append(out, outboundMail{
			to:      n.ownerEmail,
			subject: fmt.Sprintf("New order received - %s", order.OrderNumber),
			html: fmt.Sprintf(
				"<p>New order received: <strong>%s</strong></p><p>Customer: %s &lt;%s&gt;</p><p>Total: ₦%.2f</p><p>Order ID: %s</p>",
				order.OrderNumber, order.CustomerName, order.CustomerEmail, order.Total, order.ID),
		})
	}
	return out
}

func (n *Notifier) deliver(ctx context.Context, order *model.Order) {
	for _, m := range n.render(order) {
		err := n.send(ctx, m)
		if err == nil {
			continue
		}
		if errors.Is(err, mailer.ErrNotConfigured) {
			logger.Info("mailer not configured, queueing email", zap.String("to", m.to))
		} else {
			logger.Warn("email send failed, queueing for retry",
				zap.String("to", m.to), zap.Error(err))
		}
		n.persist(ctx, m)
	}
}

func (n *Notifier) send(ctx context.Context, m outboundMail) error {
	if n.sender == nil {
		return mailer.ErrNotConfigured
	}
	return n.sender.Send(ctx, m.to, m.subject, m.html)
}

func (n *Notifier) persist(ctx context.Context, m outboundMail) {
	if err := n.queue.Enqueue(ctx, &model.EmailQueueItem{
		ToEmail: m.to,
		Subject: m.subject,
		HTML:    m.html,
	}); err != nil {
		logger.Error("email queue enqueue failed", zap.String("to", m.to), zap.Error(err))
	}
}

// ProcessQueue 重试到期的队列项；成功即删，失败按 attempts² 分钟退避
func (n *Notifier) ProcessQueue(ctx context.Context, limit int) (int, error) {
	items, err := n.queue.Due(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("fetch email queue: %w", err)
	}
	processed := 0
	for _, item := range items {
		err := n.send(ctx, outboundMail{to: item.ToEmail, subject: item.Subject, html: item.HTML})
		if err == nil {
			if delErr := n.queue.Delete(ctx, item.ID); delErr != nil {
				logger.Warn("email queue delete failed", zap.String("id", item.ID), zap.Error(delErr))
			}
			processed++
			continue
		}
		attempts := item.Attempts + 1
		backoff := time.Duration(attempts*attempts) * time.Minute
		if reschedErr := n.queue.Reschedule(ctx, item.ID, attempts, err.Error(), time.Now().Add(backoff)); reschedErr != nil {
			logger.Warn("email queue reschedule failed", zap.String("id", item.ID), zap.Error(reschedErr))
		}
	}
	return processed, nil
}
