package sender

import (
	"context"
	"sync"

	"github.com/fundflow/backoffice/internal/notification/domain"
	"github.com/fundflow/backoffice/pkg/logger"
)

// Delivery 一次已投递的通知内容
type Delivery struct {
	Target  string
	Subject string
	Content string
}

// CaptureSender 把通知留在内存里而不是真正外发，
// 开发环境用它代替真实渠道，测试用 Deliveries 检查投递内容。
type CaptureSender struct {
	channel string

	mu   sync.Mutex
	sent []Delivery
	err  error
}

// NewMockEmailSender 创建内存邮件发送器
func NewMockEmailSender() *CaptureSender {
	return &CaptureSender{channel: string(domain.ChannelEmail)}
}

// NewMockSMSSender 创建内存短信发送器
func NewMockSMSSender() *CaptureSender {
	return &CaptureSender{channel: string(domain.ChannelSMS)}
}

// Send 记录通知内容，FailWith 设置过错误时返回该错误
func (s *CaptureSender) Send(ctx context.Context, target, subject, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, Delivery{Target: target, Subject: subject, Content: content})
	logger.Info(ctx, "Captured notification delivery",
		"channel", s.channel,
		"target", target,
		"subject", subject,
	)
	return nil
}

// Deliveries 返回已记录投递的副本
func (s *CaptureSender) Deliveries() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Delivery, len(s.sent))
	copy(out, s.sent)
	return out
}

// FailWith 让后续 Send 返回 err，传 nil 恢复正常
func (s *CaptureSender) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
