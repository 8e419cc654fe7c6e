package mailer

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"github.com/HildaM/logs/slog"
	"github.com/hildam/harvey-go/entity/conf"
)

// Message 待发送的邮件，正文为 markdown
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Sender 邮件投递
type Sender interface {
	Send(ctx context.Context, msg *Message) error
}

// New 按配置创建投递方式
func New(cfg conf.MailConfig) (Sender, error) {
	switch cfg.Driver {
	case "", "log":
		return NewOutbox(), nil
	case "smtp":
		if cfg.SMTP.Host == "" || cfg.SMTP.Port == 0 {
			return nil, fmt.Errorf("smtp host and port are required")
		}
		return &SMTPSender{cfg: cfg.SMTP}, nil
	default:
		return nil, fmt.Errorf("unknown mail driver %q", cfg.Driver)
	}
}

// ValidAddress 校验邮箱地址
func ValidAddress(addr string) bool {
	addr = strings.TrimSpace(addr)
	if addr == "" || !strings.Contains(addr, "@") {
		return false
	}
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}

// Outbox 只记录不投递，用于开发与测试
type Outbox struct {
	mu   sync.Mutex
	sent []Sent
}

// Sent 已投递的邮件
type Sent struct {
	Message *Message
	Raw     []byte
}

// NewOutbox 创建记录型投递
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Send 组装 MIME 报文并记录
func (o *Outbox) Send(ctx context.Context, msg *Message) error {
	raw, err := Compose(msg)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.sent = append(o.sent, Sent{Message: msg, Raw: raw})
	o.mu.Unlock()

	slog.Info("Outbox send, to = %v, subject = %s, bytes = %d", msg.To, msg.Subject, len(raw))
	return nil
}

// Sent 返回已记录的邮件
func (o *Outbox) Sent() []Sent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Sent(nil), o.sent...)
}
