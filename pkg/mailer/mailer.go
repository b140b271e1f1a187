package mailer

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"

	"visitor-gate/config"
)

// Message 待发送的纯文本邮件
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Mailer 基于 SMTP 的邮件发送器
type Mailer struct {
	cfg *config.MailConfig
}

// New 创建 Mailer
func New(cfg *config.MailConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Send 建立 SMTP 连接并发送单封邮件
func (m *Mailer) Send(ctx context.Context, in Message) error {
	msg, err := m.buildMessage(in)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(m.cfg.SMTPPort),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.Username),
			mail.WithPassword(m.cfg.Password),
		)
	}

	client, err := mail.NewClient(m.cfg.SMTPHost, opts...)
	if err != nil {
		return fmt.Errorf("初始化 SMTP 客户端失败: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("发送邮件失败: %w", err)
	}
	return nil
}

func (m *Mailer) buildMessage(in Message) (*mail.Msg, error) {
	if len(in.To) == 0 {
		return nil, fmt.Errorf("收件人不能为空")
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(m.cfg.FromName, m.cfg.From); err != nil {
		return nil, fmt.Errorf("发件人地址无效: %w", err)
	}
	if err := msg.To(in.To...); err != nil {
		return nil, fmt.Errorf("收件人地址无效: %w", err)
	}
	msg.Subject(in.Subject)
	msg.SetBodyString(mail.TypeTextPlain, in.Body)
	return msg, nil
}
