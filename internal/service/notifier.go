package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"visitor-gate/internal/repository"
	"visitor-gate/pkg/mailer"
)

// VisitEventKind 访客出入事件类型
type VisitEventKind string

const (
	VisitEventEntered VisitEventKind = "entered"
	VisitEventExited  VisitEventKind = "exited"
)

// VisitEvent 已提交的一次出入变化
type VisitEvent struct {
	Kind        VisitEventKind
	ScheduleID  string
	ResidentID  string
	VisitorName string
	At          time.Time
}

// VisitNotifier 出入事件通知（尽力而为，异步）
type VisitNotifier interface {
	Notify(event VisitEvent)
}

// MailSender 邮件发送能力，由 pkg/mailer.Mailer 实现
type MailSender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

type mailNotifier struct {
	sender MailSender
	users  repository.UserRepository
	loc    *time.Location
	logger *zap.Logger
}

// NewVisitNotifier 创建邮件通知器；sender 为 nil 时返回空实现
func NewVisitNotifier(sender MailSender, users repository.UserRepository, loc *time.Location, logger *zap.Logger) VisitNotifier {
	if sender == nil {
		return noopNotifier{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &mailNotifier{sender: sender, users: users, loc: loc, logger: logger}
}

func (n *mailNotifier) Notify(event VisitEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := n.send(ctx, event); err != nil {
			n.logger.Warn("发送出入通知失败",
				zap.String("schedule_id", event.ScheduleID),
				zap.String("kind", string(event.Kind)),
				zap.Error(err),
			)
		}
	}()
}

func (n *mailNotifier) send(ctx context.Context, event VisitEvent) error {
	resident, err := n.users.GetByID(ctx, event.ResidentID)
	if err != nil {
		return fmt.Errorf("查询住户失败: %w", err)
	}
	return n.sender.Send(ctx, buildVisitMail(resident.Email, event, n.loc))
}

// buildVisitMail 构造通知邮件正文
func buildVisitMail(to string, event VisitEvent, loc *time.Location) mailer.Message {
	verb := "arrived"
	if event.Kind == VisitEventExited {
		verb = "left"
	}
	at := event.At.In(loc).Format("2006-01-02 15:04 MST")
	return mailer.Message{
		To:      []string{to},
		Subject: fmt.Sprintf("Your visitor %s has %s", event.VisitorName, verb),
		Body: fmt.Sprintf("Hello,\n\n%s %s at %s.\n\nSchedule: %s\n",
			event.VisitorName, verb, at, event.ScheduleID),
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(VisitEvent) {}
