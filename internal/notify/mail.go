package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/refund-orchestrator/internal/config"
	"github.com/akylbek/payment-system/refund-orchestrator/internal/telemetry"
)

type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type MailNotifier struct {
	client Sender
	from   string
}

func NewMailNotifier(cfg config.SMTPConfig) (*MailNotifier, error) {
	client, err := mail.NewClient(cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthLogin),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &MailNotifier{client: client, from: cfg.From}, nil
}

func NewMailNotifierWithSender(client Sender, from string) *MailNotifier {
	return &MailNotifier{client: client, from: from}
}

func (n *MailNotifier) Send(ctx context.Context, templateKey, recipient string, data map[string]any) error {
	msg, err := n.buildMessage(templateKey, recipient, data)
	if err != nil {
		return err
	}

	telemetry.Logger.Info("Sending refund email",
		zap.String("template", templateKey),
		zap.String("recipient", recipient),
	)
	return n.client.DialAndSendWithContext(ctx, msg)
}

func (n *MailNotifier) buildMessage(templateKey, recipient string, data map[string]any) (*mail.Msg, error) {
	subject, html, err := Render(templateKey, data)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(n.from); err != nil {
		return nil, err
	}
	if err := msg.To(recipient); err != nil {
		return nil, err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, html)
	return msg, nil
}
