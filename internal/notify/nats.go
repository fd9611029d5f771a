// Package notify delivers refund notifications, either as NATS messages
// for a downstream mailer or straight over SMTP.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

type Notification struct {
	Template  string         `json:"template"`
	Recipient string         `json:"recipient"`
	Data      map[string]any `json:"data"`
	SentAt    time.Time      `json:"sent_at"`
}

type NATSNotifier struct {
	conn Publisher
}

func NewNATSNotifier(conn Publisher) *NATSNotifier {
	return &NATSNotifier{conn: conn}
}

// Send publishes on notifications.<template>.
func (n *NATSNotifier) Send(_ context.Context, templateKey, recipient string, data map[string]any) error {
	payload, err := json.Marshal(Notification{
		Template:  templateKey,
		Recipient: recipient,
		Data:      data,
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	if err := n.conn.Publish("notifications."+templateKey, payload); err != nil {
		return fmt.Errorf("publish %s notification: %w", templateKey, err)
	}
	return nil
}
