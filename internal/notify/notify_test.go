package notify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/wneessen/go-mail"
)

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subject = subject
	p.data = data
	return p.err
}

func TestNATSNotifierPublishesOnTemplateSubject(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNATSNotifier(pub)

	err := n.Send(context.Background(), "refund_completed", "buyer@example.com", map[string]any{"order_id": 9})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if pub.subject != "notifications.refund_completed" {
		t.Errorf("subject = %q", pub.subject)
	}

	var got Notification
	if err := json.Unmarshal(pub.data, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Recipient != "buyer@example.com" || got.Template != "refund_completed" {
		t.Errorf("unexpected notification %+v", got)
	}
}

func TestNATSNotifierWrapsPublishError(t *testing.T) {
	boom := errors.New("nats down")
	n := NewNATSNotifier(&fakePublisher{err: boom})
	if err := n.Send(context.Background(), "refund_failed", "x@example.com", nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestRender(t *testing.T) {
	subject, html, err := Render("refund_request_rejected", map[string]any{
		"order_id":     int64(42),
		"event_title":  "Jazz <Night>",
		"amount_cents": int64(1999),
		"currency":     "USD",
		"reason":       "outside window",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if subject != "Your refund request was declined" {
		t.Errorf("subject = %q", subject)
	}
	for _, want := range []string{"19.99 USD", "Order #42", "outside window", "Jazz &lt;Night&gt;"} {
		if !strings.Contains(html, want) {
			t.Errorf("body missing %q", want)
		}
	}

	if _, _, err := Render("nope", nil); err == nil {
		t.Error("expected error for unknown template")
	}
}

type fakeSender struct {
	sent []*mail.Msg
}

func (s *fakeSender) DialAndSendWithContext(_ context.Context, messages ...*mail.Msg) error {
	s.sent = append(s.sent, messages...)
	return nil
}

func TestMailNotifierBuildsMessage(t *testing.T) {
	sender := &fakeSender{}
	n := NewMailNotifierWithSender(sender, "refunds@example.com")

	err := n.Send(context.Background(), "refund_completed", "buyer@example.com", map[string]any{
		"order_id":     int64(1),
		"amount_cents": int64(500),
		"currency":     "EUR",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages", len(sender.sent))
	}

	rcpts, err := sender.sent[0].GetRecipients()
	if err != nil || len(rcpts) != 1 || rcpts[0] != "<buyer@example.com>" {
		t.Errorf("recipients = %v (%v)", rcpts, err)
	}
	if subj := sender.sent[0].GetGenHeader(mail.HeaderSubject); len(subj) != 1 || subj[0] != "Your refund has been issued" {
		t.Errorf("subject header = %v", subj)
	}
}

func TestMailNotifierRejectsBadRecipient(t *testing.T) {
	n := NewMailNotifierWithSender(&fakeSender{}, "refunds@example.com")
	if err := n.Send(context.Background(), "refund_completed", "not an address", nil); err == nil {
		t.Error("expected address error")
	}
}
