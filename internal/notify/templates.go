package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/shopspring/decimal"
)

var subjects = map[string]string{
	"refund_request_created":  "Refund request received",
	"refund_request_approved": "Your refund request was approved",
	"refund_request_rejected": "Your refund request was declined",
	"refund_completed":        "Your refund has been issued",
	"refund_failed":           "We could not complete a refund",
}

const layout = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background-color: #f9f9f9; padding: 20px;">
	<div style="max-width: 600px; margin: auto; background-color: white; padding: 20px; border-radius: 10px;">
		<h2 style="color: #333;">{{.Subject}}</h2>
		{{if .EventTitle}}<p>Event: <strong>{{.EventTitle}}</strong></p>{{end}}
		<p>Order #{{.OrderID}}, amount {{.Amount}} {{.Currency}}</p>
		{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
		{{if .Error}}<p style="color: #a33;">{{.Error}}</p>{{end}}
	</div>
</body>
</html>`

var body = template.Must(template.New("refund").Parse(layout))

type view struct {
	Subject    string
	EventTitle any
	OrderID    any
	Amount     string
	Currency   any
	Reason     any
	Error      any
}

// Render returns the subject and HTML body for a template key.
func Render(templateKey string, data map[string]any) (string, string, error) {
	subject, ok := subjects[templateKey]
	if !ok {
		return "", "", fmt.Errorf("unknown notification template %q", templateKey)
	}

	v := view{
		Subject:    subject,
		EventTitle: data["event_title"],
		OrderID:    data["order_id"],
		Amount:     formatCents(data["amount_cents"]),
		Currency:   data["currency"],
		Reason:     data["reason"],
		Error:      data["error_message"],
	}

	var buf bytes.Buffer
	if err := body.Execute(&buf, v); err != nil {
		return "", "", err
	}
	return subject, buf.String(), nil
}

func formatCents(v any) string {
	var cents int64
	switch n := v.(type) {
	case int64:
		cents = n
	case int:
		cents = int64(n)
	case float64:
		cents = int64(n)
	default:
		return ""
	}
	return decimal.New(cents, -2).StringFixed(2)
}
