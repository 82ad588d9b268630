// Package notifier delivers transactional customer notifications such as
// order confirmations.
package notifier

import (
	"context"
	"fmt"
	"net/smtp"
	"sync"
)

// Notification templates.
const (
	TemplateOrderConfirmed = "order_confirmed"
	TemplateOrderCancelled = "order_cancelled"
	TemplatePaymentFailed  = "payment_failed"
)

// Notifier sends a templated notification to a recipient address.
type Notifier interface {
	Send(ctx context.Context, to, template string, data map[string]string) error
}

// SMTPNotifier sends notifications as plain-text email over SMTP.
type SMTPNotifier struct {
	host     string
	port     int
	from     string
	user     string
	password string
}

// NewSMTPNotifier creates an SMTP-backed notifier.
func NewSMTPNotifier(host string, port int, from, user, password string) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, user: user, password: password}
}

// subjects maps templates to email subject lines.
var subjects = map[string]string{
	TemplateOrderConfirmed: "Your order is confirmed",
	TemplateOrderCancelled: "Your order was cancelled",
	TemplatePaymentFailed:  "There was a problem with your payment",
}

// Send delivers the notification. The body is a simple key/value render;
// templating beyond that lives with the frontend emails, not here.
func (n *SMTPNotifier) Send(ctx context.Context, to, template string, data map[string]string) error {
	subject, ok := subjects[template]
	if !ok {
		return fmt.Errorf("unknown notification template %q", template)
	}

	body := "Subject: " + subject + "\r\n\r\n"
	for k, v := range data {
		body += k + ": " + v + "\r\n"
	}

	addr := fmt.Sprintf("%s:%d", n.host, n.port)
	auth := smtp.PlainAuth("", n.user, n.password, n.host)
	if err := smtp.SendMail(addr, auth, n.from, []string{to}, []byte(body)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

// Recorded is one captured notification.
type Recorded struct {
	To       string
	Template string
	Data     map[string]string
}

// Recorder is a Notifier that captures sends for tests.
type Recorder struct {
	mu   sync.Mutex
	sent []Recorded
}

// NewRecorder creates a recording notifier.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Send records the notification without delivering anything.
func (r *Recorder) Send(ctx context.Context, to, template string, data map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Recorded{To: to, Template: template, Data: data})
	return nil
}

// Sent returns a copy of all recorded notifications.
func (r *Recorder) Sent() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.sent))
	copy(out, r.sent)
	return out
}
