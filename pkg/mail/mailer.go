// Package mail sends platform emails over SMTP. Delivery is always
// fire-and-forget: messages are handed to a background queue and a
// failed send is logged, never surfaced to the triggering request.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ssn-coe/rcms-api/pkg/config"
	"github.com/ssn-coe/rcms-api/pkg/jobs"
)

// Message is a single outbound email.
type Message struct {
	To       string
	ToName   string
	Subject  string
	HTMLBody string
}

// Mailer delivers a single message synchronously.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends mail through a plain-auth SMTP relay.
type SMTPMailer struct {
	cfg    config.MailConfig
	logger *zap.Logger
}

// NewSMTPMailer builds an SMTP mailer from config.
func NewSMTPMailer(cfg config.MailConfig, logger *zap.Logger) *SMTPMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPMailer{cfg: cfg, logger: logger}
}

// Send delivers one message. When SMTP is not configured the message
// is dropped with a debug log so development setups work without a relay.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if !m.cfg.Enabled() {
		m.logger.Debug("smtp not configured, skipping email", zap.String("to", msg.To))
		return nil
	}

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.SenderEmail, m.cfg.Password, m.cfg.Host)

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", m.cfg.SenderName, m.cfg.SenderEmail)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTMLBody)

	if err := smtp.SendMail(addr, auth, m.cfg.SenderEmail, []string{msg.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

// Dispatcher queues messages for asynchronous delivery.
type Dispatcher struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewDispatcher wires a mailer behind a background job queue.
func NewDispatcher(mailer Mailer, cfg config.MailConfig, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(Message)
		if !ok {
			logger.Error("mail job with unexpected payload", zap.String("job_id", job.ID))
			return nil
		}
		return mailer.Send(ctx, msg)
	}

	queue := jobs.NewQueue("mail", handler, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})

	return &Dispatcher{queue: queue, logger: logger}
}

// Start launches the delivery workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the workers.
func (d *Dispatcher) Stop() {
	d.queue.Stop()
}

// Dispatch enqueues messages best-effort. Enqueue failures are logged
// and swallowed: the triggering state transition already committed.
func (d *Dispatcher) Dispatch(msgs ...Message) {
	for _, msg := range msgs {
		job := jobs.Job{ID: uuid.NewString(), Type: "email", Payload: msg}
		if err := d.queue.Enqueue(job); err != nil {
			d.logger.Warn("failed to enqueue email", zap.String("to", msg.To), zap.Error(err))
		}
	}
}
