package notify

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/practice-api/internal/model"
)

// Notifier delivers a human readable notice about a scheduling event.
type Notifier interface {
	Notify(ctx context.Context, subject, body string) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// sender is the part of gomail.Dialer the notifier uses.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPNotifier struct {
	cfg    SMTPConfig
	sender sender
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{
		cfg:    cfg,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (n *SMTPNotifier) Notify(ctx context.Context, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.sender.DialAndSend(n.message(subject, body)); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) message(subject, body string) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", strings.Split(n.cfg.To, ",")...)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)
	return m
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, string, string) error { return nil }

// AppointmentNotice renders the subject and body for an appointment event.
// ok is false for event types that do not notify anyone.
func AppointmentNotice(eventType string, evt model.AppointmentEvent) (subject, body string, ok bool) {
	var verb string
	switch eventType {
	case model.EventAppointmentCreated:
		verb = "booked"
	case model.EventAppointmentMoved:
		verb = "rescheduled"
	case model.EventAppointmentCancelled:
		verb = "cancelled"
	default:
		return "", "", false
	}

	when := evt.StartTime.Format("Mon 02 Jan 2006 15:04")
	subject = fmt.Sprintf("Appointment %s: %s", verb, when)
	body = fmt.Sprintf(
		"Appointment %s was %s.\n\nPractitioner: %s\nClient: %s\nStart: %s\nEnd: %s\nStatus: %s\n",
		evt.AppointmentID, verb, evt.PractitionerID, evt.ClientID,
		evt.StartTime.Format("2006-01-02 15:04 MST"), evt.EndTime.Format("2006-01-02 15:04 MST"), evt.Status,
	)
	return subject, body, true
}
