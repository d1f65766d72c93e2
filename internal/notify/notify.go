// Package notify sends booking confirmations to patients.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/hackgods/campus-clinic-scheduling/internal/appointment"
	"github.com/hackgods/campus-clinic-scheduling/internal/config"
)

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier e-mails the patient once an appointment is booked.
type SMTPNotifier struct {
	from   string
	sender sender
}

func NewSMTPNotifier(cfg config.SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{
		from:   cfg.From,
		sender: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (n *SMTPNotifier) BookingConfirmed(ctx context.Context, a appointment.Appointment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := confirmationMessage(n.from, a)
	if err := n.sender.DialAndSend(m); err != nil {
		return fmt.Errorf("send confirmation to %s: %w", a.PatientEmail, err)
	}
	return nil
}

func confirmationMessage(from string, a appointment.Appointment) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", a.PatientEmail)
	m.SetHeader("Subject", fmt.Sprintf("Clinic appointment on %s at %s", a.Date, a.Time))
	m.SetBody("text/plain", confirmationBody(a))
	return m
}

func confirmationBody(a appointment.Appointment) string {
	var b strings.Builder

	day := a.Date
	if d, err := time.Parse("2006-01-02", a.Date); err == nil {
		day = d.Format("Monday, January 2, 2006")
	}

	fmt.Fprintf(&b, "Hello %s,\n\n", a.PatientName)
	fmt.Fprintf(&b, "Your %s appointment is booked for %s, %s-%s, with %s.\n", strings.ReplaceAll(a.Type, "-", " "), day, a.Time, a.EndTime, a.NurseName)
	fmt.Fprintf(&b, "Status: %s\n", a.Status)
	if a.Symptoms != nil && *a.Symptoms != "" {
		fmt.Fprintf(&b, "Reported symptoms: %s\n", *a.Symptoms)
	}
	fmt.Fprintf(&b, "Reference: %s\n\n", a.ID)
	b.WriteString("If you can no longer attend, please cancel so the slot can go to another patient.\n")

	return b.String()
}
