// Package email sends payment receipts over SMTP.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"

	"ms-ticketcodes/internal/config"
	"ms-ticketcodes/internal/logger"
	"ms-ticketcodes/internal/models"
	"ms-ticketcodes/internal/notify"

	"gopkg.in/gomail.v2"
)

// Dialer is satisfied by *gomail.Dialer.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type Sender struct {
	Dialer       Dialer
	From         string
	EventName    string
	SupportEmail string
	Logger       *logger.Logger
	QR           func(code string) ([]byte, error)
}

// NewSender returns nil when SMTP is not configured; the bridge then skips
// receipts.
func NewSender(cfg config.EmailConfig, log *logger.Logger) *Sender {
	if !cfg.Configured() {
		log.Warn("EMAIL", "SMTP not configured, receipts will not be sent")
		return nil
	}
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	d.SSL = cfg.SMTPPort == 465
	return &Sender{
		Dialer:       d,
		From:         cfg.From,
		EventName:    cfg.EventName,
		SupportEmail: cfg.SupportEmail,
		Logger:       log,
		QR:           QRPNG,
	}
}

type receiptTicket struct {
	models.AssignedTicket
	QRCid string
}

type receiptView struct {
	EventName         string
	SupportEmail      string
	CustomerName      string
	OrderNumber       string
	TicketType        string
	Quantity          int
	Total             string
	Tickets           []receiptTicket
	AssignmentPending bool
	TestMode          bool
}

// SendReceipt mails the payment receipt with one QR image per ticket code.
func (s *Sender) SendReceipt(ctx context.Context, r notify.Receipt) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", r.Order.CustomerEmail)
	m.SetHeader("Subject", fmt.Sprintf("Order Confirmation - %s", r.Order.OrderNumber))

	view := receiptView{
		EventName:         s.EventName,
		SupportEmail:      s.SupportEmail,
		CustomerName:      r.Order.CustomerName,
		OrderNumber:       r.Order.OrderNumber,
		TicketType:        r.TicketTypeName,
		Quantity:          r.Order.Quantity,
		Total:             r.Order.TotalAmount.StringFixed(2),
		AssignmentPending: r.AssignmentPending,
		TestMode:          r.TestMode,
	}
	for i, t := range r.Tickets {
		rt := receiptTicket{AssignedTicket: t}
		if s.QR != nil {
			png, err := s.QR(t.TicketCode)
			if err != nil {
				s.Logger.Warn("EMAIL", fmt.Sprintf("QR for %s failed: %v", t.TicketNumber, err))
			} else {
				rt.QRCid = fmt.Sprintf("ticket-%d.png", i+1)
				m.Embed(rt.QRCid, gomail.SetCopyFunc(func(w io.Writer) error {
					_, err := w.Write(png)
					return err
				}))
			}
		}
		view.Tickets = append(view.Tickets, rt)
	}

	var html bytes.Buffer
	if err := receiptTemplate.Execute(&html, view); err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}
	m.SetBody("text/html", html.String())

	if err := s.Dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send receipt to %s: %w", r.Order.CustomerEmail, err)
	}
	s.Logger.Info("EMAIL", fmt.Sprintf("Receipt for %s sent to %s", r.Order.OrderNumber, r.Order.CustomerEmail))
	return nil
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1>{{.EventName}}</h1>
  <p>Hello {{.CustomerName}},</p>
  <p>Thank you for your purchase! Your payment has been processed and your order is confirmed.</p>
  {{if .TestMode}}<p><strong>This was a test payment.</strong></p>{{end}}
  <h2>Payment Receipt</h2>
  <p><strong>Order Number:</strong> {{.OrderNumber}}</p>
  <p><strong>Ticket Type:</strong> {{.TicketType}}</p>
  <p><strong>Quantity:</strong> {{.Quantity}}</p>
  <p><strong>Total Amount Paid:</strong> &#8369;{{.Total}}</p>
  {{if .Tickets}}<h2>Your Tickets</h2>
  {{range .Tickets}}<div style="margin-bottom: 16px;">
    <p><strong>Ticket #{{.TicketNumber}}</strong><br>Code: <code>{{.TicketCode}}</code></p>
    {{if .QRCid}}<img src="cid:{{.QRCid}}" alt="{{.TicketCode}}" width="160" height="160">{{end}}
  </div>
  {{end}}{{end}}
  {{if .AssignmentPending}}<p>Some of your ticket codes are still being assigned. We will email them as soon as they are ready.</p>{{end}}
  <p>Please keep this email as your payment receipt.</p>
  {{if .SupportEmail}}<p>If you have any questions, please contact us at {{.SupportEmail}}</p>{{end}}
</div>
</body>
</html>
`))
