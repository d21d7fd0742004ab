// Package email delivers transactional mail through SES, Postmark, or the
// process log.
package email

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"time"
)

// Message is a single outbound email.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier renders the account emails and hands them to a Sender.
type Notifier struct {
	sender      Sender
	frontendURL string
	otpTTL      time.Duration
}

func NewNotifier(sender Sender, frontendURL string, otpTTL time.Duration) *Notifier {
	return &Notifier{sender: sender, frontendURL: frontendURL, otpTTL: otpTTL}
}

// SendVerification mails the one-time code and a link to the verification
// page.
func (n *Notifier) SendVerification(ctx context.Context, to, code string) error {
	return n.sender.Send(ctx, VerificationMessage(to, code, n.otpTTL, n.frontendURL))
}

func VerificationMessage(to, code string, ttl time.Duration, frontendURL string) Message {
	link := frontendURL + "/verifyuser"
	minutes := int(ttl.Minutes())

	textBody := fmt.Sprintf(
		"Your Stremify verification code is %s.\n\nEnter it at %s to verify your email.\n\nThis code expires in %d minutes.",
		code, link, minutes,
	)
	htmlBody := fmt.Sprintf(
		`<p>Your Stremify verification code is:</p><h2 style="letter-spacing:4px">%s</h2>`+
			`<p>Enter it on the <a href="%s">verification page</a> to verify your email.</p>`+
			`<p>This code expires in %d minutes. If you did not sign up, ignore this email.</p>`,
		html.EscapeString(code), html.EscapeString(link), minutes,
	)

	return Message{
		To:       to,
		Subject:  "Email Verification for stremify",
		HTMLBody: htmlBody,
		TextBody: textBody,
	}
}

// LogSender writes messages to the log instead of sending them. Used in
// development.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("email", "to", msg.To, "subject", msg.Subject, "body", msg.TextBody)
	return nil
}
