// Package delivery reads the day cache and turns each item into one
// BCC'd multipart email over implicit-TLS SMTP. Delivery never generates
// content: a date without a cache is simply nothing to send.
package delivery

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/go-gomail/gomail"

	"foreversister/internal/types"
)

// MailDialer opens SMTP connections. Satisfied by *gomail.Dialer;
// implemented by a fake in tests.
type MailDialer interface {
	Dial() (gomail.SendCloser, error)
}

// CacheReader is the day-cache dependency of the sender.
type CacheReader interface {
	Read(date string) (*types.DayCache, error)
	WasSent(date string) bool
	MarkSent(date string) error
}

// SenderConfig holds the configuration for creating a Sender.
type SenderConfig struct {
	FromEmail string
	FromName  string
	Logger    *slog.Logger
}

// Sender delivers a day's cached content.
type Sender struct {
	dialer    MailDialer
	cache     CacheReader
	fromEmail string
	fromName  string
	logger    *slog.Logger
}

// NewDialer builds the production SMTP dialer with implicit TLS, the mode
// mail providers expose on port 465.
func NewDialer(host string, port int, email string, key types.SecretString) *gomail.Dialer {
	d := gomail.NewDialer(host, port, email, key.Unmask())
	d.SSL = true
	return d
}

// NewSender creates a Sender.
func NewSender(dialer MailDialer, cache CacheReader, cfg SenderConfig) *Sender {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		dialer:    dialer,
		cache:     cache,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

// Send delivers every item of the day cache for date. It returns false
// with no error, and performs no network I/O, when no cache exists for the
// date or the date was already delivered.
//
// Items are sent in cache order over a single SMTP connection. A failure
// aborts the remaining items and leaves no sent marker, so the whole day
// is retried on the next run. The marker is written only after a clean
// run covering every item.
func (s *Sender) Send(ctx context.Context, date string) (bool, error) {
	if s.cache.WasSent(date) {
		s.logger.InfoContext(ctx, "day already delivered, skipping", "date", date)
		return false, nil
	}

	doc, err := s.cache.Read(date)
	if err != nil {
		return false, err
	}
	if doc == nil {
		s.logger.InfoContext(ctx, "no day cache to deliver", "date", date)
		return false, nil
	}
	if len(doc.Items) == 0 {
		// An empty document means generation ran and found no eligible
		// segments. Mark it so re-runs stop re-reading it.
		if err := s.cache.MarkSent(date); err != nil {
			return false, err
		}
		return false, nil
	}

	conn, err := s.dialer.Dial()
	if err != nil {
		return false, types.NewAppError(types.ErrCodeUpstreamMail, "failed to connect to mail server", err)
	}
	defer conn.Close()

	for i, item := range doc.Items {
		msg := s.buildMessage(item)
		if err := gomail.Send(conn, msg); err != nil {
			s.logger.ErrorContext(ctx, "delivery failed, aborting remaining items",
				"date", date,
				"item", i,
				"kind", string(item.Kind),
				"salutation", string(item.Salutation),
				"error", err,
			)
			return false, types.NewAppError(types.ErrCodeUpstreamMail, "failed to send mail", err)
		}
		s.logger.InfoContext(ctx, "mail sent",
			"date", date,
			"kind", string(item.Kind),
			"salutation", string(item.Salutation),
			"recipients", len(item.Recipients),
			"subject", item.Subject,
		)
	}

	if err := s.cache.MarkSent(date); err != nil {
		return true, err
	}
	return true, nil
}

// buildMessage renders one cache item as a multipart message. Recipients
// go on BCC so they cannot see each other; the visible To is the sender's
// own address. The plain-text part carries the bare body for clients that
// do not render HTML; the HTML part inlines the illustration by cid.
func (s *Sender) buildMessage(item types.CacheItem) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.fromEmail, s.fromName)
	msg.SetAddressHeader("To", s.fromEmail, s.fromName)
	msg.SetHeader("Bcc", item.Recipients...)
	msg.SetHeader("Subject", item.Subject)

	msg.SetBody("text/plain", item.Text)
	if item.ImagePath != "" {
		msg.AddAlternative("text/html", htmlBody(item.Text, filepath.Base(item.ImagePath)))
		msg.Embed(item.ImagePath)
	} else {
		msg.AddAlternative("text/html", htmlBody(item.Text, ""))
	}
	return msg
}

// SendVerification mails a one-time code for a subscriber mutation. Sent
// directly to the single recipient, plain text only.
func (s *Sender) SendVerification(ctx context.Context, email, code, action string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.fromEmail, s.fromName)
	msg.SetHeader("To", email)
	msg.SetHeader("Subject", "YourForeverSister 验证码")
	msg.SetBody("text/plain", fmt.Sprintf("操作：%s\n验证码：%s\n有效期10分钟。", action, code))

	conn, err := s.dialer.Dial()
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamMail, "failed to connect to mail server", err)
	}
	defer conn.Close()

	if err := gomail.Send(conn, msg); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamMail, "failed to send verification mail", err)
	}

	s.logger.InfoContext(ctx, "verification mail sent", "action", action)
	return nil
}

// htmlBody wraps the plain-text body in minimal HTML, preserving line
// breaks, with the illustration inlined above the text when present.
func htmlBody(text, imageCID string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	if imageCID != "" {
		b.WriteString(`<p><img src="cid:` + imageCID + `" alt="" style="max-width:100%"></p>`)
	}
	b.WriteString("<p>")
	b.WriteString(strings.ReplaceAll(html.EscapeString(text), "\n", "<br>"))
	b.WriteString("</p></body></html>")
	return b.String()
}

// Compile-time interface compliance check.
var _ MailDialer = (*gomail.Dialer)(nil)
