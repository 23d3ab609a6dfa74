package notify

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// SMTPConfig configures the e-mail notifier.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

// SendFunc has the signature of smtp.SendMail.
type SendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier sends a plain text alert e-mail per clip.
type SMTPNotifier struct {
	config SMTPConfig
	auth   smtp.Auth
	send   SendFunc
}

// NewSMTPNotifier creates an e-mail notifier. Authentication is used when a username is set.
func NewSMTPNotifier(config SMTPConfig) *SMTPNotifier {
	if config.Port == 0 {
		config.Port = 587
	}
	n := &SMTPNotifier{config: config, send: smtp.SendMail}
	if config.Username != "" {
		n.auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return n
}

// WithSender replaces the delivery function.
func (n *SMTPNotifier) WithSender(send SendFunc) *SMTPNotifier {
	n.send = send
	return n
}

// Notify sends the alert. The context only gates the start of delivery because net/smtp
// has no cancellation support.
func (n *SMTPNotifier) Notify(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return &NotifyError{Notifier: "smtp", ClipID: event.ClipID, Err: err}
	}

	addr := net.JoinHostPort(n.config.Host, strconv.Itoa(n.config.Port))
	if err := n.send(addr, n.auth, n.config.From, n.config.To, n.message(event)); err != nil {
		return &NotifyError{Notifier: "smtp", ClipID: event.ClipID, Err: errors.Wrapf(err, "send via %s", addr)}
	}
	return nil
}

func (n *SMTPNotifier) message(event Event) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", n.config.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(n.config.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", event.Subject())
	fmt.Fprintf(&b, "Date: %s\r\n", event.StartedAt.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")

	fmt.Fprintf(&b, "Motion was detected in the %s quadrant.\r\n\r\n", event.Quadrant)
	fmt.Fprintf(&b, "Clip:      %d\r\n", event.ClipID)
	fmt.Fprintf(&b, "File:      %s\r\n", event.Path)
	if event.Thumbnail != "" {
		fmt.Fprintf(&b, "Thumbnail: %s\r\n", event.Thumbnail)
	}
	fmt.Fprintf(&b, "Started:   %s\r\n", event.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Duration:  %.1fs (%d frames)\r\n", event.Seconds(), event.Frames)
	fmt.Fprintf(&b, "Event:     %s\r\n", event.ID)
	return b.Bytes()
}
