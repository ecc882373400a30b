package alert

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"integrity-go/internal/integrity"
)

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// MailNotifier sends each alert as a plain-text email.
type MailNotifier struct {
	addr   string
	host   string
	from   string
	to     []string
	auth   smtp.Auth
	hostID string
	now    func() time.Time
	send   sendFunc
}

// MailOptions configures a MailNotifier.
type MailOptions struct {
	Host     string
	Port     int // 0 means 25
	From     string
	To       []string
	Username string // empty disables authentication
	Password string
	HostID   string // named in the subject so alerts from several machines can be told apart
}

// NewMailNotifier validates opts and creates a notifier.
func NewMailNotifier(opts MailOptions) (*MailNotifier, error) {
	if opts.Host == "" {
		return nil, errors.New("mail_host required for mail alerts")
	}
	if opts.From == "" {
		return nil, errors.New("mail_from required for mail alerts")
	}
	if len(opts.To) == 0 {
		return nil, errors.New("mail_to required for mail alerts")
	}
	port := opts.Port
	if port == 0 {
		port = 25
	}

	var auth smtp.Auth
	if opts.Username != "" {
		auth = smtp.PlainAuth("", opts.Username, opts.Password, opts.Host)
	}

	return &MailNotifier{
		addr:   net.JoinHostPort(opts.Host, strconv.Itoa(port)),
		host:   opts.Host,
		from:   opts.From,
		to:     opts.To,
		auth:   auth,
		hostID: opts.HostID,
		now:    time.Now,
		send:   smtp.SendMail,
	}, nil
}

func (n *MailNotifier) Notify(severity integrity.Severity, message string) error {
	msg := n.compose(severity, message)
	if err := n.send(n.addr, n.auth, n.from, n.to, msg); err != nil {
		return fmt.Errorf("sending mail alert via %s: %w", n.addr, err)
	}
	return nil
}

// compose renders an RFC 5322 message. Header values are stripped of line
// breaks so a crafted file name cannot inject headers.
func (n *MailNotifier) compose(severity integrity.Severity, message string) []byte {
	subject := fmt.Sprintf("[integrity] %s: %s", severity.String(), message)
	if n.hostID != "" {
		subject = fmt.Sprintf("[integrity %s] %s: %s", n.hostID, severity.String(), message)
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", headerValue(n.from))
	fmt.Fprintf(&b, "To: %s\r\n", headerValue(strings.Join(n.to, ", ")))
	fmt.Fprintf(&b, "Subject: %s\r\n", headerValue(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", n.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	fmt.Fprintf(&b, "%s\r\n", message)
	return b.Bytes()
}

func headerValue(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

var _ integrity.Notifier = (*MailNotifier)(nil)
