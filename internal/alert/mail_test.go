package alert

import (
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"integrity-go/internal/integrity"
)

type sentMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func newTestMailNotifier(t *testing.T, opts MailOptions) (*MailNotifier, *[]sentMail) {
	t.Helper()
	n, err := NewMailNotifier(opts)
	if err != nil {
		t.Fatalf("NewMailNotifier() error = %v", err)
	}
	var sent []sentMail
	n.now = func() time.Time { return time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC) }
	n.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, auth: a, from: from, to: to, msg: string(msg)})
		return nil
	}
	return n, &sent
}

func TestMailNotifier_Notify(t *testing.T) {
	n, sent := newTestMailNotifier(t, MailOptions{
		Host:   "smtp.example.com",
		From:   "integrity@example.com",
		To:     []string{"ops@example.com", "me@example.com"},
		HostID: "nas",
	})

	if err := n.Notify(integrity.SeverityCritical, "file corrupted: /data/a.txt"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	if len(*sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(*sent))
	}
	m := (*sent)[0]
	if m.addr != "smtp.example.com:25" {
		t.Errorf("addr = %q, want default port 25", m.addr)
	}
	if m.auth != nil {
		t.Error("auth set without a username")
	}
	if len(m.to) != 2 {
		t.Errorf("to = %v", m.to)
	}
	for _, want := range []string{
		"From: integrity@example.com\r\n",
		"To: ops@example.com, me@example.com\r\n",
		"Subject: [integrity nas] critical: file corrupted: /data/a.txt\r\n",
		"Date: Mon, 15 Jan 2024 10:30:00 +0000\r\n",
		"\r\n\r\nfile corrupted: /data/a.txt\r\n",
	} {
		if !strings.Contains(m.msg, want) {
			t.Errorf("message missing %q:\n%s", want, m.msg)
		}
	}
}

func TestMailNotifier_StripsHeaderInjection(t *testing.T) {
	n, sent := newTestMailNotifier(t, MailOptions{Host: "h", From: "a@b", To: []string{"c@d"}})

	if err := n.Notify(integrity.SeverityCritical, "missing file: /x\r\nBcc: victim@example.com"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	headers, _, _ := strings.Cut((*sent)[0].msg, "\r\n\r\n")
	if strings.Contains(headers, "\r\nBcc:") {
		t.Errorf("injected header survived:\n%s", headers)
	}
}

func TestMailNotifier_AuthAndPort(t *testing.T) {
	n, sent := newTestMailNotifier(t, MailOptions{Host: "smtp.example.com", Port: 587, From: "a@b", To: []string{"c@d"}, Username: "u", Password: "p"})
	if err := n.Notify(integrity.SeverityWarning, "m"); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}
	m := (*sent)[0]
	if m.addr != "smtp.example.com:587" {
		t.Errorf("addr = %q", m.addr)
	}
	if m.auth == nil {
		t.Error("auth = nil, want PLAIN auth when a username is set")
	}
}

func TestMailNotifier_SendError(t *testing.T) {
	n, _ := newTestMailNotifier(t, MailOptions{Host: "h", From: "a@b", To: []string{"c@d"}})
	n.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("connection refused") }

	err := n.Notify(integrity.SeverityCritical, "m")
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Notify() error = %v, want wrapped send error", err)
	}
}

func TestNewMailNotifier_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts MailOptions
	}{
		{name: "no host", opts: MailOptions{From: "a@b", To: []string{"c@d"}}},
		{name: "no from", opts: MailOptions{Host: "h", To: []string{"c@d"}}},
		{name: "no recipients", opts: MailOptions{Host: "h", From: "a@b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewMailNotifier(tt.opts); err == nil {
				t.Error("NewMailNotifier() expected error")
			}
		})
	}
}
