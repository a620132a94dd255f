package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/apnisec/apiserver/config"
)

// SMTPBackend sends notification email over implicit-TLS SMTP.
type SMTPBackend struct {
	host        string
	port        string
	username    string
	password    string
	from        string
	frontendURL string
}

func NewSMTPBackend(cfg config.SMTPConfig, from, frontendURL string) *SMTPBackend {
	return &SMTPBackend{
		host:        cfg.Host,
		port:        cfg.Port,
		username:    cfg.Username,
		password:    cfg.Password,
		from:        from,
		frontendURL: frontendURL,
	}
}

func (b *SMTPBackend) Send(ctx context.Context, ev Event) error {
	if strings.TrimSpace(b.host) == "" {
		return errors.New("smtp host is not configured")
	}

	subject, body := b.render(ev)
	msg := []byte(
		fmt.Sprintf("From: %s\r\n", b.from) +
			fmt.Sprintf("To: %s\r\n", ev.To) +
			fmt.Sprintf("Subject: %s\r\n", subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=\"utf-8\"\r\n" +
			"\r\n" +
			body,
	)

	dialer := &net.Dialer{}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}
	conn, err := tls.DialWithDialer(dialer, "tcp", b.host+":"+b.port, &tls.Config{ServerName: b.host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, b.host)
	if err != nil {
		return err
	}
	defer client.Quit()

	if b.username != "" {
		auth := smtp.PlainAuth("", b.username, b.password, b.host)
		if err := client.Auth(auth); err != nil {
			return err
		}
	}

	if err := client.Mail(b.from); err != nil {
		return err
	}
	if err := client.Rcpt(ev.To); err != nil {
		return err
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

func (b *SMTPBackend) Close() error {
	return nil
}

var issueTypeLabels = map[string]string{
	"cloud-security":    "Cloud Security",
	"reteam-assessment": "Reteam Assessment",
	"vapt":              "VAPT",
}

func (b *SMTPBackend) render(ev Event) (subject, body string) {
	dashboard := b.frontendURL + "/dashboard"

	switch ev.Kind {
	case KindWelcome:
		subject = "Welcome to ApniSec - Your Cybersecurity Partner"
		body = fmt.Sprintf(`<html><body>
<h1>Welcome to ApniSec!</h1>
<p>Thank you for joining ApniSec, your trusted partner in cybersecurity solutions.</p>
<ul>
<li><strong>Cloud Security</strong> - Protect your cloud infrastructure</li>
<li><strong>Reteam Assessment</strong> - Evaluate your security team's capabilities</li>
<li><strong>VAPT</strong> - Vulnerability Assessment and Penetration Testing</li>
</ul>
<p>Get started by logging into your dashboard and creating your first security issue.</p>
<p><a href="%s">Go to Dashboard</a></p>
</body></html>`, dashboard)

	case KindIssueCreated:
		title, details := "", ""
		if ev.Issue != nil {
			title = ev.Issue.Title
			label := issueTypeLabels[ev.Issue.Type]
			if label == "" {
				label = ev.Issue.Type
			}
			details = fmt.Sprintf(`<p><strong>Type:</strong> %s</p>
<p><strong>Title:</strong> %s</p>
<p><strong>Priority:</strong> %s</p>
<p><strong>Status:</strong> %s</p>`, label, ev.Issue.Title, ev.Issue.Priority, ev.Issue.Status)
		}
		subject = fmt.Sprintf("New Issue Created: %s", title)
		body = fmt.Sprintf(`<html><body>
<h1>New Issue Created</h1>
<p>Your security issue has been successfully created and is now being tracked.</p>
%s
<p><a href="%s">View Dashboard</a></p>
</body></html>`, details, dashboard)

	case KindProfileUpdated:
		subject = "Profile Updated Successfully"
		body = `<html><body>
<h1>Profile Updated</h1>
<p>Your profile has been successfully updated.</p>
<p>If you did not make this change, please contact our support team immediately.</p>
</body></html>`

	default:
		subject = "ApniSec Notification"
		body = "<html><body><p>You have a new notification.</p></body></html>"
	}
	return subject, body
}
