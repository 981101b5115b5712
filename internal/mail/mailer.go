package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Queue accepts messages for background delivery. *Dispatcher implements it.
type Queue interface {
	Enqueue(msg Message) error
}

// Mailer renders account emails and queues them.
type Mailer struct {
	queue    Queue
	baseURL  string
	tokenTTL time.Duration
}

// NewMailer builds links against baseURL (e.g. "https://app.example.com").
// tokenTTL is only used to tell the reader when the link stops working.
func NewMailer(queue Queue, baseURL string, tokenTTL time.Duration) *Mailer {
	return &Mailer{
		queue:    queue,
		baseURL:  strings.TrimRight(baseURL, "/"),
		tokenTTL: tokenTTL,
	}
}

type linkData struct {
	Username string
	Link     string
	Expires  string
}

// SendVerification queues the email-verification link for a new account.
func (m *Mailer) SendVerification(to, username, token string) error {
	return m.send(to, "Verify your email", "verify_email.html", username, m.link("verify-email", token),
		"Open this link to verify your email address:")
}

// SendPasswordReset queues a single-use password reset link.
func (m *Mailer) SendPasswordReset(to, username, token string) error {
	return m.send(to, "Reset your password", "reset_password.html", username, m.link("reset-password", token),
		"Open this link to choose a new password:")
}

func (m *Mailer) link(route, token string) string {
	return m.baseURL + "/" + route + "/" + url.PathEscape(token)
}

func (m *Mailer) send(to, subject, tmpl, username, link, lead string) error {
	data := linkData{Username: username, Link: link, Expires: m.tokenTTL.String()}

	var html bytes.Buffer
	if err := templates.ExecuteTemplate(&html, tmpl, data); err != nil {
		return fmt.Errorf("mail: rendering %s: %w", tmpl, err)
	}
	text := fmt.Sprintf("Hi %s,\n\n%s\n%s\n\nThe link expires in %s.\n", username, lead, link, data.Expires)

	return m.queue.Enqueue(Message{To: to, Subject: subject, Text: text, HTML: html.String()})
}
