package notifier

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"text/template"

	"github.com/jordan-wright/email"
)

// Sender renders a named template with a context mapping and delivers the
// result to a single recipient. Callers treat delivery as best-effort.
type Sender interface {
	Send(ctx context.Context, templateName string, data map[string]interface{}, subject, to string) error
}

// SMTPSender delivers rendered templates over SMTP.
type SMTPSender struct {
	host string
	port string
	user string
	pass string
	from string

	templates map[string]*template.Template
}

func NewSMTPSender(host, port, user, pass, from string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		user:      user,
		pass:      pass,
		from:      from,
		templates: parseTemplates(),
	}
}

func (s *SMTPSender) Send(ctx context.Context, templateName string, data map[string]interface{}, subject, to string) error {
	tmpl, ok := s.templates[templateName]
	if !ok {
		return fmt.Errorf("unknown mail template %q", templateName)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("render template %q: %w", templateName, err)
	}

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	auth := smtp.PlainAuth("", s.user, s.pass, s.host)

	e := email.NewEmail()
	e.From = s.from
	e.To = []string{to}
	e.Subject = subject
	e.Text = body.Bytes()

	if err := e.Send(addr, auth); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}

func parseTemplates() map[string]*template.Template {
	parsed := make(map[string]*template.Template, len(mailTemplates))
	for name, text := range mailTemplates {
		parsed[name] = template.Must(template.New(name).Parse(text))
	}
	return parsed
}
