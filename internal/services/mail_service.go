package services

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	log "github.com/sirupsen/logrus"

	"exampattern/internal/config"
)

const appName = "Exam Pattern Analyzer"

type IMailService interface {
	SendVerificationEmail(to, name, token string) error
	SendMailToResetPassword(to, token string) error
	SendPurchaseReceipt(to string, tokens int64, amount, transactionID string) error
}

// NewMailService returns an SMTP mailer, or a logging mailer when no SMTP
// host is configured so local setups can still read the links.
func NewMailService(cfg config.SMTPConfig, baseURL string) IMailService {
	renderer := newMailRenderer(baseURL)
	if strings.TrimSpace(cfg.Host) == "" {
		log.Warn("SMTP_HOST not set, outgoing mail will only be logged")
		return &logMailService{renderer: renderer}
	}
	return &smtpMailService{cfg: cfg, renderer: renderer}
}

type EmailData struct {
	Title     string
	Intro     string
	ButtonURL string
	ButtonTxt string
	AppName   string
	Year      int
}

type renderedMail struct {
	Subject string
	HTML    string
	Text    string
	Link    string
}

type mailRenderer struct {
	baseURL string
	html    *template.Template
	text    *texttemplate.Template
}

func newMailRenderer(baseURL string) *mailRenderer {
	return &mailRenderer{
		baseURL: strings.TrimRight(baseURL, "/"),
		html:    template.Must(template.New("mailHTML").Parse(baseHTMLTemplate)),
		text:    texttemplate.Must(texttemplate.New("mailText").Parse(plainTextTemplate)),
	}
}

func (r *mailRenderer) render(subject, intro, buttonTxt, link string) (*renderedMail, error) {
	data := EmailData{
		Title:     subject,
		Intro:     intro,
		ButtonURL: link,
		ButtonTxt: buttonTxt,
		AppName:   appName,
		Year:      time.Now().Year(),
	}
	var hb, tb bytes.Buffer
	if err := r.html.Execute(&hb, data); err != nil {
		return nil, err
	}
	if err := r.text.Execute(&tb, data); err != nil {
		return nil, err
	}
	return &renderedMail{Subject: subject, HTML: hb.String(), Text: tb.String(), Link: link}, nil
}

func (r *mailRenderer) verification(name, token string) (*renderedMail, error) {
	link := fmt.Sprintf("%s/auth/verify-email?token=%s", r.baseURL, url.QueryEscape(token))
	greeting := "Welcome!"
	if name != "" {
		greeting = fmt.Sprintf("Welcome, %s!", name)
	}
	return r.render("Verify your email",
		greeting+" Confirm your email address to start analyzing exam patterns. The link is valid for 24 hours.",
		"Verify Email", link)
}

func (r *mailRenderer) reset(token string) (*renderedMail, error) {
	link := fmt.Sprintf("%s/reset-password?token=%s", r.baseURL, url.QueryEscape(token))
	return r.render("Reset your password",
		"We received a request to reset your password. The link is valid for one hour. If you did not request this, you can ignore this email.",
		"Reset Password", link)
}

func (r *mailRenderer) receipt(tokens int64, amount, transactionID string) (*renderedMail, error) {
	return r.render("Your token purchase",
		fmt.Sprintf("Thanks for your purchase of %d tokens for $%s. Transaction reference: %s.", tokens, amount, transactionID),
		"", "")
}

type smtpMailService struct {
	cfg      config.SMTPConfig
	renderer *mailRenderer
}

func (s *smtpMailService) SendVerificationEmail(to, name, token string) error {
	m, err := s.renderer.verification(name, token)
	if err != nil {
		return err
	}
	return s.send(to, m)
}

func (s *smtpMailService) SendMailToResetPassword(to, token string) error {
	m, err := s.renderer.reset(token)
	if err != nil {
		return err
	}
	return s.send(to, m)
}

func (s *smtpMailService) SendPurchaseReceipt(to string, tokens int64, amount, transactionID string) error {
	m, err := s.renderer.receipt(tokens, amount, transactionID)
	if err != nil {
		return err
	}
	return s.send(to, m)
}

func (s *smtpMailService) send(to string, m *renderedMail) error {
	msg := buildMIMEMessage(s.formatFromHeader(), to, m)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	tlsCfg := &tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}

	var (
		conn net.Conn
		err  error
	)
	if s.cfg.UseSSL {
		conn, err = tls.DialWithDialer(&net.Dialer{Timeout: 10 * time.Second}, "tcp", addr, tlsCfg)
	} else {
		conn, err = (&net.Dialer{Timeout: 10 * time.Second}).Dial("tcp", addr)
	}
	if err != nil {
		return err
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer c.Quit()

	if !s.cfg.UseSSL {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err = c.StartTLS(tlsCfg); err != nil {
				return err
			}
		}
	}
	if s.cfg.Username != "" {
		if err = c.Auth(auth); err != nil {
			return err
		}
	}
	if err = c.Mail(s.cfg.From); err != nil {
		return err
	}
	if err = c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		return err
	}
	return w.Close()
}

func (s *smtpMailService) formatFromHeader() string {
	name := strings.TrimSpace(s.cfg.FromName)
	if name == "" {
		return s.cfg.From
	}
	return fmt.Sprintf("%s <%s>", mime.BEncoding.Encode("UTF-8", name), s.cfg.From)
}

func buildMIMEMessage(from, to string, m *renderedMail) []byte {
	boundary := fmt.Sprintf("alt_%d", time.Now().UnixNano())

	var msg bytes.Buffer
	write := func(format string, a ...any) { _, _ = fmt.Fprintf(&msg, format, a...) }

	write("From: %s\r\n", from)
	write("To: %s\r\n", to)
	write("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", m.Subject))
	write("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	write("MIME-Version: 1.0\r\n")
	write("Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	write("--%s\r\n", boundary)
	write("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	write("%s\r\n\r\n", m.Text)

	write("--%s\r\n", boundary)
	write("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	write("%s\r\n\r\n", m.HTML)

	write("--%s--\r\n", boundary)
	return msg.Bytes()
}

type logMailService struct {
	renderer *mailRenderer
}

func (l *logMailService) SendVerificationEmail(to, name, token string) error {
	m, err := l.renderer.verification(name, token)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"to": to, "subject": m.Subject, "link": m.Link}).Info("mail not sent")
	return nil
}

func (l *logMailService) SendMailToResetPassword(to, token string) error {
	m, err := l.renderer.reset(token)
	if err != nil {
		return err
	}
	log.WithFields(log.Fields{"to": to, "subject": m.Subject, "link": m.Link}).Info("mail not sent")
	return nil
}

func (l *logMailService) SendPurchaseReceipt(to string, tokens int64, amount, transactionID string) error {
	log.WithFields(log.Fields{"to": to, "tokens": tokens, "amount": amount, "transaction_id": transactionID}).
		Info("receipt not sent")
	return nil
}

const baseHTMLTemplate = `<!doctype html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width,initial-scale=1">
  <title>{{.Title}}</title>
  <style>
    body { margin: 0; padding: 0; background: #f1f5f9; color: #0f172a; font-family: -apple-system, "Segoe UI", Roboto, Arial, sans-serif; }
    .container { max-width: 560px; margin: 40px auto; background: #ffffff; border-radius: 12px; overflow: hidden; }
    .header { padding: 24px 32px; background: #1e3a8a; color: #ffffff; font-weight: 700; }
    .hero { padding: 32px; }
    .btn { display: inline-block; padding: 12px 28px; background: #2563eb; color: #ffffff; border-radius: 8px; text-decoration: none; }
    .muted { color: #64748b; font-size: 13px; }
    .footer { padding: 16px 32px; color: #94a3b8; font-size: 12px; }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">{{.AppName}}</div>
    <div class="hero">
      <h1>{{.Title}}</h1>
      <p>{{.Intro}}</p>
      {{if .ButtonURL}}
        <p><a class="btn" href="{{.ButtonURL}}">{{.ButtonTxt}}</a></p>
        <p class="muted">If the button doesn't work, paste this link into your browser:<br>{{.ButtonURL}}</p>
      {{end}}
    </div>
    <div class="footer">© {{.Year}} {{.AppName}}</div>
  </div>
</body>
</html>`

const plainTextTemplate = `{{.Title}}

{{.Intro}}
{{if .ButtonURL}}
Open this link:
{{.ButtonURL}}
{{end}}
{{.AppName}} (c) {{.Year}}
`
