// utils/email.go
package utils

import (
	"fmt"
	"html"

	"greenexchange/models"

	"github.com/keighl/postmark"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Mailer delivers a single message.
type Mailer interface {
	SendEmail(toEmail, subject, htmlContent string) error
}

// NewMailer picks the provider named by cfg.MailProvider. An empty provider,
// or one without credentials, yields a NoopMailer.
func NewMailer(cfg *Config) (Mailer, error) {
	switch cfg.MailProvider {
	case "":
		return NoopMailer{}, nil
	case "postmark":
		if cfg.PostmarkToken == "" {
			return nil, fmt.Errorf("POSTMARK_API_TOKEN is not set")
		}
		return NewPostmarkMailer(cfg.PostmarkToken, cfg.EmailSender), nil
	case "sendgrid":
		if cfg.SendgridKey == "" {
			return nil, fmt.Errorf("SENDGRID_API_KEY is not set")
		}
		return NewSendgridMailer(cfg.SendgridKey, cfg.EmailSender), nil
	default:
		return nil, fmt.Errorf("unknown MAIL_PROVIDER %q", cfg.MailProvider)
	}
}

// NoopMailer drops every message.
type NoopMailer struct{}

func (NoopMailer) SendEmail(string, string, string) error { return nil }

// PostmarkMailer sends mail through Postmark.
type PostmarkMailer struct {
	client *postmark.Client
	from   string
}

func NewPostmarkMailer(serverToken, from string) *PostmarkMailer {
	return &PostmarkMailer{
		client: postmark.NewClient(serverToken, ""),
		from:   from,
	}
}

func (pm *PostmarkMailer) SendEmail(toEmail, subject, htmlContent string) error {
	_, err := pm.client.SendEmail(postmark.Email{
		From:     pm.from,
		To:       toEmail,
		Subject:  subject,
		HtmlBody: htmlContent,
		TextBody: htmlContent,
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// SendgridMailer sends mail through SendGrid.
type SendgridMailer struct {
	client *sendgrid.Client
	from   string
}

func NewSendgridMailer(apiKey, from string) *SendgridMailer {
	return &SendgridMailer{
		client: sendgrid.NewSendClient(apiKey),
		from:   from,
	}
}

func (sm *SendgridMailer) SendEmail(toEmail, subject, htmlContent string) error {
	message := mail.NewSingleEmail(
		mail.NewEmail("GreenExchange", sm.from),
		subject,
		mail.NewEmail("", toEmail),
		htmlContent,
		htmlContent,
	)
	resp, err := sm.client.Send(message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("failed to send email: sendgrid status %d", resp.StatusCode)
	}
	return nil
}

// SendWelcomeEmail greets a newly registered user.
func SendWelcomeEmail(m Mailer, toEmail, name, baseURL string) error {
	subject := "Welcome to GreenExchange"
	htmlContent := fmt.Sprintf(
		"<strong>Hi %s,</strong><br><br>Your GreenExchange account is ready. <a href=\"%s/login\">Log in</a> to plant your first tree.",
		html.EscapeString(name), baseURL,
	)
	return m.SendEmail(toEmail, subject, htmlContent)
}

// SendPurchaseEmail tells a buyer where to download the certificate.
func SendPurchaseEmail(m Mailer, toEmail, name string, tree *models.Tree, baseURL string) error {
	subject := "Your Tree Plantation Certificate"
	link := fmt.Sprintf("%s/certificate/%s/download", baseURL, tree.ID.Hex())
	htmlContent := fmt.Sprintf(
		"<strong>Dear %s,</strong><br><br>Thank you for buying the tree planted in %s, %s for <strong>INR %.2f</strong>.<br><br>Certificate ID: %s<br><a href=\"%s\">Download your certificate</a>",
		html.EscapeString(name), html.EscapeString(tree.State), html.EscapeString(tree.Distric), tree.Price, tree.ID.Hex(), link,
	)
	return m.SendEmail(toEmail, subject, htmlContent)
}
