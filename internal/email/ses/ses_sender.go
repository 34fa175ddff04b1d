package ses

import (
	"context"
	"fmt"
	"html"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"contaportal/internal/port"
)

type sesSender struct {
	client      *sesv2.Client
	fromAddress string
	fromName    string
	frontendURL string
}

// NewSESSender creates a new SES-backed EmailSender.
func NewSESSender(region, fromAddress, fromName, frontendURL string) (port.EmailSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	client := sesv2.NewFromConfig(cfg)
	return &sesSender{
		client:      client,
		fromAddress: fromAddress,
		fromName:    fromName,
		frontendURL: frontendURL,
	}, nil
}

func (s *sesSender) SendInvitationEmail(ctx context.Context, inv port.Invitation) error {
	message := InvitationMessage(inv, s.fromName, s.frontendURL)
	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: []string{inv.ToEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &message.Subject},
				Body: &types.Body{
					Html: &types.Content{Data: &message.HTML},
					Text: &types.Content{Data: &message.Text},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}

// Message is a rendered email.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// InvitationMessage renders the invitation sent to a newly invited client.
func InvitationMessage(inv port.Invitation, productName, frontendURL string) Message {
	greeting := inv.ContactPerson
	if greeting == "" {
		greeting = inv.CompanyName
	}
	registerURL := frontendURL + "/register"

	return Message{
		Subject: fmt.Sprintf("%s invited %s to %s", inv.AccountantName, inv.CompanyName, productName),
		Text: fmt.Sprintf("Hi %s,\n\n%s has invited %s to share documents and tax deadlines on %s.\n"+
			"Create your account with this email address to get started:\n%s\n\n%s Team",
			greeting, inv.AccountantName, inv.CompanyName, productName, registerURL, productName),
		HTML: buildInvitationHTML(greeting, inv.AccountantName, inv.CompanyName, productName, registerURL),
	}
}

func buildInvitationHTML(name, accountant, company, product, registerURL string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">You have been invited</h2>
  <p>Hi %s,</p>
  <p>%s has invited <strong>%s</strong> to share documents and tax deadlines on %s.</p>
  <p style="text-align: center; margin: 30px 0;">
    <a href="%s" style="background-color: #4F46E5; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block;">Create Account</a>
  </p>
  <p>Register with this email address so your accountant can see your uploads.</p>
  <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
  <p style="color: #999; font-size: 12px;">%s</p>
</body>
</html>`,
		html.EscapeString(name), html.EscapeString(accountant), html.EscapeString(company),
		html.EscapeString(product), registerURL, html.EscapeString(product))
}
