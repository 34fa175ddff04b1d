package port

import "context"

// Invitation describes the email sent to a client an accountant has invited.
type Invitation struct {
	ToEmail        string
	CompanyName    string
	ContactPerson  string
	AccountantName string
}

// EmailSender defines the contract for sending emails.
type EmailSender interface {
	SendInvitationEmail(ctx context.Context, invitation Invitation) error
}
