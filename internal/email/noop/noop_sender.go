package noop

import (
	"context"

	"github.com/rs/zerolog/log"

	"contaportal/internal/port"
)

type noopSender struct {
	frontendURL string
}

// NewNoopSender creates a no-op EmailSender that logs invitations instead of sending them.
func NewNoopSender(frontendURL string) port.EmailSender {
	return &noopSender{frontendURL: frontendURL}
}

func (s *noopSender) SendInvitationEmail(_ context.Context, inv port.Invitation) error {
	log.Info().
		Str("to", inv.ToEmail).
		Str("company", inv.CompanyName).
		Str("accountant", inv.AccountantName).
		Str("register_url", s.frontendURL+"/register").
		Msg("noopSender.SendInvitationEmail: invitation not sent")
	return nil
}
