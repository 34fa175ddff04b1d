package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"contaportal/internal/port"
)

// MockEmailSender is a mock implementation of port.EmailSender.
type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendInvitationEmail(ctx context.Context, invitation port.Invitation) error {
	args := m.Called(ctx, invitation)
	return args.Error(0)
}
