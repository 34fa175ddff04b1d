package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"contaportal/internal/domain"
)

// DefaultMinPasswordLength is used when no password policy is configured.
const DefaultMinPasswordLength = 6

// PasswordPolicy is the minimal check applied on login and registration.
// Passwords are never stored.
type PasswordPolicy struct {
	MinLength int
}

// Check returns domain.ErrInvalidCredentials when password is unacceptable.
func (p PasswordPolicy) Check(password string) error {
	minLen := p.MinLength
	if minLen <= 0 {
		minLen = DefaultMinPasswordLength
	}
	if strings.TrimSpace(password) == "" || len([]rune(password)) < minLen {
		return domain.ErrInvalidCredentials
	}
	return nil
}

type options struct {
	now     func() time.Time
	newID   func() uuid.UUID
	policy  PasswordPolicy
	latency time.Duration
}

// Option customizes the services built by this package.
type Option func(*options)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator replaces uuid.New.
func WithIDGenerator(gen func() uuid.UUID) Option {
	return func(o *options) { o.newID = gen }
}

// WithPasswordPolicy sets the login and registration password policy.
func WithPasswordPolicy(p PasswordPolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithLatency makes session commands wait d before running, standing in for
// a network round-trip.
func WithLatency(d time.Duration) Option {
	return func(o *options) { o.latency = d }
}

func buildOptions(opts []Option) options {
	o := options{
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.New,
		policy: PasswordPolicy{MinLength: DefaultMinPasswordLength},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateInput runs the struct's validate tags and folds failures into
// domain.ErrValidation.
func validateInput(input any) error {
	if err := validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, err.Error())
	}
	return nil
}
