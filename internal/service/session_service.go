package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"contaportal/internal/domain"
	"contaportal/internal/identity"
	"contaportal/internal/store"
)

// LoginInput is the DTO for login requests.
type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
}

// SessionService owns the active session pointer.
type SessionService interface {
	Login(ctx context.Context, input LoginInput) (*domain.User, error)
	Register(ctx context.Context, input RegisterInput) (*domain.User, error)
	Logout(ctx context.Context) error
	Current() (*domain.User, bool)
}

type sessionService struct {
	store *store.Store
	sync  SyncService
	opts  options
}

// NewSessionService creates a new SessionService. Registration is delegated
// to syncSvc.
func NewSessionService(st *store.Store, syncSvc SyncService, opts ...Option) SessionService {
	return &sessionService{
		store: st,
		sync:  syncSvc,
		opts:  buildOptions(opts),
	}
}

func (s *sessionService) Login(ctx context.Context, input LoginInput) (*domain.User, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}

	var signedIn domain.User
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		st := tx.State()
		user, ok := identity.NewResolver(st).FindUserByEmail(input.Email)
		if !ok {
			return domain.ErrUserNotFound
		}
		if err := s.opts.policy.Check(input.Password); err != nil {
			return err
		}
		st.Session = &domain.Session{UserID: user.ID, User: *user, RememberMe: input.RememberMe}
		tx.Touch(store.CollectionSession)
		signedIn = *user
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", signedIn.ID.String()).Msg("sessionService.Login: signed in")
	return &signedIn, nil
}

func (s *sessionService) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	// RegisterUser establishes the session in the same transaction that
	// creates the account.
	return s.sync.RegisterUser(ctx, input)
}

func (s *sessionService) Logout(ctx context.Context) error {
	var userID string
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		st := tx.State()
		if st.Session != nil {
			userID = st.Session.UserID.String()
		}
		st.Session = nil
		tx.Touch(store.CollectionSession)
		return nil
	})
	if err != nil {
		return err
	}
	log.Info().Str("user_id", userID).Msg("sessionService.Logout: session cleared")
	return nil
}

func (s *sessionService) Current() (*domain.User, bool) {
	var user *domain.User
	_ = s.store.View(func(st *store.State) error {
		if st.Session != nil {
			u := st.Session.User
			user = &u
		}
		return nil
	})
	return user, user != nil
}

// wait is the command's single suspend point. It happens before the store
// is touched, so a cancelled context leaves no trace.
func (s *sessionService) wait(ctx context.Context) error {
	if s.opts.latency <= 0 {
		return nil
	}
	timer := time.NewTimer(s.opts.latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
