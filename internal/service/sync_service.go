package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"contaportal/internal/domain"
	"contaportal/internal/identity"
	"contaportal/internal/port"
	"contaportal/internal/store"
)

// RegisterInput is the DTO for creating an account.
type RegisterInput struct {
	Name            string          `validate:"required"`
	Email           string          `validate:"required,email"`
	Password        string          `validate:"required"`
	Role            domain.UserRole `validate:"required,oneof=CLIENT ACCOUNTANT"`
	AvatarReference string
	RememberMe      bool
}

// UpdateProfileInput is the DTO for a partial profile update. Nil fields
// are left untouched.
type UpdateProfileInput struct {
	Name            *string
	Email           *string `validate:"omitempty,email"`
	AvatarReference *string
}

// FileMeta describes an uploaded file. When Body is set and a FileService is
// configured the body is stored and its reference recorded; otherwise
// FileReference is recorded as given.
type FileMeta struct {
	Title         string `validate:"required"`
	FileName      string
	Size          int64
	Body          io.Reader
	FileReference string
}

// InviteClientInput is the DTO for adding a client to an accountant's portfolio.
type InviteClientInput struct {
	CompanyName     string `validate:"required"`
	TaxID           string
	ContactPerson   string
	Email           string `validate:"required,email"`
	AvatarReference string
	NextDeadline    *time.Time
}

// CreateObligationInput is the DTO for issuing a tax obligation.
type CreateObligationInput struct {
	OwnerUserID uuid.UUID
	Name        string `validate:"required"`
	Amount      decimal.Decimal
	Deadline    time.Time
}

// SyncService applies every command that changes the entity collections and
// keeps users, client records, documents and obligations consistent.
type SyncService interface {
	RegisterUser(ctx context.Context, input RegisterInput) (*domain.User, error)
	UpdateUserProfile(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*domain.User, error)
	UploadDocument(ctx context.Context, uploaderID uuid.UUID, file FileMeta, docType domain.DocumentType) (*domain.Document, error)
	ValidateDocument(ctx context.Context, docID uuid.UUID, status domain.DocumentStatus) (*domain.Document, error)
	ApproveObligation(ctx context.Context, obligationID uuid.UUID) (*domain.TaxObligation, error)

	InviteClient(ctx context.Context, accountantID uuid.UUID, input InviteClientInput) (*domain.ClientRecord, error)
	ToggleClientStatus(ctx context.Context, accountantID, clientID uuid.UUID) (*domain.ClientRecord, error)
	RemoveClient(ctx context.Context, accountantID, clientID uuid.UUID) error
	CreateObligation(ctx context.Context, accountantID uuid.UUID, input CreateObligationInput) (*domain.TaxObligation, error)

	ClientsForAccountant(accountantID uuid.UUID) []domain.ClientRecord
	DocumentsForAccountant(accountantID uuid.UUID) []domain.Document
	DocumentsForUser(userID uuid.UUID) []domain.Document
	ObligationsForUser(userID uuid.UUID) []domain.TaxObligation
	ObligationsForAccountant(accountantID uuid.UUID) []domain.TaxObligation
}

type syncService struct {
	store  *store.Store
	files  FileService
	mailer port.EmailSender
	opts   options
}

// NewSyncService creates a new SyncService. files and mailer may be nil.
func NewSyncService(st *store.Store, files FileService, mailer port.EmailSender, opts ...Option) SyncService {
	return &syncService{
		store:  st,
		files:  files,
		mailer: mailer,
		opts:   buildOptions(opts),
	}
}

func (s *syncService) RegisterUser(ctx context.Context, input RegisterInput) (*domain.User, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := s.opts.policy.Check(input.Password); err != nil {
		return nil, err
	}

	var created domain.User
	var activated int
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		st := tx.State()
		r := identity.NewResolver(st)
		if _, exists := r.FindUserByEmail(input.Email); exists {
			return domain.ErrDuplicateEmail
		}

		now := s.opts.now()
		st.Users = append(st.Users, domain.User{
			ID:              s.opts.newID(),
			Name:            strings.TrimSpace(input.Name),
			Email:           strings.TrimSpace(input.Email),
			Role:            input.Role,
			AvatarReference: input.AvatarReference,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		user := &st.Users[len(st.Users)-1]
		tx.Touch(store.CollectionUsers)

		// Invitations are keyed by email only, so every accountant that
		// invited this address gets its record activated. An accountant
		// account never satisfies a client invitation.
		if user.Role == domain.RoleClient {
			for _, m := range r.FindClientRecordsByEmail(user.Email) {
				activateClient(m.Record, user, now)
				activated++
			}
		}
		if activated > 0 {
			tx.Touch(store.CollectionClients)
		}

		st.Session = &domain.Session{UserID: user.ID, User: *user, RememberMe: input.RememberMe}
		tx.Touch(store.CollectionSession)

		created = *user
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", created.ID.String()).
		Str("role", string(created.Role)).
		Int("activated_clients", activated).
		Msg("syncService.RegisterUser: account created")
	return &created, nil
}

func (s *syncService) UpdateUserProfile(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*domain.User, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, fmt.Errorf("%w: name must not be empty", domain.ErrValidation)
	}

	var updated domain.User
	var synced, activated int
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		st := tx.State()
		r := identity.NewResolver(st)
		user, ok := r.FindUserByID(userID)
		if !ok {
			return domain.ErrUserNotFound
		}

		if input.Email != nil {
			if other, exists := r.FindUserByEmail(*input.Email); exists && other.ID != user.ID {
				return domain.ErrDuplicateEmail
			}
			user.Email = strings.TrimSpace(*input.Email)
		}
		if input.Name != nil {
			user.Name = strings.TrimSpace(*input.Name)
		}
		if input.AvatarReference != nil {
			user.AvatarReference = *input.AvatarReference
		}
		now := s.opts.now()
		user.UpdatedAt = now
		tx.Touch(store.CollectionUsers)

		// Records are re-resolved by the post-update email. An invitation
		// waiting on the new address is accepted the same way registration
		// accepts it.
		if user.Role == domain.RoleClient {
			for _, m := range r.FindClientRecordsByEmail(user.Email) {
				if m.Record.Status == domain.ClientStatusInvited {
					activateClient(m.Record, user, now)
					m.Record.PendingDocumentCount = countPending(st, user.ID)
					activated++
				} else {
					syncClientProfile(m.Record, user, now)
				}
				synced++
			}
			if synced > 0 {
				tx.Touch(store.CollectionClients)
			}
		}

		if st.Session != nil && st.Session.UserID == user.ID {
			st.Session.User = *user
			tx.Touch(store.CollectionSession)
		}

		updated = *user
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID.String()).
		Int("synced_clients", synced).
		Int("activated_clients", activated).
		Msg("syncService.UpdateUserProfile: profile updated")
	return &updated, nil
}

func (s *syncService) UploadDocument(ctx context.Context, uploaderID uuid.UUID, file FileMeta, docType domain.DocumentType) (*domain.Document, error) {
	if err := validateInput(file); err != nil {
		return nil, err
	}
	if !domain.ValidDocumentTypes[docType] {
		return nil, fmt.Errorf("%w: unknown document type %q", domain.ErrValidation, docType)
	}

	var created domain.Document
	var counted int
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		st := tx.State()
		r := identity.NewResolver(st)
		uploader, ok := r.FindUserByID(uploaderID)
		if !ok {
			return domain.ErrUserNotFound
		}
		if uploader.Role != domain.RoleClient {
			return fmt.Errorf("%w: only client accounts upload documents", domain.ErrForbidden)
		}

		doc := domain.Document{
			ID:            s.opts.newID(),
			Title:         strings.TrimSpace(file.Title),
			DocumentType:  docType,
			UploadDate:    s.opts.now(),
			Status:        domain.DocumentStatusPending,
			OwnerUserID:   uploader.ID,
			FileReference: file.FileReference,
		}
		if file.Body != nil && s.files != nil {
			ref, err := s.files.Store(ctx, FileUpload{
				OwnerUserID: uploader.ID,
				DocumentID:  doc.ID,
				FileName:    file.FileName,
				Size:        file.Size,
				Body:        file.Body,
			})
			if err != nil {
				return err
			}
			doc.FileReference = ref
		}
		st.Documents = append(st.Documents, doc)
		tx.Touch(store.CollectionDocuments)

		// A client who was never invited has no records; nothing to count.
		for _, m := range r.FindClientRecordsByEmail(uploader.Email) {
			m.Record.PendingDocumentCount++
			counted++
		}
		if counted > 0 {
			tx.Touch(store.CollectionClients)
		}

		created = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("document_id", created.ID.String()).
		Str("uploader", uploaderID.String()).
		Int("counted_clients", counted).
		Msg("syncService.UploadDocument: document uploaded")
	return &created, nil
}

func (s *syncService) ValidateDocument(ctx context.Context, docID uuid.UUID, status domain.DocumentStatus) (*domain.Document, error) {
	if !domain.ValidDocumentStatuses[status] {
		return nil, fmt.Errorf("%w: unknown document status %q", domain.ErrValidation, status)
	}

	var result domain.Document
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		st := tx.State()
		doc := findDocument(st, docID)
		if doc == nil {
			return domain.ErrNotFound
		}

		prev := doc.Status
		if prev.IsTerminal() {
			return fmt.Errorf("%w: document %s is already %s", domain.ErrInvalidTransition, docID, prev)
		}
		if prev == domain.DocumentStatusReviewing && status == domain.DocumentStatusPending {
			return fmt.Errorf("%w: document %s cannot return to %s", domain.ErrInvalidTransition, docID, status)
		}
		if prev == status {
			result = *doc
			return nil
		}

		now := s.opts.now()
		doc.Status = status
		doc.ReviewedAt = &now
		tx.Touch(store.CollectionDocuments)

		if prev == domain.DocumentStatusPending {
			r := identity.NewResolver(st)
			for _, m := range r.ClientRecordsForUser(doc.OwnerUserID) {
				if m.Record.PendingDocumentCount > 0 {
					m.Record.PendingDocumentCount--
				}
				tx.Touch(store.CollectionClients)
			}
		}

		result = *doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("document_id", docID.String()).
		Str("status", string(result.Status)).
		Msg("syncService.ValidateDocument: document reviewed")
	return &result, nil
}

func (s *syncService) ApproveObligation(ctx context.Context, obligationID uuid.UUID) (*domain.TaxObligation, error) {
	var result domain.TaxObligation
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		st := tx.State()
		var ob *domain.TaxObligation
		for i := range st.Obligations {
			if st.Obligations[i].ID == obligationID {
				ob = &st.Obligations[i]
				break
			}
		}
		if ob == nil {
			return domain.ErrNotFound
		}
		if ob.Status != domain.ObligationStatusPending && ob.Status != domain.ObligationStatusOverdue {
			return fmt.Errorf("%w: obligation %s is already %s", domain.ErrInvalidTransition, obligationID, ob.Status)
		}

		now := s.opts.now()
		ob.Status = domain.ObligationStatusPaid
		ob.PaidAt = &now
		tx.Touch(store.CollectionObligations)

		result = *ob
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("obligation_id", obligationID.String()).Msg("syncService.ApproveObligation: obligation paid")
	return &result, nil
}

func (s *syncService) InviteClient(ctx context.Context, accountantID uuid.UUID, input InviteClientInput) (*domain.ClientRecord, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var record domain.ClientRecord
	var accountantName string
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		st := tx.State()
		r := identity.NewResolver(st)
		accountant, err := requireAccountant(r, accountantID)
		if err != nil {
			return err
		}
		accountantName = accountant.Name

		for _, existing := range st.Clients[accountantID] {
			if identity.SameEmail(existing.Email, input.Email) {
				return domain.ErrDuplicateEmail
			}
		}

		now := s.opts.now()
		rec := domain.ClientRecord{
			ID:                s.opts.newID(),
			OwnerAccountantID: accountantID,
			CompanyName:       strings.TrimSpace(input.CompanyName),
			TaxID:             strings.TrimSpace(input.TaxID),
			ContactPerson:     strings.TrimSpace(input.ContactPerson),
			Email:             strings.TrimSpace(input.Email),
			AvatarReference:   input.AvatarReference,
			Status:            domain.ClientStatusInvited,
			NextDeadline:      input.NextDeadline,
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		// The company may already have an account, e.g. when a second
		// accountant invites it. Link it now and count its pending documents.
		if user, exists := r.FindUserByEmail(rec.Email); exists {
			if user.Role != domain.RoleClient {
				return fmt.Errorf("%w: %s belongs to an accountant account", domain.ErrValidation, rec.Email)
			}
			activateClient(&rec, user, now)
			rec.PendingDocumentCount = countPending(st, user.ID)
		}

		st.Clients[accountantID] = append(st.Clients[accountantID], rec)
		tx.Touch(store.CollectionClients)
		record = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("accountant_id", accountantID.String()).
		Str("client_id", record.ID.String()).
		Str("status", string(record.Status)).
		Msg("syncService.InviteClient: client added")

	if record.Status == domain.ClientStatusInvited && s.mailer != nil {
		inv := port.Invitation{
			ToEmail:        record.Email,
			CompanyName:    record.CompanyName,
			ContactPerson:  record.ContactPerson,
			AccountantName: accountantName,
		}
		if mailErr := s.mailer.SendInvitationEmail(ctx, inv); mailErr != nil {
			log.Warn().Err(mailErr).Str("client_id", record.ID.String()).
				Msg("syncService.InviteClient: invitation email failed")
		}
	}
	return &record, nil
}

func (s *syncService) ToggleClientStatus(ctx context.Context, accountantID, clientID uuid.UUID) (*domain.ClientRecord, error) {
	var result domain.ClientRecord
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		r := identity.NewResolver(tx.State())
		rec, ok := r.FindClientRecord(accountantID, clientID)
		if !ok {
			return domain.ErrNotFound
		}

		switch rec.Status {
		case domain.ClientStatusActive, domain.ClientStatusOverdue:
			rec.Status = domain.ClientStatusInactive
		case domain.ClientStatusInactive:
			user, exists := r.FindUserByEmail(rec.Email)
			if !exists || user.Role != domain.RoleClient {
				return fmt.Errorf("%w: client %s has no matching account", domain.ErrInvalidTransition, clientID)
			}
			rec.Status = domain.ClientStatusActive
		default:
			return fmt.Errorf("%w: client %s is %s", domain.ErrInvalidTransition, clientID, rec.Status)
		}
		rec.UpdatedAt = s.opts.now()
		tx.Touch(store.CollectionClients)

		result = *rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("accountant_id", accountantID.String()).
		Str("client_id", clientID.String()).
		Str("status", string(result.Status)).
		Msg("syncService.ToggleClientStatus: client status changed")
	return &result, nil
}

func (s *syncService) RemoveClient(ctx context.Context, accountantID, clientID uuid.UUID) error {
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		st := tx.State()
		records := st.Clients[accountantID]
		for i := range records {
			if records[i].ID != clientID {
				continue
			}
			remaining := append(records[:i:i], records[i+1:]...)
			if len(remaining) == 0 {
				delete(st.Clients, accountantID)
			} else {
				st.Clients[accountantID] = remaining
			}
			tx.Touch(store.CollectionClients)
			return nil
		}
		return domain.ErrNotFound
	})
	if err != nil {
		return err
	}
	log.Info().
		Str("accountant_id", accountantID.String()).
		Str("client_id", clientID.String()).
		Msg("syncService.RemoveClient: client removed")
	return nil
}

func (s *syncService) CreateObligation(ctx context.Context, accountantID uuid.UUID, input CreateObligationInput) (*domain.TaxObligation, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.OwnerUserID == uuid.Nil {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrValidation)
	}
	if input.Amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative", domain.ErrValidation)
	}
	if input.Deadline.IsZero() {
		return nil, fmt.Errorf("%w: deadline is required", domain.ErrValidation)
	}

	var created domain.TaxObligation
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		st := tx.State()
		r := identity.NewResolver(st)
		if _, err := requireAccountant(r, accountantID); err != nil {
			return err
		}
		owner, ok := r.FindUserByID(input.OwnerUserID)
		if !ok || owner.Role != domain.RoleClient {
			return domain.ErrUserNotFound
		}
		if !managesClient(r, accountantID, owner) {
			return fmt.Errorf("%w: %s is not a client of this accountant", domain.ErrForbidden, owner.Email)
		}

		created = domain.TaxObligation{
			ID:          s.opts.newID(),
			OwnerUserID: owner.ID,
			Name:        strings.TrimSpace(input.Name),
			Deadline:    input.Deadline,
			Amount:      input.Amount,
			Status:      domain.ObligationStatusPending,
		}
		st.Obligations = append(st.Obligations, created)
		tx.Touch(store.CollectionObligations)
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("obligation_id", created.ID.String()).
		Str("owner", created.OwnerUserID.String()).
		Str("amount", created.Amount.StringFixed(2)).
		Msg("syncService.CreateObligation: obligation issued")
	return &created, nil
}

func (s *syncService) ClientsForAccountant(accountantID uuid.UUID) []domain.ClientRecord {
	var out []domain.ClientRecord
	_ = s.store.View(func(st *store.State) error {
		out = append(out, st.Clients[accountantID]...)
		return nil
	})
	return out
}

func (s *syncService) DocumentsForAccountant(accountantID uuid.UUID) []domain.Document {
	var out []domain.Document
	_ = s.store.View(func(st *store.State) error {
		owners := clientUserIDs(st, accountantID)
		for _, d := range st.Documents {
			if owners[d.OwnerUserID] {
				out = append(out, d)
			}
		}
		return nil
	})
	return out
}

func (s *syncService) DocumentsForUser(userID uuid.UUID) []domain.Document {
	var out []domain.Document
	_ = s.store.View(func(st *store.State) error {
		for _, d := range st.Documents {
			if d.OwnerUserID == userID {
				out = append(out, d)
			}
		}
		return nil
	})
	return out
}

func (s *syncService) ObligationsForUser(userID uuid.UUID) []domain.TaxObligation {
	var out []domain.TaxObligation
	_ = s.store.View(func(st *store.State) error {
		for _, o := range st.Obligations {
			if o.OwnerUserID == userID {
				out = append(out, o)
			}
		}
		return nil
	})
	return out
}

func (s *syncService) ObligationsForAccountant(accountantID uuid.UUID) []domain.TaxObligation {
	var out []domain.TaxObligation
	_ = s.store.View(func(st *store.State) error {
		owners := clientUserIDs(st, accountantID)
		for _, o := range st.Obligations {
			if owners[o.OwnerUserID] {
				out = append(out, o)
			}
		}
		return nil
	})
	return out
}

// activateClient links a record to the account that registered its email.
func activateClient(rec *domain.ClientRecord, user *domain.User, now time.Time) {
	syncClientProfile(rec, user, now)
	rec.Status = domain.ClientStatusActive
	id := user.ID
	rec.LinkedUserID = &id
}

// syncClientProfile mirrors the client's own profile onto a record. An empty
// avatar never clears the record's existing one.
func syncClientProfile(rec *domain.ClientRecord, user *domain.User, now time.Time) {
	rec.CompanyName = user.Name
	if user.AvatarReference != "" {
		rec.AvatarReference = user.AvatarReference
	}
	rec.UpdatedAt = now
}

func requireAccountant(r *identity.Resolver, accountantID uuid.UUID) (*domain.User, error) {
	accountant, ok := r.FindUserByID(accountantID)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if accountant.Role != domain.RoleAccountant {
		return nil, fmt.Errorf("%w: %s is not an accountant", domain.ErrForbidden, accountant.Email)
	}
	return accountant, nil
}

func managesClient(r *identity.Resolver, accountantID uuid.UUID, client *domain.User) bool {
	for _, m := range r.FindClientRecordsByEmail(client.Email) {
		if m.AccountantID == accountantID {
			return true
		}
	}
	return false
}

func findDocument(st *store.State, docID uuid.UUID) *domain.Document {
	for i := range st.Documents {
		if st.Documents[i].ID == docID {
			return &st.Documents[i]
		}
	}
	return nil
}

func countPending(st *store.State, userID uuid.UUID) int {
	n := 0
	for _, d := range st.Documents {
		if d.OwnerUserID == userID && d.Status == domain.DocumentStatusPending {
			n++
		}
	}
	return n
}

// clientUserIDs resolves each of the accountant's client records to the
// account currently registered with its email.
func clientUserIDs(st *store.State, accountantID uuid.UUID) map[uuid.UUID]bool {
	r := identity.NewResolver(st)
	owners := map[uuid.UUID]bool{}
	for _, rec := range st.Clients[accountantID] {
		if user, ok := r.FindUserByEmail(rec.Email); ok {
			owners[user.ID] = true
		}
	}
	return owners
}
