package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User is a registered account, either an accountant or a client company.
type User struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            UserRole  `json:"role"`
	AvatarReference string    `json:"avatar_reference,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ClientRecord is one accountant's view of a client company.
// Records are matched to users by email; LinkedUserID only remembers which
// account activated the record.
type ClientRecord struct {
	ID                   uuid.UUID    `json:"id"`
	OwnerAccountantID    uuid.UUID    `json:"owner_accountant_id"`
	CompanyName          string       `json:"company_name"`
	TaxID                string       `json:"tax_id"`
	ContactPerson        string       `json:"contact_person"`
	Email                string       `json:"email"`
	AvatarReference      string       `json:"avatar_reference,omitempty"`
	Status               ClientStatus `json:"status"`
	PendingDocumentCount int          `json:"pending_document_count"`
	NextDeadline         *time.Time   `json:"next_deadline,omitempty"`
	LinkedUserID         *uuid.UUID   `json:"linked_user_id,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

// Document is the metadata of one uploaded file.
type Document struct {
	ID            uuid.UUID      `json:"id"`
	Title         string         `json:"title"`
	DocumentType  DocumentType   `json:"document_type"`
	UploadDate    time.Time      `json:"upload_date"`
	Status        DocumentStatus `json:"status"`
	OwnerUserID   uuid.UUID      `json:"owner_user_id"`
	FileReference string         `json:"file_reference,omitempty"`
	ReviewedAt    *time.Time     `json:"reviewed_at,omitempty"`
}

// TaxObligation is a payment or declaration an accountant issues to a client.
type TaxObligation struct {
	ID          uuid.UUID        `json:"id"`
	OwnerUserID uuid.UUID        `json:"owner_user_id"`
	Name        string           `json:"name"`
	Deadline    time.Time        `json:"deadline"`
	Amount      decimal.Decimal  `json:"amount"`
	Status      ObligationStatus `json:"status"`
	PaidAt      *time.Time       `json:"paid_at,omitempty"`
}

// Session is the active session pointer together with a cached copy of the
// signed-in user.
type Session struct {
	UserID     uuid.UUID `json:"user_id"`
	User       User      `json:"user"`
	RememberMe bool      `json:"remember_me"`
}
