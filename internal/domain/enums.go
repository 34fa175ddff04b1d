package domain

// UserRole distinguishes accountants from the client companies they manage.
type UserRole string

const (
	RoleClient     UserRole = "CLIENT"
	RoleAccountant UserRole = "ACCOUNTANT"
)

// ValidUserRoles is the set of assignable roles.
var ValidUserRoles = map[UserRole]bool{
	RoleClient:     true,
	RoleAccountant: true,
}

// ClientStatus is the lifecycle of an accountant's client record.
type ClientStatus string

const (
	ClientStatusInvited  ClientStatus = "INVITED"
	ClientStatusActive   ClientStatus = "ACTIVE"
	ClientStatusInactive ClientStatus = "INACTIVE"
	ClientStatusOverdue  ClientStatus = "OVERDUE"
)

// DocumentType enumerates the kinds of documents a client can upload.
type DocumentType string

const (
	DocumentTypeInvoice        DocumentType = "INVOICE"
	DocumentTypeExpense        DocumentType = "EXPENSE"
	DocumentTypeBankStatement  DocumentType = "BANK_STATEMENT"
	DocumentTypeSalary         DocumentType = "SALARY"
	DocumentTypeTaxDeclaration DocumentType = "TAX_DECLARATION"
)

// ValidDocumentTypes is the set of accepted document types.
var ValidDocumentTypes = map[DocumentType]bool{
	DocumentTypeInvoice:        true,
	DocumentTypeExpense:        true,
	DocumentTypeBankStatement:  true,
	DocumentTypeSalary:         true,
	DocumentTypeTaxDeclaration: true,
}

// DocumentStatus is the review state of an uploaded document.
type DocumentStatus string

const (
	DocumentStatusPending   DocumentStatus = "PENDING"
	DocumentStatusReviewing DocumentStatus = "REVIEWING"
	DocumentStatusApproved  DocumentStatus = "APPROVED"
	DocumentStatusRejected  DocumentStatus = "REJECTED"
)

// ValidDocumentStatuses is the set of known document statuses.
var ValidDocumentStatuses = map[DocumentStatus]bool{
	DocumentStatusPending:   true,
	DocumentStatusReviewing: true,
	DocumentStatusApproved:  true,
	DocumentStatusRejected:  true,
}

// IsTerminal reports whether no further review transition is allowed.
func (s DocumentStatus) IsTerminal() bool {
	return s == DocumentStatusApproved || s == DocumentStatusRejected
}

// ObligationStatus tracks a tax obligation towards payment.
type ObligationStatus string

const (
	ObligationStatusPending ObligationStatus = "PENDING"
	ObligationStatusPaid    ObligationStatus = "PAID"
	ObligationStatusOverdue ObligationStatus = "OVERDUE"
)
