// Package identity resolves users and client records across accountants.
// Client records carry no foreign key to a user; the email address is the
// only link, compared case-insensitively.
package identity

import (
	"bytes"
	"slices"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"contaportal/internal/domain"
	"contaportal/internal/store"
)

// NormalizeEmail returns the comparison key for an email address.
// A Caser keeps state, so each call gets its own.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// SameEmail reports whether two addresses identify the same mailbox.
func SameEmail(a, b string) bool {
	return NormalizeEmail(a) == NormalizeEmail(b)
}

// ClientMatch is a client record together with the accountant that owns it.
// Record points into the resolved state.
type ClientMatch struct {
	AccountantID uuid.UUID
	Record       *domain.ClientRecord
}

// Resolver answers lookups against one state snapshot. It never modifies the
// state, but the pointers it returns alias it, so a caller inside a store
// transaction may mutate through them.
type Resolver struct {
	state *store.State
}

// NewResolver creates a Resolver over st.
func NewResolver(st *store.State) *Resolver {
	return &Resolver{state: st}
}

// FindUserByEmail returns the account registered with email, if any.
func (r *Resolver) FindUserByEmail(email string) (*domain.User, bool) {
	key := NormalizeEmail(email)
	if key == "" {
		return nil, false
	}
	for i := range r.state.Users {
		if NormalizeEmail(r.state.Users[i].Email) == key {
			return &r.state.Users[i], true
		}
	}
	return nil, false
}

// FindUserByID returns the account with id, if any.
func (r *Resolver) FindUserByID(id uuid.UUID) (*domain.User, bool) {
	for i := range r.state.Users {
		if r.state.Users[i].ID == id {
			return &r.state.Users[i], true
		}
	}
	return nil, false
}

// FindClientRecordsByEmail returns every client record, across all
// accountants, whose email matches. The same company may be a client of
// several accountants.
func (r *Resolver) FindClientRecordsByEmail(email string) []ClientMatch {
	key := NormalizeEmail(email)
	if key == "" {
		return nil
	}
	var matches []ClientMatch
	for _, accountantID := range r.accountantIDs() {
		records := r.state.Clients[accountantID]
		for i := range records {
			if NormalizeEmail(records[i].Email) == key {
				matches = append(matches, ClientMatch{AccountantID: accountantID, Record: &records[i]})
			}
		}
	}
	return matches
}

// FindOwningAccountantID returns the accountant whose collection holds the
// client record with clientRecordID.
func (r *Resolver) FindOwningAccountantID(clientRecordID uuid.UUID) (uuid.UUID, bool) {
	for accountantID, records := range r.state.Clients {
		for i := range records {
			if records[i].ID == clientRecordID {
				return accountantID, true
			}
		}
	}
	return uuid.Nil, false
}

// FindClientRecord returns a record from one accountant's collection.
func (r *Resolver) FindClientRecord(accountantID, clientRecordID uuid.UUID) (*domain.ClientRecord, bool) {
	records := r.state.Clients[accountantID]
	for i := range records {
		if records[i].ID == clientRecordID {
			return &records[i], true
		}
	}
	return nil, false
}

// ClientRecordsForUser resolves the user's current email and returns the
// client records it matches. An unknown user has no records.
func (r *Resolver) ClientRecordsForUser(userID uuid.UUID) []ClientMatch {
	user, ok := r.FindUserByID(userID)
	if !ok {
		return nil
	}
	return r.FindClientRecordsByEmail(user.Email)
}

// accountantIDs returns the collection keys in a stable order so that
// lookups are deterministic.
func (r *Resolver) accountantIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.state.Clients))
	for id := range r.state.Clients {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	return ids
}
