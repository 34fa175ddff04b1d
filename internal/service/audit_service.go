package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"contaportal/internal/domain"
	"contaportal/internal/identity"
	"contaportal/internal/store"
)

// Rule names reported by AuditService.Check.
const (
	RuleUniqueClientEmail  = "unique_client_email"
	RuleActiveClientLinked = "active_client_linked"
	RulePendingCount       = "pending_count"
	RuleUniqueUserEmail    = "unique_user_email"
	RulePaidTimestamp      = "paid_timestamp"
	RuleLinkedUserDrift    = "linked_user_drift"
)

// Violation is one broken consistency rule.
type Violation struct {
	Rule    string    `json:"rule"`
	Subject uuid.UUID `json:"subject"`
	Message string    `json:"message"`
}

// AuditService inspects the collections for consistency and repairs the
// denormalized pending counters.
type AuditService interface {
	Check() []Violation
	RebuildCounters(ctx context.Context) (int, error)
}

type auditService struct {
	store *store.Store
	opts  options
}

// NewAuditService creates a new AuditService.
func NewAuditService(st *store.Store, opts ...Option) AuditService {
	return &auditService{store: st, opts: buildOptions(opts)}
}

func (s *auditService) Check() []Violation {
	var out []Violation
	_ = s.store.View(func(st *store.State) error {
		out = checkState(st)
		return nil
	})
	return out
}

func checkState(st *store.State) []Violation {
	var out []Violation
	r := identity.NewResolver(st)

	seenUsers := map[string]uuid.UUID{}
	for _, u := range st.Users {
		key := identity.NormalizeEmail(u.Email)
		if first, dup := seenUsers[key]; dup {
			out = append(out, Violation{
				Rule:    RuleUniqueUserEmail,
				Subject: u.ID,
				Message: fmt.Sprintf("email %s is also used by %s", u.Email, first),
			})
			continue
		}
		seenUsers[key] = u.ID
	}

	for accountantID, records := range st.Clients {
		seen := map[string]bool{}
		for i := range records {
			rec := &records[i]
			key := identity.NormalizeEmail(rec.Email)
			if seen[key] {
				out = append(out, Violation{
					Rule:    RuleUniqueClientEmail,
					Subject: rec.ID,
					Message: fmt.Sprintf("accountant %s has %s more than once", accountantID, rec.Email),
				})
			}
			seen[key] = true

			user, linked := r.FindUserByEmail(rec.Email)
			if rec.Status == domain.ClientStatusActive && (!linked || user.Role != domain.RoleClient) {
				out = append(out, Violation{
					Rule:    RuleActiveClientLinked,
					Subject: rec.ID,
					Message: fmt.Sprintf("active client %s has no client account", rec.Email),
				})
			}

			want := 0
			if linked {
				want = countPending(st, user.ID)
			}
			if rec.PendingDocumentCount != want {
				out = append(out, Violation{
					Rule:    RulePendingCount,
					Subject: rec.ID,
					Message: fmt.Sprintf("pending count is %d, documents say %d", rec.PendingDocumentCount, want),
				})
			}

			if rec.LinkedUserID != nil && (!linked || user.ID != *rec.LinkedUserID) {
				out = append(out, Violation{
					Rule:    RuleLinkedUserDrift,
					Subject: rec.ID,
					Message: fmt.Sprintf("activated by %s but %s now resolves elsewhere", *rec.LinkedUserID, rec.Email),
				})
			}
		}
	}

	for _, o := range st.Obligations {
		if o.Status == domain.ObligationStatusPaid && o.PaidAt == nil {
			out = append(out, Violation{
				Rule:    RulePaidTimestamp,
				Subject: o.ID,
				Message: "obligation is paid without a payment time",
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Rule != out[j].Rule {
			return out[i].Rule < out[j].Rule
		}
		return out[i].Subject.String() < out[j].Subject.String()
	})
	return out
}

// RebuildCounters recomputes every pending counter from the documents and
// returns how many records changed.
func (s *auditService) RebuildCounters(ctx context.Context) (int, error) {
	fixed := 0
	err := s.store.Update(ctx, func(tx *store.Tx) error {
		st := tx.State()
		r := identity.NewResolver(st)
		now := s.opts.now()
		for accountantID := range st.Clients {
			records := st.Clients[accountantID]
			for i := range records {
				want := 0
				if user, ok := r.FindUserByEmail(records[i].Email); ok {
					want = countPending(st, user.ID)
				}
				if records[i].PendingDocumentCount != want {
					records[i].PendingDocumentCount = want
					records[i].UpdatedAt = now
					fixed++
				}
			}
		}
		if fixed > 0 {
			tx.Touch(store.CollectionClients)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Info().Int("fixed", fixed).Msg("auditService.RebuildCounters: counters rebuilt")
	return fixed, nil
}
