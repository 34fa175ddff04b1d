// Package export renders an accountant's portfolio as CSV or XLSX.
package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"contaportal/internal/domain"
	"contaportal/internal/identity"
	"contaportal/internal/store"
)

// Report is a point-in-time copy of everything one accountant sees.
type Report struct {
	Accountant  domain.User
	Clients     []domain.ClientRecord
	Documents   []domain.Document
	Obligations []domain.TaxObligation
	// OwnerNames maps a client account to the company name on its record.
	OwnerNames  map[uuid.UUID]string
	GeneratedAt time.Time
}

// NewReport collects the accountant's clients and the documents and
// obligations of the accounts those clients resolve to.
func NewReport(st *store.State, accountantID uuid.UUID, now time.Time) (Report, error) {
	r := identity.NewResolver(st)
	accountant, ok := r.FindUserByID(accountantID)
	if !ok {
		return Report{}, domain.ErrUserNotFound
	}
	if accountant.Role != domain.RoleAccountant {
		return Report{}, fmt.Errorf("%w: %s is not an accountant", domain.ErrForbidden, accountant.Email)
	}

	report := Report{
		Accountant:  *accountant,
		Clients:     append([]domain.ClientRecord(nil), st.Clients[accountantID]...),
		OwnerNames:  map[uuid.UUID]string{},
		GeneratedAt: now,
	}
	for _, rec := range report.Clients {
		if user, ok := r.FindUserByEmail(rec.Email); ok && user.Role == domain.RoleClient {
			report.OwnerNames[user.ID] = rec.CompanyName
		}
	}
	for _, d := range st.Documents {
		if _, ok := report.OwnerNames[d.OwnerUserID]; ok {
			report.Documents = append(report.Documents, d)
		}
	}
	for _, o := range st.Obligations {
		if _, ok := report.OwnerNames[o.OwnerUserID]; ok {
			report.Obligations = append(report.Obligations, o)
		}
	}
	return report, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename replaces non-alphanumeric chars (except - _) with _,
// collapses consecutive underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns {sanitized_name}_{YYYY-MM-DD}.{ext}.
func BuildFilename(name string, date time.Time, ext string) string {
	return fmt.Sprintf("%s_%s.%s", SanitizeFilename(name), date.Format("2006-01-02"), ext)
}
