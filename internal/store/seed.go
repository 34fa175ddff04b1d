package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"contaportal/internal/domain"
)

// DemoClientUserID owns the demonstration obligations. No account uses it
// until one is created with this id.
var DemoClientUserID = uuid.MustParse("00000000-0000-4000-8000-000000000001")

// DemoObligations returns the dataset used when no obligations were saved.
// Deadlines are relative to now so the demo always has upcoming and late items.
func DemoObligations(now time.Time) []domain.TaxObligation {
	day := 24 * time.Hour
	return []domain.TaxObligation{
		{
			ID:          uuid.MustParse("00000000-0000-4000-8000-0000000000a1"),
			OwnerUserID: DemoClientUserID,
			Name:        "VAT quarterly return",
			Deadline:    now.Add(14 * day).Truncate(day),
			Amount:      decimal.RequireFromString("1250.40"),
			Status:      domain.ObligationStatusPending,
		},
		{
			ID:          uuid.MustParse("00000000-0000-4000-8000-0000000000a2"),
			OwnerUserID: DemoClientUserID,
			Name:        "Social security contributions",
			Deadline:    now.Add(5 * day).Truncate(day),
			Amount:      decimal.RequireFromString("842.00"),
			Status:      domain.ObligationStatusPending,
		},
		{
			ID:          uuid.MustParse("00000000-0000-4000-8000-0000000000a3"),
			OwnerUserID: DemoClientUserID,
			Name:        "Corporate income tax advance",
			Deadline:    now.Add(-3 * day).Truncate(day),
			Amount:      decimal.RequireFromString("3100.00"),
			Status:      domain.ObligationStatusOverdue,
		},
	}
}
