package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"contaportal/internal/domain"
	"contaportal/internal/port"
	"contaportal/internal/service"
	"contaportal/internal/store"
)

var baseTime = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

// harness wires the services over an in-memory store with a stepping clock
// and sequential ids.
type harness struct {
	store   *store.Store
	sync    service.SyncService
	session service.SessionService
	audit   service.AuditService
	tick    int
	nextID  int
}

func newHarness(t *testing.T, extra ...service.Option) *harness {
	t.Helper()
	return newHarnessFrom(t, store.New(nil, nil), nil, nil, extra...)
}

// newHarnessFrom builds a harness over st; files and mailer may be nil.
func newHarnessFrom(t *testing.T, st *store.Store, files service.FileService, mailer port.EmailSender, extra ...service.Option) *harness {
	t.Helper()
	h := &harness{store: st}
	opts := append([]service.Option{
		service.WithClock(func() time.Time {
			h.tick++
			return baseTime.Add(time.Duration(h.tick) * time.Minute)
		}),
		service.WithIDGenerator(func() uuid.UUID {
			h.nextID++
			return uuid.MustParse(fmt.Sprintf("00000000-0000-4000-8000-%012d", h.nextID+1000))
		}),
	}, extra...)
	h.sync = service.NewSyncService(h.store, files, mailer, opts...)
	h.session = service.NewSessionService(h.store, h.sync, opts...)
	h.audit = service.NewAuditService(h.store, opts...)
	return h
}

func (h *harness) register(t *testing.T, name, email string, role domain.UserRole) *domain.User {
	t.Helper()
	u, err := h.sync.RegisterUser(context.Background(), service.RegisterInput{
		Name:     name,
		Email:    email,
		Password: "secret1",
		Role:     role,
	})
	require.NoError(t, err)
	return u
}

func (h *harness) invite(t *testing.T, accountantID uuid.UUID, company, email string) *domain.ClientRecord {
	t.Helper()
	rec, err := h.sync.InviteClient(context.Background(), accountantID, service.InviteClientInput{
		CompanyName: company,
		Email:       email,
	})
	require.NoError(t, err)
	return rec
}

func (h *harness) upload(t *testing.T, uploaderID uuid.UUID, title string) *domain.Document {
	t.Helper()
	doc, err := h.sync.UploadDocument(context.Background(), uploaderID, service.FileMeta{
		Title:         title,
		FileReference: "local://" + title,
	}, domain.DocumentTypeInvoice)
	require.NoError(t, err)
	return doc
}

func (h *harness) record(t *testing.T, accountantID, recordID uuid.UUID) domain.ClientRecord {
	t.Helper()
	for _, rec := range h.sync.ClientsForAccountant(accountantID) {
		if rec.ID == recordID {
			return rec
		}
	}
	t.Fatalf("client record %s not found under %s", recordID, accountantID)
	return domain.ClientRecord{}
}
