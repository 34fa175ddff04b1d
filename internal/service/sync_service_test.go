package service_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"contaportal/internal/domain"
	"contaportal/internal/port"
	"contaportal/internal/service"
	"contaportal/internal/store"
	"contaportal/mocks"
)

func strPtr(s string) *string { return &s }

func TestSyncService_RegisterUser_ActivatesInvitedRecords(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "Rui Contas", "rui@contas.pt", domain.RoleAccountant)
	b := h.register(t, "Sara Fiscal", "sara@fiscal.pt", domain.RoleAccountant)
	recA := h.invite(t, a.ID, "Acme (draft)", "c@acme.pt")
	recB := h.invite(t, b.ID, "ACME", "C@Acme.PT")
	other := h.invite(t, a.ID, "Other", "x@other.pt")

	client, err := h.sync.RegisterUser(ctx, service.RegisterInput{
		Name:            "Acme Lda",
		Email:           "c@acme.pt",
		Password:        "secret1",
		Role:            domain.RoleClient,
		AvatarReference: "avatars/acme.png",
	})
	require.NoError(t, err)

	for _, got := range []domain.ClientRecord{h.record(t, a.ID, recA.ID), h.record(t, b.ID, recB.ID)} {
		assert.Equal(t, domain.ClientStatusActive, got.Status)
		assert.Equal(t, "Acme Lda", got.CompanyName)
		assert.Equal(t, "avatars/acme.png", got.AvatarReference)
		require.NotNil(t, got.LinkedUserID)
		assert.Equal(t, client.ID, *got.LinkedUserID)
	}
	untouched := h.record(t, a.ID, other.ID)
	assert.Equal(t, domain.ClientStatusInvited, untouched.Status)
	assert.Equal(t, "Other", untouched.CompanyName)

	current, ok := h.session.Current()
	require.True(t, ok)
	assert.Equal(t, client.ID, current.ID)
}

func TestSyncService_RegisterUser_KeepsAvatarWhenNoneGiven(t *testing.T) {
	h := newHarness(t)
	a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
	rec, err := h.sync.InviteClient(context.Background(), a.ID, service.InviteClientInput{
		CompanyName:     "Acme",
		Email:           "c@acme.pt",
		AvatarReference: "avatars/from-accountant.png",
	})
	require.NoError(t, err)

	h.register(t, "Acme Lda", "c@acme.pt", domain.RoleClient)

	assert.Equal(t, "avatars/from-accountant.png", h.record(t, a.ID, rec.ID).AvatarReference)
}

func TestSyncService_RegisterUser_DuplicateEmailLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
	rec := h.invite(t, a.ID, "Acme", "c@acme.pt")
	h.register(t, "Acme Lda", "c@acme.pt", domain.RoleClient)
	before := h.store.Snapshot()

	user, err := h.sync.RegisterUser(context.Background(), service.RegisterInput{
		Name:     "Impostor",
		Email:    "C@ACME.PT",
		Password: "secret1",
		Role:     domain.RoleClient,
	})

	assert.Nil(t, user)
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)
	assert.Equal(t, before, h.store.Snapshot())
	assert.Equal(t, "Acme Lda", h.record(t, a.ID, rec.ID).CompanyName)
}

func TestSyncService_RegisterUser_InputErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.sync.RegisterUser(ctx, service.RegisterInput{Name: "X", Email: "not-an-email", Password: "secret1", Role: domain.RoleClient})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.sync.RegisterUser(ctx, service.RegisterInput{Name: "X", Email: "x@y.pt", Password: "secret1", Role: "ADMIN"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.sync.RegisterUser(ctx, service.RegisterInput{Name: "X", Email: "x@y.pt", Password: "abc", Role: domain.RoleClient})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	assert.Empty(t, h.store.Snapshot().Users)
}

func TestSyncService_RegisterUser_AccountantDoesNotActivateInvitation(t *testing.T) {
	h := newHarness(t)
	a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
	rec := h.invite(t, a.ID, "Acme", "c@acme.pt")

	h.register(t, "Other Firm", "C@acme.pt", domain.RoleAccountant)

	got := h.record(t, a.ID, rec.ID)
	assert.Equal(t, domain.ClientStatusInvited, got.Status)
	assert.Equal(t, "Acme", got.CompanyName)
	assert.Nil(t, got.LinkedUserID)
	assert.Empty(t, h.audit.Check())
}

func TestSyncService_UpdateUserProfile_SyncsOnlyMatchingRecords(t *testing.T) {
	h := newHarness(t)
	a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
	b := h.register(t, "Sara", "sara@fiscal.pt", domain.RoleAccountant)
	recA := h.invite(t, a.ID, "Acme", "c@acme.pt")
	recB := h.invite(t, b.ID, "Acme", "c@acme.pt")
	bystander := h.invite(t, a.ID, "Other", "x@other.pt")
	client := h.register(t, "Acme Lda", "c@acme.pt", domain.RoleClient)

	updated, err := h.sync.UpdateUserProfile(context.Background(), client.ID, service.UpdateProfileInput{
		Name:            strPtr("Acme Holdings"),
		AvatarReference: strPtr("avatars/new.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme Holdings", updated.Name)

	for _, got := range []domain.ClientRecord{h.record(t, a.ID, recA.ID), h.record(t, b.ID, recB.ID)} {
		assert.Equal(t, "Acme Holdings", got.CompanyName)
		assert.Equal(t, "avatars/new.png", got.AvatarReference)
	}
	assert.Equal(t, "Other", h.record(t, a.ID, bystander.ID).CompanyName)

	current, ok := h.session.Current()
	require.True(t, ok)
	assert.Equal(t, "Acme Holdings", current.Name, "session cache must not go stale")
}

func TestSyncService_UpdateUserProfile_UsesPostUpdateEmail(t *testing.T) {
	h := newHarness(t)
	a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
	b := h.register(t, "Sara", "sara@fiscal.pt", domain.RoleAccountant)
	oldRec := h.invite(t, a.ID, "Acme", "c@acme.pt")
	newRec := h.invite(t, b.ID, "Acme New", "billing@acme.pt")
	client := h.register(t, "Acme Lda", "c@acme.pt", domain.RoleClient)

	_, err := h.sync.UpdateUserProfile(context.Background(), client.ID, service.UpdateProfileInput{
		Name:  strPtr("Acme SA"),
		Email: strPtr("Billing@Acme.pt"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme SA", h.record(t, b.ID, newRec.ID).CompanyName)
	assert.Equal(t, "Acme Lda", h.record(t, a.ID, oldRec.ID).CompanyName)
}

func TestSyncService_UpdateUserProfile_EmailChangeAcceptsInvitation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
	rec := h.invite(t, a.ID, "Acme (draft)", "billing@acme.pt")
	client := h.register(t, "Acme Lda", "c@acme.pt", domain.RoleClient)
	h.upload(t, client.ID, "jan.pdf")

	_, err := h.sync.UpdateUserProfile(ctx, client.ID, service.UpdateProfileInput{Email: strPtr("billing@acme.pt")})
	require.NoError(t, err)

	got := h.record(t, a.ID, rec.ID)
	assert.Equal(t, domain.ClientStatusActive, got.Status)
	assert.Equal(t, "Acme Lda", got.CompanyName)
	assert.Equal(t, 1, got.PendingDocumentCount, "documents uploaded before the change are counted")
	require.NotNil(t, got.LinkedUserID)
	assert.Equal(t, client.ID, *got.LinkedUserID)

	h.upload(t, client.ID, "feb.pdf")
	assert.Equal(t, 2, h.record(t, a.ID, rec.ID).PendingDocumentCount)
	assert.Empty(t, h.audit.Check())

	toggled, err := h.sync.ToggleClientStatus(ctx, a.ID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ClientStatusInactive, toggled.Status)
}

func TestSyncService_UpdateUserProfile_AccountantNeverSyncs(t *testing.T) {
	h := newHarness(t)
	a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
	b := h.register(t, "Sara", "sara@fiscal.pt", domain.RoleAccountant)
	// A record that happens to carry the accountant's own address.
	rec := h.invite(t, b.ID, "Rui's side business", "side@contas.pt")

	_, err := h.sync.UpdateUserProfile(context.Background(), a.ID, service.UpdateProfileInput{
		Name:  strPtr("Rui Contas Lda"),
		Email: strPtr("side@contas.pt"),
	})
	require.NoError(t, err)

	assert.Equal(t, "Rui's side business", h.record(t, b.ID, rec.ID).CompanyName)
}

func TestSyncService_UpdateUserProfile_Errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.register(t, "Acme", "c@acme.pt", domain.RoleClient)
	h.register(t, "Beta", "b@beta.pt", domain.RoleClient)

	_, err := h.sync.UpdateUserProfile(ctx, uuid.New(), service.UpdateProfileInput{Name: strPtr("x")})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = h.sync.UpdateUserProfile(ctx, first.ID, service.UpdateProfileInput{Email: strPtr("B@BETA.pt")})
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	_, err = h.sync.UpdateUserProfile(ctx, first.ID, service.UpdateProfileInput{Name: strPtr("   ")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.sync.UpdateUserProfile(ctx, first.ID, service.UpdateProfileInput{Email: strPtr("nope")})
	assert.ErrorIs(t, err, domain.ErrValidation)

	// Re-submitting one's own address is not a conflict.
	_, err = h.sync.UpdateUserProfile(ctx, first.ID, service.UpdateProfileInput{Email: strPtr("C@acme.pt")})
	assert.NoError(t, err)
}

func TestSyncService_UploadDocument_IncrementsEveryMatchingRecord(t *testing.T) {
	h := newHarness(t)
	a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
	b := h.register(t, "Sara", "sara@fiscal.pt", domain.RoleAccountant)
	recA := h.invite(t, a.ID, "Acme", "c@acme.pt")
	recB := h.invite(t, b.ID, "Acme", "c@acme.pt")
	client := h.register(t, "Acme Lda", "c@acme.pt", domain.RoleClient)

	doc := h.upload(t, client.ID, "March invoices")

	assert.Equal(t, domain.DocumentStatusPending, doc.Status)
	assert.Equal(t, client.ID, doc.OwnerUserID)
	assert.Equal(t, "local://March invoices", doc.FileReference)
	assert.Equal(t, 1, h.record(t, a.ID, recA.ID).PendingDocumentCount)
	assert.Equal(t, 1, h.record(t, b.ID, recB.ID).PendingDocumentCount)
}

func TestSyncService_UploadDocument_NeverInvitedClient(t *testing.T) {
	h := newHarness(t)
	client := h.register(t, "Solo Lda", "solo@solo.pt", domain.RoleClient)

	doc := h.upload(t, client.ID, "Receipts")

	assert.Len(t, h.sync.DocumentsForUser(client.ID), 1)
	assert.Equal(t, doc.ID, h.sync.DocumentsForUser(client.ID)[0].ID)
}

func TestSyncService_UploadDocument_Errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
	client := h.register(t, "Acme", "c@acme.pt", domain.RoleClient)

	_, err := h.sync.UploadDocument(ctx, uuid.New(), service.FileMeta{Title: "x"}, domain.DocumentTypeInvoice)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = h.sync.UploadDocument(ctx, a.ID, service.FileMeta{Title: "x"}, domain.DocumentTypeInvoice)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.sync.UploadDocument(ctx, client.ID, service.FileMeta{Title: "x"}, "PAYSLIP")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.sync.UploadDocument(ctx, client.ID, service.FileMeta{}, domain.DocumentTypeInvoice)
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Empty(t, h.store.Snapshot().Documents)
}

func TestSyncService_UploadDocument_StoresFileBody(t *testing.T) {
	storage := new(mocks.MockObjectStorage)
	cfg := testS3Config()
	h := newHarnessFrom(t, store.New(nil, nil), service.NewFileService(storage, &cfg), nil)
	client := h.register(t, "Acme", "c@acme.pt", domain.RoleClient)

	storage.On("Upload", mock.Anything, mock.AnythingOfType("port.UploadInput")).
		Return(&port.UploadOutput{ETag: "e"}, nil).Once()

	content := pdfContent()
	doc, err := h.sync.UploadDocument(context.Background(), client.ID, service.FileMeta{
		Title:    "Invoice 12",
		FileName: "inv12.pdf",
		Size:     int64(len(content)),
		Body:     bytes.NewReader(content),
	}, domain.DocumentTypeInvoice)

	require.NoError(t, err)
	assert.Equal(t, "s3://test-bucket/users/"+client.ID.String()+"/documents/"+doc.ID.String()+"/inv12.pdf", doc.FileReference)
	storage.AssertExpectations(t)
}

func TestSyncService_UploadDocument_StorageFailureAddsNothing(t *testing.T) {
	storage := new(mocks.MockObjectStorage)
	cfg := testS3Config()
	h := newHarnessFrom(t, store.New(nil, nil), service.NewFileService(storage, &cfg), nil)
	a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
	rec := h.invite(t, a.ID, "Acme", "c@acme.pt")
	client := h.register(t, "Acme", "c@acme.pt", domain.RoleClient)

	storage.On("Upload", mock.Anything, mock.AnythingOfType("port.UploadInput")).
		Return(nil, errors.New("bucket gone"))

	_, err := h.sync.UploadDocument(context.Background(), client.ID, service.FileMeta{
		Title:    "Invoice 12",
		FileName: "inv12.pdf",
		Size:     int64(len(pdfContent())),
		Body:     bytes.NewReader(pdfContent()),
	}, domain.DocumentTypeInvoice)

	assert.ErrorIs(t, err, domain.ErrUploadFailed)
	assert.Empty(t, h.sync.DocumentsForUser(client.ID))
	assert.Equal(t, 0, h.record(t, a.ID, rec.ID).PendingDocumentCount)
}

func TestSyncService_ValidateDocument_Transitions(t *testing.T) {
	tests := []struct {
		name      string
		steps     []domain.DocumentStatus
		wantErr   error
		wantFinal domain.DocumentStatus
		wantCount int
	}{
		{"approve", []domain.DocumentStatus{domain.DocumentStatusApproved}, nil, domain.DocumentStatusApproved, 0},
		{"reject", []domain.DocumentStatus{domain.DocumentStatusRejected}, nil, domain.DocumentStatusRejected, 0},
		{"pending is a no-op", []domain.DocumentStatus{domain.DocumentStatusPending}, nil, domain.DocumentStatusPending, 1},
		{"reviewing then approved decrements once", []domain.DocumentStatus{domain.DocumentStatusReviewing, domain.DocumentStatusReviewing, domain.DocumentStatusApproved}, nil, domain.DocumentStatusApproved, 0},
		{"reviewing cannot return to pending", []domain.DocumentStatus{domain.DocumentStatusReviewing, domain.DocumentStatusPending}, domain.ErrInvalidTransition, domain.DocumentStatusReviewing, 0},
		{"approved is terminal", []domain.DocumentStatus{domain.DocumentStatusApproved, domain.DocumentStatusRejected}, domain.ErrInvalidTransition, domain.DocumentStatusApproved, 0},
		{"rejected is terminal", []domain.DocumentStatus{domain.DocumentStatusRejected, domain.DocumentStatusReviewing}, domain.ErrInvalidTransition, domain.DocumentStatusRejected, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
			rec := h.invite(t, a.ID, "Acme", "c@acme.pt")
			client := h.register(t, "Acme", "c@acme.pt", domain.RoleClient)
			doc := h.upload(t, client.ID, "March")

			var err error
			for _, status := range tt.steps {
				_, err = h.sync.ValidateDocument(context.Background(), doc.ID, status)
			}

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			got := h.sync.DocumentsForUser(client.ID)[0]
			assert.Equal(t, tt.wantFinal, got.Status)
			assert.Equal(t, tt.wantCount, h.record(t, a.ID, rec.ID).PendingDocumentCount)
		})
	}
}

func TestSyncService_ValidateDocument_SetsReviewedAt(t *testing.T) {
	h := newHarness(t)
	client := h.register(t, "Acme", "c@acme.pt", domain.RoleClient)
	doc := h.upload(t, client.ID, "March")
	assert.Nil(t, doc.ReviewedAt)

	reviewed, err := h.sync.ValidateDocument(context.Background(), doc.ID, domain.DocumentStatusApproved)
	require.NoError(t, err)
	require.NotNil(t, reviewed.ReviewedAt)
	assert.True(t, reviewed.ReviewedAt.After(doc.UploadDate))
}

func TestSyncService_ValidateDocument_FloorAtZero(t *testing.T) {
	accountantID, clientID, recordID, docID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	st := store.NewState()
	st.Users = []domain.User{
		{ID: accountantID, Name: "Rui", Email: "rui@contas.pt", Role: domain.RoleAccountant},
		{ID: clientID, Name: "Acme", Email: "c@acme.pt", Role: domain.RoleClient},
	}
	// A stale counter that already reads 0 while a document is still pending.
	st.Clients[accountantID] = []domain.ClientRecord{
		{ID: recordID, OwnerAccountantID: accountantID, CompanyName: "Acme", Email: "c@acme.pt", Status: domain.ClientStatusActive},
	}
	st.Documents = []domain.Document{
		{ID: docID, Title: "March", DocumentType: domain.DocumentTypeInvoice, Status: domain.DocumentStatusPending, OwnerUserID: clientID},
	}
	h := newHarnessFrom(t, store.New(nil, st), nil, nil)

	_, err := h.sync.ValidateDocument(context.Background(), docID, domain.DocumentStatusApproved)
	require.NoError(t, err)

	assert.Equal(t, 0, h.record(t, accountantID, recordID).PendingDocumentCount)
}

func TestSyncService_ValidateDocument_Errors(t *testing.T) {
	h := newHarness(t)
	client := h.register(t, "Acme", "c@acme.pt", domain.RoleClient)
	doc := h.upload(t, client.ID, "March")

	_, err := h.sync.ValidateDocument(context.Background(), uuid.New(), domain.DocumentStatusApproved)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = h.sync.ValidateDocument(context.Background(), doc.ID, "ARCHIVED")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func obligationState(t *testing.T) (*store.State, uuid.UUID, map[domain.ObligationStatus]uuid.UUID) {
	t.Helper()
	accountantID, clientID := uuid.New(), uuid.New()
	st := store.NewState()
	st.Users = []domain.User{
		{ID: accountantID, Name: "Rui", Email: "rui@contas.pt", Role: domain.RoleAccountant},
		{ID: clientID, Name: "Acme", Email: "c@acme.pt", Role: domain.RoleClient},
	}
	st.Clients[accountantID] = []domain.ClientRecord{
		{ID: uuid.New(), OwnerAccountantID: accountantID, CompanyName: "Acme", Email: "c@acme.pt", Status: domain.ClientStatusActive},
	}
	paidAt := baseTime.Add(-time.Hour)
	ids := map[domain.ObligationStatus]uuid.UUID{
		domain.ObligationStatusPending: uuid.New(),
		domain.ObligationStatusOverdue: uuid.New(),
		domain.ObligationStatusPaid:    uuid.New(),
	}
	for status, id := range ids {
		o := domain.TaxObligation{ID: id, OwnerUserID: clientID, Name: string(status), Deadline: baseTime, Amount: decimal.NewFromInt(100), Status: status}
		if status == domain.ObligationStatusPaid {
			o.PaidAt = &paidAt
		}
		st.Obligations = append(st.Obligations, o)
	}
	return st, accountantID, ids
}

func TestSyncService_ApproveObligation(t *testing.T) {
	st, _, ids := obligationState(t)
	h := newHarnessFrom(t, store.New(nil, st), nil, nil)
	ctx := context.Background()

	for _, status := range []domain.ObligationStatus{domain.ObligationStatusPending, domain.ObligationStatusOverdue} {
		paid, err := h.sync.ApproveObligation(ctx, ids[status])
		require.NoError(t, err)
		assert.Equal(t, domain.ObligationStatusPaid, paid.Status)
		require.NotNil(t, paid.PaidAt)
	}

	_, err := h.sync.ApproveObligation(ctx, ids[domain.ObligationStatusPaid])
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = h.sync.ApproveObligation(ctx, ids[domain.ObligationStatusPending])
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "paying twice")

	_, err = h.sync.ApproveObligation(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSyncService_InviteClient_SendsInvitation(t *testing.T) {
	mailer := new(mocks.MockEmailSender)
	h := newHarnessFrom(t, store.New(nil, nil), nil, mailer)
	a := h.register(t, "Rui Contas", "rui@contas.pt", domain.RoleAccountant)
	deadline := baseTime.AddDate(0, 1, 0)

	mailer.On("SendInvitationEmail", mock.Anything, port.Invitation{
		ToEmail:        "c@acme.pt",
		CompanyName:    "Acme",
		ContactPerson:  "Ana",
		AccountantName: "Rui Contas",
	}).Return(nil).Once()

	rec, err := h.sync.InviteClient(context.Background(), a.ID, service.InviteClientInput{
		CompanyName:   " Acme ",
		TaxID:         "PT500100200",
		ContactPerson: "Ana",
		Email:         "c@acme.pt",
		NextDeadline:  &deadline,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.ClientStatusInvited, rec.Status)
	assert.Equal(t, 0, rec.PendingDocumentCount)
	assert.Equal(t, a.ID, rec.OwnerAccountantID)
	assert.Nil(t, rec.LinkedUserID)
	assert.Equal(t, &deadline, rec.NextDeadline)
	assert.Len(t, h.sync.ClientsForAccountant(a.ID), 1)
	mailer.AssertExpectations(t)
}

func TestSyncService_InviteClient_MailFailureIsNotFatal(t *testing.T) {
	mailer := new(mocks.MockEmailSender)
	h := newHarnessFrom(t, store.New(nil, nil), nil, mailer)
	a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
	mailer.On("SendInvitationEmail", mock.Anything, mock.Anything).Return(errors.New("ses throttled"))

	rec, err := h.sync.InviteClient(context.Background(), a.ID, service.InviteClientInput{CompanyName: "Acme", Email: "c@acme.pt"})

	require.NoError(t, err)
	assert.Equal(t, domain.ClientStatusInvited, rec.Status)
}

func TestSyncService_InviteClient_ExistingClientActivatesImmediately(t *testing.T) {
	mailer := new(mocks.MockEmailSender)
	h := newHarnessFrom(t, store.New(nil, nil), nil, mailer)
	a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
	client := h.register(t, "Acme Lda", "c@acme.pt", domain.RoleClient)
	first := h.upload(t, client.ID, "Jan")
	h.upload(t, client.ID, "Feb")
	_, err := h.sync.ValidateDocument(context.Background(), first.ID, domain.DocumentStatusApproved)
	require.NoError(t, err)

	rec, err := h.sync.InviteClient(context.Background(), a.ID, service.InviteClientInput{CompanyName: "ACME", Email: "C@acme.pt"})

	require.NoError(t, err)
	assert.Equal(t, domain.ClientStatusActive, rec.Status)
	assert.Equal(t, "Acme Lda", rec.CompanyName)
	assert.Equal(t, 1, rec.PendingDocumentCount)
	require.NotNil(t, rec.LinkedUserID)
	assert.Equal(t, client.ID, *rec.LinkedUserID)
	mailer.AssertNotCalled(t, "SendInvitationEmail", mock.Anything, mock.Anything)
	assert.Empty(t, h.audit.Check())
}

func TestSyncService_InviteClient_Errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
	h.register(t, "Sara", "sara@fiscal.pt", domain.RoleAccountant)
	client := h.register(t, "Acme", "c@acme.pt", domain.RoleClient)
	h.invite(t, a.ID, "Beta", "b@beta.pt")

	_, err := h.sync.InviteClient(ctx, a.ID, service.InviteClientInput{CompanyName: "Beta again", Email: "B@BETA.PT"})
	assert.ErrorIs(t, err, domain.ErrDuplicateEmail)

	_, err = h.sync.InviteClient(ctx, a.ID, service.InviteClientInput{CompanyName: "Sara", Email: "sara@fiscal.pt"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.sync.InviteClient(ctx, client.ID, service.InviteClientInput{CompanyName: "X", Email: "x@x.pt"})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.sync.InviteClient(ctx, uuid.New(), service.InviteClientInput{CompanyName: "X", Email: "x@x.pt"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = h.sync.InviteClient(ctx, a.ID, service.InviteClientInput{CompanyName: "", Email: "x@x.pt"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Len(t, h.sync.ClientsForAccountant(a.ID), 1)
}

func TestSyncService_InviteClient_SameEmailAcrossAccountants(t *testing.T) {
	h := newHarness(t)
	a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
	b := h.register(t, "Sara", "sara@fiscal.pt", domain.RoleAccountant)

	h.invite(t, a.ID, "Acme", "c@acme.pt")
	h.invite(t, b.ID, "Acme", "c@acme.pt")

	assert.Len(t, h.sync.ClientsForAccountant(a.ID), 1)
	assert.Len(t, h.sync.ClientsForAccountant(b.ID), 1)
}

func TestSyncService_ToggleClientStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
	active := h.invite(t, a.ID, "Acme", "c@acme.pt")
	invited := h.invite(t, a.ID, "Beta", "b@beta.pt")
	h.register(t, "Acme", "c@acme.pt", domain.RoleClient)

	rec, err := h.sync.ToggleClientStatus(ctx, a.ID, active.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ClientStatusInactive, rec.Status)

	rec, err = h.sync.ToggleClientStatus(ctx, a.ID, active.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ClientStatusActive, rec.Status)

	_, err = h.sync.ToggleClientStatus(ctx, a.ID, invited.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = h.sync.ToggleClientStatus(ctx, a.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	b := h.register(t, "Sara", "sara@fiscal.pt", domain.RoleAccountant)
	_, err = h.sync.ToggleClientStatus(ctx, b.ID, active.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound, "records are scoped to their accountant")
}

func TestSyncService_ToggleClientStatus_OverdueAndOrphaned(t *testing.T) {
	accountantID, overdueID, orphanID := uuid.New(), uuid.New(), uuid.New()
	st := store.NewState()
	st.Users = []domain.User{{ID: accountantID, Name: "Rui", Email: "rui@contas.pt", Role: domain.RoleAccountant}}
	st.Clients[accountantID] = []domain.ClientRecord{
		{ID: overdueID, OwnerAccountantID: accountantID, Email: "late@late.pt", Status: domain.ClientStatusOverdue},
		{ID: orphanID, OwnerAccountantID: accountantID, Email: "gone@gone.pt", Status: domain.ClientStatusInactive},
	}
	h := newHarnessFrom(t, store.New(nil, st), nil, nil)
	ctx := context.Background()

	rec, err := h.sync.ToggleClientStatus(ctx, accountantID, overdueID)
	require.NoError(t, err)
	assert.Equal(t, domain.ClientStatusInactive, rec.Status)

	_, err = h.sync.ToggleClientStatus(ctx, accountantID, orphanID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.ClientStatusInactive, h.record(t, accountantID, orphanID).Status)
}

func TestSyncService_ToggleClientStatus_Logs(t *testing.T) {
	h := newHarness(t)
	a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
	rec := h.invite(t, a.ID, "Acme", "c@acme.pt")
	h.register(t, "Acme", "c@acme.pt", domain.RoleClient)

	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	_, err := h.sync.ToggleClientStatus(context.Background(), a.ID, rec.ID)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "syncService.ToggleClientStatus: client status changed")
	assert.Contains(t, buf.String(), `"client_id":"`+rec.ID.String()+`"`)
	assert.Contains(t, buf.String(), `"status":"INACTIVE"`)
}

func TestSyncService_RemoveClient(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
	b := h.register(t, "Sara", "sara@fiscal.pt", domain.RoleAccountant)
	recA := h.invite(t, a.ID, "Acme", "c@acme.pt")
	recB := h.invite(t, b.ID, "Acme", "c@acme.pt")
	keep := h.invite(t, a.ID, "Beta", "b@beta.pt")

	require.NoError(t, h.sync.RemoveClient(ctx, a.ID, recA.ID))

	remaining := h.sync.ClientsForAccountant(a.ID)
	require.Len(t, remaining, 1)
	assert.Equal(t, keep.ID, remaining[0].ID)
	assert.Equal(t, recB.ID, h.record(t, b.ID, recB.ID).ID)

	assert.ErrorIs(t, h.sync.RemoveClient(ctx, a.ID, recA.ID), domain.ErrNotFound)
	assert.ErrorIs(t, h.sync.RemoveClient(ctx, a.ID, recB.ID), domain.ErrNotFound)
}

func TestSyncService_CreateObligation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
	b := h.register(t, "Sara", "sara@fiscal.pt", domain.RoleAccountant)
	h.invite(t, a.ID, "Acme", "c@acme.pt")
	client := h.register(t, "Acme", "c@acme.pt", domain.RoleClient)
	deadline := baseTime.AddDate(0, 0, 20)

	ob, err := h.sync.CreateObligation(ctx, a.ID, service.CreateObligationInput{
		OwnerUserID: client.ID,
		Name:        "VAT quarterly return",
		Amount:      decimal.RequireFromString("1250.40"),
		Deadline:    deadline,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.ObligationStatusPending, ob.Status)
	assert.True(t, ob.Amount.Equal(decimal.RequireFromString("1250.4")))
	assert.Nil(t, ob.PaidAt)

	assert.Len(t, h.sync.ObligationsForUser(client.ID), 1)
	assert.Len(t, h.sync.ObligationsForAccountant(a.ID), 1)
	assert.Empty(t, h.sync.ObligationsForAccountant(b.ID))

	_, err = h.sync.CreateObligation(ctx, b.ID, service.CreateObligationInput{OwnerUserID: client.ID, Name: "x", Amount: decimal.NewFromInt(1), Deadline: deadline})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = h.sync.CreateObligation(ctx, a.ID, service.CreateObligationInput{OwnerUserID: client.ID, Name: "x", Amount: decimal.NewFromInt(-1), Deadline: deadline})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.sync.CreateObligation(ctx, a.ID, service.CreateObligationInput{OwnerUserID: client.ID, Name: "x", Amount: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.sync.CreateObligation(ctx, a.ID, service.CreateObligationInput{OwnerUserID: b.ID, Name: "x", Amount: decimal.NewFromInt(1), Deadline: deadline})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = h.sync.CreateObligation(ctx, client.ID, service.CreateObligationInput{OwnerUserID: client.ID, Name: "x", Amount: decimal.NewFromInt(1), Deadline: deadline})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestSyncService_DocumentsForAccountant(t *testing.T) {
	h := newHarness(t)
	a := h.register(t, "Rui", "rui@contas.pt", domain.RoleAccountant)
	b := h.register(t, "Sara", "sara@fiscal.pt", domain.RoleAccountant)
	h.invite(t, a.ID, "Acme", "c@acme.pt")
	h.invite(t, b.ID, "Beta", "b@beta.pt")
	acme := h.register(t, "Acme", "c@acme.pt", domain.RoleClient)
	beta := h.register(t, "Beta", "b@beta.pt", domain.RoleClient)
	h.upload(t, acme.ID, "acme-1")
	h.upload(t, acme.ID, "acme-2")
	h.upload(t, beta.ID, "beta-1")

	docs := h.sync.DocumentsForAccountant(a.ID)
	require.Len(t, docs, 2)
	for _, d := range docs {
		assert.Equal(t, acme.ID, d.OwnerUserID)
	}
	assert.Len(t, h.sync.DocumentsForAccountant(b.ID), 1)
	assert.Empty(t, h.sync.DocumentsForAccountant(uuid.New()))
}
