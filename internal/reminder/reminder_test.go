package reminder_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/zariya-jewels/backend-store/internal/common"
	"github.com/zariya-jewels/backend-store/internal/reminder"
	"github.com/zariya-jewels/backend-store/internal/repo"
)

type fakeLister struct {
	intents  []repo.Intent
	listErr  error
	cutoff   time.Time
	reminded []uuid.UUID
}

func (f *fakeLister) ListStalePendingIntents(_ context.Context, cutoff time.Time, _ int) ([]repo.Intent, error) {
	f.cutoff = cutoff
	return f.intents, f.listErr
}

func (f *fakeLister) MarkIntentReminded(_ context.Context, id uuid.UUID) error {
	f.reminded = append(f.reminded, id)
	return nil
}

type flakySender struct {
	failFor map[string]bool
	outbox  common.Outbox
}

func (s *flakySender) Send(ctx context.Context, to, subject, body string) error {
	if s.failFor[to] {
		return errors.New("smtp refused")
	}
	return s.outbox.Send(ctx, to, subject, body)
}

func staleIntent(email string) repo.Intent {
	return repo.Intent{
		ID:                    uuid.New(),
		Provider:              "phonepe",
		MerchantTransactionID: "TXN-" + uuid.NewString(),
		Amount:                50000,
		Currency:              "INR",
		Status:                "PENDING",
		CustomerName:          "Asha",
		CustomerEmail:         email,
	}
}

func TestScannerSendsAndMarks(t *testing.T) {
	lister := &fakeLister{intents: []repo.Intent{staleIntent("a@b.example"), staleIntent("c@d.example")}}
	outbox := &common.Outbox{}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s := &reminder.Scanner{
		Store:    lister,
		Email:    outbox,
		Logger:   zerolog.Nop(),
		StaleAge: 2 * time.Hour,
		Now:      func() time.Time { return now },
	}
	require.NoError(t, s.HandleScan(context.Background(), nil))

	require.Equal(t, now.Add(-2*time.Hour), lister.cutoff)
	require.Len(t, outbox.Sent(), 2)
	require.Len(t, lister.reminded, 2)
	require.Contains(t, outbox.Sent()[0].Body, "50000 INR")
}

func TestScannerIsolatesPerItemFailures(t *testing.T) {
	good := staleIntent("ok@example.com")
	bad := staleIntent("broken@example.com")
	lister := &fakeLister{intents: []repo.Intent{bad, good}}
	sender := &flakySender{failFor: map[string]bool{"broken@example.com": true}}

	s := &reminder.Scanner{Store: lister, Email: sender, Logger: zerolog.Nop()}
	require.NoError(t, s.HandleScan(context.Background(), nil), "one failed email must not fail the scan")

	require.Len(t, sender.outbox.Sent(), 1)
	require.Equal(t, "ok@example.com", sender.outbox.Sent()[0].To)
	// Only the delivered intent is marked; the failed one stays eligible.
	require.Equal(t, []uuid.UUID{good.ID}, lister.reminded)
}

func TestScannerListFailureSurfaces(t *testing.T) {
	lister := &fakeLister{listErr: errors.New("db down")}
	s := &reminder.Scanner{Store: lister, Email: &common.Outbox{}, Logger: zerolog.Nop()}
	require.Error(t, s.HandleScan(context.Background(), nil))
}

func TestScannerEmptyBatch(t *testing.T) {
	lister := &fakeLister{}
	outbox := &common.Outbox{}
	s := &reminder.Scanner{Store: lister, Email: outbox, Logger: zerolog.Nop()}
	require.NoError(t, s.HandleScan(context.Background(), nil))
	require.Empty(t, outbox.Sent())
}
