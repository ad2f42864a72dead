package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/zariya-jewels/backend-store/internal/common"
	"github.com/zariya-jewels/backend-store/internal/obs"
	"github.com/zariya-jewels/backend-store/internal/repo"
)

// TypeScanAbandoned is the asynq task type for the abandoned-checkout scan.
const TypeScanAbandoned = "reminder:scan_abandoned"

// IntentLister is the store surface the scanner needs.
type IntentLister interface {
	ListStalePendingIntents(ctx context.Context, cutoff time.Time, limit int) ([]repo.Intent, error)
	MarkIntentReminded(ctx context.Context, id uuid.UUID) error
}

// Scanner finds payment intents that went stale mid-checkout and nudges the
// customer by email. One reminder per intent, ever.
type Scanner struct {
	Store     IntentLister
	Email     common.EmailSender
	Logger    zerolog.Logger
	StaleAge  time.Duration
	BatchSize int
	Now       func() time.Time
}

type scanPayload struct {
	RequestedAt time.Time `json:"requestedAt"`
}

// NewScanTask builds the periodic scan task.
func NewScanTask() (*asynq.Task, error) {
	payload, err := json.Marshal(scanPayload{RequestedAt: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeScanAbandoned, payload), nil
}

// HandleScan processes one scan pass. A failure to email one customer is
// logged and counted but never aborts the rest of the batch.
func (s *Scanner) HandleScan(ctx context.Context, _ *asynq.Task) error {
	staleAge := s.StaleAge
	if staleAge <= 0 {
		staleAge = time.Hour
	}
	cutoff := s.now().Add(-staleAge)

	intents, err := s.Store.ListStalePendingIntents(ctx, cutoff, s.BatchSize)
	if err != nil {
		return fmt.Errorf("list stale intents: %w", err)
	}
	if len(intents) == 0 {
		return nil
	}

	var sent, failed int
	for _, intent := range intents {
		if err := s.remind(ctx, intent); err != nil {
			failed++
			if obs.ReminderEmailTotal != nil {
				obs.ReminderEmailTotal.WithLabelValues("error").Inc()
			}
			s.Logger.Error().Err(err).
				Str("transaction_id", intent.MerchantTransactionID).
				Msg("reminder email failed")
			continue
		}
		sent++
		if obs.ReminderEmailTotal != nil {
			obs.ReminderEmailTotal.WithLabelValues("sent").Inc()
		}
		if err := s.Store.MarkIntentReminded(ctx, intent.ID); err != nil {
			s.Logger.Error().Err(err).
				Str("transaction_id", intent.MerchantTransactionID).
				Msg("mark intent reminded")
		}
	}
	s.Logger.Info().Int("sent", sent).Int("failed", failed).Msg("abandoned checkout scan complete")
	return nil
}

func (s *Scanner) remind(ctx context.Context, intent repo.Intent) error {
	subject := "Your order is waiting"
	body := fmt.Sprintf(
		"Hi %s,\n\nYour payment of %d %s is still pending. Pick up where you left off any time.\n\nReference: %s\n",
		nameOrFriend(intent.CustomerName), intent.Amount, intent.Currency, intent.MerchantTransactionID,
	)
	return s.Email.Send(ctx, intent.CustomerEmail, subject, body)
}

func (s *Scanner) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func nameOrFriend(name string) string {
	if name == "" {
		return "there"
	}
	return name
}

// Mux returns an asynq handler mux with the scanner registered.
func Mux(s *Scanner) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeScanAbandoned, s.HandleScan)
	return mux
}
