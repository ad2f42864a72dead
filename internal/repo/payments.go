package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lookup matches no intent.
var ErrNotFound = errors.New("repo: not found")

// Intent is one attempt to collect money. Rows are append-only: status moves
// forward via UpdateIntentStatus and every observed transition is recorded in
// payment_intent_events, but an intent is never deleted.
type Intent struct {
	ID                    uuid.UUID
	Provider              string
	MerchantTransactionID string
	Reference             string
	ProviderRef           string
	Amount                int64
	Currency              string
	Status                string
	RedirectURL           string
	CustomerName          string
	CustomerEmail         string
	CustomerAddress       string
	ProviderPayload       []byte
	RemindedAt            *time.Time
	ExpiresAt             time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// PaymentsRepo persists payment intents and their event trail.
type PaymentsRepo struct {
	Pool *pgxpool.Pool
}

// NewPayments constructs the repo over a pgx pool.
func NewPayments(pool *pgxpool.Pool) *PaymentsRepo {
	return &PaymentsRepo{Pool: pool}
}

const intentColumns = `id, provider, merchant_transaction_id, reference, provider_ref, amount, currency,
	status, redirect_url, customer_name, customer_email, customer_address, provider_payload,
	reminded_at, expires_at, created_at, updated_at`

// CreateIntent inserts a new intent. The unique index on
// merchant_transaction_id rejects duplicate creation under concurrency.
func (r *PaymentsRepo) CreateIntent(ctx context.Context, in Intent) (Intent, error) {
	row := r.Pool.QueryRow(ctx, `
		INSERT INTO payment_intents (
			provider, merchant_transaction_id, reference, provider_ref, amount, currency,
			status, redirect_url, customer_name, customer_email, customer_address,
			provider_payload, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING `+intentColumns,
		in.Provider, in.MerchantTransactionID, in.Reference, in.ProviderRef, in.Amount, in.Currency,
		in.Status, in.RedirectURL, in.CustomerName, in.CustomerEmail, in.CustomerAddress,
		in.ProviderPayload, in.ExpiresAt,
	)
	return scanIntent(row)
}

// GetIntentByTransactionID returns the intent for a merchant transaction id.
func (r *PaymentsRepo) GetIntentByTransactionID(ctx context.Context, transactionID string) (Intent, error) {
	row := r.Pool.QueryRow(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE merchant_transaction_id = $1`,
		transactionID,
	)
	return scanIntent(row)
}

// GetIntentByProviderRef returns the intent holding a provider-side reference
// (Razorpay order id, Stripe payment intent id).
func (r *PaymentsRepo) GetIntentByProviderRef(ctx context.Context, providerRef string) (Intent, error) {
	row := r.Pool.QueryRow(ctx,
		`SELECT `+intentColumns+` FROM payment_intents WHERE provider_ref = $1`,
		providerRef,
	)
	return scanIntent(row)
}

// GetPendingIntentByReference returns the newest live pending intent for a
// storefront reference, used to reuse an open checkout instead of stacking
// duplicates.
func (r *PaymentsRepo) GetPendingIntentByReference(ctx context.Context, reference, provider string, now time.Time) (Intent, error) {
	row := r.Pool.QueryRow(ctx, `
		SELECT `+intentColumns+` FROM payment_intents
		WHERE reference = $1 AND provider = $2
		  AND status IN ('CREATED', 'PENDING')
		  AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1`,
		reference, provider, now,
	)
	return scanIntent(row)
}

// UpdateIntentStatus records a new status for the intent and appends the
// transition to the event trail in one transaction.
func (r *PaymentsRepo) UpdateIntentStatus(ctx context.Context, transactionID, status string, payload []byte) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var intentID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE payment_intents SET status = $2, updated_at = now()
		WHERE merchant_transaction_id = $1
		RETURNING id`,
		transactionID, status,
	).Scan(&intentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO payment_intent_events (intent_id, status, payload)
		VALUES ($1, $2, $3)`,
		intentID, status, payload,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AttachProviderResult records what the provider handed back at initiation
// and moves the intent to PENDING, with the transition in the event trail.
func (r *PaymentsRepo) AttachProviderResult(ctx context.Context, transactionID, providerRef, redirectURL string, payload []byte) error {
	tx, err := r.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var intentID uuid.UUID
	err = tx.QueryRow(ctx, `
		UPDATE payment_intents
		SET provider_ref = $2, redirect_url = $3, status = 'PENDING', updated_at = now()
		WHERE merchant_transaction_id = $1
		RETURNING id`,
		transactionID, providerRef, redirectURL,
	).Scan(&intentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO payment_intent_events (intent_id, status, payload)
		VALUES ($1, 'PENDING', $2)`,
		intentID, payload,
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// InsertIntentEvent appends an observation to the event trail without
// changing the intent status.
func (r *PaymentsRepo) InsertIntentEvent(ctx context.Context, intentID uuid.UUID, status string, payload []byte) error {
	_, err := r.Pool.Exec(ctx, `
		INSERT INTO payment_intent_events (intent_id, status, payload)
		VALUES ($1, $2, $3)`,
		intentID, status, payload,
	)
	return err
}

// ListStalePendingIntents returns pending intents created before the cutoff
// that have not been reminded yet and carry a customer email.
func (r *PaymentsRepo) ListStalePendingIntents(ctx context.Context, cutoff time.Time, limit int) ([]Intent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.Pool.Query(ctx, `
		SELECT `+intentColumns+` FROM payment_intents
		WHERE status IN ('CREATED', 'PENDING')
		  AND created_at < $1
		  AND reminded_at IS NULL
		  AND customer_email <> ''
		ORDER BY created_at ASC
		LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Intent
	for rows.Next() {
		intent, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, intent)
	}
	return out, rows.Err()
}

// MarkIntentReminded stamps the intent so only one reminder is ever sent.
func (r *PaymentsRepo) MarkIntentReminded(ctx context.Context, id uuid.UUID) error {
	_, err := r.Pool.Exec(ctx,
		`UPDATE payment_intents SET reminded_at = now(), updated_at = now() WHERE id = $1`,
		id,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntent(row rowScanner) (Intent, error) {
	var in Intent
	err := row.Scan(
		&in.ID, &in.Provider, &in.MerchantTransactionID, &in.Reference, &in.ProviderRef,
		&in.Amount, &in.Currency, &in.Status, &in.RedirectURL,
		&in.CustomerName, &in.CustomerEmail, &in.CustomerAddress,
		&in.ProviderPayload, &in.RemindedAt, &in.ExpiresAt, &in.CreatedAt, &in.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Intent{}, ErrNotFound
	}
	return in, err
}
