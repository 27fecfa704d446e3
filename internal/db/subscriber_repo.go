package db

import (
	"context"
	"database/sql"
	"errors"

	"foreversister/internal/types"
)

// Integer encodings used by the subscribers table. The on-disk values are
// fixed; changing them would reinterpret existing rows.
const (
	freqMonthly = 0
	freqWeekly  = 1
	freqHoliday = 2

	salBrother = 0
	salSister  = 1
)

// SubscriberRepository provides data access for the subscribers table.
type SubscriberRepository struct {
	db *sql.DB
}

// NewSubscriberRepository creates a new SubscriberRepository backed by the
// given database handle.
func NewSubscriberRepository(db *sql.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

// subscriberColumns is the standard column set for subscriber queries.
// Used consistently across all query methods to avoid column drift.
const subscriberColumns = `email, frequency, salutation, birth_year, birth_month, birth_day`

// scanSubscriber scans a single subscriber row. The columns must match the
// order defined in subscriberColumns.
func scanSubscriber(row interface{ Scan(...any) error }) (*types.Subscriber, error) {
	var (
		s          types.Subscriber
		frequency  int
		salutation int
	)
	err := row.Scan(
		&s.Email,
		&frequency,
		&salutation,
		&s.BirthYear,
		&s.BirthMonth,
		&s.BirthDay,
	)
	if err != nil {
		return nil, err
	}
	s.Cadence = decodeCadence(frequency)
	s.Salutation = decodeSalutation(salutation)
	return &s, nil
}

// Get retrieves a subscriber by email. Returns ErrCodeNotFoundSubscriber
// when no row exists.
func (r *SubscriberRepository) Get(ctx context.Context, email string) (*types.Subscriber, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers WHERE email = ?`, email)

	s, err := scanSubscriber(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSubscriber, "subscriber not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve subscriber", err)
	}
	return s, nil
}

// Add inserts a new subscriber. Returns ErrCodeConflictSubscribed when the
// email is already on the list.
func (r *SubscriberRepository) Add(ctx context.Context, s types.Subscriber) error {
	existing, err := r.Get(ctx, s.Email)
	if err != nil {
		var appErr *types.AppError
		if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeNotFoundSubscriber {
			return err
		}
	}
	if existing != nil {
		return types.NewAppError(types.ErrCodeConflictSubscribed, "email already subscribed", nil)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO subscribers (`+subscriberColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		s.Email,
		encodeCadence(s.Cadence),
		encodeSalutation(s.Salutation),
		s.BirthYear,
		s.BirthMonth,
		s.BirthDay,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to add subscriber", err)
	}
	return nil
}

// Update replaces a subscriber's preferences. Returns
// ErrCodeNotFoundSubscriber when the email is not on the list.
func (r *SubscriberRepository) Update(ctx context.Context, s types.Subscriber) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE subscribers
		 SET frequency = ?, salutation = ?, birth_year = ?, birth_month = ?, birth_day = ?
		 WHERE email = ?`,
		encodeCadence(s.Cadence),
		encodeSalutation(s.Salutation),
		s.BirthYear,
		s.BirthMonth,
		s.BirthDay,
		s.Email,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update subscriber", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update subscriber", err)
	}
	if affected == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSubscriber, "subscriber not found", nil)
	}
	return nil
}

// Remove deletes a subscriber. Returns ErrCodeNotFoundSubscriber when the
// email is not on the list.
func (r *SubscriberRepository) Remove(ctx context.Context, email string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM subscribers WHERE email = ?`, email)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to remove subscriber", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to remove subscriber", err)
	}
	if affected == 0 {
		return types.NewAppError(types.ErrCodeNotFoundSubscriber, "subscriber not found", nil)
	}
	return nil
}

// ListSubscribers returns every subscriber, ordered by email for stable
// segment output.
func (r *SubscriberRepository) ListSubscribers(ctx context.Context) ([]types.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+subscriberColumns+` FROM subscribers ORDER BY email`)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list subscribers", err)
	}
	defer rows.Close()

	var out []types.Subscriber
	for rows.Next() {
		s, err := scanSubscriber(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list subscribers", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list subscribers", err)
	}
	return out, nil
}

func encodeCadence(c types.Cadence) int {
	switch c {
	case types.CadenceWeekly:
		return freqWeekly
	case types.CadenceHoliday:
		return freqHoliday
	default:
		return freqMonthly
	}
}

func decodeCadence(v int) types.Cadence {
	switch v {
	case freqWeekly:
		return types.CadenceWeekly
	case freqHoliday:
		return types.CadenceHoliday
	default:
		return types.CadenceMonthly
	}
}

func encodeSalutation(s types.Salutation) int {
	if s == types.SalutationSister {
		return salSister
	}
	return salBrother
}

func decodeSalutation(v int) types.Salutation {
	if v == salSister {
		return types.SalutationSister
	}
	return types.SalutationBrother
}
