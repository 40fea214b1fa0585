package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cal-sync/backend/internal/storage/models"
)

const bookingColumns = `external_id, apartment_id, start_date, end_date, title, created_at, updated_at`

// upsertBookingSQL overwrites every field except created_at when the
// external id already exists, regardless of which apartment owned it.
const upsertBookingSQL = `
	INSERT INTO bookings (
		external_id, apartment_id, start_date, end_date, title, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(external_id) DO UPDATE SET
		apartment_id = excluded.apartment_id,
		start_date   = excluded.start_date,
		end_date     = excluded.end_date,
		title        = excluded.title,
		updated_at   = excluded.updated_at
`

// BookingRepository provides data access for bookings.
type BookingRepository struct {
	BaseRepository
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(db *DB) *BookingRepository {
	return &BookingRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a new booking. An empty ExternalID is replaced with a
// generated one. Returns ErrDuplicate if the external id is taken.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	if b.ExternalID == "" {
		b.ExternalID = GenerateID()
	}
	b.CreatedAt = r.Now()
	b.UpdatedAt = b.CreatedAt

	_, err := r.DB().ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		b.ExternalID, b.ApartmentID, b.StartDate, b.EndDate, b.Title, b.CreatedAt, b.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("booking %s: %w", b.ExternalID, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("inserting booking: %w", err)
	}

	return nil
}

// GetByExternalID retrieves a booking by its external id.
// Returns nil, nil when no booking matches.
func (r *BookingRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Booking, error) {
	b := &models.Booking{}

	err := r.DB().QueryRowContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE external_id = ?
	`, externalID).Scan(
		&b.ExternalID, &b.ApartmentID, &b.StartDate, &b.EndDate, &b.Title, &b.CreatedAt, &b.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying booking: %w", err)
	}

	return b, nil
}

// List retrieves bookings matching the filter, ordered by apartment, start
// date and external id.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	var (
		where []string
		args  []any
	)
	if filter.ApartmentID != nil {
		where = append(where, "apartment_id = ?")
		args = append(args, *filter.ApartmentID)
	}
	if !filter.From.IsZero() {
		where = append(where, "end_date >= ?")
		args = append(args, filter.From)
	}
	if !filter.To.IsZero() {
		where = append(where, "start_date <= ?")
		args = append(args, filter.To)
	}

	query := "SELECT " + bookingColumns + " FROM bookings"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY apartment_id, start_date, external_id"

	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(
			&b.ExternalID, &b.ApartmentID, &b.StartDate, &b.EndDate, &b.Title, &b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning booking: %w", err)
		}
		bookings = append(bookings, b)
	}

	return bookings, rows.Err()
}

// ListByApartment retrieves every booking of one apartment.
func (r *BookingRepository) ListByApartment(ctx context.Context, apartmentID int) ([]models.Booking, error) {
	return r.List(ctx, models.BookingFilter{ApartmentID: &apartmentID})
}

// Update overwrites the mutable fields of an existing booking.
func (r *BookingRepository) Update(ctx context.Context, b *models.Booking) error {
	b.UpdatedAt = r.Now()

	result, err := r.DB().ExecContext(ctx, `
		UPDATE bookings SET
			apartment_id = ?, start_date = ?, end_date = ?, title = ?, updated_at = ?
		WHERE external_id = ?
	`,
		b.ApartmentID, b.StartDate, b.EndDate, b.Title, b.UpdatedAt, b.ExternalID,
	)
	if err != nil {
		return fmt.Errorf("updating booking: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("booking %s: %w", b.ExternalID, ErrNotFound)
	}

	return nil
}

// Delete removes a booking by external id.
func (r *BookingRepository) Delete(ctx context.Context, externalID string) error {
	result, err := r.DB().ExecContext(ctx, "DELETE FROM bookings WHERE external_id = ?", externalID)
	if err != nil {
		return fmt.Errorf("deleting booking: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("booking %s: %w", externalID, ErrNotFound)
	}

	return nil
}

// Upsert inserts a booking or overwrites the one with the same external id.
func (r *BookingRepository) Upsert(ctx context.Context, b *models.Booking) error {
	return r.upsert(ctx, r.DB(), b)
}

// UpsertAll upserts bookings in a single transaction. Either every booking
// is written or none is.
func (r *BookingRepository) UpsertAll(ctx context.Context, bookings []models.Booking) (int, error) {
	err := r.Transaction(ctx, func(tx *sql.Tx) error {
		for i := range bookings {
			if err := r.upsert(ctx, tx, &bookings[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(bookings), nil
}

func (r *BookingRepository) upsert(ctx context.Context, q Queryable, b *models.Booking) error {
	now := r.Now()
	b.UpdatedAt = now
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}

	if _, err := q.ExecContext(ctx, upsertBookingSQL,
		b.ExternalID, b.ApartmentID, b.StartDate, b.EndDate, b.Title, b.CreatedAt, b.UpdatedAt,
	); err != nil {
		return fmt.Errorf("upserting booking %s: %w", b.ExternalID, err)
	}
	return nil
}
