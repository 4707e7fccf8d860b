package slot

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const slotColumns = `id, doctor_id, slot_date, start_time, end_time, max_patients, booked_count,
	is_blocked, is_recurring, frequency, end_date, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var frequency, endDate *string

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&s.StartTime,
		&s.EndTime,
		&s.MaxPatients,
		&s.BookedCount,
		&s.IsBlocked,
		&s.IsRecurring,
		&frequency,
		&endDate,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	if frequency != nil {
		f := Frequency(*frequency)
		s.Frequency = &f
	}
	s.EndDate = endDate
	return &s, nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) ListSlotsByDoctor(ctx context.Context, doctorID uuid.UUID, fromDate, toDate string) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE doctor_id = $1
		  AND slot_date >= $2
		  AND slot_date <= $3
		ORDER BY slot_date, start_time
	`, doctorID, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) DoctorExists(ctx context.Context, doctorID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1)`, doctorID).Scan(&exists)
	return exists, err
}

func (r *PgRepository) CreateSlots(ctx context.Context, slots []Slot) ([]Slot, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, s := range slots {
		var frequency *string
		if s.Frequency != nil {
			f := string(*s.Frequency)
			frequency = &f
		}
		batch.Queue(`
			INSERT INTO slots (id, doctor_id, slot_date, start_time, end_time, max_patients, booked_count,
			                   is_blocked, is_recurring, frequency, end_date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 0, false, $7, $8, $9, now(), now())
			RETURNING `+slotColumns,
			s.ID, s.DoctorID, s.Date, s.StartTime, s.EndTime, s.MaxPatients, s.IsRecurring, frequency, s.EndDate)
	}

	br := tx.SendBatch(ctx, batch)
	created := make([]Slot, 0, len(slots))
	for range slots {
		s, err := scanSlot(br.QueryRow())
		if err != nil {
			_ = br.Close()
			return nil, fmt.Errorf("insert slot: %w", err)
		}
		created = append(created, *s)
	}
	if err := br.Close(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) IncrementBooked(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE slots
		SET booked_count = booked_count + 1,
		    updated_at = now()
		WHERE id = $1
		  AND booked_count < max_patients
		  AND NOT is_blocked
		RETURNING `+slotColumns, id)

	s, err := scanSlot(row)
	if errors.Is(err, ErrSlotNotFound) {
		return nil, ErrCapacityRejected
	}
	return s, err
}

func (r *PgRepository) DecrementBooked(ctx context.Context, id uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE slots
		SET booked_count = GREATEST(booked_count - 1, 0),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+slotColumns, id)
	return scanSlot(row)
}

func (r *PgRepository) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE slots
		SET is_blocked = $2,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+slotColumns, id, blocked)
	return scanSlot(row)
}

func (r *PgRepository) DeleteUnbooked(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM slots WHERE id = $1 AND booked_count = 0`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var booked int
	err = r.pool.QueryRow(ctx, `SELECT booked_count FROM slots WHERE id = $1`, id).Scan(&booked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrSlotNotFound
	}
	if err != nil {
		return err
	}
	return ErrSlotHasBookings
}
