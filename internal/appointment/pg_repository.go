package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	uniqueViolation   = "23505"
	paymentIDKeyIndex = "appointments_payment_id_key"
)

// paymentConflict maps a duplicate payment_id to ErrPaymentAlreadyUsed.
func paymentConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == paymentIDKeyIndex {
		return ErrPaymentAlreadyUsed
	}
	return err
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

const appointmentColumns = `id, doctor_id, patient_id, slot_id, status, is_paid, payment_method, payment_id,
	ticket_price, platform_fee, total_amount, appointment_date, appointment_time,
	cancellation_reason, video_call_room_id, expires_at, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialty,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status, method string

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.SlotID,
		&status,
		&a.IsPaid,
		&method,
		&a.PaymentID,
		&a.TicketPrice,
		&a.PlatformFee,
		&a.TotalAmount,
		&a.AppointmentDate,
		&a.AppointmentTime,
		&a.CancellationReason,
		&a.VideoCallRoomID,
		&a.ExpiresAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Status = Status(status)
	a.PaymentMethod = PaymentMethod(method)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, slot_id, status, is_paid, payment_method, payment_id,
		                          ticket_price, platform_fee, total_amount, appointment_date, appointment_time,
		                          video_call_room_id, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now(), now())
		RETURNING `+appointmentColumns,
		a.ID, a.DoctorID, a.PatientID, a.SlotID, string(a.Status), a.IsPaid, string(a.PaymentMethod), a.PaymentID,
		a.TicketPrice, a.PlatformFee, a.TotalAmount, a.AppointmentDate, a.AppointmentTime,
		a.VideoCallRoomID, a.ExpiresAt)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", paymentConflict(err))
	}
	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, error) {
	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE ($1::uuid IS NULL OR patient_id = $1)
		  AND ($2::uuid IS NULL OR doctor_id = $2)
		  AND ($3::uuid IS NULL OR slot_id = $3)
		  AND ($4::text IS NULL OR status = $4)
		ORDER BY created_at DESC, id
		LIMIT $5 OFFSET $6
	`, f.PatientID, f.DoctorID, f.SlotID, status, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, upd StatusUpdate) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    is_paid = COALESCE($4, is_paid),
		    payment_id = COALESCE($5, payment_id),
		    cancellation_reason = COALESCE($6, cancellation_reason),
		    video_call_room_id = COALESCE($7, video_call_room_id),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, string(to), string(from), upd.IsPaid, upd.PaymentID, upd.CancellationReason, upd.VideoCallRoomID)

	updated, err := scanAppointment(row)
	if err != nil {
		return nil, paymentConflict(err)
	}
	return updated, nil
}

func (r *PgRepository) FindExpiredPending(ctx context.Context, now time.Time, limit int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('PAYMENT_PENDING', 'PAYMENT_FAILED')
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
		ORDER BY expires_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
