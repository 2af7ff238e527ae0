package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const exclusionViolation = "23P01"

// PgRepository implements every repository interface of this package on one pool.
type PgRepository struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

// NewPgRepository keeps loc so derived date/time columns are written in the clinic's zone.
func NewPgRepository(pool *pgxpool.Pool, loc *time.Location) *PgRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &PgRepository{pool: pool, loc: loc}
}

// Helpers

const appointmentColumns = `id, clinic_id, patient_id, doctor_id, starts_at, duration_minutes, status, notes, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.ClinicID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&p.DateOfBirth,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor

	err := row.Scan(
		&d.ID,
		&d.ClinicID,
		&d.Name,
		&d.Specialty,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.ClinicID,
		&a.PatientID,
		&a.DoctorID,
		&a.StartsAt,
		&a.DurationMinutes,
		&a.Status,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
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

// numeric columns are selected as text so decimal keeps full precision
func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var total string

	err := row.Scan(
		&inv.ID,
		&inv.ClinicID,
		&inv.PatientID,
		&inv.InvoiceNumber,
		&inv.IssueDate,
		&inv.DueDate,
		&total,
		&inv.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}

	inv.TotalAmount, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("parse invoice total %q: %w", total, err)
	}
	return &inv, nil
}

func scanSupply(row pgx.Row) (*Supply, error) {
	var s Supply
	err := row.Scan(
		&s.ID,
		&s.ClinicID,
		&s.Name,
		&s.Quantity,
		&s.MinQuantity,
		&s.Unit,
		&s.ExpiryDate,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSupplies(rows pgx.Rows) ([]Supply, error) {
	defer rows.Close()

	var result []Supply
	for rows.Next() {
		s, err := scanSupply(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	return result, rows.Err()
}

func statusStrings(statuses []AppointmentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// Patients and doctors

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, email, phone, date_of_birth, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, clinic_id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

// Appointments

func (r *PgRepository) ListActiveByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time, exclude *uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		  AND status = ANY($2)
		  AND starts_at >= $3 AND starts_at < $4
		  AND ($5::uuid IS NULL OR id <> $5)
		ORDER BY starts_at
	`, doctorID, statusStrings(ActiveStatuses), from, to, exclude)
	if err != nil {
		return nil, fmt.Errorf("query doctor appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListActiveByPatient(ctx context.Context, patientID uuid.UUID, from, to time.Time, exclude *uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		  AND status = ANY($2)
		  AND starts_at >= $3 AND starts_at < $4
		  AND ($5::uuid IS NULL OR id <> $5)
		ORDER BY starts_at
	`, patientID, statusStrings(ActiveStatuses), from, to, exclude)
	if err != nil {
		return nil, fmt.Errorf("query patient appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListActiveAppointmentsBetween(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = ANY($1)
		  AND starts_at >= $2 AND starts_at < $3
		ORDER BY starts_at
	`, statusStrings(ActiveStatuses), from, to)
	if err != nil {
		return nil, fmt.Errorf("query upcoming appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	id := a.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, clinic_id, patient_id, doctor_id,
			appointment_date, appointment_time, duration_minutes,
			starts_at, ends_at, status, notes, created_at, updated_at
		)
		VALUES (
			$1, $2, $3, $4,
			($5::timestamptz AT TIME ZONE $9::text)::date,
			($5::timestamptz AT TIME ZONE $9::text)::time,
			$6, $5, $7, $8, $10, now(), now()
		)
		RETURNING `+appointmentColumns+`
	`, id, a.ClinicID, a.PatientID, a.DoctorID, a.StartsAt, a.DurationMinutes, a.EndsAt(), string(a.Status), r.loc.String(), a.Notes)

	created, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
			return nil, ErrDoctorSlotTaken
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

// UpdateAppointmentStatus moves an appointment to `to` only while its current status is one of `from`.
// A row in any other status reports ErrAppointmentNotFound.
func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($3)
		RETURNING `+appointmentColumns+`
	`, id, string(to), statusStrings(from))

	updated, err := scanAppointment(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
			return nil, ErrDoctorSlotTaken
		}
		return nil, err
	}
	return updated, nil
}

// Billing

func (r *PgRepository) GetInvoiceByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, clinic_id, patient_id, invoice_number, issue_date, due_date, total_amount::text, status
		FROM invoices
		WHERE id = $1
	`, id)
	return scanInvoice(row)
}

func (r *PgRepository) InvoiceNumberExists(ctx context.Context, clinicID uuid.UUID, number string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM invoices WHERE clinic_id = $1 AND invoice_number = $2)
	`, clinicID, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check invoice number: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) SumCompletedPayments(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	var sum string
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM payments
		WHERE invoice_id = $1 AND status = 'completed'
	`, invoiceID).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum payments: %w", err)
	}
	return decimal.NewFromString(sum)
}

func (r *PgRepository) PaymentReferenceExists(ctx context.Context, clinicID uuid.UUID, reference string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM payments WHERE clinic_id = $1 AND reference_number = $2)
	`, clinicID, reference).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check payment reference: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) ListOverdueInvoices(ctx context.Context, today time.Time) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, clinic_id, patient_id, invoice_number, issue_date, due_date, total_amount::text, status
		FROM invoices
		WHERE due_date IS NOT NULL
		  AND due_date < $1
		  AND status IN ('issued', 'partially_paid')
		ORDER BY due_date
	`, today)
	if err != nil {
		return nil, fmt.Errorf("query overdue invoices: %w", err)
	}
	defer rows.Close()

	var result []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *inv)
	}
	return result, rows.Err()
}

// Treatments

func (r *PgRepository) ListActiveTreatmentsForTooth(ctx context.Context, patientID uuid.UUID, tooth int, treatmentType string) ([]Treatment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, clinic_id, patient_id, doctor_id, tooth_number, treatment_type, status, cost::text
		FROM treatments
		WHERE patient_id = $1
		  AND tooth_number = $2
		  AND treatment_type = $3
		  AND status IN ('planned', 'in_progress')
	`, patientID, tooth, treatmentType)
	if err != nil {
		return nil, fmt.Errorf("query tooth treatments: %w", err)
	}
	defer rows.Close()

	var result []Treatment
	for rows.Next() {
		var t Treatment
		var cost string
		if err := rows.Scan(&t.ID, &t.ClinicID, &t.PatientID, &t.DoctorID, &t.ToothNumber, &t.Type, &t.Status, &cost); err != nil {
			return nil, err
		}
		if t.Cost, err = decimal.NewFromString(cost); err != nil {
			return nil, fmt.Errorf("parse treatment cost %q: %w", cost, err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

// Inventory

func (r *PgRepository) ListLowStockSupplies(ctx context.Context) ([]Supply, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, clinic_id, name, quantity, min_quantity, unit, expiry_date
		FROM supplies
		WHERE quantity <= min_quantity
		ORDER BY clinic_id, name
	`)
	if err != nil {
		return nil, fmt.Errorf("query low stock supplies: %w", err)
	}
	return collectSupplies(rows)
}

func (r *PgRepository) ListSuppliesExpiringBefore(ctx context.Context, before time.Time) ([]Supply, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, clinic_id, name, quantity, min_quantity, unit, expiry_date
		FROM supplies
		WHERE expiry_date IS NOT NULL
		  AND expiry_date <= $1
		  AND quantity > 0
		ORDER BY expiry_date
	`, before)
	if err != nil {
		return nil, fmt.Errorf("query expiring supplies: %w", err)
	}
	return collectSupplies(rows)
}

// Notifications

func (r *PgRepository) NotificationExists(ctx context.Context, entityID uuid.UUID, kind string, notifyDate time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE entity_id = $1 AND type = $2 AND notify_date = $3
		)
	`, entityID, kind, notifyDate).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check notification: %w", err)
	}
	return exists, nil
}

func (r *PgRepository) InsertNotification(ctx context.Context, n *Notification) (bool, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, clinic_id, entity_id, type, notify_date, title, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (entity_id, type, notify_date) DO NOTHING
	`, n.ID, n.ClinicID, n.EntityID, n.Type, n.NotifyDate, n.Title, n.Message)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Events

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
