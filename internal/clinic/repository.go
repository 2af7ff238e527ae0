package clinic

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrInvoiceNotFound     = errors.New("invoice not found")

	// ErrDoctorSlotTaken is returned when the store's overlap constraint rejects a write.
	ErrDoctorSlotTaken = errors.New("doctor already has an active appointment in this interval")
)

type PatientRepository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
}

type DoctorRepository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
}

// AppointmentRepository covers the reads the validator needs and the writes booking needs.
// Day bounds are half-open: [from, to).
type AppointmentRepository interface {
	ListActiveByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time, exclude *uuid.UUID) ([]Appointment, error)
	ListActiveByPatient(ctx context.Context, patientID uuid.UUID, from, to time.Time, exclude *uuid.UUID) ([]Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from []AppointmentStatus, to AppointmentStatus) (*Appointment, error)
}

type BillingRepository interface {
	GetInvoiceByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	InvoiceNumberExists(ctx context.Context, clinicID uuid.UUID, number string) (bool, error)
	SumCompletedPayments(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
	PaymentReferenceExists(ctx context.Context, clinicID uuid.UUID, reference string) (bool, error)
}

type TreatmentRepository interface {
	ListActiveTreatmentsForTooth(ctx context.Context, patientID uuid.UUID, tooth int, treatmentType string) ([]Treatment, error)
}

// ReminderSource feeds the notification generator.
type ReminderSource interface {
	ListActiveAppointmentsBetween(ctx context.Context, from, to time.Time) ([]Appointment, error)
	ListLowStockSupplies(ctx context.Context) ([]Supply, error)
	ListSuppliesExpiringBefore(ctx context.Context, before time.Time) ([]Supply, error)
	ListOverdueInvoices(ctx context.Context, today time.Time) ([]Invoice, error)
}

type NotificationRepository interface {
	NotificationExists(ctx context.Context, entityID uuid.UUID, kind string, notifyDate time.Time) (bool, error)
	// InsertNotification reports false when the (entity, type, date) key already existed.
	InsertNotification(ctx context.Context, n *Notification) (bool, error)
}

type EventRepository interface {
	InsertEvent(ctx context.Context, ev EventLog) error
}
