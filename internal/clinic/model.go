package clinic

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AppointmentStatus string

const (
	StatusScheduled   AppointmentStatus = "scheduled"
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusCompleted   AppointmentStatus = "completed"
	StatusNoShow      AppointmentStatus = "no_show"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

var appointmentStatuses = map[AppointmentStatus]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusCancelled: true,
	StatusCompleted: true, StatusNoShow: true, StatusRescheduled: true,
}

func (s AppointmentStatus) Valid() bool {
	return appointmentStatuses[s]
}

// Active statuses are the only ones that occupy a doctor's time.
func (s AppointmentStatus) Active() bool {
	return s == StatusScheduled || s == StatusConfirmed
}

// ActiveStatuses is the set used by conflict queries.
var ActiveStatuses = []AppointmentStatus{StatusScheduled, StatusConfirmed}

type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "draft"
	InvoiceIssued        InvoiceStatus = "issued"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoicePaid          InvoiceStatus = "paid"
	InvoiceCancelled     InvoiceStatus = "cancelled"
)

type TreatmentStatus string

const (
	TreatmentPlanned    TreatmentStatus = "planned"
	TreatmentInProgress TreatmentStatus = "in_progress"
	TreatmentCompleted  TreatmentStatus = "completed"
	TreatmentCancelled  TreatmentStatus = "cancelled"
)

func (s TreatmentStatus) Active() bool {
	return s == TreatmentPlanned || s == TreatmentInProgress
}

type Clinic struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID        uuid.UUID
	ClinicID  uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID          uuid.UUID
	ClinicID    uuid.UUID
	Name        string
	Email       *string
	Phone       *string
	DateOfBirth *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Appointment struct {
	ID              uuid.UUID
	ClinicID        uuid.UUID
	PatientID       uuid.UUID
	DoctorID        *uuid.UUID
	StartsAt        time.Time
	DurationMinutes int
	Status          AppointmentStatus
	Notes           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (a Appointment) EndsAt() time.Time {
	return a.StartsAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

type Invoice struct {
	ID            uuid.UUID
	ClinicID      uuid.UUID
	PatientID     uuid.UUID
	InvoiceNumber string
	IssueDate     time.Time
	DueDate       *time.Time
	TotalAmount   decimal.Decimal
	Status        InvoiceStatus
}

type Treatment struct {
	ID          uuid.UUID
	ClinicID    uuid.UUID
	PatientID   uuid.UUID
	DoctorID    *uuid.UUID
	ToothNumber *int
	Type        string
	Status      TreatmentStatus
	Cost        decimal.Decimal
}

type Supply struct {
	ID          uuid.UUID
	ClinicID    uuid.UUID
	Name        string
	Quantity    int
	MinQuantity int
	Unit        *string
	ExpiryDate  *time.Time
}

type Notification struct {
	ID         uuid.UUID
	ClinicID   uuid.UUID
	EntityID   uuid.UUID
	Type       string
	NotifyDate time.Time
	Title      string
	Message    string
	CreatedAt  time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
