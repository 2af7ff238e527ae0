package validation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/dental-clinic-api/internal/clinic"
)

// memStore is an in-memory stand-in for the Postgres repository that counts lookups.
type memStore struct {
	patients     map[uuid.UUID]clinic.Patient
	doctors      map[uuid.UUID]clinic.Doctor
	appointments []clinic.Appointment
	invoices     map[uuid.UUID]clinic.Invoice
	invoiceNums  map[string]bool
	paid         map[uuid.UUID]decimal.Decimal
	references   map[string]bool
	treatments   []clinic.Treatment

	failWith error
	calls    int
}

func newMemStore() *memStore {
	return &memStore{
		patients:    map[uuid.UUID]clinic.Patient{},
		doctors:     map[uuid.UUID]clinic.Doctor{},
		invoices:    map[uuid.UUID]clinic.Invoice{},
		invoiceNums: map[string]bool{},
		paid:        map[uuid.UUID]decimal.Decimal{},
		references:  map[string]bool{},
	}
}

func (m *memStore) stores() Stores {
	return Stores{Patients: m, Doctors: m, Appointments: m, Billing: m, Treatments: m}
}

func (m *memStore) GetPatientByID(_ context.Context, id uuid.UUID) (*clinic.Patient, error) {
	m.calls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	p, ok := m.patients[id]
	if !ok {
		return nil, clinic.ErrPatientNotFound
	}
	return &p, nil
}

func (m *memStore) GetDoctorByID(_ context.Context, id uuid.UUID) (*clinic.Doctor, error) {
	m.calls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	d, ok := m.doctors[id]
	if !ok {
		return nil, clinic.ErrDoctorNotFound
	}
	return &d, nil
}

func (m *memStore) ListActiveByDoctor(_ context.Context, doctorID uuid.UUID, from, to time.Time, exclude *uuid.UUID) ([]clinic.Appointment, error) {
	m.calls++
	return m.filter(from, to, exclude, func(a clinic.Appointment) bool {
		return a.DoctorID != nil && *a.DoctorID == doctorID
	}), nil
}

func (m *memStore) ListActiveByPatient(_ context.Context, patientID uuid.UUID, from, to time.Time, exclude *uuid.UUID) ([]clinic.Appointment, error) {
	m.calls++
	return m.filter(from, to, exclude, func(a clinic.Appointment) bool {
		return a.PatientID == patientID
	}), nil
}

func (m *memStore) filter(from, to time.Time, exclude *uuid.UUID, match func(clinic.Appointment) bool) []clinic.Appointment {
	var out []clinic.Appointment
	for _, a := range m.appointments {
		if !match(a) || !a.Status.Active() {
			continue
		}
		if exclude != nil && a.ID == *exclude {
			continue
		}
		if a.StartsAt.Before(from) || !a.StartsAt.Before(to) {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (m *memStore) GetInvoiceByID(_ context.Context, id uuid.UUID) (*clinic.Invoice, error) {
	m.calls++
	inv, ok := m.invoices[id]
	if !ok {
		return nil, clinic.ErrInvoiceNotFound
	}
	return &inv, nil
}

func (m *memStore) InvoiceNumberExists(_ context.Context, clinicID uuid.UUID, number string) (bool, error) {
	m.calls++
	return m.invoiceNums[clinicID.String()+"/"+number], nil
}

func (m *memStore) SumCompletedPayments(_ context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	m.calls++
	return m.paid[invoiceID], nil
}

func (m *memStore) PaymentReferenceExists(_ context.Context, clinicID uuid.UUID, reference string) (bool, error) {
	m.calls++
	return m.references[clinicID.String()+"/"+reference], nil
}

func (m *memStore) ListActiveTreatmentsForTooth(_ context.Context, patientID uuid.UUID, tooth int, treatmentType string) ([]clinic.Treatment, error) {
	m.calls++
	var out []clinic.Treatment
	for _, t := range m.treatments {
		if t.PatientID == patientID && t.ToothNumber != nil && *t.ToothNumber == tooth &&
			t.Type == treatmentType && t.Status.Active() {
			out = append(out, t)
		}
	}
	return out, nil
}
