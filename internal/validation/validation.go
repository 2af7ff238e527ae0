// Package validation decides whether clinic records may be written. Each validator
// runs structural checks first, then existence and tenancy lookups, then business
// rules, and reports every violated rule rather than the first one.
package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/dental-clinic-api/internal/clinic"
)

// Kind classifies why a request was rejected. The HTTP layer maps it to a status code.
type Kind string

const (
	KindNone      Kind = ""
	KindConflict  Kind = "conflict"
	KindNotFound  Kind = "not_found"
	KindForbidden Kind = "forbidden"
	KindInvalid   Kind = "invalid"
)

// higher rank wins when one result collects several kinds
var kindRank = map[Kind]int{
	KindNone:      0,
	KindConflict:  1,
	KindNotFound:  2,
	KindForbidden: 3,
	KindInvalid:   4,
}

// Result is the outcome of one validation call. Valid is true only if Errors is empty.
// Warnings never block; Warning marks an advisory conflict that is still reported as an error.
type Result struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Warning  bool     `json:"warning,omitempty"`
	Kind     Kind     `json:"-"`
}

func (r *Result) fail(kind Kind, msg string) {
	r.Errors = append(r.Errors, msg)
	if kindRank[kind] > kindRank[r.Kind] {
		r.Kind = kind
	}
}

func (r *Result) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

func (r *Result) failed() bool {
	return len(r.Errors) > 0
}

func (r *Result) finish() *Result {
	r.Valid = len(r.Errors) == 0
	return r
}

// AppointmentLookup is the read side of the appointment store used for conflict scans.
type AppointmentLookup interface {
	ListActiveByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time, exclude *uuid.UUID) ([]clinic.Appointment, error)
	ListActiveByPatient(ctx context.Context, patientID uuid.UUID, from, to time.Time, exclude *uuid.UUID) ([]clinic.Appointment, error)
}

// Stores groups the lookups validators need. Billing and Treatments may be nil when
// only appointments are validated.
type Stores struct {
	Patients     clinic.PatientRepository
	Doctors      clinic.DoctorRepository
	Appointments AppointmentLookup
	Billing      clinic.BillingRepository
	Treatments   clinic.TreatmentRepository
}

type Validator struct {
	stores Stores
	rules  Rules
	loc    *time.Location
	now    func() time.Time
	log    *zap.Logger
}

type Option func(*Validator)

func WithRules(r Rules) Option {
	return func(v *Validator) { v.rules = r }
}

// WithLocation sets the zone appointment dates and times are interpreted in.
func WithLocation(loc *time.Location) Option {
	return func(v *Validator) {
		if loc != nil {
			v.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(v *Validator) { v.log = log }
}

func New(stores Stores, opts ...Option) *Validator {
	v := &Validator{
		stores: stores,
		rules:  DefaultRules(),
		loc:    time.UTC,
		now:    time.Now,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Location is the zone the validator interprets calendar input in.
func (v *Validator) Location() *time.Location {
	return v.loc
}

// checkPatient records not-found and tenancy failures. ok is true only when the
// patient exists and belongs to clinicID.
func (v *Validator) checkPatient(ctx context.Context, res *Result, patientID, clinicID uuid.UUID) (bool, error) {
	patient, err := v.stores.Patients.GetPatientByID(ctx, patientID)
	switch {
	case errors.Is(err, clinic.ErrPatientNotFound):
		res.fail(KindNotFound, "patient not found")
		return false, nil
	case err != nil:
		return false, fmt.Errorf("load patient: %w", err)
	case patient.ClinicID != clinicID:
		res.fail(KindForbidden, "patient does not belong to this clinic")
		return false, nil
	}
	return true, nil
}

func (v *Validator) checkDoctor(ctx context.Context, res *Result, doctorID, clinicID uuid.UUID) (bool, error) {
	doctor, err := v.stores.Doctors.GetDoctorByID(ctx, doctorID)
	switch {
	case errors.Is(err, clinic.ErrDoctorNotFound):
		res.fail(KindNotFound, "doctor not found")
		return false, nil
	case err != nil:
		return false, fmt.Errorf("load doctor: %w", err)
	case doctor.ClinicID != clinicID:
		res.fail(KindForbidden, "doctor does not belong to this clinic")
		return false, nil
	}
	return true, nil
}

func (v *Validator) logRejected(what string, res *Result) {
	if res.Valid {
		return
	}
	v.log.Debug("validation rejected",
		zap.String("record", what),
		zap.String("kind", string(res.Kind)),
		zap.Int("errors", len(res.Errors)),
	)
}

// parseOptionalID parses a UUID that already passed structural checks.
func parseOptionalID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id := uuid.MustParse(s)
	return &id
}
