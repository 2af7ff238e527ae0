package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/dental-clinic-api/internal/clinic"
	redisclient "github.com/hackgods/dental-clinic-api/internal/redis"
	"github.com/hackgods/dental-clinic-api/internal/validation"
)

type fakeLocker struct {
	busy bool
	keys []string
}

func (l *fakeLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.keys = append(l.keys, key)
	if l.busy {
		return redisclient.ErrLockNotAcquired
	}
	return fn(ctx)
}

type fakeStore struct {
	patients     map[uuid.UUID]clinic.Patient
	doctors      map[uuid.UUID]clinic.Doctor
	appointments map[uuid.UUID]*clinic.Appointment
	events       []clinic.EventLog

	createErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		patients:     map[uuid.UUID]clinic.Patient{},
		doctors:      map[uuid.UUID]clinic.Doctor{},
		appointments: map[uuid.UUID]*clinic.Appointment{},
	}
}

func (s *fakeStore) GetPatientByID(_ context.Context, id uuid.UUID) (*clinic.Patient, error) {
	p, ok := s.patients[id]
	if !ok {
		return nil, clinic.ErrPatientNotFound
	}
	return &p, nil
}

func (s *fakeStore) GetDoctorByID(_ context.Context, id uuid.UUID) (*clinic.Doctor, error) {
	d, ok := s.doctors[id]
	if !ok {
		return nil, clinic.ErrDoctorNotFound
	}
	return &d, nil
}

func (s *fakeStore) ListActiveByDoctor(_ context.Context, doctorID uuid.UUID, from, to time.Time, exclude *uuid.UUID) ([]clinic.Appointment, error) {
	var out []clinic.Appointment
	for _, a := range s.appointments {
		if a.DoctorID != nil && *a.DoctorID == doctorID && a.Status.Active() &&
			!a.StartsAt.Before(from) && a.StartsAt.Before(to) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) ListActiveByPatient(_ context.Context, patientID uuid.UUID, from, to time.Time, exclude *uuid.UUID) ([]clinic.Appointment, error) {
	var out []clinic.Appointment
	for _, a := range s.appointments {
		if a.PatientID == patientID && a.Status.Active() && !a.StartsAt.Before(from) && a.StartsAt.Before(to) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) GetAppointmentByID(_ context.Context, id uuid.UUID) (*clinic.Appointment, error) {
	a, ok := s.appointments[id]
	if !ok {
		return nil, clinic.ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *fakeStore) CreateAppointment(_ context.Context, a *clinic.Appointment) (*clinic.Appointment, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	cp := *a
	cp.ID = uuid.New()
	s.appointments[cp.ID] = &cp
	return &cp, nil
}

func (s *fakeStore) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from []clinic.AppointmentStatus, to clinic.AppointmentStatus) (*clinic.Appointment, error) {
	a, ok := s.appointments[id]
	if !ok || !hasStatus(from, a.Status) {
		return nil, clinic.ErrAppointmentNotFound
	}
	a.Status = to
	cp := *a
	return &cp, nil
}

func (s *fakeStore) InsertEvent(_ context.Context, ev clinic.EventLog) error {
	s.events = append(s.events, ev)
	return nil
}

type harness struct {
	svc     *Service
	store   *fakeStore
	locker  *fakeLocker
	clinic  uuid.UUID
	patient uuid.UUID
	doctor  uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		store:   newFakeStore(),
		locker:  &fakeLocker{},
		clinic:  uuid.New(),
		patient: uuid.New(),
		doctor:  uuid.New(),
	}
	h.store.patients[h.patient] = clinic.Patient{ID: h.patient, ClinicID: h.clinic}
	h.store.doctors[h.doctor] = clinic.Doctor{ID: h.doctor, ClinicID: h.clinic}

	now := time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	v := validation.New(validation.Stores{
		Patients:     h.store,
		Doctors:      h.store,
		Appointments: h.store,
	}, validation.WithClock(func() time.Time { return now }))

	h.svc = NewService(v, h.store, h.locker, nil)
	return h
}

func (h *harness) request(clock string) validation.AppointmentRequest {
	duration := 30
	return validation.AppointmentRequest{
		PatientID:       h.patient.String(),
		DoctorID:        h.doctor.String(),
		ClinicID:        h.clinic.String(),
		AppointmentDate: "2026-10-20",
		AppointmentTime: clock,
		DurationMinutes: &duration,
		Notes:           "sensitivity on lower left molar",
	}
}

func TestBookAppointment_Creates(t *testing.T) {
	h := newHarness(t)

	appt, res, err := h.svc.BookAppointment(context.Background(), h.request("10:00"))
	require.NoError(t, err)
	require.NotNil(t, appt)

	assert.True(t, res.Valid)
	assert.Equal(t, clinic.StatusScheduled, appt.Status)
	assert.Equal(t, time.Date(2026, 10, 20, 10, 0, 0, 0, time.UTC), appt.StartsAt)
	assert.Equal(t, "sensitivity on lower left molar", *appt.Notes)
	assert.Equal(t, []string{redisclient.DoctorDayKey(h.doctor, "2026-10-20")}, h.locker.keys)

	require.Len(t, h.store.events, 1)
	assert.Equal(t, EventAppointmentCreated, h.store.events[0].EventType)
}

func TestBookAppointment_RejectedByValidation(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.svc.BookAppointment(context.Background(), h.request("10:00"))
	require.NoError(t, err)

	other := uuid.New()
	h.store.patients[other] = clinic.Patient{ID: other, ClinicID: h.clinic}
	req := h.request("10:15")
	req.PatientID = other.String()

	appt, res, err := h.svc.BookAppointment(context.Background(), req)
	require.NoError(t, err)

	assert.Nil(t, appt)
	assert.False(t, res.Valid)
	assert.Equal(t, validation.KindConflict, res.Kind)
	assert.Len(t, h.store.appointments, 1)
}

func TestBookAppointment_LockBusy(t *testing.T) {
	h := newHarness(t)
	h.locker.busy = true

	_, _, err := h.svc.BookAppointment(context.Background(), h.request("10:00"))
	assert.ErrorIs(t, err, ErrSlotBeingBooked)
	assert.Empty(t, h.store.appointments)
}

func TestBookAppointment_PatientLockWithoutDoctor(t *testing.T) {
	h := newHarness(t)
	req := h.request("10:00")
	req.DoctorID = ""

	_, _, err := h.svc.BookAppointment(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{redisclient.PatientDayKey(h.patient, "2026-10-20")}, h.locker.keys)
}

func TestBookAppointment_MalformedIDsSkipLock(t *testing.T) {
	h := newHarness(t)
	req := h.request("10:00")
	req.DoctorID = "nope"

	appt, res, err := h.svc.BookAppointment(context.Background(), req)
	require.NoError(t, err)

	assert.Nil(t, appt)
	assert.Contains(t, res.Errors, "doctor_id must be a valid UUID")
	assert.Empty(t, h.locker.keys)
}

func TestBookAppointment_ExclusionConstraint(t *testing.T) {
	h := newHarness(t)
	h.store.createErr = clinic.ErrDoctorSlotTaken

	_, _, err := h.svc.BookAppointment(context.Background(), h.request("10:00"))
	assert.ErrorIs(t, err, clinic.ErrDoctorSlotTaken)
}

func TestBookAppointment_InactiveStatusRefused(t *testing.T) {
	h := newHarness(t)
	req := h.request("10:00")
	req.Status = string(clinic.StatusCompleted)

	_, _, err := h.svc.BookAppointment(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.Empty(t, h.store.appointments)
}

func TestBookAppointment_InactiveStatusWithBadFieldsReportsErrors(t *testing.T) {
	h := newHarness(t)
	req := h.request("07:00")
	req.Status = string(clinic.StatusCancelled)
	duration := 20
	req.DurationMinutes = &duration

	appt, res, err := h.svc.BookAppointment(context.Background(), req)
	require.NoError(t, err)

	assert.Nil(t, appt)
	assert.Equal(t, validation.KindInvalid, res.Kind)
	assert.ElementsMatch(t, []string{
		"duration must be a multiple of 15 minutes",
		"appointment time must be between 08:00 and 22:00",
	}, res.Errors)
	assert.Empty(t, h.store.appointments)
}

func TestConfirmAndCancel(t *testing.T) {
	h := newHarness(t)
	appt, _, err := h.svc.BookAppointment(context.Background(), h.request("10:00"))
	require.NoError(t, err)

	confirmed, err := h.svc.ConfirmAppointment(context.Background(), h.clinic, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, clinic.StatusConfirmed, confirmed.Status)

	_, err = h.svc.ConfirmAppointment(context.Background(), h.clinic, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	cancelled, err := h.svc.CancelAppointment(context.Background(), h.clinic, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, clinic.StatusCancelled, cancelled.Status)

	_, err = h.svc.CancelAppointment(context.Background(), h.clinic, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	var types []string
	for _, ev := range h.store.events {
		types = append(types, ev.EventType)
	}
	assert.Equal(t, []string{EventAppointmentCreated, EventAppointmentConfirmed, EventAppointmentCancelled}, types)
}

func TestGetAppointment_Tenancy(t *testing.T) {
	h := newHarness(t)
	appt, _, err := h.svc.BookAppointment(context.Background(), h.request("10:00"))
	require.NoError(t, err)

	got, err := h.svc.GetAppointment(context.Background(), h.clinic, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, got.ID)

	_, err = h.svc.GetAppointment(context.Background(), uuid.New(), appt.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.svc.GetAppointment(context.Background(), h.clinic, uuid.New())
	assert.True(t, errors.Is(err, clinic.ErrAppointmentNotFound))
}
