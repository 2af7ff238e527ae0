package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/dental-clinic-api/internal/booking"
	"github.com/hackgods/dental-clinic-api/internal/clinic"
	"github.com/hackgods/dental-clinic-api/internal/validation"
)

type stubValidator struct {
	result *validation.Result
	err    error

	lastAppointment validation.AppointmentRequest
}

func (s *stubValidator) ValidateAppointment(_ context.Context, req validation.AppointmentRequest) (*validation.Result, error) {
	s.lastAppointment = req
	return s.result, s.err
}

func (s *stubValidator) ValidateInvoice(context.Context, validation.InvoiceRequest) (*validation.Result, error) {
	return s.result, s.err
}

func (s *stubValidator) ValidatePayment(context.Context, validation.PaymentRequest) (*validation.Result, error) {
	return s.result, s.err
}

func (s *stubValidator) ValidateTreatment(context.Context, validation.TreatmentRequest) (*validation.Result, error) {
	return s.result, s.err
}

type stubBooking struct {
	appt   *clinic.Appointment
	result *validation.Result
	err    error
}

func (s *stubBooking) BookAppointment(context.Context, validation.AppointmentRequest) (*clinic.Appointment, *validation.Result, error) {
	return s.appt, s.result, s.err
}

func (s *stubBooking) GetAppointment(context.Context, uuid.UUID, uuid.UUID) (*clinic.Appointment, error) {
	return s.appt, s.err
}

func (s *stubBooking) ConfirmAppointment(context.Context, uuid.UUID, uuid.UUID) (*clinic.Appointment, error) {
	return s.appt, s.err
}

func (s *stubBooking) CancelAppointment(context.Context, uuid.UUID, uuid.UUID) (*clinic.Appointment, error) {
	return s.appt, s.err
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

const appointmentBody = `{
	"patient_id": "9b2f1c7e-4a44-4d55-9a55-3f4d2d1e8a01",
	"clinic_id": "1d8e7c6b-5a49-4c3b-8a2f-0e9d8c7b6a50",
	"appointment_date": "2026-10-20",
	"appointment_time": "10:00"
}`

func TestValidateAppointment_Valid(t *testing.T) {
	v := &stubValidator{result: &validation.Result{Valid: true}}
	h := NewRouter(RouterConfig{Validator: v})

	rec := do(t, h, http.MethodPost, "/api/v1/validate/appointment", appointmentBody)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[ValidationResponse](t, rec)
	assert.True(t, resp.Valid)
	assert.Equal(t, "appointment is valid", resp.Message)

	require.NotNil(t, v.lastAppointment.DurationMinutes)
	assert.Equal(t, validation.DefaultDurationMinutes, *v.lastAppointment.DurationMinutes)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestValidateAppointment_KeepsExplicitDuration(t *testing.T) {
	v := &stubValidator{result: &validation.Result{Valid: true}}
	h := NewRouter(RouterConfig{Validator: v})

	body := strings.Replace(appointmentBody, `"appointment_time": "10:00"`, `"appointment_time": "10:00", "duration": 45`, 1)
	do(t, h, http.MethodPost, "/api/v1/validate/appointment", body)

	assert.Equal(t, 45, *v.lastAppointment.DurationMinutes)
}

func TestValidate_StatusByKind(t *testing.T) {
	tests := []struct {
		kind   validation.Kind
		status int
	}{
		{validation.KindInvalid, http.StatusBadRequest},
		{validation.KindForbidden, http.StatusForbidden},
		{validation.KindNotFound, http.StatusNotFound},
		{validation.KindConflict, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			v := &stubValidator{result: &validation.Result{
				Valid:   false,
				Errors:  []string{"patient already has an appointment on this date"},
				Warning: tt.kind == validation.KindConflict,
				Kind:    tt.kind,
			}}
			h := NewRouter(RouterConfig{Validator: v})

			for _, path := range []string{
				"/api/v1/validate/appointment",
				"/api/v1/validate/invoice",
				"/api/v1/validate/payment",
				"/api/v1/validate/treatment",
			} {
				rec := do(t, h, http.MethodPost, path, "{}")
				assert.Equal(t, tt.status, rec.Code, path)

				resp := decode[ValidationResponse](t, rec)
				assert.False(t, resp.Valid)
				assert.Equal(t, []string{"patient already has an appointment on this date"}, resp.Errors)
				assert.Equal(t, tt.kind == validation.KindConflict, resp.Warning)
			}
		})
	}
}

func TestValidate_StoreFailure(t *testing.T) {
	v := &stubValidator{err: errors.New("load patient: connection refused")}
	h := NewRouter(RouterConfig{Validator: v})

	rec := do(t, h, http.MethodPost, "/api/v1/validate/appointment", appointmentBody)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "internal_error", resp.Error)
	assert.Equal(t, "load patient: connection refused", resp.Details)
}

func TestValidate_MalformedJSON(t *testing.T) {
	h := NewRouter(RouterConfig{Validator: &stubValidator{}})

	rec := do(t, h, http.MethodPost, "/api/v1/validate/payment", `{"amount": `)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode[ValidationResponse](t, rec)
	assert.False(t, resp.Valid)
	assert.Equal(t, []string{"request body must be valid JSON"}, resp.Errors)
}

func TestValidate_WarningsOnValidResult(t *testing.T) {
	v := &stubValidator{result: &validation.Result{Valid: true, Warnings: []string{"reference number reused"}}}
	h := NewRouter(RouterConfig{Validator: v})

	rec := do(t, h, http.MethodPost, "/api/v1/validate/payment", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"reference number reused"}, decode[ValidationResponse](t, rec).Warnings)
}

func sampleAppointment() *clinic.Appointment {
	doctor := uuid.New()
	return &clinic.Appointment{
		ID:              uuid.New(),
		ClinicID:        uuid.New(),
		PatientID:       uuid.New(),
		DoctorID:        &doctor,
		StartsAt:        time.Date(2026, 10, 20, 8, 0, 0, 0, time.UTC),
		DurationMinutes: 45,
		Status:          clinic.StatusScheduled,
	}
}

func TestBookAppointment_Created(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	appt := sampleAppointment()
	h := NewRouter(RouterConfig{
		Booking:  &stubBooking{appt: appt, result: &validation.Result{Valid: true}},
		Location: berlin,
	})

	rec := do(t, h, http.MethodPost, "/api/v1/appointments", appointmentBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decode[AppointmentResponse](t, rec)
	assert.Equal(t, appt.ID, resp.ID)
	assert.Equal(t, "2026-10-20", resp.AppointmentDate)
	assert.Equal(t, "10:00", resp.AppointmentTime)
	assert.Equal(t, 45, resp.Duration)
	assert.Equal(t, "scheduled", resp.Status)
}

func TestBookAppointment_Rejected(t *testing.T) {
	h := NewRouter(RouterConfig{Booking: &stubBooking{result: &validation.Result{
		Errors: []string{"doctor already has an appointment from 10:00 to 10:30"},
		Kind:   validation.KindConflict,
	}}})

	rec := do(t, h, http.MethodPost, "/api/v1/appointments", appointmentBody)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, []string{"doctor already has an appointment from 10:00 to 10:30"}, decode[ValidationResponse](t, rec).Errors)
}

func TestBookingErrors(t *testing.T) {
	path := "/api/v1/clinics/" + uuid.NewString() + "/appointments/" + uuid.NewString()

	tests := []struct {
		name   string
		err    error
		method string
		path   string
		status int
		code   string
	}{
		{"lock busy", booking.ErrSlotBeingBooked, http.MethodPost, "/api/v1/appointments", http.StatusConflict, "slot_being_booked"},
		{"constraint", clinic.ErrDoctorSlotTaken, http.MethodPost, "/api/v1/appointments", http.StatusConflict, "slot_taken"},
		{"not found", clinic.ErrAppointmentNotFound, http.MethodGet, path, http.StatusNotFound, "appointment_not_found"},
		{"other clinic", booking.ErrForbidden, http.MethodGet, path, http.StatusForbidden, "forbidden"},
		{"transition", booking.ErrInvalidStatusTransition, http.MethodPost, path + "/confirm", http.StatusConflict, "invalid_status_transition"},
		{"infrastructure", errors.New("pool closed"), http.MethodPost, path + "/cancel", http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRouter(RouterConfig{Booking: &stubBooking{err: tt.err}})

			rec := do(t, h, tt.method, tt.path, appointmentBody)
			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestAppointmentPath_BadIDs(t *testing.T) {
	h := NewRouter(RouterConfig{Booking: &stubBooking{appt: sampleAppointment()}})

	rec := do(t, h, http.MethodGet, "/api/v1/clinics/abc/appointments/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/v1/clinics/"+uuid.NewString()+"/appointments/xyz/cancel", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
