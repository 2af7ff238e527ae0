package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/dental-clinic-api/internal/clinic"
)

// ValidationResponse is the body of every validate endpoint and of a rejected booking.
type ValidationResponse struct {
	Valid    bool     `json:"valid"`
	Message  string   `json:"message,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Warning  bool     `json:"warning,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	ClinicID        uuid.UUID  `json:"clinic_id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	DoctorID        *uuid.UUID `json:"doctor_id,omitempty"`
	AppointmentDate string     `json:"appointment_date"`
	AppointmentTime string     `json:"appointment_time"`
	Duration        int        `json:"duration"`
	Status          string     `json:"status"`
	Notes           *string    `json:"notes,omitempty"`
	StartsAt        time.Time  `json:"starts_at"`
	EndsAt          time.Time  `json:"ends_at"`
}

func newAppointmentResponse(a *clinic.Appointment, loc *time.Location) AppointmentResponse {
	local := a.StartsAt.In(loc)
	return AppointmentResponse{
		ID:              a.ID,
		ClinicID:        a.ClinicID,
		PatientID:       a.PatientID,
		DoctorID:        a.DoctorID,
		AppointmentDate: local.Format("2006-01-02"),
		AppointmentTime: local.Format("15:04"),
		Duration:        a.DurationMinutes,
		Status:          string(a.Status),
		Notes:           a.Notes,
		StartsAt:        a.StartsAt,
		EndsAt:          a.EndsAt(),
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
