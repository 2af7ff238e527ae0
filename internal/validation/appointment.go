package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/dental-clinic-api/internal/clinic"
)

// AppointmentRequest is a proposed appointment. AppointmentID is set when an existing
// appointment is being edited; that appointment is ignored by both conflict scans.
type AppointmentRequest struct {
	AppointmentID   string `json:"appointment_id,omitempty" validate:"omitempty,uuid"`
	PatientID       string `json:"patient_id" validate:"required,uuid"`
	DoctorID        string `json:"doctor_id,omitempty" validate:"omitempty,uuid"`
	ClinicID        string `json:"clinic_id" validate:"required,uuid"`
	AppointmentDate string `json:"appointment_date" validate:"required"`
	AppointmentTime string `json:"appointment_time" validate:"required"`
	DurationMinutes *int   `json:"duration,omitempty" validate:"required,min=15,max=240,multiple_of=15"`
	Status          string `json:"status,omitempty" validate:"omitempty,appointment_status"`
	Notes           string `json:"notes,omitempty" validate:"max=1000"`
}

// StatusOrDefault returns the requested status, or scheduled when none was given.
func (r AppointmentRequest) StatusOrDefault() clinic.AppointmentStatus {
	if r.Status == "" {
		return clinic.StatusScheduled
	}
	return clinic.AppointmentStatus(r.Status)
}

var timeLayouts = []string{"2006-01-02 15:04", "2006-01-02 15:04:05"}

// ParseStart combines a YYYY-MM-DD date and an HH:MM[:SS] time into an instant in loc.
// Wall-clock times skipped or repeated by a zone transition are rejected.
func ParseStart(date, clock string, loc *time.Location) (time.Time, error) {
	raw := date + " " + clock

	var (
		wall time.Time
		err  error
	)
	for _, layout := range timeLayouts {
		wall, err = time.Parse(layout, raw)
		if err == nil {
			break
		}
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", raw, err)
	}

	t := time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), 0, loc)

	// time.Date shifts wall times that fall in a DST gap
	if !sameWallClock(t, wall) {
		return time.Time{}, fmt.Errorf("%q does not exist in %s", raw, loc)
	}
	for _, shift := range []time.Duration{-time.Hour, time.Hour} {
		if sameWallClock(t.Add(shift), wall) {
			return time.Time{}, fmt.Errorf("%q is ambiguous in %s", raw, loc)
		}
	}
	return t, nil
}

func sameWallClock(t, wall time.Time) bool {
	y, m, d := t.Date()
	wy, wm, wd := wall.Date()
	return y == wy && m == wm && d == wd &&
		t.Hour() == wall.Hour() && t.Minute() == wall.Minute() && t.Second() == wall.Second()
}

// ValidateAppointment reports every rule the request violates. Structural failures
// return before any store is queried. Only store failures are returned as errors.
func (v *Validator) ValidateAppointment(ctx context.Context, req AppointmentRequest) (*Result, error) {
	res := &Result{}

	checkFields(res, req)

	var start time.Time
	if req.AppointmentDate != "" && req.AppointmentTime != "" {
		var err error
		start, err = ParseStart(req.AppointmentDate, req.AppointmentTime, v.loc)
		if err != nil {
			res.fail(KindInvalid, "invalid appointment date or time")
		} else {
			v.checkWindow(res, start)
		}
	}

	if res.failed() {
		v.logRejected("appointment", res)
		return res.finish(), nil
	}

	clinicID := uuid.MustParse(req.ClinicID)
	patientID := uuid.MustParse(req.PatientID)
	doctorID := parseOptionalID(req.DoctorID)
	exclude := parseOptionalID(req.AppointmentID)
	end := start.Add(time.Duration(*req.DurationMinutes) * time.Minute)
	dayStart, dayEnd := dayBounds(start, v.loc)

	patientOK, err := v.checkPatient(ctx, res, patientID, clinicID)
	if err != nil {
		return nil, err
	}

	doctorOK := false
	if doctorID != nil {
		doctorOK, err = v.checkDoctor(ctx, res, *doctorID, clinicID)
		if err != nil {
			return nil, err
		}
	}

	if doctorOK {
		existing, err := v.stores.Appointments.ListActiveByDoctor(ctx, *doctorID, dayStart, dayEnd, exclude)
		if err != nil {
			return nil, fmt.Errorf("load doctor appointments: %w", err)
		}
		// only the first overlap is reported
		for _, appt := range existing {
			if overlaps(start, end, appt.StartsAt, appt.EndsAt()) {
				res.fail(KindConflict, fmt.Sprintf("doctor already has an appointment from %s to %s",
					appt.StartsAt.In(v.loc).Format("15:04"), appt.EndsAt().In(v.loc).Format("15:04")))
				break
			}
		}
	}

	if patientOK {
		sameDay, err := v.stores.Appointments.ListActiveByPatient(ctx, patientID, dayStart, dayEnd, exclude)
		if err != nil {
			return nil, fmt.Errorf("load patient appointments: %w", err)
		}
		if len(sameDay) > 0 {
			res.fail(KindConflict, "patient already has an appointment on this date")
			res.Warning = true
		}
	}

	res.finish()
	v.logRejected("appointment", res)
	return res, nil
}

func (v *Validator) checkWindow(res *Result, start time.Time) {
	now := v.now()

	if start.Before(now.Add(v.rules.MinLeadTime)) {
		res.fail(KindInvalid, fmt.Sprintf("appointment must be scheduled at least %s in advance", humanDuration(v.rules.MinLeadTime)))
	}
	if start.After(now.In(v.loc).AddDate(0, 0, v.rules.MaxHorizonDays)) {
		res.fail(KindInvalid, fmt.Sprintf("appointment cannot be scheduled more than %d days in advance", v.rules.MaxHorizonDays))
	}

	hour := start.In(v.loc).Hour()
	if hour < v.rules.OpeningHour || hour >= v.rules.ClosingHour {
		res.fail(KindInvalid, fmt.Sprintf("appointment time must be between %02d:00 and %02d:00", v.rules.OpeningHour, v.rules.ClosingHour))
	}
}

// overlaps treats both intervals as half-open, so back-to-back bookings do not collide.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

func humanDuration(d time.Duration) string {
	switch {
	case d%(24*time.Hour) == 0:
		return fmt.Sprintf("%d days", d/(24*time.Hour))
	case d%time.Hour == 0:
		return fmt.Sprintf("%d hours", d/time.Hour)
	default:
		return fmt.Sprintf("%d minutes", d/time.Minute)
	}
}
