package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/dental-clinic-api/internal/clinic"
	redisclient "github.com/hackgods/dental-clinic-api/internal/redis"
	"github.com/hackgods/dental-clinic-api/internal/validation"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
)

var (
	ErrSlotBeingBooked         = errors.New("this calendar day is currently being booked, please retry")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrForbidden               = errors.New("appointment does not belong to this clinic")
)

// Store is the persistence the booking path writes through.
type Store interface {
	clinic.AppointmentRepository
	clinic.EventRepository
}

type Service struct {
	validator *validation.Validator
	store     Store
	locker    redisclient.Locker
	log       *zap.Logger
}

func NewService(v *validation.Validator, store Store, locker redisclient.Locker, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		validator: v,
		store:     store,
		locker:    locker,
		log:       log,
	}
}

// BookAppointment validates and inserts an appointment while holding a lock on the
// doctor's day (or the patient's day when no doctor is given). A rejected request
// returns its Result and a nil appointment; err is reserved for infrastructure and
// lock failures.
func (s *Service) BookAppointment(ctx context.Context, req validation.AppointmentRequest) (*clinic.Appointment, *validation.Result, error) {
	// a new booking has nothing to exclude from the conflict scans
	req.AppointmentID = ""

	key, ok := lockKey(req)
	if !ok {
		// ids are malformed; validation reports it without touching the stores
		res, err := s.validator.ValidateAppointment(ctx, req)
		return nil, res, err
	}

	var (
		created *clinic.Appointment
		result  *validation.Result
	)

	err := s.locker.WithLock(ctx, key, func(lockCtx context.Context) error {
		res, err := s.validator.ValidateAppointment(lockCtx, req)
		if err != nil {
			return fmt.Errorf("validate appointment: %w", err)
		}
		result = res
		if !res.Valid {
			return nil
		}
		// a new booking must occupy the slot
		if !req.StatusOrDefault().Active() {
			return ErrInvalidStatusTransition
		}

		start, err := validation.ParseStart(req.AppointmentDate, req.AppointmentTime, s.validator.Location())
		if err != nil {
			return fmt.Errorf("parse start: %w", err)
		}

		appt := &clinic.Appointment{
			ClinicID:        uuid.MustParse(req.ClinicID),
			PatientID:       uuid.MustParse(req.PatientID),
			DoctorID:        optionalID(req.DoctorID),
			StartsAt:        start,
			DurationMinutes: *req.DurationMinutes,
			Status:          req.StatusOrDefault(),
		}
		if req.Notes != "" {
			notes := req.Notes
			appt.Notes = &notes
		}

		created, err = s.store.CreateAppointment(lockCtx, appt)
		if err != nil {
			if errors.Is(err, clinic.ErrDoctorSlotTaken) {
				return err
			}
			return fmt.Errorf("create appointment: %w", err)
		}

		s.logEvent(lockCtx, created.ID, EventAppointmentCreated, map[string]any{
			"clinic_id":  created.ClinicID.String(),
			"patient_id": created.PatientID.String(),
			"starts_at":  created.StartsAt,
			"duration":   created.DurationMinutes,
		})
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, nil, ErrSlotBeingBooked
		}
		return nil, nil, err
	}

	return created, result, nil
}

// ConfirmAppointment moves a scheduled appointment to confirmed.
func (s *Service) ConfirmAppointment(ctx context.Context, clinicID, id uuid.UUID) (*clinic.Appointment, error) {
	return s.transition(ctx, clinicID, id,
		[]clinic.AppointmentStatus{clinic.StatusScheduled}, clinic.StatusConfirmed, EventAppointmentConfirmed)
}

// CancelAppointment frees the slot of a scheduled or confirmed appointment.
func (s *Service) CancelAppointment(ctx context.Context, clinicID, id uuid.UUID) (*clinic.Appointment, error) {
	return s.transition(ctx, clinicID, id, clinic.ActiveStatuses, clinic.StatusCancelled, EventAppointmentCancelled)
}

func (s *Service) GetAppointment(ctx context.Context, clinicID, id uuid.UUID) (*clinic.Appointment, error) {
	appt, err := s.store.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, clinic.ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.ClinicID != clinicID {
		return nil, ErrForbidden
	}
	return appt, nil
}

func (s *Service) transition(ctx context.Context, clinicID, id uuid.UUID, from []clinic.AppointmentStatus, to clinic.AppointmentStatus, event string) (*clinic.Appointment, error) {
	appt, err := s.GetAppointment(ctx, clinicID, id)
	if err != nil {
		return nil, err
	}
	if !hasStatus(from, appt.Status) {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.store.UpdateAppointmentStatus(ctx, appt.ID, from, to)
	if err != nil {
		// the row changed status between the read and the update
		if errors.Is(err, clinic.ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, updated.ID, event, map[string]any{
		"from": string(appt.Status),
		"to":   string(to),
	})
	return updated, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("failed to marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	apptID := appointmentID
	ev := clinic.EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.store.InsertEvent(ctx, ev); err != nil {
		s.log.Error("failed to insert event log",
			zap.String("event", eventType),
			zap.String("appointment_id", appointmentID.String()),
			zap.Error(err),
		)
	}
}

func lockKey(req validation.AppointmentRequest) (string, bool) {
	if req.DoctorID != "" {
		id, err := uuid.Parse(req.DoctorID)
		if err != nil {
			return "", false
		}
		return redisclient.DoctorDayKey(id, req.AppointmentDate), true
	}
	id, err := uuid.Parse(req.PatientID)
	if err != nil {
		return "", false
	}
	return redisclient.PatientDayKey(id, req.AppointmentDate), true
}

func hasStatus(set []clinic.AppointmentStatus, s clinic.AppointmentStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func optionalID(s string) *uuid.UUID {
	if s == "" {
		return nil
	}
	id := uuid.MustParse(s)
	return &id
}
