package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/dental-clinic-api/internal/booking"
	"github.com/hackgods/dental-clinic-api/internal/clinic"
	"github.com/hackgods/dental-clinic-api/internal/validation"
)

const maxBodyBytes = 1 << 20

// statusForKind picks the response code when a result is not valid.
func statusForKind(kind validation.Kind) int {
	switch kind {
	case validation.KindForbidden:
		return http.StatusForbidden
	case validation.KindNotFound:
		return http.StatusNotFound
	case validation.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func writeInternal(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	log.Error("request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", GetRequestID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
}

func writeResult(w http.ResponseWriter, res *validation.Result, okMessage string) {
	if res.Valid {
		writeJSON(w, http.StatusOK, ValidationResponse{
			Valid:    true,
			Message:  okMessage,
			Warnings: res.Warnings,
		})
		return
	}
	writeJSON(w, statusForKind(res.Kind), ValidationResponse{
		Valid:    false,
		Errors:   res.Errors,
		Warnings: res.Warnings,
		Warning:  res.Warning,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ValidationResponse{
			Valid:  false,
			Errors: []string{"request body must be valid JSON"},
		})
		return false
	}
	return true
}

// decodeAppointment fills the default duration for requests that leave it out.
func decodeAppointment(w http.ResponseWriter, r *http.Request) (validation.AppointmentRequest, bool) {
	var req validation.AppointmentRequest
	if !decodeBody(w, r, &req) {
		return req, false
	}
	if req.DurationMinutes == nil {
		d := validation.DefaultDurationMinutes
		req.DurationMinutes = &d
	}
	return req, true
}

func validateAppointmentHandler(v Validator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeAppointment(w, r)
		if !ok {
			return
		}
		res, err := v.ValidateAppointment(r.Context(), req)
		if err != nil {
			writeInternal(w, r, log, err)
			return
		}
		writeResult(w, res, "appointment is valid")
	}
}

func validateInvoiceHandler(v Validator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validation.InvoiceRequest
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := v.ValidateInvoice(r.Context(), req)
		if err != nil {
			writeInternal(w, r, log, err)
			return
		}
		writeResult(w, res, "invoice is valid")
	}
}

func validatePaymentHandler(v Validator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validation.PaymentRequest
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := v.ValidatePayment(r.Context(), req)
		if err != nil {
			writeInternal(w, r, log, err)
			return
		}
		writeResult(w, res, "payment is valid")
	}
}

func validateTreatmentHandler(v Validator, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validation.TreatmentRequest
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := v.ValidateTreatment(r.Context(), req)
		if err != nil {
			writeInternal(w, r, log, err)
			return
		}
		writeResult(w, res, "treatment is valid")
	}
}

func bookAppointmentHandler(svc BookingService, loc *time.Location, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeAppointment(w, r)
		if !ok {
			return
		}

		appt, res, err := svc.BookAppointment(r.Context(), req)
		if err != nil {
			handleBookingError(w, r, log, err)
			return
		}
		if !res.Valid {
			writeResult(w, res, "")
			return
		}

		writeJSON(w, http.StatusCreated, newAppointmentResponse(appt, loc))
	}
}

func getAppointmentHandler(svc BookingService, loc *time.Location, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, id, ok := appointmentPath(w, r)
		if !ok {
			return
		}
		appt, err := svc.GetAppointment(r.Context(), clinicID, id)
		if err != nil {
			handleBookingError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(appt, loc))
	}
}

func confirmAppointmentHandler(svc BookingService, loc *time.Location, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, id, ok := appointmentPath(w, r)
		if !ok {
			return
		}
		appt, err := svc.ConfirmAppointment(r.Context(), clinicID, id)
		if err != nil {
			handleBookingError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(appt, loc))
	}
}

func cancelAppointmentHandler(svc BookingService, loc *time.Location, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clinicID, id, ok := appointmentPath(w, r)
		if !ok {
			return
		}
		appt, err := svc.CancelAppointment(r.Context(), clinicID, id)
		if err != nil {
			handleBookingError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, newAppointmentResponse(appt, loc))
	}
}

func appointmentPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	clinicID, err := uuid.Parse(chi.URLParam(r, "clinicID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_clinic_id", "clinicID must be a valid UUID")
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, uuid.Nil, false
	}
	return clinicID, id, true
}

func handleBookingError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, clinic.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, booking.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", err.Error())
	case errors.Is(err, clinic.ErrDoctorSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, booking.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		writeInternal(w, r, log, err)
	}
}
