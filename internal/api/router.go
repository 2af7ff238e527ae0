package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/dental-clinic-api/internal/clinic"
	"github.com/hackgods/dental-clinic-api/internal/validation"
)

type Validator interface {
	ValidateAppointment(ctx context.Context, req validation.AppointmentRequest) (*validation.Result, error)
	ValidateInvoice(ctx context.Context, req validation.InvoiceRequest) (*validation.Result, error)
	ValidatePayment(ctx context.Context, req validation.PaymentRequest) (*validation.Result, error)
	ValidateTreatment(ctx context.Context, req validation.TreatmentRequest) (*validation.Result, error)
}

type BookingService interface {
	BookAppointment(ctx context.Context, req validation.AppointmentRequest) (*clinic.Appointment, *validation.Result, error)
	GetAppointment(ctx context.Context, clinicID, id uuid.UUID) (*clinic.Appointment, error)
	ConfirmAppointment(ctx context.Context, clinicID, id uuid.UUID) (*clinic.Appointment, error)
	CancelAppointment(ctx context.Context, clinicID, id uuid.UUID) (*clinic.Appointment, error)
}

type RouterConfig struct {
	Validator Validator
	Booking   BookingService
	Logger    *zap.Logger
	Location  *time.Location

	PostgresPing PingFunc
	RedisPing    PingFunc

	CORSOrigins        []string
	RateLimitPerMinute int
	Env                string
	Version            string
}

// Route is one entry of the public route table.
type Route struct {
	Method  string
	Pattern string
}

const (
	pathValidateAppointment = "/api/v1/validate/appointment"
	pathValidateInvoice     = "/api/v1/validate/invoice"
	pathValidatePayment     = "/api/v1/validate/payment"
	pathValidateTreatment   = "/api/v1/validate/treatment"
	pathAppointments        = "/api/v1/appointments"
	pathClinicAppointment   = "/api/v1/clinics/{clinicID}/appointments/{id}"
)

// Routes is the route table links elsewhere may point at. NewRouter registers exactly these.
func Routes() []Route {
	return []Route{
		{http.MethodGet, "/health/live"},
		{http.MethodGet, "/health/ready"},
		{http.MethodPost, pathValidateAppointment},
		{http.MethodPost, pathValidateInvoice},
		{http.MethodPost, pathValidatePayment},
		{http.MethodPost, pathValidateTreatment},
		{http.MethodPost, pathAppointments},
		{http.MethodGet, pathClinicAppointment},
		{http.MethodPost, pathClinicAppointment + "/confirm"},
		{http.MethodPost, pathClinicAppointment + "/cancel"},
	}
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	health := NewHealthHandler(cfg.PostgresPing, cfg.RedisPing, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	r.Group(func(r chi.Router) {
		if cfg.RateLimitPerMinute > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitPerMinute, time.Minute))
		}

		r.Post(pathValidateAppointment, validateAppointmentHandler(cfg.Validator, cfg.Logger))
		r.Post(pathValidateInvoice, validateInvoiceHandler(cfg.Validator, cfg.Logger))
		r.Post(pathValidatePayment, validatePaymentHandler(cfg.Validator, cfg.Logger))
		r.Post(pathValidateTreatment, validateTreatmentHandler(cfg.Validator, cfg.Logger))

		r.Post(pathAppointments, bookAppointmentHandler(cfg.Booking, cfg.Location, cfg.Logger))
		r.Get(pathClinicAppointment, getAppointmentHandler(cfg.Booking, cfg.Location, cfg.Logger))
		r.Post(pathClinicAppointment+"/confirm", confirmAppointmentHandler(cfg.Booking, cfg.Location, cfg.Logger))
		r.Post(pathClinicAppointment+"/cancel", cancelAppointmentHandler(cfg.Booking, cfg.Location, cfg.Logger))
	})

	return r
}
