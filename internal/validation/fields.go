package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/dental-clinic-api/internal/clinic"
)

// Duration limits, mirrored in AppointmentRequest's struct tags.
const (
	MinDurationMinutes  = 15
	MaxDurationMinutes  = 240
	DurationStepMinutes = 15

	// DefaultDurationMinutes is filled in by callers when a request omits duration.
	DefaultDurationMinutes = 30
)

// Rules holds the appointment booking window.
type Rules struct {
	MinLeadTime    time.Duration
	MaxHorizonDays int // calendar days at the clinic's wall clock
	OpeningHour    int // inclusive
	ClosingHour    int // exclusive
}

func DefaultRules() Rules {
	return Rules{
		MinLeadTime:    30 * time.Minute,
		MaxHorizonDays: 180,
		OpeningHour:    8,
		ClosingHour:    22,
	}
}

var validate = newFieldValidator()

func newFieldValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// range tags (gt, gte, lte) compare decimals as floats; exact arithmetic happens elsewhere
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	for tag, fn := range map[string]validator.Func{
		"uuid":               validateUUID,
		"multiple_of":        validateMultipleOf,
		"appointment_status": validateAppointmentStatus,
		"fdi_tooth":          validateFDITooth,
	} {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("register %s validation: %v", tag, err))
		}
	}

	return v
}

// validateUUID replaces the built-in tag, which only accepts lowercase hex.
// Only the canonical 36-character form passes.
func validateUUID(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}

func validateMultipleOf(fl validator.FieldLevel) bool {
	step, err := strconv.ParseInt(fl.Param(), 10, 64)
	if err != nil || step <= 0 {
		return false
	}
	switch fl.Field().Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fl.Field().Int()%step == 0
	}
	return false
}

func validateAppointmentStatus(fl validator.FieldLevel) bool {
	return clinic.AppointmentStatus(fl.Field().String()).Valid()
}

// validateFDITooth accepts FDI two-digit notation: permanent teeth in quadrants 1-4
// (positions 1-8) and primary teeth in quadrants 5-8 (positions 1-5).
func validateFDITooth(fl validator.FieldLevel) bool {
	return IsFDITooth(int(fl.Field().Int()))
}

func IsFDITooth(n int) bool {
	quadrant, position := n/10, n%10
	switch {
	case quadrant >= 1 && quadrant <= 4:
		return position >= 1 && position <= 8
	case quadrant >= 5 && quadrant <= 8:
		return position >= 1 && position <= 5
	}
	return false
}

// checkFields runs the struct tags and records one message per failing field.
func checkFields(res *Result, s interface{}) {
	err := validate.Struct(s)
	if err == nil {
		return
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		res.fail(KindInvalid, err.Error())
		return
	}
	for _, e := range verrs {
		res.fail(KindInvalid, fieldMessage(e))
	}
}

// fieldPath drops the root struct name: "InvoiceRequest.items[0].total" -> "items[0].total".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func fieldMessage(e validator.FieldError) string {
	field := fieldPath(e)

	if field == "duration" {
		switch e.Tag() {
		case "min", "max":
			return fmt.Sprintf("duration must be between %d and %d minutes", MinDurationMinutes, MaxDurationMinutes)
		case "multiple_of":
			return fmt.Sprintf("duration must be a multiple of %s minutes", e.Param())
		}
	}

	switch e.Tag() {
	case "required":
		return field + " is required"
	case "required_unless":
		return field + " is required for this payment method"
	case "uuid":
		return field + " must be a valid UUID"
	case "datetime":
		return field + " must be a date in YYYY-MM-DD format"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(e.Param(), " ", ", "))
	case "appointment_status":
		return fmt.Sprintf("invalid status: %v", fieldValue(e))
	case "fdi_tooth":
		return fmt.Sprintf("tooth_number %v is not a valid FDI tooth number", fieldValue(e))
	case "multiple_of":
		return fmt.Sprintf("%s must be a multiple of %s", field, e.Param())
	case "min":
		if e.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s item(s)", field, e.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, e.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, e.Param())
	default:
		return field + " is invalid"
	}
}

func fieldValue(e validator.FieldError) interface{} {
	rv := reflect.ValueOf(e.Value())
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		return rv.Elem().Interface()
	}
	return e.Value()
}

// parseDate parses a YYYY-MM-DD calendar date at midnight in loc.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, loc)
}

// dayBounds returns [midnight, next midnight) of t's calendar day in loc.
func dayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	lt := t.In(loc)
	start := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
