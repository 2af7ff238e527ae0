package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/dental-clinic-api/internal/clinic"
)

type TreatmentRequest struct {
	ClinicID      string          `json:"clinic_id" validate:"required,uuid"`
	PatientID     string          `json:"patient_id" validate:"required,uuid"`
	DoctorID      string          `json:"doctor_id,omitempty" validate:"omitempty,uuid"`
	ToothNumber   *int            `json:"tooth_number,omitempty" validate:"omitempty,fdi_tooth"`
	TreatmentType string          `json:"treatment_type" validate:"required,oneof=checkup cleaning scaling filling extraction root_canal crown bridge implant whitening orthodontics x_ray"`
	Status        string          `json:"status,omitempty" validate:"omitempty,oneof=planned in_progress completed cancelled"`
	Cost          decimal.Decimal `json:"cost" validate:"gte=0"`
	Notes         string          `json:"notes,omitempty" validate:"max=1000"`
}

func (r TreatmentRequest) StatusOrDefault() clinic.TreatmentStatus {
	if r.Status == "" {
		return clinic.TreatmentPlanned
	}
	return clinic.TreatmentStatus(r.Status)
}

var errTreatmentStoreMissing = errors.New("validation: treatment store not configured")

// ValidateTreatment rejects a second active treatment of the same type on the same tooth.
func (v *Validator) ValidateTreatment(ctx context.Context, req TreatmentRequest) (*Result, error) {
	if v.stores.Treatments == nil {
		return nil, errTreatmentStoreMissing
	}
	res := &Result{}

	checkFields(res, req)
	if res.failed() {
		v.logRejected("treatment", res)
		return res.finish(), nil
	}

	clinicID := uuid.MustParse(req.ClinicID)
	patientID := uuid.MustParse(req.PatientID)

	patientOK, err := v.checkPatient(ctx, res, patientID, clinicID)
	if err != nil {
		return nil, err
	}
	if doctorID := parseOptionalID(req.DoctorID); doctorID != nil {
		if _, err := v.checkDoctor(ctx, res, *doctorID, clinicID); err != nil {
			return nil, err
		}
	}

	if patientOK && req.ToothNumber != nil && req.StatusOrDefault().Active() {
		existing, err := v.stores.Treatments.ListActiveTreatmentsForTooth(ctx, patientID, *req.ToothNumber, req.TreatmentType)
		if err != nil {
			return nil, fmt.Errorf("load tooth treatments: %w", err)
		}
		if len(existing) > 0 {
			res.fail(KindConflict, fmt.Sprintf("tooth %d already has an active %s treatment", *req.ToothNumber, req.TreatmentType))
		}
	}

	res.finish()
	v.logRejected("treatment", res)
	return res, nil
}
