package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hackgods/dental-clinic-api/internal/clinic"
)

type PaymentRequest struct {
	ClinicID        string          `json:"clinic_id" validate:"required,uuid"`
	InvoiceID       string          `json:"invoice_id" validate:"required,uuid"`
	Amount          decimal.Decimal `json:"amount" validate:"gt=0"`
	PaymentMethod   string          `json:"payment_method" validate:"required,oneof=cash card bank_transfer insurance cheque"`
	ReferenceNumber string          `json:"reference_number,omitempty" validate:"required_unless=PaymentMethod cash,max=100"`
	PaymentDate     string          `json:"payment_date" validate:"required,datetime=2006-01-02"`
}

// ValidatePayment checks a payment against its invoice. A reused reference number is
// reported as a warning and does not make the result invalid.
func (v *Validator) ValidatePayment(ctx context.Context, req PaymentRequest) (*Result, error) {
	if v.stores.Billing == nil {
		return nil, errBillingStoreMissing
	}
	res := &Result{}

	checkFields(res, req)
	if req.PaymentDate != "" {
		if paid, err := parseDate(req.PaymentDate, v.loc); err == nil {
			today, _ := dayBounds(v.now(), v.loc)
			if paid.After(today) {
				res.fail(KindInvalid, "payment_date cannot be in the future")
			}
		}
	}

	if res.failed() {
		v.logRejected("payment", res)
		return res.finish(), nil
	}

	clinicID := uuid.MustParse(req.ClinicID)
	invoice, err := v.stores.Billing.GetInvoiceByID(ctx, uuid.MustParse(req.InvoiceID))
	switch {
	case errors.Is(err, clinic.ErrInvoiceNotFound):
		res.fail(KindNotFound, "invoice not found")
	case err != nil:
		return nil, fmt.Errorf("load invoice: %w", err)
	case invoice.ClinicID != clinicID:
		res.fail(KindForbidden, "invoice does not belong to this clinic")
	case invoice.Status == clinic.InvoiceCancelled:
		res.fail(KindConflict, "cannot record a payment against a cancelled invoice")
	case invoice.Status == clinic.InvoicePaid:
		res.fail(KindConflict, "invoice is already paid")
	default:
		paid, err := v.stores.Billing.SumCompletedPayments(ctx, invoice.ID)
		if err != nil {
			return nil, fmt.Errorf("sum payments: %w", err)
		}
		remaining := invoice.TotalAmount.Sub(paid)
		if req.Amount.Round(2).GreaterThan(remaining.Round(2)) {
			res.fail(KindConflict, fmt.Sprintf("payment amount %s exceeds remaining balance %s",
				req.Amount.StringFixed(2), remaining.StringFixed(2)))
		}
	}

	if req.ReferenceNumber != "" {
		reused, err := v.stores.Billing.PaymentReferenceExists(ctx, clinicID, req.ReferenceNumber)
		if err != nil {
			return nil, fmt.Errorf("check payment reference: %w", err)
		}
		if reused {
			res.warn("reference number reused")
		}
	}

	res.finish()
	v.logRejected("payment", res)
	return res, nil
}
