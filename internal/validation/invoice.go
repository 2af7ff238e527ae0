package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// moneyTolerance absorbs rounding differences between client-side and server-side totals.
var moneyTolerance = decimal.RequireFromString("0.01")

var errBillingStoreMissing = errors.New("validation: billing store not configured")

type InvoiceItem struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    int             `json:"quantity" validate:"gt=0"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"gte=0"`
	Total       decimal.Decimal `json:"total" validate:"gte=0"`
}

type InvoiceRequest struct {
	ClinicID       string          `json:"clinic_id" validate:"required,uuid"`
	PatientID      string          `json:"patient_id" validate:"required,uuid"`
	InvoiceNumber  string          `json:"invoice_number" validate:"required,max=50"`
	IssueDate      string          `json:"issue_date" validate:"required,datetime=2006-01-02"`
	DueDate        string          `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Items          []InvoiceItem   `json:"items" validate:"required,min=1,dive"`
	Subtotal       decimal.Decimal `json:"subtotal" validate:"gte=0"`
	DiscountAmount decimal.Decimal `json:"discount_amount" validate:"gte=0"`
	TaxRate        decimal.Decimal `json:"tax_rate" validate:"gte=0,lte=100"`
	TaxAmount      decimal.Decimal `json:"tax_amount" validate:"gte=0"`
	TotalAmount    decimal.Decimal `json:"total_amount" validate:"gte=0"`
}

// ValidateInvoice checks fields and arithmetic, then patient tenancy and invoice number uniqueness.
func (v *Validator) ValidateInvoice(ctx context.Context, req InvoiceRequest) (*Result, error) {
	if v.stores.Billing == nil {
		return nil, errBillingStoreMissing
	}
	res := &Result{}

	checkFields(res, req)
	v.checkInvoiceDates(res, req)
	checkInvoiceArithmetic(res, req)

	if res.failed() {
		v.logRejected("invoice", res)
		return res.finish(), nil
	}

	clinicID := uuid.MustParse(req.ClinicID)
	if _, err := v.checkPatient(ctx, res, uuid.MustParse(req.PatientID), clinicID); err != nil {
		return nil, err
	}

	exists, err := v.stores.Billing.InvoiceNumberExists(ctx, clinicID, req.InvoiceNumber)
	if err != nil {
		return nil, fmt.Errorf("check invoice number: %w", err)
	}
	if exists {
		res.fail(KindConflict, fmt.Sprintf("invoice number %s already exists", req.InvoiceNumber))
	}

	res.finish()
	v.logRejected("invoice", res)
	return res, nil
}

func (v *Validator) checkInvoiceDates(res *Result, req InvoiceRequest) {
	if req.IssueDate == "" || req.DueDate == "" {
		return
	}
	issue, err1 := parseDate(req.IssueDate, v.loc)
	due, err2 := parseDate(req.DueDate, v.loc)
	if err1 != nil || err2 != nil {
		// already reported by the datetime tag
		return
	}
	if due.Before(issue) {
		res.fail(KindInvalid, "due_date cannot be before issue_date")
	}
}

// checkInvoiceArithmetic recomputes every derived amount and reports each mismatch.
func checkInvoiceArithmetic(res *Result, req InvoiceRequest) {
	if len(req.Items) == 0 {
		return
	}

	sum := decimal.Zero
	for i, item := range req.Items {
		expected := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		if !withinTolerance(item.Total, expected) {
			res.fail(KindInvalid, fmt.Sprintf("items[%d].total does not match quantity * unit_price (expected %s)", i, expected.StringFixed(2)))
		}
		sum = sum.Add(item.Total)
	}

	if !withinTolerance(req.Subtotal, sum) {
		res.fail(KindInvalid, fmt.Sprintf("subtotal does not match the sum of item totals (expected %s)", sum.StringFixed(2)))
	}
	if req.DiscountAmount.GreaterThan(req.Subtotal) {
		res.fail(KindInvalid, "discount_amount cannot exceed subtotal")
	}

	taxable := req.Subtotal.Sub(req.DiscountAmount)
	expectedTax := taxable.Mul(req.TaxRate).Div(decimal.NewFromInt(100))
	if !withinTolerance(req.TaxAmount, expectedTax) {
		res.fail(KindInvalid, fmt.Sprintf("tax_amount does not match (subtotal - discount_amount) * tax_rate / 100 (expected %s)", expectedTax.StringFixed(2)))
	}

	expectedTotal := taxable.Add(req.TaxAmount)
	if !withinTolerance(req.TotalAmount, expectedTotal) {
		res.fail(KindInvalid, fmt.Sprintf("total_amount does not match subtotal - discount_amount + tax_amount (expected %s)", expectedTotal.StringFixed(2)))
	}
}

func withinTolerance(got, want decimal.Decimal) bool {
	return got.Sub(want).Abs().LessThanOrEqual(moneyTolerance)
}
