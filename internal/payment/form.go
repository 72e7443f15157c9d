package payment

import "time"

// Form is the checkout card form.
type Form struct {
	CardNumber string `json:"cardNumber"`
	Expiry     string `json:"expiry"`
	CVC        string `json:"cvc"`
	Name       string `json:"name"`
}

// FieldError names an invalid field and the message ID describing the problem.
type FieldError struct {
	Field     string `json:"field"`
	MessageID string `json:"-"`
	Message   string `json:"message"`
}

// Validate checks every field and returns the problems in form order.
func (f Form) Validate(now time.Time) []FieldError {
	var errs []FieldError
	if !ValidCardNumber(f.CardNumber) {
		errs = append(errs, FieldError{Field: "cardNumber", MessageID: "PaymentCardNumberInvalid"})
	}
	switch CheckExpiry(f.Expiry, now) {
	case ExpiryMalformed:
		errs = append(errs, FieldError{Field: "expiry", MessageID: "PaymentExpiryInvalid"})
	case ExpiryPast:
		errs = append(errs, FieldError{Field: "expiry", MessageID: "PaymentExpired"})
	}
	if !ValidCVC(f.CVC) {
		errs = append(errs, FieldError{Field: "cvc", MessageID: "PaymentCVCInvalid"})
	}
	if !ValidCardholderName(f.Name) {
		errs = append(errs, FieldError{Field: "name", MessageID: "PaymentNameInvalid"})
	}
	return errs
}

// Normalized returns the form with card number and expiry in display format.
func (f Form) Normalized() Form {
	f.CardNumber = FormatCardNumber(f.CardNumber)
	f.Expiry = FormatExpiry(f.Expiry)
	return f
}
