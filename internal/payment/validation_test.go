package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC)

func TestValidCardNumber(t *testing.T) {
	assert.True(t, ValidCardNumber("4242 4242 4242 4242"))
	assert.True(t, ValidCardNumber("4111111111111111"))
	assert.False(t, ValidCardNumber("4242 4242 4242 4241"), "luhn")
	assert.False(t, ValidCardNumber("4242-4242-4242-4242"), "dashes are not digits")
	assert.False(t, ValidCardNumber("424242424242"), "too short")
	assert.False(t, ValidCardNumber("42424242424242424242"), "too long")
}

func TestCheckExpiry(t *testing.T) {
	assert.Equal(t, ExpiryValid, CheckExpiry("06/25", now), "current month is still valid")
	assert.Equal(t, ExpiryValid, CheckExpiry("01/30", now))
	assert.Equal(t, ExpiryPast, CheckExpiry("05/25", now))
	assert.Equal(t, ExpiryPast, CheckExpiry("12/24", now))
	assert.Equal(t, ExpiryMalformed, CheckExpiry("13/26", now))
	assert.Equal(t, ExpiryMalformed, CheckExpiry("1/26", now))
	assert.False(t, ValidExpiry("00/26", now))
}

func TestCVCAndName(t *testing.T) {
	assert.True(t, ValidCVC("123"))
	assert.True(t, ValidCVC("1234"))
	assert.False(t, ValidCVC("12"))
	assert.False(t, ValidCVC("12a"))

	assert.True(t, ValidCardholderName("  HONG GILDONG "))
	assert.False(t, ValidCardholderName("홍길동"))
	assert.False(t, ValidCardholderName("A"))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "4242 4242 4242 4242", FormatCardNumber("4242424242424242999"))
	assert.Equal(t, "4242 42", FormatCardNumber("4242-42"))
	assert.Equal(t, "12/3", FormatExpiry("123"))
	assert.Equal(t, "1", FormatExpiry("1"))
	assert.Equal(t, "12/34", FormatExpiry("12/345"))
}

func TestFormValidate(t *testing.T) {
	ok := Form{CardNumber: "4242 4242 4242 4242", Expiry: "12/30", CVC: "123", Name: "KIM MINJI"}
	assert.Empty(t, ok.Validate(now))

	bad := Form{CardNumber: "1234", Expiry: "01/20", CVC: "1", Name: ""}
	errs := bad.Validate(now)
	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{"cardNumber", "expiry", "cvc", "name"}, fields)
	assert.Equal(t, "PaymentExpired", errs[1].MessageID)

	assert.Equal(t, "4242 4242 4242 4242", Form{CardNumber: "4242424242424242"}.Normalized().CardNumber)
}
