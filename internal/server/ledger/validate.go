package ledger

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dmitrijs2005/gophbank/internal/common"
	"github.com/shopspring/decimal"
)

const maxUsernameLen = 64

// AmountPlaces is the number of fractional digits money is kept in.
const AmountPlaces = 2

const (
	// maxAmountScale bounds the fractional digits a request may spell out
	// ("1.50" and "1.500000" are fine); past it Round itself gets expensive.
	maxAmountScale = 18
	// maxAmountDigits bounds the integer part, so 1e9 and friends never
	// reach big-number arithmetic.
	maxAmountDigits = 13
)

var (
	// MaxAmount is the largest single deposit or withdrawal.
	MaxAmount = decimal.New(1, 12)
	// MaxBalance caps what a deposit may bring an account to.
	MaxBalance = decimal.New(1, 15)
)

// ValidateAmount accepts strictly positive amounts up to MaxAmount with at
// most AmountPlaces fractional digits. The exponent and digit count are
// checked before any arithmetic, since a short literal like "1e5000000"
// would otherwise expand to millions of digits.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be greater than zero", common.ErrValidation)
	}
	exp := int64(amount.Exponent())
	if exp < -maxAmountScale {
		return fmt.Errorf("%w: amount must have at most %d decimal places", common.ErrValidation, AmountPlaces)
	}
	if exp+int64(amount.NumDigits()) > maxAmountDigits {
		return fmt.Errorf("%w: amount must not exceed %s", common.ErrValidation, MaxAmount.StringFixed(AmountPlaces))
	}
	if !amount.Equal(amount.Round(AmountPlaces)) {
		return fmt.Errorf("%w: amount must have at most %d decimal places", common.ErrValidation, AmountPlaces)
	}
	if amount.GreaterThan(MaxAmount) {
		return fmt.Errorf("%w: amount must not exceed %s", common.ErrValidation, MaxAmount.StringFixed(AmountPlaces))
	}
	return nil
}

func validateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", common.ErrValidation)
	}
	if len(username) > maxUsernameLen {
		return fmt.Errorf("%w: username is longer than %d characters", common.ErrValidation, maxUsernameLen)
	}
	if strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return fmt.Errorf("%w: username must not contain whitespace", common.ErrValidation)
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", common.ErrValidation)
	}
	return nil
}
