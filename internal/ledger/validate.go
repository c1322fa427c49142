package ledger

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// nickPattern is matched against the whole nickname
var nickPattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,20}$`)

// amountPlaces is the number of decimal places a top-up may carry
const amountPlaces = 2

// MaxAmount is the largest amount ParseAmount accepts, either sign
var MaxAmount = decimal.New(10000, 0)

// ValidNickname reports whether nick may name an account
func ValidNickname(nick string) bool {
	return nickPattern.MatchString(nick)
}

// ParseAmount reads a plain decimal amount such as "5" or "2.50". It rejects
// text that is not a number, exponent notation, more than two decimal places
// and magnitudes above MaxAmount. Sign is left to Credit so negative amounts
// fail the same way everywhere.
func ParseAmount(text string) (decimal.Decimal, error) {
	text = strings.TrimSpace(text)
	if strings.ContainsAny(text, "eE") {
		return decimal.Zero, failf(KindInvalidAmount, "invalid amount %q", text)
	}
	amount, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, failf(KindInvalidAmount, "invalid amount %q", text)
	}
	if amount.Abs().GreaterThan(MaxAmount) {
		return decimal.Zero, failf(KindInvalidAmount, "invalid amount %q: at most %s", text, MaxAmount.StringFixed(2))
	}
	if !amount.Equal(amount.Truncate(amountPlaces)) {
		return decimal.Zero, failf(KindInvalidAmount, "invalid amount %q: at most %d decimal places", text, amountPlaces)
	}
	return amount, nil
}
