package xrpl

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	DropsPerXRP = 1_000_000

	// MaxDrops is the total XRP supply expressed in drops.
	MaxDrops uint64 = 100_000_000_000 * DropsPerXRP

	xrpDecimals = 6
)

var dropsPerXRP = decimal.NewFromInt(DropsPerXRP)

// XRPToDrops converts a decimal XRP amount such as "10" or "0.000001" into
// drops. Only positive amounts with at most six decimals are accepted.
func XRPToDrops(amount string) (drops uint64, err error) {
	if amount == "" {
		err = validationErrorf("missing amount")
		return
	}

	value, err := decimal.NewFromString(amount)
	if err != nil {
		err = validationErrorf("invalid amount '%s'", amount)
		return
	}

	if !value.IsPositive() {
		err = validationErrorf("amount must be positive, got '%s'", amount)
		return
	}

	if value.Exponent() < -xrpDecimals && !value.Equal(value.Truncate(xrpDecimals)) {
		err = validationErrorf("amount '%s' has more than %d decimal places", amount, xrpDecimals)
		return
	}

	scaled := value.Mul(dropsPerXRP)
	if scaled.GreaterThan(decimal.NewFromInt(int64(MaxDrops))) {
		err = validationErrorf("amount '%s' exceeds the total xrp supply", amount)
		return
	}

	return uint64(scaled.IntPart()), nil
}

// DropsToXRP renders drops as a decimal XRP string without trailing zeros.
func DropsToXRP(drops uint64) string {
	return decimal.NewFromInt(int64(drops)).Div(dropsPerXRP).String()
}

// ParseDrops parses the string form used by the ledger for native amounts.
func ParseDrops(s string) (drops uint64, err error) {
	drops, err = strconv.ParseUint(s, 10, 64)
	if err != nil {
		err = errors.Wrapf(err, "invalid drops amount '%s'", s)
	}
	return
}

func FormatDrops(drops uint64) string {
	return strconv.FormatUint(drops, 10)
}
