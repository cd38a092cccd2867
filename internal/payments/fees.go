package payments

import (
	"github.com/shopspring/decimal"
)

// SplitAmount divides a gross charge into the platform fee and the tutor's
// share. The fee is rounded half-up to the nearest cent; the tutor share is
// the exact remainder so the two always sum back to the gross amount.
func SplitAmount(amountCents int64, feePercent int) (feeCents, tutorCents int64) {
	if amountCents <= 0 || feePercent <= 0 {
		return 0, amountCents
	}
	fee := decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromInt(int64(feePercent))).
		Div(decimal.NewFromInt(100)).
		Round(0)
	feeCents = fee.IntPart()
	if feeCents > amountCents {
		feeCents = amountCents
	}
	return feeCents, amountCents - feeCents
}
