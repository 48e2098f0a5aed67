package cli

import (
	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"fuelstation/backend/internal/domain"
)

var (
	gain    = color.New(color.FgGreen)
	loss    = color.New(color.FgRed)
	neutral = color.New(color.FgHiBlack)
	heading = color.New(color.Bold)
)

// signed colours an amount by sign: green above zero, red below.
func signed(v decimal.Decimal) string {
	text := v.StringFixed(2)
	switch v.Sign() {
	case 1:
		return gain.Sprint("+" + text)
	case -1:
		return loss.Sprint(text)
	}
	return neutral.Sprint(text)
}

func statusLabel(status domain.ShiftStatus) string {
	if status == domain.ShiftStatusOpen {
		return color.New(color.FgHiGreen).Sprint(string(status))
	}
	return color.New(color.FgYellow).Sprint(string(status))
}

func varianceLabel(kind domain.VarianceKind) string {
	switch kind {
	case domain.VarianceShort:
		return loss.Sprint("short")
	case domain.VarianceOver:
		return color.New(color.FgYellow).Sprint("over")
	}
	return gain.Sprint("exact")
}
