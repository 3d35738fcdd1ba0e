package pricing

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"parkingsystem/internal/db"
	apperrors "parkingsystem/internal/errors"
)

var (
	hoursPerDay   = decimal.NewFromInt(24)
	hoursPerWeek  = decimal.NewFromInt(168)
	hoursPerMonth = decimal.NewFromInt(168 * 4)
	nanosPerHour  = decimal.NewFromInt(int64(time.Hour))
)

// Hours returns the elapsed time between entry and exit in fractional hours.
func Hours(entry, exit time.Time) decimal.Decimal {
	return decimal.NewFromInt(int64(exit.Sub(entry))).Div(nanosPerHour)
}

// ComputeFee prices a stay using the tiered-cap rules:
//
//	up to 24h:   max(1, ceil(h)) * hourly, capped at daily
//	up to 168h:  ceil(h/24) * daily, capped at weekly
//	beyond:      ceil(h/168) * weekly, replaced by ceil(h/672) * monthly once weeks >= 4
//
// A zero-length stay is billed one hourly unit. The result is rounded to two
// decimal places.
func ComputeFee(entry, exit time.Time, class db.VehicleClass, rates RateTable) (decimal.Decimal, error) {
	if exit.Before(entry) {
		return decimal.Zero, fmt.Errorf("%w: entry %s, exit %s",
			apperrors.ErrInvalidDuration, entry.Format(time.RFC3339), exit.Format(time.RFC3339))
	}
	rate, err := rates.GetRate(class)
	if err != nil {
		return decimal.Zero, err
	}

	hours := Hours(entry, exit)
	var fee decimal.Decimal
	switch {
	case hours.LessThanOrEqual(hoursPerDay):
		units := decimal.Max(decimal.NewFromInt(1), hours.Ceil())
		fee = decimal.Min(units.Mul(rate.Hourly), rate.Daily)
	case hours.LessThanOrEqual(hoursPerWeek):
		days := hours.Div(hoursPerDay).Ceil()
		fee = decimal.Min(days.Mul(rate.Daily), rate.Weekly)
	default:
		weeks := hours.Div(hoursPerWeek).Ceil()
		fee = weeks.Mul(rate.Weekly)
		if weeks.GreaterThanOrEqual(decimal.NewFromInt(4)) {
			months := hours.Div(hoursPerMonth).Ceil()
			fee = months.Mul(rate.Monthly)
		}
	}
	return fee.Round(2), nil
}
