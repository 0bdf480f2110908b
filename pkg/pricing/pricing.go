// Package pricing computes stay prices in integer minor units.
package pricing

import (
	"errors"
	"fmt"
	"math"
	"otithi/pkg/model"
	"time"
)

// MaxNightlyRate is the highest accepted price_per_night: BDT 10,000,000.
const MaxNightlyRate int64 = 1_000_000_000

const secondsPerDay = 24 * 60 * 60

var (
	ErrInvalidRange = errors.New("check-out must be after check-in")
	ErrInvalidRate  = errors.New("nightly rate must be positive")
	ErrRateTooHigh  = fmt.Errorf("nightly rate cannot exceed %d", MaxNightlyRate)
	ErrInvalidFees  = errors.New("fees must not be negative")
	ErrStayTooLong  = errors.New("stay exceeds the maximum number of nights")
	ErrOverflow     = errors.New("price is out of range")
)

// Fees are applied on top of the nightly total. ServiceFeePercent is a whole
// percentage of the base price. MaxNights caps the stay; zero means no cap.
type Fees struct {
	CleaningFee       int64
	ServiceFeePercent int64
	MaxNights         int
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Nights counts calendar days between check-in and check-out. Counting Unix
// days keeps ranges beyond time.Duration's 292 years exact.
func Nights(checkIn, checkOut time.Time) (int, error) {
	in, out := Day(checkIn), Day(checkOut)
	if !out.After(in) {
		return 0, ErrInvalidRange
	}
	return int((out.Unix() - in.Unix()) / secondsPerDay), nil
}

func Quote(rate int64, checkIn, checkOut time.Time, fees Fees) (model.PriceBreakdown, error) {
	if rate <= 0 {
		return model.PriceBreakdown{}, ErrInvalidRate
	}
	if rate > MaxNightlyRate {
		return model.PriceBreakdown{}, ErrRateTooHigh
	}
	if fees.CleaningFee < 0 || fees.ServiceFeePercent < 0 {
		return model.PriceBreakdown{}, ErrInvalidFees
	}

	nights, err := Nights(checkIn, checkOut)
	if err != nil {
		return model.PriceBreakdown{}, err
	}
	if fees.MaxNights > 0 && nights > fees.MaxNights {
		return model.PriceBreakdown{}, fmt.Errorf("%w: %d nights, at most %d", ErrStayTooLong, nights, fees.MaxNights)
	}

	base, ok := mul(rate, int64(nights))
	if !ok {
		return model.PriceBreakdown{}, ErrOverflow
	}
	service, ok := percentHalfUp(base, fees.ServiceFeePercent)
	if !ok {
		return model.PriceBreakdown{}, ErrOverflow
	}
	total, ok := add(base, fees.CleaningFee)
	if ok {
		total, ok = add(total, service)
	}
	if !ok {
		return model.PriceBreakdown{}, ErrOverflow
	}

	return model.PriceBreakdown{
		Nights:      nights,
		NightlyRate: rate,
		BasePrice:   base,
		CleaningFee: fees.CleaningFee,
		ServiceFee:  service,
		Total:       total,
	}, nil
}

// percentHalfUp returns amount*percent/100 rounded half up. Both operands are
// non-negative.
func percentHalfUp(amount, percent int64) (int64, bool) {
	scaled, ok := mul(amount, percent)
	if !ok {
		return 0, false
	}
	scaled, ok = add(scaled, 50)
	if !ok {
		return 0, false
	}
	return scaled / 100, true
}

// mul and add operate on non-negative values and report overflow.
func mul(a, b int64) (int64, bool) {
	if a != 0 && b > math.MaxInt64/a {
		return 0, false
	}
	return a * b, true
}

func add(a, b int64) (int64, bool) {
	if b > math.MaxInt64-a {
		return 0, false
	}
	return a + b, true
}
