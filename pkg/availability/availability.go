// Package availability answers date-range questions over a listing's bookings.
// All ranges are half-open: a stay occupies [check_in, check_out).
package availability

import (
	"otithi/pkg/model"
	"otithi/pkg/pricing"
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Conflicts returns the active bookings overlapping [checkIn, checkOut),
// skipping excludeID.
func Conflicts(existing []model.Booking, checkIn, checkOut time.Time, excludeID string) []model.Booking {
	var out []model.Booking
	for _, b := range existing {
		if excludeID != "" && b.ID == excludeID {
			continue
		}
		if !b.IsActive() {
			continue
		}
		if Overlaps(b.CheckIn, b.CheckOut, checkIn, checkOut) {
			out = append(out, b)
		}
	}
	return out
}

// UnavailableDates lists every night in [from, to) that an active booking
// occupies, sorted and without duplicates.
func UnavailableDates(bookings []model.Booking, from, to time.Time) []string {
	from, to = pricing.Day(from), pricing.Day(to)
	seen := make(map[time.Time]struct{})

	for _, b := range bookings {
		if !b.IsActive() {
			continue
		}
		start, end := pricing.Day(b.CheckIn), pricing.Day(b.CheckOut)
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
			seen[d] = struct{}{}
		}
	}

	days := make([]time.Time, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Format(dateLayout)
	}
	return out
}
