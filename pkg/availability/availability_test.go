package availability

import (
	"otithi/pkg/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(d int) time.Time {
	return time.Date(2026, 7, d, 0, 0, 0, 0, time.UTC)
}

func booking(id string, in, out int, status string) model.Booking {
	return model.Booking{ID: id, CheckIn: day(in), CheckOut: day(out), Status: status}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name           string
		a1, a2, b1, b2 int
		want           bool
	}{
		{"identical", 1, 5, 1, 5, true},
		{"contained", 1, 10, 3, 4, true},
		{"partial start", 3, 6, 1, 4, true},
		{"partial end", 1, 4, 3, 6, true},
		{"back to back", 1, 3, 3, 5, false},
		{"back to back reversed", 3, 5, 1, 3, false},
		{"disjoint", 1, 2, 5, 6, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(day(tt.a1), day(tt.a2), day(tt.b1), day(tt.b2)))
			assert.Equal(t, tt.want, Overlaps(day(tt.b1), day(tt.b2), day(tt.a1), day(tt.a2)), "symmetric")
		})
	}
}

func TestConflicts(t *testing.T) {
	existing := []model.Booking{
		booking("pending", 1, 4, model.BookingPending),
		booking("confirmed", 4, 6, model.BookingConfirmed),
		booking("checked-in", 8, 10, model.BookingCheckedIn),
		booking("cancelled", 2, 9, model.BookingCancelled),
		booking("checked-out", 2, 9, model.BookingCheckedOut),
	}

	t.Run("ignores inactive bookings", func(t *testing.T) {
		got := Conflicts(existing, day(6), day(8), "")
		assert.Empty(t, got)
	})

	t.Run("returns every active overlap", func(t *testing.T) {
		got := Conflicts(existing, day(3), day(9), "")
		ids := make([]string, len(got))
		for i, b := range got {
			ids[i] = b.ID
		}
		assert.Equal(t, []string{"pending", "confirmed", "checked-in"}, ids)
	})

	t.Run("excludes the given booking", func(t *testing.T) {
		got := Conflicts(existing, day(4), day(5), "confirmed")
		assert.Empty(t, got)
	})
}

func TestUnavailableDates(t *testing.T) {
	bookings := []model.Booking{
		booking("a", 2, 4, model.BookingConfirmed),
		booking("b", 3, 5, model.BookingPending),
		booking("c", 10, 12, model.BookingCancelled),
		booking("d", 28, 40, model.BookingCheckedIn),
	}

	got := UnavailableDates(bookings, day(1), day(30))
	assert.Equal(t, []string{
		"2026-07-02", "2026-07-03", "2026-07-04",
		"2026-07-28", "2026-07-29",
	}, got)
}

func TestUnavailableDates_Empty(t *testing.T) {
	assert.Empty(t, UnavailableDates(nil, day(1), day(30)))
	assert.Empty(t, UnavailableDates([]model.Booking{booking("a", 2, 4, model.BookingPending)}, day(10), day(20)))
}
