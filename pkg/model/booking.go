package model

import (
	"slices"
	"time"
)

const (
	BookingPending    = "pending"
	BookingConfirmed  = "confirmed"
	BookingCheckedIn  = "checked_in"
	BookingCheckedOut = "checked_out"
	BookingCancelled  = "cancelled"

	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

// ActiveBookingStatuses hold their dates against other bookings.
var ActiveBookingStatuses = []string{BookingPending, BookingConfirmed, BookingCheckedIn}

// RevenueBookingStatuses count toward platform revenue.
var RevenueBookingStatuses = []string{BookingConfirmed, BookingCheckedIn, BookingCheckedOut}

var bookingTransitions = map[string][]string{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCheckedIn, BookingCancelled},
	BookingCheckedIn: {BookingCheckedOut},
}

type PriceBreakdown struct {
	Nights      int   `json:"nights" bson:"nights"`
	NightlyRate int64 `json:"nightly_rate" bson:"nightly_rate"`
	BasePrice   int64 `json:"base_price" bson:"base_price"`
	CleaningFee int64 `json:"cleaning_fee" bson:"cleaning_fee"`
	ServiceFee  int64 `json:"service_fee" bson:"service_fee"`
	Total       int64 `json:"total" bson:"total"`
}

type Booking struct {
	ID              string         `json:"id,omitempty" bson:"_id,omitempty"`
	ListingID       string         `json:"listing_id" bson:"listing_id"`
	GuestID         string         `json:"guest_id" bson:"guest_id"`
	HostID          string         `json:"host_id" bson:"host_id"`
	CheckIn         time.Time      `json:"check_in" bson:"check_in"`
	CheckOut        time.Time      `json:"check_out" bson:"check_out"`
	Guests          int            `json:"guests" bson:"guests"`
	Nights          int            `json:"nights" bson:"nights"`
	Price           PriceBreakdown `json:"price" bson:"price"`
	TotalPrice      int64          `json:"total_price" bson:"total_price"`
	SpecialRequests string         `json:"special_requests,omitempty" bson:"special_requests,omitempty"`
	Status          string         `json:"status" bson:"status"`
	PaymentStatus   string         `json:"payment_status" bson:"payment_status"`
	CreatedAt       time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at" bson:"updated_at"`
	ConfirmedBy     string         `json:"confirmed_by,omitempty" bson:"confirmed_by,omitempty"`
	ConfirmedAt     *time.Time     `json:"confirmed_at,omitempty" bson:"confirmed_at,omitempty"`
	CheckedInAt     *time.Time     `json:"checked_in_at,omitempty" bson:"checked_in_at,omitempty"`
	CheckedOutAt    *time.Time     `json:"checked_out_at,omitempty" bson:"checked_out_at,omitempty"`
	CancelledBy     string         `json:"cancelled_by,omitempty" bson:"cancelled_by,omitempty"`
	CancelledAt     *time.Time     `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
}

func (b *Booking) IsActive() bool {
	return IsActiveBookingStatus(b.Status)
}

func IsActiveBookingStatus(status string) bool {
	return slices.Contains(ActiveBookingStatuses, status)
}

func IsBookingStatus(status string) bool {
	switch status {
	case BookingPending, BookingConfirmed, BookingCheckedIn, BookingCheckedOut, BookingCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the lifecycle allows moving to status.
func (b *Booking) CanTransition(to string) bool {
	return CanTransition(b.Status, to)
}

func CanTransition(from, to string) bool {
	return slices.Contains(bookingTransitions[from], to)
}

// InStayWindow reports whether day falls within [check_in, check_out).
func (b *Booking) InStayWindow(day time.Time) bool {
	return !day.Before(b.CheckIn) && day.Before(b.CheckOut)
}

// IsParticipant reports whether userID is the guest or the host.
func (b *Booking) IsParticipant(userID string) bool {
	return userID != "" && (b.GuestID == userID || b.HostID == userID)
}

type CreateBookingRequest struct {
	ListingID       string `json:"listing_id" validate:"required,mongodb"`
	CheckIn         string `json:"check_in" validate:"required,datetime=2006-01-02"`
	CheckOut        string `json:"check_out" validate:"required,datetime=2006-01-02"`
	Guests          int    `json:"guests" validate:"required,min=1,max=50"`
	SpecialRequests string `json:"special_requests,omitempty" validate:"max=1000"`
}

type BookingStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed checked_in checked_out cancelled"`
}

type BookingFilter struct {
	GuestID   string
	HostID    string
	ListingID string
	Status    string
}

// StatusChange is applied atomically against the expected current status.
type StatusChange struct {
	From    string
	To      string
	ActorID string
	At      time.Time
}
