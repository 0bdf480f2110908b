package model

import "time"

const (
	EventVerificationRequested = "user.verification_requested"
	EventBookingCreated        = "booking.created"
	EventBookingConfirmed      = "booking.confirmed"
	EventBookingCancelled      = "booking.cancelled"
	EventBookingCheckedIn      = "booking.checked_in"
	EventBookingCheckedOut     = "booking.checked_out"
	EventReviewCreated         = "review.created"
	EventMessageSent           = "message.sent"
)

// BookingEventType maps a booking status to its event type.
func BookingEventType(status string) string {
	switch status {
	case BookingPending:
		return EventBookingCreated
	case BookingConfirmed:
		return EventBookingConfirmed
	case BookingCheckedIn:
		return EventBookingCheckedIn
	case BookingCheckedOut:
		return EventBookingCheckedOut
	default:
		return EventBookingCancelled
	}
}

type VerificationEvent struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

type BookingEvent struct {
	BookingID  string `json:"booking_id"`
	ListingID  string `json:"listing_id"`
	GuestID    string `json:"guest_id"`
	HostID     string `json:"host_id"`
	Status     string `json:"status"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
	TotalPrice int64  `json:"total_price"`
	ActorID    string `json:"actor_id,omitempty"`
}

func NewBookingEvent(b *Booking, actorID string) BookingEvent {
	return BookingEvent{
		BookingID:  b.ID,
		ListingID:  b.ListingID,
		GuestID:    b.GuestID,
		HostID:     b.HostID,
		Status:     b.Status,
		CheckIn:    b.CheckIn.Format("2006-01-02"),
		CheckOut:   b.CheckOut.Format("2006-01-02"),
		TotalPrice: b.TotalPrice,
		ActorID:    actorID,
	}
}

type ReviewEvent struct {
	ReviewID  string `json:"review_id"`
	BookingID string `json:"booking_id"`
	ListingID string `json:"listing_id"`
	GuestID   string `json:"guest_id"`
	HostID    string `json:"host_id"`
	Rating    int    `json:"rating"`
}

type MessageEvent struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	ReceiverID     string `json:"receiver_id"`
}
