package model

import (
	"math"
	"time"
)

type Review struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty"`
	BookingID string    `json:"booking_id" bson:"booking_id"`
	ListingID string    `json:"listing_id" bson:"listing_id"`
	GuestID   string    `json:"guest_id" bson:"guest_id"`
	Rating    int       `json:"rating" bson:"rating"`
	Comment   string    `json:"comment" bson:"comment"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type CreateReviewRequest struct {
	BookingID string `json:"booking_id" validate:"required,mongodb"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment" validate:"required,min=3,max=2000"`
}

// RatingSummary is the aggregate stored on a listing.
type RatingSummary struct {
	Average float64 `bson:"average"`
	Count   int64   `bson:"count"`
}

// RoundRating keeps two decimal places.
func RoundRating(avg float64) float64 {
	return math.Round(avg*100) / 100
}
