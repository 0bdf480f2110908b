package model

import (
	"fmt"
	"time"
)

// BookingLock is an advisory lock serialising booking creation per listing.
// The migration adds a TTL index on expires_at so abandoned locks disappear.
type BookingLock struct {
	ID        string    `bson:"_id" json:"id"`
	ListingID string    `bson:"listing_id" json:"listing_id"`
	Owner     string    `bson:"owner" json:"owner"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func BookingLockID(listingID string) string {
	return fmt.Sprintf("booking_lock_%s", listingID)
}
