package model

import "time"

type SavedListing struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty"`
	UserID    string    `json:"user_id" bson:"user_id"`
	ListingID string    `json:"listing_id" bson:"listing_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

type EmailVerification struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty"`
	UserID    string    `json:"user_id" bson:"user_id"`
	Email     string    `json:"email" bson:"email"`
	Code      string    `json:"-" bson:"code"`
	Used      bool      `json:"used" bson:"used"`
	ExpiresAt time.Time `json:"expires_at" bson:"expires_at"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

func (v *EmailVerification) Valid(now time.Time) bool {
	return !v.Used && now.Before(v.ExpiresAt)
}
