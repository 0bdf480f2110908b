package model

import "time"

const (
	ListingPendingApproval = "pending_approval"
	ListingApproved        = "approved"
	ListingRejected        = "rejected"

	DefaultCountry = "Bangladesh"
)

var PropertyTypes = []string{"apartment", "house", "villa", "cabin", "room", "other"}

type Listing struct {
	ID              string    `json:"id,omitempty" bson:"_id,omitempty"`
	HostID          string    `json:"host_id" bson:"host_id" validate:"required,mongodb"`
	Title           string    `json:"title" bson:"title" validate:"required,min=5,max=120"`
	Description     string    `json:"description" bson:"description" validate:"max=5000"`
	PropertyType    string    `json:"property_type" bson:"property_type" validate:"required,oneof=apartment house villa cabin room other"`
	Location        string    `json:"location" bson:"location" validate:"required,min=2,max=200"`
	Address         string    `json:"address,omitempty" bson:"address,omitempty" validate:"max=300"`
	City            string    `json:"city" bson:"city" validate:"required,min=2,max=100"`
	Country         string    `json:"country" bson:"country" validate:"required,min=2,max=100"`
	PricePerNight   int64     `json:"price_per_night" bson:"price_per_night" validate:"required,gt=0,lte=1000000000"`
	MaxGuests       int       `json:"max_guests" bson:"max_guests" validate:"required,min=1,max=50"`
	Bedrooms        int       `json:"bedrooms" bson:"bedrooms" validate:"min=0,max=50"`
	Bathrooms       int       `json:"bathrooms" bson:"bathrooms" validate:"min=0,max=50"`
	Amenities       []string  `json:"amenities" bson:"amenities" validate:"max=50,dive,min=1,max=50"`
	Images          []string  `json:"images" bson:"images" validate:"max=20"`
	Available       bool      `json:"available" bson:"available"`
	Status          string    `json:"status" bson:"status" validate:"required,oneof=pending_approval approved rejected"`
	RejectionReason string    `json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`
	Rating          float64   `json:"rating" bson:"rating"`
	ReviewsCount    int64     `json:"reviews_count" bson:"reviews_count"`
	CreatedAt       time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" bson:"updated_at"`
}

func (l *Listing) IsBookable() bool {
	return l.Status == ListingApproved && l.Available
}

type ListingUpdate struct {
	Title         *string   `json:"title,omitempty" validate:"omitempty,min=5,max=120"`
	Description   *string   `json:"description,omitempty" validate:"omitempty,max=5000"`
	PropertyType  *string   `json:"property_type,omitempty" validate:"omitempty,oneof=apartment house villa cabin room other"`
	Location      *string   `json:"location,omitempty" validate:"omitempty,min=2,max=200"`
	Address       *string   `json:"address,omitempty" validate:"omitempty,max=300"`
	City          *string   `json:"city,omitempty" validate:"omitempty,min=2,max=100"`
	Country       *string   `json:"country,omitempty" validate:"omitempty,min=2,max=100"`
	PricePerNight *int64    `json:"price_per_night,omitempty" validate:"omitempty,gt=0,lte=1000000000"`
	MaxGuests     *int      `json:"max_guests,omitempty" validate:"omitempty,min=1,max=50"`
	Bedrooms      *int      `json:"bedrooms,omitempty" validate:"omitempty,min=0,max=50"`
	Bathrooms     *int      `json:"bathrooms,omitempty" validate:"omitempty,min=0,max=50"`
	Amenities     *[]string `json:"amenities,omitempty" validate:"omitempty,max=50"`
}

// ChangesReviewedFields reports whether the update touches fields an admin
// must look at again.
func (u *ListingUpdate) ChangesReviewedFields() bool {
	return u.Title != nil || u.Description != nil || u.PricePerNight != nil ||
		u.Location != nil || u.City != nil || u.Address != nil
}

type ListingSearch struct {
	Location     string
	PropertyType string
	Guests       int
	MinPrice     int64
	MaxPrice     int64
	CheckIn      *time.Time
	CheckOut     *time.Time
	// ExcludeIDs is filled by the service with listings that have
	// conflicting bookings.
	ExcludeIDs []string
}

type ListingFilter struct {
	HostID string
	Status string
}

type Availability struct {
	ListingID string `json:"listing_id"`
	CheckIn   string `json:"check_in"`
	CheckOut  string `json:"check_out"`
	Available bool   `json:"available"`
	Conflicts int    `json:"conflicts"`
}

type UnavailableDates struct {
	ListingID string   `json:"listing_id"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Dates     []string `json:"dates"`
}

type Quote struct {
	ListingID string         `json:"listing_id"`
	CheckIn   string         `json:"check_in"`
	CheckOut  string         `json:"check_out"`
	Guests    int            `json:"guests"`
	Price     PriceBreakdown `json:"price"`
}
