package model

// RecentItems is the number of newest records shown on the dashboard.
const RecentItems = 5

type UserCounts struct {
	Total  int64 `json:"total"`
	Guests int64 `json:"guests"`
	Hosts  int64 `json:"hosts"`
	Admins int64 `json:"admins"`
}

type ListingCounts struct {
	Total           int64 `json:"total"`
	PendingApproval int64 `json:"pending_approval"`
	Approved        int64 `json:"approved"`
}

type BookingCounts struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Confirmed int64 `json:"confirmed"`
	Cancelled int64 `json:"cancelled"`
}

type RecentActivity struct {
	Users    []*User    `json:"users"`
	Listings []*Listing `json:"listings"`
	Bookings []*Booking `json:"bookings"`
}

type AdminStats struct {
	Users    UserCounts     `json:"users"`
	Listings ListingCounts  `json:"listings"`
	Bookings BookingCounts  `json:"bookings"`
	Revenue  int64          `json:"revenue"`
	Recent   RecentActivity `json:"recent"`
}

type SetVerifiedRequest struct {
	Verified *bool `json:"verified" validate:"required"`
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,role"`
}

type RejectListingRequest struct {
	Reason string `json:"reason"`
}

type RejectNIDRequest struct {
	Reason string `json:"reason"`
}
