package model

import "time"

const (
	RoleGuest = "guest"
	RoleHost  = "host"
	RoleAdmin = "admin"
)

type User struct {
	ID           string           `json:"id,omitempty" bson:"_id,omitempty"`
	FullName     string           `json:"full_name" bson:"full_name" validate:"required,min=2,max=100"`
	Email        string           `json:"email" bson:"email" validate:"required,email,max=254"`
	PasswordHash string           `json:"-" bson:"password_hash"`
	Phone        string           `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,e164"`
	Bio          string           `json:"bio,omitempty" bson:"bio,omitempty" validate:"omitempty,max=1000"`
	Role         string           `json:"role" bson:"role" validate:"required,oneof=guest host admin"`
	ProfilePhoto string           `json:"profile_photo,omitempty" bson:"profile_photo,omitempty" validate:"omitempty,url"`
	Verified     bool             `json:"verified" bson:"verified"`
	NID          *NIDVerification `json:"nid,omitempty" bson:"nid,omitempty"`
	JoinedAt     time.Time        `json:"joined_at" bson:"joined_at"`
	UpdatedAt    time.Time        `json:"updated_at" bson:"updated_at"`
}

const (
	NIDPending  = "pending"
	NIDApproved = "approved"
	NIDRejected = "rejected"
)

// NIDVerification tracks a national-ID document through admin review.
// Approval verifies the host; rejection removes the document.
type NIDVerification struct {
	Status          string     `json:"status" bson:"status"`
	DocumentURL     string     `json:"document_url,omitempty" bson:"document_url,omitempty"`
	SubmittedAt     time.Time  `json:"submitted_at" bson:"submitted_at"`
	ReviewedBy      string     `json:"reviewed_by,omitempty" bson:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty" bson:"reviewed_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`
}

// PublicProfile is what other users see.
type PublicProfile struct {
	ID           string    `json:"id"`
	FullName     string    `json:"full_name"`
	Bio          string    `json:"bio,omitempty"`
	Role         string    `json:"role"`
	ProfilePhoto string    `json:"profile_photo,omitempty"`
	Verified     bool      `json:"verified"`
	JoinedAt     time.Time `json:"joined_at"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:           u.ID,
		FullName:     u.FullName,
		Bio:          u.Bio,
		Role:         u.Role,
		ProfilePhoto: u.ProfilePhoto,
		Verified:     u.Verified,
		JoinedAt:     u.JoinedAt,
	}
}

func (u *User) IsHost() bool  { return u.Role == RoleHost }
func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

type RegisterRequest struct {
	FullName string `json:"full_name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,min=6,max=20"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=guest host"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ProfileUpdate struct {
	FullName     *string `json:"full_name,omitempty" validate:"omitempty,min=2,max=100"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,max=20"`
	Bio          *string `json:"bio,omitempty" validate:"omitempty,max=1000"`
	ProfilePhoto *string `json:"profile_photo,omitempty" validate:"omitempty,url"`
}

type PasswordChange struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72,nefield=CurrentPassword"`
}

type VerifyEmailRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// AuthResult is returned by login and registration.
type AuthResult struct {
	User      *User     `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
