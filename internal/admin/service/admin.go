package service

import (
	"context"
	"errors"
	"fmt"
	"otithi/internal/auth"
	userserrors "otithi/internal/users/errors"
	"otithi/internal/users/validator"
	"otithi/pkg/config"
	apperrors "otithi/pkg/errors"
	"otithi/pkg/model"
	"otithi/pkg/sanitizer"
	"sync"
	"time"
)

type UserStore interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindAll(ctx context.Context, role string, limit int, offset int64) ([]*model.User, error)
	FindRecent(ctx context.Context, n int) ([]*model.User, error)
	Count(ctx context.Context, role string) (int64, error)
	SetVerified(ctx context.Context, id string, verified bool) error
	SetRole(ctx context.Context, id, role string) error
	ReviewNID(ctx context.Context, id string, nid *model.NIDVerification, verified bool) error
	FindPendingNID(ctx context.Context, limit int, offset int64) ([]*model.User, error)
	CountPendingNID(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error
}

type ListingStore interface {
	CountByFilter(ctx context.Context, filter *model.ListingFilter) (int64, error)
	FindRecent(ctx context.Context, n int) ([]*model.Listing, error)
	UnpublishByHost(ctx context.Context, hostID, reason string) (int64, error)
}

type BookingStore interface {
	CountByFilter(ctx context.Context, filter *model.BookingFilter) (int64, error)
	FindRecent(ctx context.Context, n int) ([]*model.Booking, error)
	Revenue(ctx context.Context) (int64, error)
	CountActiveForUser(ctx context.Context, userID string) (int64, error)
}

// DocumentStore removes uploaded identity documents.
type DocumentStore interface {
	Delete(ctx context.Context, url string) error
}

// Moderator is satisfied by the listings service.
type Moderator interface {
	ListAll(ctx context.Context, filter *model.ListingFilter, limit int, offset int64) ([]*model.Listing, int64, error)
	Approve(ctx context.Context, id string) (*model.Listing, error)
	Reject(ctx context.Context, id, reason string) (*model.Listing, error)
}

const (
	hostDeletedReason  = "Host account deleted"
	maxRejectionReason = 500
)

// Cleanup removes data owned by a deleted user. Failures are logged only.
type Cleanup func(ctx context.Context, userID string) error

type AdminService interface {
	Stats(ctx context.Context) (*model.AdminStats, error)
	ListUsers(ctx context.Context, role string, limit int, offset int64) ([]*model.User, int64, error)
	SetVerified(ctx context.Context, p *auth.Principal, id string, verified bool) (*model.User, error)
	SetRole(ctx context.Context, p *auth.Principal, id, role string) (*model.User, error)
	DeleteUser(ctx context.Context, p *auth.Principal, id string) error
	ListListings(ctx context.Context, status string, limit int, offset int64) ([]*model.Listing, int64, error)
	ApproveListing(ctx context.Context, p *auth.Principal, id string) (*model.Listing, error)
	RejectListing(ctx context.Context, p *auth.Principal, id, reason string) (*model.Listing, error)
	ListPendingNID(ctx context.Context, limit int, offset int64) ([]*model.User, int64, error)
	ApproveNID(ctx context.Context, p *auth.Principal, id string) (*model.User, error)
	RejectNID(ctx context.Context, p *auth.Principal, id, reason string) (*model.User, error)
}

type adminService struct {
	users     UserStore
	listings  ListingStore
	bookings  BookingStore
	moderator Moderator
	documents DocumentStore
	sessions  auth.SessionStore
	cleanups  []Cleanup
	validator *validator.UserValidator
	cfg       *config.Config
}

func NewAdminService(
	users UserStore,
	listings ListingStore,
	bookings BookingStore,
	moderator Moderator,
	documents DocumentStore,
	sessions auth.SessionStore,
	validator *validator.UserValidator,
	cfg *config.Config,
	cleanups ...Cleanup,
) AdminService {
	return &adminService{
		users:     users,
		listings:  listings,
		bookings:  bookings,
		moderator: moderator,
		documents: documents,
		sessions:  sessions,
		cleanups:  cleanups,
		validator: validator,
		cfg:       cfg,
	}
}

// gather runs every task concurrently and returns the first error.
func gather(ctx context.Context, tasks ...func(ctx context.Context) error) error {
	var (
		wg       sync.WaitGroup
		once     sync.Once
		firstErr error
	)
	wg.Add(len(tasks))
	for _, task := range tasks {
		go func(task func(ctx context.Context) error) {
			defer wg.Done()
			if err := task(ctx); err != nil {
				once.Do(func() { firstErr = err })
			}
		}(task)
	}
	wg.Wait()
	return firstErr
}

func countInto(dst *int64, count func(ctx context.Context) (int64, error)) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		n, err := count(ctx)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func (s *adminService) userCount(role string) func(ctx context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) { return s.users.Count(ctx, role) }
}

func (s *adminService) listingCount(status string) func(ctx context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		return s.listings.CountByFilter(ctx, &model.ListingFilter{Status: status})
	}
}

func (s *adminService) bookingCount(status string) func(ctx context.Context) (int64, error) {
	return func(ctx context.Context) (int64, error) {
		return s.bookings.CountByFilter(ctx, &model.BookingFilter{Status: status})
	}
}

func (s *adminService) Stats(ctx context.Context) (*model.AdminStats, error) {
	stats := &model.AdminStats{}

	err := gather(ctx,
		countInto(&stats.Users.Total, s.userCount("")),
		countInto(&stats.Users.Guests, s.userCount(model.RoleGuest)),
		countInto(&stats.Users.Hosts, s.userCount(model.RoleHost)),
		countInto(&stats.Users.Admins, s.userCount(model.RoleAdmin)),
		countInto(&stats.Listings.Total, s.listingCount("")),
		countInto(&stats.Listings.PendingApproval, s.listingCount(model.ListingPendingApproval)),
		countInto(&stats.Listings.Approved, s.listingCount(model.ListingApproved)),
		countInto(&stats.Bookings.Total, s.bookingCount("")),
		countInto(&stats.Bookings.Pending, s.bookingCount(model.BookingPending)),
		countInto(&stats.Bookings.Confirmed, s.bookingCount(model.BookingConfirmed)),
		countInto(&stats.Bookings.Cancelled, s.bookingCount(model.BookingCancelled)),
		countInto(&stats.Revenue, s.bookings.Revenue),
		func(ctx context.Context) (err error) {
			stats.Recent.Users, err = s.users.FindRecent(ctx, model.RecentItems)
			return err
		},
		func(ctx context.Context) (err error) {
			stats.Recent.Listings, err = s.listings.FindRecent(ctx, model.RecentItems)
			return err
		},
		func(ctx context.Context) (err error) {
			stats.Recent.Bookings, err = s.bookings.FindRecent(ctx, model.RecentItems)
			return err
		},
	)
	if err != nil {
		s.cfg.Log.Error("Failed to compute admin stats", "error", err)
		return nil, apperrors.Internal("Failed to compute stats", err)
	}

	if stats.Recent.Users == nil {
		stats.Recent.Users = []*model.User{}
	}
	if stats.Recent.Listings == nil {
		stats.Recent.Listings = []*model.Listing{}
	}
	if stats.Recent.Bookings == nil {
		stats.Recent.Bookings = []*model.Booking{}
	}
	return stats, nil
}

func (s *adminService) ListUsers(ctx context.Context, role string, limit int, offset int64) ([]*model.User, int64, error) {
	if role != "" {
		if err := s.validator.ValidateRole(role); err != nil {
			return nil, 0, apperrors.Validation("Invalid role filter", map[string]any{"error": err.Error()})
		}
	}

	var (
		users []*model.User
		total int64
	)
	err := gather(ctx,
		countInto(&total, s.userCount(role)),
		func(ctx context.Context) (err error) {
			users, err = s.users.FindAll(ctx, role, limit, offset)
			return err
		},
	)
	if err != nil {
		s.cfg.Log.Error("Failed to list users", "role", role, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve users", err)
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, total, nil
}

func (s *adminService) load(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapUserError(id, "Failed to retrieve user", err)
	}
	return user, nil
}

func (s *adminService) mapUserError(id, message string, err error) error {
	switch {
	case errors.Is(err, userserrors.ErrNotFound):
		return apperrors.NotFoundWithID("User", id)
	case errors.Is(err, userserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid user ID format")
	case errors.Is(err, userserrors.ErrNIDNotPending):
		return apperrors.Conflict("User has no pending identity document")
	}
	s.cfg.Log.Error(message, "user_id", id, "error", err)
	return apperrors.Internal(message, err)
}

// revoke ends the user's sessions so the next request re-reads role and
// verification from a fresh login.
func (s *adminService) revoke(ctx context.Context, userID string) {
	if err := s.sessions.DeleteAllForUser(ctx, userID); err != nil {
		s.cfg.Log.Warn("Failed to revoke sessions", "user_id", userID, "error", err)
	}
}

func (s *adminService) SetVerified(ctx context.Context, p *auth.Principal, id string, verified bool) (*model.User, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Verified == verified {
		return user, nil
	}

	if err := s.users.SetVerified(ctx, id, verified); err != nil {
		return nil, s.mapUserError(id, "Failed to update user", err)
	}
	s.revoke(ctx, id)

	user.Verified = verified
	s.cfg.Log.Info("User verification changed",
		"user_id", id,
		"verified", verified,
		"actor_id", p.UserID,
	)
	return user, nil
}

// lastAdmin reports whether user is the only remaining admin.
func (s *adminService) lastAdmin(ctx context.Context, user *model.User) (bool, error) {
	if !user.IsAdmin() {
		return false, nil
	}
	admins, err := s.users.Count(ctx, model.RoleAdmin)
	if err != nil {
		s.cfg.Log.Error("Failed to count admins", "error", err)
		return false, apperrors.Internal("Failed to count admins", err)
	}
	return admins <= 1, nil
}

func (s *adminService) SetRole(ctx context.Context, p *auth.Principal, id, role string) (*model.User, error) {
	if err := s.validator.ValidateRole(role); err != nil {
		return nil, apperrors.Validation("Invalid role", map[string]any{"error": err.Error()})
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Role == role {
		return user, nil
	}

	last, err := s.lastAdmin(ctx, user)
	if err != nil {
		return nil, err
	}
	if last {
		return nil, apperrors.Conflict("Cannot demote the last admin")
	}

	if err := s.users.SetRole(ctx, id, role); err != nil {
		return nil, s.mapUserError(id, "Failed to update user", err)
	}
	s.revoke(ctx, id)

	s.cfg.Log.Info("User role changed",
		"user_id", id,
		"from", user.Role,
		"to", role,
		"actor_id", p.UserID,
	)
	user.Role = role
	return user, nil
}

func (s *adminService) DeleteUser(ctx context.Context, p *auth.Principal, id string) error {
	if id == p.UserID {
		return apperrors.Forbidden("Admins cannot delete their own account")
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	last, err := s.lastAdmin(ctx, user)
	if err != nil {
		return err
	}
	if last {
		return apperrors.Conflict("Cannot delete the last admin")
	}

	active, err := s.bookings.CountActiveForUser(ctx, id)
	if err != nil {
		s.cfg.Log.Error("Failed to count active bookings", "user_id", id, "error", err)
		return apperrors.Internal("Failed to delete user", err)
	}
	if active > 0 {
		return apperrors.Conflict(fmt.Sprintf("User has %d active booking(s) as guest or host", active)).
			WithDetails(map[string]any{"active_bookings": active})
	}

	unpublished, err := s.listings.UnpublishByHost(ctx, id, hostDeletedReason)
	if err != nil {
		s.cfg.Log.Error("Failed to unpublish listings", "user_id", id, "error", err)
		return apperrors.Internal("Failed to delete user", err)
	}

	if err := s.users.Delete(ctx, id); err != nil {
		return s.mapUserError(id, "Failed to delete user", err)
	}
	s.revoke(ctx, id)
	if user.NID != nil && user.NID.DocumentURL != "" {
		if err := s.documents.Delete(ctx, user.NID.DocumentURL); err != nil {
			s.cfg.Log.Warn("Failed to remove identity document", "user_id", id, "error", err)
		}
	}
	for _, cleanup := range s.cleanups {
		if err := cleanup(ctx, id); err != nil {
			s.cfg.Log.Warn("Failed to clean up user data", "user_id", id, "error", err)
		}
	}

	s.cfg.Log.Info("User deleted",
		"user_id", id,
		"listings_unpublished", unpublished,
		"actor_id", p.UserID,
	)
	return nil
}

func (s *adminService) ListListings(ctx context.Context, status string, limit int, offset int64) ([]*model.Listing, int64, error) {
	return s.moderator.ListAll(ctx, &model.ListingFilter{Status: status}, limit, offset)
}

func (s *adminService) ApproveListing(ctx context.Context, p *auth.Principal, id string) (*model.Listing, error) {
	listing, err := s.moderator.Approve(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cfg.Log.Info("Listing approved", "listing_id", id, "actor_id", p.UserID)
	return listing, nil
}

func (s *adminService) RejectListing(ctx context.Context, p *auth.Principal, id, reason string) (*model.Listing, error) {
	listing, err := s.moderator.Reject(ctx, id, reason)
	if err != nil {
		return nil, err
	}
	s.cfg.Log.Info("Listing rejected", "listing_id", id, "actor_id", p.UserID)
	return listing, nil
}

func (s *adminService) ListPendingNID(ctx context.Context, limit int, offset int64) ([]*model.User, int64, error) {
	var (
		users []*model.User
		total int64
	)
	err := gather(ctx,
		countInto(&total, s.users.CountPendingNID),
		func(ctx context.Context) (err error) {
			users, err = s.users.FindPendingNID(ctx, limit, offset)
			return err
		},
	)
	if err != nil {
		s.cfg.Log.Error("Failed to list pending NID submissions", "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve NID submissions", err)
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, total, nil
}

func (s *adminService) ApproveNID(ctx context.Context, p *auth.Principal, id string) (*model.User, error) {
	return s.reviewNID(ctx, p, id, model.NIDApproved, "")
}

func (s *adminService) RejectNID(ctx context.Context, p *auth.Principal, id, reason string) (*model.User, error) {
	return s.reviewNID(ctx, p, id, model.NIDRejected, sanitizer.SanitizeText(reason, maxRejectionReason))
}

// reviewNID decides host verification. A rejection drops the document and
// the verified flag.
func (s *adminService) reviewNID(ctx context.Context, p *auth.Principal, id, status, reason string) (*model.User, error) {
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.IsHost() {
		return nil, apperrors.Validation("Only hosts submit identity documents", map[string]any{"role": user.Role})
	}
	if user.NID == nil || user.NID.Status != model.NIDPending {
		return nil, s.mapUserError(id, "", userserrors.ErrNIDNotPending)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	nid := *user.NID
	nid.Status = status
	nid.ReviewedBy = p.UserID
	nid.ReviewedAt = &now
	nid.RejectionReason = reason
	verified := status == model.NIDApproved
	if !verified {
		nid.DocumentURL = ""
	}

	if err := s.users.ReviewNID(ctx, id, &nid, verified); err != nil {
		return nil, s.mapUserError(id, "Failed to review NID", err)
	}
	if !verified {
		if err := s.documents.Delete(ctx, user.NID.DocumentURL); err != nil {
			s.cfg.Log.Warn("Failed to remove identity document", "user_id", id, "error", err)
		}
	}
	if user.Verified != verified {
		s.revoke(ctx, id)
	}

	user.NID = &nid
	user.Verified = verified
	s.cfg.Log.Info("NID reviewed",
		"user_id", id,
		"status", status,
		"actor_id", p.UserID,
	)
	return user, nil
}
