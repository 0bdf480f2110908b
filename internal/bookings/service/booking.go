package service

import (
	"context"
	"errors"
	"fmt"
	"otithi/internal/auth"
	bookingserrors "otithi/internal/bookings/errors"
	"otithi/internal/bookings/repository"
	"otithi/internal/bookings/validator"
	"otithi/internal/events"
	"otithi/internal/listings/cache"
	listingserrors "otithi/internal/listings/errors"
	"otithi/pkg/availability"
	"otithi/pkg/config"
	apperrors "otithi/pkg/errors"
	"otithi/pkg/model"
	"otithi/pkg/pricing"
	"otithi/pkg/sanitizer"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	dateLayout            = "2006-01-02"
	lockTTL               = 10 * time.Second
	maxSpecialRequestsLen = 1000
)

// ListingReader loads the listing a booking is made against.
type ListingReader interface {
	FindByID(ctx context.Context, id string) (*model.Listing, error)
}

type BookingService interface {
	Create(ctx context.Context, p *auth.Principal, req *model.CreateBookingRequest) (*model.Booking, error)
	GetByID(ctx context.Context, p *auth.Principal, id string) (*model.Booking, error)
	ListMine(ctx context.Context, p *auth.Principal, status string, limit int, offset int64) ([]*model.Booking, int64, error)
	ListForHost(ctx context.Context, p *auth.Principal, filter *model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error)
	ListAll(ctx context.Context, filter *model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error)
	Confirm(ctx context.Context, p *auth.Principal, id string) (*model.Booking, error)
	Reject(ctx context.Context, p *auth.Principal, id string) (*model.Booking, error)
	Cancel(ctx context.Context, p *auth.Principal, id string) (*model.Booking, error)
	CheckIn(ctx context.Context, p *auth.Principal, id string) (*model.Booking, error)
	CheckOut(ctx context.Context, p *auth.Principal, id string) (*model.Booking, error)
	AdminSetStatus(ctx context.Context, p *auth.Principal, id string, req *model.BookingStatusRequest) (*model.Booking, error)
}

type bookingService struct {
	repo      repository.BookingRepository
	locks     repository.BookingLockRepository
	listings  ListingReader
	cache     cache.UnavailableCache
	events    events.Publisher
	validator *validator.BookingValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewBookingService(
	repo repository.BookingRepository,
	locks repository.BookingLockRepository,
	listings ListingReader,
	unavailable cache.UnavailableCache,
	publisher events.Publisher,
	validator *validator.BookingValidator,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		repo:      repo,
		locks:     locks,
		listings:  listings,
		cache:     unavailable,
		events:    publisher,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *bookingService) invalid(message string, err error) error {
	return apperrors.Validation(message, map[string]any{
		"error": err.Error(),
	})
}

func (s *bookingService) mapRepoError(id, message string, err error) error {
	switch {
	case errors.Is(err, bookingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Booking", id)
	case errors.Is(err, bookingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid booking ID format")
	case errors.Is(err, bookingserrors.ErrStatusChanged):
		return apperrors.Conflict("Booking status changed, reload and try again")
	}
	s.cfg.Log.Error(message, "booking_id", id, "error", err)
	return apperrors.Internal(message, err)
}

func (s *bookingService) fees() pricing.Fees {
	return pricing.Fees{
		CleaningFee:       s.cfg.CleaningFee,
		ServiceFeePercent: s.cfg.ServiceFeePercent,
		MaxNights:         s.cfg.MaxStayNights,
	}
}

func (s *bookingService) today() time.Time {
	return pricing.Day(s.now())
}

func (s *bookingService) loadListing(ctx context.Context, id string) (*model.Listing, error) {
	listing, err := s.listings.FindByID(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, listingserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Listing", id)
		case errors.Is(err, listingserrors.ErrInvalidID):
			return nil, apperrors.InvalidInput("Invalid listing ID format")
		}
		s.cfg.Log.Error("Failed to retrieve listing", "listing_id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve listing", err)
	}
	return listing, nil
}

func (s *bookingService) Create(ctx context.Context, p *auth.Principal, req *model.CreateBookingRequest) (*model.Booking, error) {
	if err := s.validator.ValidateCreate(req); err != nil {
		s.cfg.Log.Warn("Booking validation failed",
			"guest_id", p.UserID,
			"error", err,
		)
		return nil, s.invalid("Booking validation failed", err)
	}

	checkIn, err := time.Parse(dateLayout, req.CheckIn)
	if err != nil {
		return nil, s.invalid("Booking validation failed", err)
	}
	checkOut, err := time.Parse(dateLayout, req.CheckOut)
	if err != nil {
		return nil, s.invalid("Booking validation failed", err)
	}
	if checkIn.Before(s.today()) {
		return nil, apperrors.Validation("check_in cannot be in the past", map[string]any{"check_in": req.CheckIn})
	}
	if !checkOut.After(checkIn) {
		return nil, apperrors.Validation("check_out must be after check_in", map[string]any{
			"check_in":  req.CheckIn,
			"check_out": req.CheckOut,
		})
	}
	if nights, _ := pricing.Nights(checkIn, checkOut); nights > s.cfg.MaxStayNights {
		return nil, apperrors.Validation(fmt.Sprintf("Stays are limited to %d nights", s.cfg.MaxStayNights), map[string]any{
			"nights":     nights,
			"max_nights": s.cfg.MaxStayNights,
		})
	}

	listing, err := s.loadListing(ctx, req.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.HostID == p.UserID {
		return nil, apperrors.Forbidden("Hosts cannot book their own listing")
	}
	if listing.Status != model.ListingApproved {
		return nil, apperrors.Validation("Listing is not open for booking", map[string]any{"status": listing.Status})
	}
	if !listing.Available {
		return nil, apperrors.Conflict("Listing is not available for booking")
	}
	if req.Guests > listing.MaxGuests {
		return nil, apperrors.Validation(fmt.Sprintf("Listing allows at most %d guests", listing.MaxGuests), map[string]any{
			"max_guests": listing.MaxGuests,
		})
	}

	price, err := pricing.Quote(listing.PricePerNight, checkIn, checkOut, s.fees())
	if err != nil {
		return nil, s.invalid("Failed to price booking", err)
	}

	owner := uuid.NewString()
	if err := s.locks.Acquire(ctx, listing.ID, owner, lockTTL); err != nil {
		if errors.Is(err, bookingserrors.ErrLockHeld) {
			return nil, apperrors.Conflict("Listing is being booked, please retry")
		}
		s.cfg.Log.Error("Failed to acquire booking lock", "listing_id", listing.ID, "error", err)
		return nil, apperrors.Internal("Failed to create booking", err)
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), listing.ID, owner); err != nil {
			s.cfg.Log.Warn("Failed to release booking lock",
				"listing_id", listing.ID,
				"error", err,
			)
		}
	}()

	booking := &model.Booking{
		ListingID:       listing.ID,
		GuestID:         p.UserID,
		HostID:          listing.HostID,
		CheckIn:         checkIn,
		CheckOut:        checkOut,
		Guests:          req.Guests,
		Nights:          price.Nights,
		Price:           price,
		TotalPrice:      price.Total,
		SpecialRequests: sanitizer.SanitizeText(req.SpecialRequests, maxSpecialRequestsLen),
		Status:          model.BookingPending,
		PaymentStatus:   model.PaymentPending,
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		// The listing may have been deleted or unpublished while the lock was contended.
		current, err := s.listings.FindByID(sessCtx, listing.ID)
		if err != nil {
			if errors.Is(err, listingserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Listing", listing.ID)
			}
			return fmt.Errorf("failed to reload listing: %w", err)
		}
		if current.Status != model.ListingApproved || !current.Available {
			return apperrors.Conflict("Listing is no longer open for booking")
		}

		existing, err := s.repo.FindActiveForListing(sessCtx, listing.ID, checkIn, checkOut)
		if err != nil {
			return fmt.Errorf("failed to check conflicts: %w", err)
		}
		if conflicts := availability.Conflicts(existing, checkIn, checkOut, ""); len(conflicts) > 0 {
			return conflictError(conflicts)
		}
		return s.repo.Create(sessCtx, booking)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			s.cfg.Log.Warn("Booking rejected",
				"listing_id", listing.ID,
				"guest_id", p.UserID,
				"error", err,
			)
			return nil, err
		}
		s.cfg.Log.Error("Failed to create booking",
			"listing_id", listing.ID,
			"guest_id", p.UserID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to create booking", err)
	}

	s.cache.Invalidate(ctx, listing.ID)
	events.Emit(ctx, s.events, s.cfg.Log, model.EventBookingCreated, booking.ID, model.NewBookingEvent(booking, p.UserID))

	s.cfg.Log.Info("Booking created successfully",
		"booking_id", booking.ID,
		"listing_id", booking.ListingID,
		"guest_id", booking.GuestID,
		"total_price", booking.TotalPrice,
	)
	return booking, nil
}

// conflictError reports the overlapping ranges without exposing whose
// bookings they are.
func conflictError(conflicts []model.Booking) error {
	ranges := make([]map[string]string, 0, len(conflicts))
	for _, c := range conflicts {
		ranges = append(ranges, map[string]string{
			"check_in":  c.CheckIn.Format(dateLayout),
			"check_out": c.CheckOut.Format(dateLayout),
		})
	}
	return apperrors.Conflict("Listing is already booked for the selected dates").
		WithDetails(map[string]any{"conflicts": ranges})
}

func (s *bookingService) load(ctx context.Context, id string) (*model.Booking, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(id, "Failed to retrieve booking", err)
	}
	return booking, nil
}

// loadVisible returns 404 to callers who are neither a participant nor an
// admin.
func (s *bookingService) loadVisible(ctx context.Context, p *auth.Principal, id string) (*model.Booking, error) {
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && !booking.IsParticipant(p.UserID) {
		return nil, apperrors.NotFoundWithID("Booking", id)
	}
	return booking, nil
}

func (s *bookingService) GetByID(ctx context.Context, p *auth.Principal, id string) (*model.Booking, error) {
	return s.loadVisible(ctx, p, id)
}

func (s *bookingService) page(ctx context.Context, filter *model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error) {
	if err := s.validator.ValidateFilter(filter); err != nil {
		return nil, 0, s.invalid("Invalid booking filter", err)
	}

	var (
		bookings          []*model.Booking
		total             int64
		errCount, errFind error
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		total, err = s.repo.CountByFilter(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count bookings", "error", err)
			errCount = apperrors.Internal("Failed to count bookings", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		bookings, err = s.repo.FindByFilter(ctx, filter, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to find bookings", "error", err)
			errFind = apperrors.Internal("Failed to retrieve bookings", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}
	return bookings, total, nil
}

func (s *bookingService) ListMine(ctx context.Context, p *auth.Principal, status string, limit int, offset int64) ([]*model.Booking, int64, error) {
	return s.page(ctx, &model.BookingFilter{GuestID: p.UserID, Status: status}, limit, offset)
}

func (s *bookingService) ListForHost(ctx context.Context, p *auth.Principal, filter *model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error) {
	return s.page(ctx, &model.BookingFilter{
		HostID:    p.UserID,
		ListingID: filter.ListingID,
		Status:    filter.Status,
	}, limit, offset)
}

func (s *bookingService) ListAll(ctx context.Context, filter *model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error) {
	return s.page(ctx, filter, limit, offset)
}

// actorCheck decides whether p may perform a transition on b, and whether
// the booking's dates allow it today.
type actorCheck func(b *model.Booking, p *auth.Principal, today time.Time) error

func hostOrAdmin(b *model.Booking, p *auth.Principal, _ time.Time) error {
	if p.IsAdmin() || p.UserID == b.HostID {
		return nil
	}
	return apperrors.Forbidden("Only the listing's host can do this")
}

func anyParticipant(b *model.Booking, p *auth.Principal, _ time.Time) error {
	if p.IsAdmin() || b.IsParticipant(p.UserID) {
		return nil
	}
	return apperrors.Forbidden("Not allowed to change this booking")
}

func beforeCheckIn(b *model.Booking, p *auth.Principal, today time.Time) error {
	if err := anyParticipant(b, p, today); err != nil {
		return err
	}
	if !today.Before(pricing.Day(b.CheckIn)) {
		return apperrors.Validation("Bookings can only be cancelled before check-in", map[string]any{
			"check_in": b.CheckIn.Format(dateLayout),
		})
	}
	return nil
}

func withinStay(b *model.Booking, p *auth.Principal, today time.Time) error {
	if err := anyParticipant(b, p, today); err != nil {
		return err
	}
	if !b.InStayWindow(today) {
		return apperrors.Validation("Check-in is only possible during the stay", map[string]any{
			"check_in":  b.CheckIn.Format(dateLayout),
			"check_out": b.CheckOut.Format(dateLayout),
		})
	}
	return nil
}

func (s *bookingService) Confirm(ctx context.Context, p *auth.Principal, id string) (*model.Booking, error) {
	return s.transition(ctx, p, id, "", model.BookingConfirmed, hostOrAdmin)
}

func (s *bookingService) Reject(ctx context.Context, p *auth.Principal, id string) (*model.Booking, error) {
	return s.transition(ctx, p, id, model.BookingPending, model.BookingCancelled, hostOrAdmin)
}

func (s *bookingService) Cancel(ctx context.Context, p *auth.Principal, id string) (*model.Booking, error) {
	return s.transition(ctx, p, id, "", model.BookingCancelled, beforeCheckIn)
}

func (s *bookingService) CheckIn(ctx context.Context, p *auth.Principal, id string) (*model.Booking, error) {
	return s.transition(ctx, p, id, "", model.BookingCheckedIn, withinStay)
}

func (s *bookingService) CheckOut(ctx context.Context, p *auth.Principal, id string) (*model.Booking, error) {
	return s.transition(ctx, p, id, "", model.BookingCheckedOut, anyParticipant)
}

func (s *bookingService) AdminSetStatus(ctx context.Context, p *auth.Principal, id string, req *model.BookingStatusRequest) (*model.Booking, error) {
	if err := s.validator.ValidateStatus(req); err != nil {
		return nil, s.invalid("Invalid booking status", err)
	}
	return s.transition(ctx, p, id, "", req.Status, hostOrAdmin)
}

// transition moves booking id to status to. A non-empty from additionally
// restricts the starting status. The lifecycle table is checked first, then
// the actor, then the date preconditions.
func (s *bookingService) transition(ctx context.Context, p *auth.Principal, id, from, to string, check actorCheck) (*model.Booking, error) {
	booking, err := s.loadVisible(ctx, p, id)
	if err != nil {
		return nil, err
	}

	if !booking.CanTransition(to) || (from != "" && booking.Status != from) {
		return nil, apperrors.Conflict(fmt.Sprintf("Cannot move booking from %s to %s", booking.Status, to)).
			WithDetails(map[string]any{"status": booking.Status, "requested": to})
	}
	if err := check(booking, p, s.today()); err != nil {
		return nil, err
	}

	change := &model.StatusChange{
		From:    booking.Status,
		To:      to,
		ActorID: p.UserID,
		At:      s.now(),
	}

	var updated *model.Booking
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var err error
		updated, err = s.repo.UpdateStatus(sessCtx, id, change)
		return err
	})
	if err != nil {
		return nil, s.mapRepoError(id, "Failed to update booking status", err)
	}

	s.cache.Invalidate(ctx, updated.ListingID)
	events.Emit(ctx, s.events, s.cfg.Log, model.BookingEventType(updated.Status), updated.ID, model.NewBookingEvent(updated, p.UserID))

	s.cfg.Log.Info("Booking status changed",
		"booking_id", id,
		"from", change.From,
		"to", change.To,
		"actor_id", p.UserID,
	)
	return updated, nil
}
