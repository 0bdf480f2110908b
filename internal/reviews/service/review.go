package service

import (
	"context"
	"errors"
	"otithi/internal/auth"
	bookingserrors "otithi/internal/bookings/errors"
	"otithi/internal/events"
	listingserrors "otithi/internal/listings/errors"
	reviewserrors "otithi/internal/reviews/errors"
	"otithi/internal/reviews/repository"
	"otithi/internal/reviews/validator"
	"otithi/pkg/config"
	apperrors "otithi/pkg/errors"
	"otithi/pkg/model"
	"otithi/pkg/sanitizer"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
)

const maxCommentLen = 2000

type BookingReader interface {
	FindByID(ctx context.Context, id string) (*model.Booking, error)
}

// ListingRater is the part of the listings store reviews write through.
type ListingRater interface {
	FindByID(ctx context.Context, id string) (*model.Listing, error)
	ApplyRating(ctx context.Context, id string) (*model.RatingSummary, error)
}

type ReviewService interface {
	Create(ctx context.Context, p *auth.Principal, req *model.CreateReviewRequest) (*model.Review, error)
	ListForListing(ctx context.Context, listingID string, limit int, offset int64) ([]*model.Review, int64, error)
	GetForBooking(ctx context.Context, p *auth.Principal, bookingID string) (*model.Review, error)
}

type reviewService struct {
	repo      repository.ReviewRepository
	bookings  BookingReader
	listings  ListingRater
	events    events.Publisher
	validator *validator.ReviewValidator
	cfg       *config.Config
}

func NewReviewService(
	repo repository.ReviewRepository,
	bookings BookingReader,
	listings ListingRater,
	publisher events.Publisher,
	validator *validator.ReviewValidator,
	cfg *config.Config,
) ReviewService {
	return &reviewService{
		repo:      repo,
		bookings:  bookings,
		listings:  listings,
		events:    publisher,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *reviewService) loadBooking(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, bookingserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Booking", id)
		case errors.Is(err, bookingserrors.ErrInvalidID):
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		s.cfg.Log.Error("Failed to retrieve booking", "booking_id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

func (s *reviewService) Create(ctx context.Context, p *auth.Principal, req *model.CreateReviewRequest) (*model.Review, error) {
	req.Comment = sanitizer.SanitizeText(req.Comment, maxCommentLen)
	if err := s.validator.Validate(req); err != nil {
		s.cfg.Log.Warn("Review validation failed",
			"booking_id", req.BookingID,
			"error", err,
		)
		return nil, apperrors.Validation("Review validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	booking, err := s.loadBooking(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.HostID == p.UserID {
		return nil, apperrors.Forbidden("Hosts cannot review their own listing")
	}
	if booking.GuestID != p.UserID {
		return nil, apperrors.Forbidden("Only the booking's guest can review it")
	}
	if booking.Status != model.BookingCheckedOut {
		return nil, apperrors.Validation("Only completed stays can be reviewed", map[string]any{
			"status": booking.Status,
		})
	}

	if _, err := s.repo.FindByBooking(ctx, booking.ID); err == nil {
		return nil, apperrors.Conflict("Booking has already been reviewed")
	} else if !errors.Is(err, reviewserrors.ErrNotFound) {
		s.cfg.Log.Error("Failed to check existing review", "booking_id", booking.ID, "error", err)
		return nil, apperrors.Internal("Failed to create review", err)
	}

	review := &model.Review{
		BookingID: booking.ID,
		ListingID: booking.ListingID,
		GuestID:   p.UserID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}

	var summary *model.RatingSummary
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.repo.Create(sessCtx, review); err != nil {
			return err
		}
		var err error
		summary, err = s.listings.ApplyRating(sessCtx, booking.ListingID)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, reviewserrors.ErrAlreadyExists):
			return nil, apperrors.Conflict("Booking has already been reviewed")
		case errors.Is(err, listingserrors.ErrNotFound):
			return nil, apperrors.NotFoundWithID("Listing", booking.ListingID)
		}
		s.cfg.Log.Error("Failed to create review",
			"booking_id", booking.ID,
			"listing_id", booking.ListingID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to create review", err)
	}

	events.Emit(ctx, s.events, s.cfg.Log, model.EventReviewCreated, review.ID, model.ReviewEvent{
		ReviewID:  review.ID,
		BookingID: review.BookingID,
		ListingID: review.ListingID,
		GuestID:   review.GuestID,
		HostID:    booking.HostID,
		Rating:    review.Rating,
	})

	s.cfg.Log.Info("Review created successfully",
		"review_id", review.ID,
		"listing_id", review.ListingID,
		"rating", review.Rating,
		"listing_rating", summary.Average,
		"reviews_count", summary.Count,
	)
	return review, nil
}

func (s *reviewService) ListForListing(ctx context.Context, listingID string, limit int, offset int64) ([]*model.Review, int64, error) {
	if _, err := s.listings.FindByID(ctx, listingID); err != nil {
		switch {
		case errors.Is(err, listingserrors.ErrNotFound):
			return nil, 0, apperrors.NotFoundWithID("Listing", listingID)
		case errors.Is(err, listingserrors.ErrInvalidID):
			return nil, 0, apperrors.InvalidInput("Invalid listing ID format")
		}
		s.cfg.Log.Error("Failed to retrieve listing", "listing_id", listingID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve listing", err)
	}

	var (
		reviews           []*model.Review
		total             int64
		errCount, errFind error
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		total, err = s.repo.CountByListing(ctx, listingID)
		if err != nil {
			s.cfg.Log.Error("Failed to count reviews", "listing_id", listingID, "error", err)
			errCount = apperrors.Internal("Failed to count reviews", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		reviews, err = s.repo.FindByListing(ctx, listingID, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to find reviews", "listing_id", listingID, "error", err)
			errFind = apperrors.Internal("Failed to retrieve reviews", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	if reviews == nil {
		reviews = []*model.Review{}
	}
	return reviews, total, nil
}

func (s *reviewService) GetForBooking(ctx context.Context, p *auth.Principal, bookingID string) (*model.Review, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && !booking.IsParticipant(p.UserID) {
		return nil, apperrors.NotFoundWithID("Booking", bookingID)
	}

	review, err := s.repo.FindByBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, reviewserrors.ErrNotFound) {
			return nil, apperrors.NotFound("Review")
		}
		s.cfg.Log.Error("Failed to retrieve review", "booking_id", bookingID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve review", err)
	}
	return review, nil
}
