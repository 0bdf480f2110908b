package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"otithi/internal/auth"
	bookingserrors "otithi/internal/bookings/errors"
	"otithi/internal/listings/cache"
	listingserrors "otithi/internal/listings/errors"
	"otithi/internal/listings/repository"
	"otithi/internal/listings/storage"
	"otithi/internal/listings/validator"
	"otithi/pkg/availability"
	"otithi/pkg/config"
	apperrors "otithi/pkg/errors"
	"otithi/pkg/model"
	"otithi/pkg/pricing"
	"otithi/pkg/sanitizer"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	dateLayout          = "2006-01-02"
	defaultCalendarDays = 365
	maxCalendarDays     = 366
	maxRejectionReason  = 500
	deleteLockTTL       = 10 * time.Second
	sniffLen            = 512
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// BookingReader is the slice of the bookings store that listings need. It
// is satisfied by the bookings repository.
type BookingReader interface {
	FindActiveForListing(ctx context.Context, listingID string, from, to time.Time) ([]model.Booking, error)
	ListingsWithConflicts(ctx context.Context, checkIn, checkOut time.Time) ([]string, error)
	CountActiveForListing(ctx context.Context, listingID string) (int64, error)
}

// BookingLock is the per-listing lock held while a booking is written.
// Delete takes it so no booking lands between the active count and the
// delete. It is satisfied by the bookings lock repository.
type BookingLock interface {
	Acquire(ctx context.Context, listingID, owner string, ttl time.Duration) error
	Release(ctx context.Context, listingID, owner string) error
}

type ListingService interface {
	Create(ctx context.Context, p *auth.Principal, listing *model.Listing) (*model.Listing, error)
	GetByID(ctx context.Context, p *auth.Principal, id string) (*model.Listing, error)
	Search(ctx context.Context, search *model.ListingSearch, limit int, offset int64) ([]*model.Listing, int64, error)
	Mine(ctx context.Context, p *auth.Principal, limit int, offset int64) ([]*model.Listing, int64, error)
	ListAll(ctx context.Context, filter *model.ListingFilter, limit int, offset int64) ([]*model.Listing, int64, error)
	Update(ctx context.Context, p *auth.Principal, id string, update *model.ListingUpdate) (*model.Listing, error)
	Delete(ctx context.Context, p *auth.Principal, id string) error
	SetAvailability(ctx context.Context, p *auth.Principal, id string, available bool) (*model.Listing, error)
	Approve(ctx context.Context, id string) (*model.Listing, error)
	Reject(ctx context.Context, id, reason string) (*model.Listing, error)
	Availability(ctx context.Context, p *auth.Principal, id string, checkIn, checkOut time.Time) (*model.Availability, error)
	UnavailableDates(ctx context.Context, p *auth.Principal, id string, from, to *time.Time) (*model.UnavailableDates, error)
	Quote(ctx context.Context, p *auth.Principal, id string, checkIn, checkOut time.Time, guests int) (*model.Quote, error)
	Save(ctx context.Context, p *auth.Principal, id string) error
	Unsave(ctx context.Context, p *auth.Principal, id string) error
	ListSaved(ctx context.Context, p *auth.Principal, limit int, offset int64) ([]*model.Listing, int64, error)
	AddImage(ctx context.Context, p *auth.Principal, id string, size int64, body io.Reader) (*model.Listing, error)
	RemoveImage(ctx context.Context, p *auth.Principal, id, imageURL string) (*model.Listing, error)
}

type listingService struct {
	repo      repository.ListingRepository
	saved     repository.SavedListingRepository
	bookings  BookingReader
	locks     BookingLock
	cache     cache.UnavailableCache
	images    storage.ImageStore
	validator *validator.ListingValidator
	cfg       *config.Config
	now       func() time.Time
}

func NewListingService(
	repo repository.ListingRepository,
	saved repository.SavedListingRepository,
	bookings BookingReader,
	locks BookingLock,
	unavailable cache.UnavailableCache,
	images storage.ImageStore,
	validator *validator.ListingValidator,
	cfg *config.Config,
) ListingService {
	return &listingService{
		repo:      repo,
		saved:     saved,
		bookings:  bookings,
		locks:     locks,
		cache:     unavailable,
		images:    images,
		validator: validator,
		cfg:       cfg,
		now:       time.Now,
	}
}

func visible(l *model.Listing, p *auth.Principal) bool {
	if l.Status == model.ListingApproved {
		return true
	}
	return p != nil && (p.IsAdmin() || p.UserID == l.HostID)
}

func canManage(l *model.Listing, p *auth.Principal) bool {
	return p != nil && (p.IsAdmin() || p.UserID == l.HostID)
}

func sanitizeListing(l *model.Listing) {
	l.Title = sanitizer.SanitizeText(l.Title, 120)
	l.Description = sanitizer.SanitizeText(l.Description, 5000)
	l.Location = sanitizer.TrimAndNormalize(l.Location)
	l.Address = sanitizer.TrimAndNormalize(l.Address)
	l.City = sanitizer.SanitizeCity(l.City)
	l.Country = sanitizer.SanitizeCity(l.Country)
	l.Amenities = sanitizer.SanitizeAmenities(l.Amenities)
}

func (s *listingService) invalid(message string, err error) error {
	return apperrors.Validation(message, map[string]any{
		"error": err.Error(),
	})
}

func (s *listingService) load(ctx context.Context, id string) (*model.Listing, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Listing ID cannot be empty")
	}
	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapRepoError(id, "Failed to retrieve listing", err)
	}
	return listing, nil
}

func (s *listingService) mapRepoError(id, message string, err error) error {
	switch {
	case errors.Is(err, listingserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Listing", id)
	case errors.Is(err, listingserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid listing ID format")
	case errors.Is(err, listingserrors.ErrTooManyImages):
		return apperrors.Validation(fmt.Sprintf("A listing can have at most %d images", repository.MaxImages), nil)
	case errors.Is(err, listingserrors.ErrImageNotFound):
		return apperrors.NotFound("Image")
	case errors.Is(err, listingserrors.ErrStatusChanged):
		return apperrors.Conflict("Listing status changed, reload and try again")
	}
	s.cfg.Log.Error(message, "listing_id", id, "error", err)
	return apperrors.Internal(message, err)
}

// loadVisible hides listings the caller may not see behind a 404.
func (s *listingService) loadVisible(ctx context.Context, p *auth.Principal, id string) (*model.Listing, error) {
	listing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visible(listing, p) {
		return nil, apperrors.NotFoundWithID("Listing", id)
	}
	return listing, nil
}

func (s *listingService) loadOwned(ctx context.Context, p *auth.Principal, id string) (*model.Listing, error) {
	listing, err := s.loadVisible(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !canManage(listing, p) {
		return nil, apperrors.Forbidden("Only the listing's host can change it")
	}
	return listing, nil
}

func (s *listingService) Create(ctx context.Context, p *auth.Principal, listing *model.Listing) (*model.Listing, error) {
	listing.ID = ""
	listing.HostID = p.UserID
	listing.Status = model.ListingPendingApproval
	listing.RejectionReason = ""
	listing.Available = true
	listing.Images = []string{}
	listing.Rating = 0
	listing.ReviewsCount = 0
	if listing.Country == "" {
		listing.Country = model.DefaultCountry
	}
	sanitizeListing(listing)

	if err := s.validator.Validate(listing); err != nil {
		s.cfg.Log.Warn("Listing validation failed",
			"host_id", p.UserID,
			"error", err,
		)
		return nil, s.invalid("Listing validation failed", err)
	}

	if err := s.repo.Create(ctx, listing); err != nil {
		s.cfg.Log.Error("Failed to create listing", "host_id", p.UserID, "error", err)
		return nil, apperrors.Internal("Failed to create listing", err)
	}

	s.cfg.Log.Info("Listing created successfully",
		"listing_id", listing.ID,
		"host_id", listing.HostID,
	)
	return listing, nil
}

func (s *listingService) GetByID(ctx context.Context, p *auth.Principal, id string) (*model.Listing, error) {
	return s.loadVisible(ctx, p, id)
}

// page runs the count and the find concurrently.
func (s *listingService) page(
	ctx context.Context,
	what string,
	count func(ctx context.Context) (int64, error),
	find func(ctx context.Context) ([]*model.Listing, error),
) ([]*model.Listing, int64, error) {
	var (
		listings          []*model.Listing
		total             int64
		errCount, errFind error
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		total, err = count(ctx)
		if err != nil {
			s.cfg.Log.Error("Failed to count "+what, "error", err)
			errCount = apperrors.Internal("Failed to count "+what, err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		listings, err = find(ctx)
		if err != nil {
			s.cfg.Log.Error("Failed to find "+what, "error", err)
			errFind = apperrors.Internal("Failed to retrieve "+what, err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	if listings == nil {
		listings = []*model.Listing{}
	}
	return listings, total, nil
}

func (s *listingService) Search(ctx context.Context, search *model.ListingSearch, limit int, offset int64) ([]*model.Listing, int64, error) {
	search.Location = sanitizer.TrimAndNormalize(search.Location)
	if err := s.validator.ValidateSearch(search); err != nil {
		return nil, 0, s.invalid("Search validation failed", err)
	}

	if (search.CheckIn == nil) != (search.CheckOut == nil) {
		return nil, 0, apperrors.InvalidInput("check_in and check_out must be given together")
	}
	if search.CheckIn != nil {
		if !search.CheckOut.After(*search.CheckIn) {
			return nil, 0, apperrors.InvalidInput("check_out must be after check_in")
		}
		conflicting, err := s.bookings.ListingsWithConflicts(ctx, *search.CheckIn, *search.CheckOut)
		if err != nil {
			s.cfg.Log.Error("Failed to find conflicting bookings", "error", err)
			return nil, 0, apperrors.Internal("Failed to search listings", err)
		}
		search.ExcludeIDs = conflicting
	}

	return s.page(ctx, "listings",
		func(ctx context.Context) (int64, error) { return s.repo.CountSearch(ctx, search) },
		func(ctx context.Context) ([]*model.Listing, error) { return s.repo.Search(ctx, search, limit, offset) },
	)
}

func (s *listingService) Mine(ctx context.Context, p *auth.Principal, limit int, offset int64) ([]*model.Listing, int64, error) {
	return s.ListAll(ctx, &model.ListingFilter{HostID: p.UserID}, limit, offset)
}

func (s *listingService) ListAll(ctx context.Context, filter *model.ListingFilter, limit int, offset int64) ([]*model.Listing, int64, error) {
	if filter.Status != "" {
		switch filter.Status {
		case model.ListingPendingApproval, model.ListingApproved, model.ListingRejected:
		default:
			return nil, 0, apperrors.InvalidInput("Unknown listing status: " + filter.Status)
		}
	}
	return s.page(ctx, "listings",
		func(ctx context.Context) (int64, error) { return s.repo.CountByFilter(ctx, filter) },
		func(ctx context.Context) ([]*model.Listing, error) {
			return s.repo.FindByFilter(ctx, filter, limit, offset)
		},
	)
}

func (s *listingService) Update(ctx context.Context, p *auth.Principal, id string, update *model.ListingUpdate) (*model.Listing, error) {
	if err := s.validator.ValidateUpdate(update); err != nil {
		return nil, s.invalid("Listing validation failed", err)
	}

	listing, err := s.loadOwned(ctx, p, id)
	if err != nil {
		return nil, err
	}

	loadedStatus := listing.Status
	applyUpdate(listing, update)
	sanitizeListing(listing)

	// A host edit to reviewed content sends the listing back to moderation.
	if !p.IsAdmin() && update.ChangesReviewedFields() {
		listing.Status = model.ListingPendingApproval
		listing.RejectionReason = ""
	}

	if err := s.validator.Validate(listing); err != nil {
		s.cfg.Log.Warn("Listing validation failed",
			"listing_id", id,
			"error", err,
		)
		return nil, s.invalid("Listing validation failed", err)
	}

	if err := s.repo.Update(ctx, listing, loadedStatus); err != nil {
		return nil, s.mapRepoError(id, "Failed to update listing", err)
	}

	s.cfg.Log.Info("Listing updated successfully",
		"listing_id", id,
		"status", listing.Status,
	)
	return listing, nil
}

func applyUpdate(l *model.Listing, u *model.ListingUpdate) {
	if u.Title != nil {
		l.Title = *u.Title
	}
	if u.Description != nil {
		l.Description = *u.Description
	}
	if u.PropertyType != nil {
		l.PropertyType = *u.PropertyType
	}
	if u.Location != nil {
		l.Location = *u.Location
	}
	if u.Address != nil {
		l.Address = *u.Address
	}
	if u.City != nil {
		l.City = *u.City
	}
	if u.Country != nil {
		l.Country = *u.Country
	}
	if u.PricePerNight != nil {
		l.PricePerNight = *u.PricePerNight
	}
	if u.MaxGuests != nil {
		l.MaxGuests = *u.MaxGuests
	}
	if u.Bedrooms != nil {
		l.Bedrooms = *u.Bedrooms
	}
	if u.Bathrooms != nil {
		l.Bathrooms = *u.Bathrooms
	}
	if u.Amenities != nil {
		l.Amenities = *u.Amenities
	}
}

func (s *listingService) Delete(ctx context.Context, p *auth.Principal, id string) error {
	listing, err := s.loadOwned(ctx, p, id)
	if err != nil {
		return err
	}

	owner := uuid.NewString()
	if err := s.locks.Acquire(ctx, id, owner, deleteLockTTL); err != nil {
		if errors.Is(err, bookingserrors.ErrLockHeld) {
			return apperrors.Conflict("Listing is being booked, please retry")
		}
		s.cfg.Log.Error("Failed to acquire booking lock", "listing_id", id, "error", err)
		return apperrors.Internal("Failed to delete listing", err)
	}
	defer func() {
		if err := s.locks.Release(context.WithoutCancel(ctx), id, owner); err != nil {
			s.cfg.Log.Warn("Failed to release booking lock", "listing_id", id, "error", err)
		}
	}()

	active, err := s.bookings.CountActiveForListing(ctx, id)
	if err != nil {
		s.cfg.Log.Error("Failed to count active bookings", "listing_id", id, "error", err)
		return apperrors.Internal("Failed to delete listing", err)
	}
	if active > 0 {
		return apperrors.Conflict(fmt.Sprintf("Listing has %d active booking(s)", active)).
			WithDetails(map[string]any{"active_bookings": active})
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return s.mapRepoError(id, "Failed to delete listing", err)
	}

	if err := s.saved.DeleteByListing(ctx, id); err != nil {
		s.cfg.Log.Warn("Failed to remove saved entries", "listing_id", id, "error", err)
	}
	for _, u := range listing.Images {
		if err := s.images.Delete(ctx, u); err != nil {
			s.cfg.Log.Warn("Failed to delete listing image", "listing_id", id, "url", u, "error", err)
		}
	}
	s.cache.Invalidate(ctx, id)

	s.cfg.Log.Info("Listing deleted successfully", "listing_id", id, "actor_id", p.UserID)
	return nil
}

func (s *listingService) SetAvailability(ctx context.Context, p *auth.Principal, id string, available bool) (*model.Listing, error) {
	listing, err := s.loadOwned(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetAvailable(ctx, id, available); err != nil {
		return nil, s.mapRepoError(id, "Failed to update availability", err)
	}
	listing.Available = available
	return listing, nil
}

func (s *listingService) Approve(ctx context.Context, id string) (*model.Listing, error) {
	return s.moderate(ctx, id, model.ListingApproved, "")
}

func (s *listingService) Reject(ctx context.Context, id, reason string) (*model.Listing, error) {
	return s.moderate(ctx, id, model.ListingRejected, sanitizer.SanitizeText(reason, maxRejectionReason))
}

func (s *listingService) moderate(ctx context.Context, id, status, reason string) (*model.Listing, error) {
	listing, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetStatus(ctx, id, status, reason); err != nil {
		return nil, s.mapRepoError(id, "Failed to moderate listing", err)
	}

	listing.Status = status
	listing.RejectionReason = reason
	s.cfg.Log.Info("Listing moderated", "listing_id", id, "status", status)
	return listing, nil
}

func checkRange(checkIn, checkOut time.Time) error {
	if !pricing.Day(checkOut).After(pricing.Day(checkIn)) {
		return apperrors.InvalidInput("check_out must be after check_in")
	}
	return nil
}

func (s *listingService) Availability(ctx context.Context, p *auth.Principal, id string, checkIn, checkOut time.Time) (*model.Availability, error) {
	if err := checkRange(checkIn, checkOut); err != nil {
		return nil, err
	}
	if _, err := s.loadVisible(ctx, p, id); err != nil {
		return nil, err
	}

	existing, err := s.bookings.FindActiveForListing(ctx, id, checkIn, checkOut)
	if err != nil {
		s.cfg.Log.Error("Failed to load bookings", "listing_id", id, "error", err)
		return nil, apperrors.Internal("Failed to check availability", err)
	}
	conflicts := availability.Conflicts(existing, checkIn, checkOut, "")

	return &model.Availability{
		ListingID: id,
		CheckIn:   checkIn.Format(dateLayout),
		CheckOut:  checkOut.Format(dateLayout),
		Available: len(conflicts) == 0,
		Conflicts: len(conflicts),
	}, nil
}

func (s *listingService) UnavailableDates(ctx context.Context, p *auth.Principal, id string, from, to *time.Time) (*model.UnavailableDates, error) {
	start := pricing.Day(s.now())
	if from != nil {
		start = pricing.Day(*from)
	}
	end := start.AddDate(0, 0, defaultCalendarDays)
	if to != nil {
		end = pricing.Day(*to)
	}
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	if end.Sub(start) > maxCalendarDays*24*time.Hour {
		return nil, apperrors.InvalidInput(fmt.Sprintf("date range cannot exceed %d days", maxCalendarDays))
	}

	if _, err := s.loadVisible(ctx, p, id); err != nil {
		return nil, err
	}

	result := &model.UnavailableDates{
		ListingID: id,
		From:      start.Format(dateLayout),
		To:        end.Format(dateLayout),
	}

	if dates, ok := s.cache.Get(ctx, id, result.From, result.To); ok {
		result.Dates = dates
		return result, nil
	}

	existing, err := s.bookings.FindActiveForListing(ctx, id, start, end)
	if err != nil {
		s.cfg.Log.Error("Failed to load bookings", "listing_id", id, "error", err)
		return nil, apperrors.Internal("Failed to load unavailable dates", err)
	}
	result.Dates = availability.UnavailableDates(existing, start, end)
	s.cache.Set(ctx, id, result.From, result.To, result.Dates)
	return result, nil
}

func (s *listingService) fees() pricing.Fees {
	return pricing.Fees{
		CleaningFee:       s.cfg.CleaningFee,
		ServiceFeePercent: s.cfg.ServiceFeePercent,
		MaxNights:         s.cfg.MaxStayNights,
	}
}

func (s *listingService) Quote(ctx context.Context, p *auth.Principal, id string, checkIn, checkOut time.Time, guests int) (*model.Quote, error) {
	if err := checkRange(checkIn, checkOut); err != nil {
		return nil, err
	}
	if guests < 1 {
		return nil, apperrors.InvalidInput("guests must be at least 1")
	}
	if nights, _ := pricing.Nights(checkIn, checkOut); nights > s.cfg.MaxStayNights {
		return nil, apperrors.Validation(fmt.Sprintf("Stays are limited to %d nights", s.cfg.MaxStayNights), map[string]any{
			"nights":     nights,
			"max_nights": s.cfg.MaxStayNights,
		})
	}

	listing, err := s.loadVisible(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if guests > listing.MaxGuests {
		return nil, apperrors.Validation(fmt.Sprintf("This listing allows at most %d guests", listing.MaxGuests), map[string]any{
			"max_guests": listing.MaxGuests,
		})
	}

	price, err := pricing.Quote(listing.PricePerNight, checkIn, checkOut, s.fees())
	if err != nil {
		return nil, apperrors.Validation("Failed to price stay", map[string]any{"error": err.Error()})
	}

	return &model.Quote{
		ListingID: id,
		CheckIn:   checkIn.Format(dateLayout),
		CheckOut:  checkOut.Format(dateLayout),
		Guests:    guests,
		Price:     price,
	}, nil
}

func (s *listingService) Save(ctx context.Context, p *auth.Principal, id string) error {
	if _, err := s.loadVisible(ctx, p, id); err != nil {
		return err
	}
	if err := s.saved.Save(ctx, p.UserID, id); err != nil {
		s.cfg.Log.Error("Failed to save listing", "listing_id", id, "user_id", p.UserID, "error", err)
		return apperrors.Internal("Failed to save listing", err)
	}
	return nil
}

func (s *listingService) Unsave(ctx context.Context, p *auth.Principal, id string) error {
	if err := s.saved.Delete(ctx, p.UserID, id); err != nil {
		if errors.Is(err, listingserrors.ErrNotFound) {
			return apperrors.NotFound("Saved listing")
		}
		s.cfg.Log.Error("Failed to unsave listing", "listing_id", id, "user_id", p.UserID, "error", err)
		return apperrors.Internal("Failed to unsave listing", err)
	}
	return nil
}

// ListSaved returns saved listings newest-saved first. Entries whose listing
// has since been deleted are skipped.
func (s *listingService) ListSaved(ctx context.Context, p *auth.Principal, limit int, offset int64) ([]*model.Listing, int64, error) {
	var saved []*model.SavedListing
	listings, total, err := s.page(ctx, "saved listings",
		func(ctx context.Context) (int64, error) { return s.saved.CountByUser(ctx, p.UserID) },
		func(ctx context.Context) ([]*model.Listing, error) {
			var err error
			saved, err = s.saved.FindByUser(ctx, p.UserID, limit, offset)
			return nil, err
		},
	)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]string, 0, len(saved))
	for _, sv := range saved {
		ids = append(ids, sv.ListingID)
	}
	found, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		s.cfg.Log.Error("Failed to load saved listings", "user_id", p.UserID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve saved listings", err)
	}

	byID := make(map[string]*model.Listing, len(found))
	for _, l := range found {
		byID[l.ID] = l
	}
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			listings = append(listings, l)
		}
	}
	return listings, total, nil
}

// AddImage sniffs the upload, stores it and appends its URL. The stored
// object is removed again if the listing update fails.
func (s *listingService) AddImage(ctx context.Context, p *auth.Principal, id string, size int64, body io.Reader) (*model.Listing, error) {
	if size > int64(s.cfg.MaxUploadSize) {
		return nil, apperrors.New(apperrors.CodeInvalidInput,
			fmt.Sprintf("Image exceeds the %d byte limit", s.cfg.MaxUploadSize), http.StatusRequestEntityTooLarge)
	}

	listing, err := s.loadOwned(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if len(listing.Images) >= repository.MaxImages {
		return nil, s.mapRepoError(id, "", listingserrors.ErrTooManyImages)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, apperrors.InvalidInput("Failed to read upload")
	}
	head = head[:n]
	if n == 0 {
		return nil, apperrors.InvalidInput("Image file is empty")
	}

	contentType := http.DetectContentType(head)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return nil, apperrors.Validation("Unsupported image type", map[string]any{
			"content_type": contentType,
			"allowed":      []string{"image/jpeg", "image/png", "image/webp"},
		})
	}

	key := fmt.Sprintf("listings/%s/%s%s", id, uuid.NewString(), ext)
	url, err := s.images.Save(ctx, key, contentType, io.MultiReader(bytes.NewReader(head), body))
	if err != nil {
		s.cfg.Log.Error("Failed to store image", "listing_id", id, "error", err)
		return nil, apperrors.Internal("Failed to upload image", err)
	}

	if err := s.repo.AddImage(ctx, id, url); err != nil {
		if delErr := s.images.Delete(ctx, url); delErr != nil {
			s.cfg.Log.Warn("Failed to remove orphaned image", "url", url, "error", delErr)
		}
		return nil, s.mapRepoError(id, "Failed to attach image", err)
	}

	listing.Images = append(listing.Images, url)
	s.cfg.Log.Info("Listing image added", "listing_id", id, "content_type", contentType)
	return listing, nil
}

func (s *listingService) RemoveImage(ctx context.Context, p *auth.Principal, id, imageURL string) (*model.Listing, error) {
	if imageURL == "" {
		return nil, apperrors.InvalidInput("url query parameter is required")
	}

	listing, err := s.loadOwned(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.RemoveImage(ctx, id, imageURL); err != nil {
		return nil, s.mapRepoError(id, "Failed to remove image", err)
	}
	if err := s.images.Delete(ctx, imageURL); err != nil {
		s.cfg.Log.Warn("Failed to delete stored image", "listing_id", id, "url", imageURL, "error", err)
	}

	kept := listing.Images[:0]
	for _, u := range listing.Images {
		if u != imageURL {
			kept = append(kept, u)
		}
	}
	listing.Images = kept
	return listing, nil
}
