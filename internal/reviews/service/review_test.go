package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"otithi/internal/auth"
	bookingserrors "otithi/internal/bookings/errors"
	listingserrors "otithi/internal/listings/errors"
	reviewserrors "otithi/internal/reviews/errors"
	"otithi/internal/reviews/validator"
	"otithi/pkg/config"
	mongodb "otithi/pkg/db/mongo"
	apperrors "otithi/pkg/errors"
	"otithi/pkg/logger"
	"otithi/pkg/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	hostID    = "65f1a2b3c4d5e6f708090a0b"
	guestID   = "65f1a2b3c4d5e6f708090a0c"
	listingID = "6600000000000000000000aa"
	bookingID = "6700000000000000000000aa"
)

var (
	host     = &auth.Principal{UserID: hostID, Role: model.RoleHost, Verified: true}
	guest    = &auth.Principal{UserID: guestID, Role: model.RoleGuest}
	stranger = &auth.Principal{UserID: "65f1a2b3c4d5e6f708090aff", Role: model.RoleGuest}
	admin    = &auth.Principal{UserID: "65f1a2b3c4d5e6f708090a0d", Role: model.RoleAdmin}
)

type mockReviewRepository struct {
	reviews []*model.Review
	// skipPreCheck hides stored reviews from FindByBooking, like a racing
	// request that passed the pre-check.
	skipPreCheck bool
}

func (m *mockReviewRepository) Create(_ context.Context, r *model.Review) error {
	for _, existing := range m.reviews {
		if existing.BookingID == r.BookingID {
			return reviewserrors.ErrAlreadyExists
		}
	}
	r.ID = fmt.Sprintf("6800000000000000000000%02d", len(m.reviews)+1)
	copied := *r
	m.reviews = append(m.reviews, &copied)
	return nil
}

func (m *mockReviewRepository) FindByBooking(_ context.Context, bookingID string) (*model.Review, error) {
	if m.skipPreCheck {
		return nil, reviewserrors.ErrNotFound
	}
	for _, r := range m.reviews {
		if r.BookingID == bookingID {
			return r, nil
		}
	}
	return nil, reviewserrors.ErrNotFound
}

func (m *mockReviewRepository) FindByListing(_ context.Context, listingID string, _ int, _ int64) ([]*model.Review, error) {
	var out []*model.Review
	for _, r := range m.reviews {
		if r.ListingID == listingID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockReviewRepository) CountByListing(ctx context.Context, listingID string) (int64, error) {
	found, _ := m.FindByListing(ctx, listingID, 0, 0)
	return int64(len(found)), nil
}

func (m *mockReviewRepository) ExecuteTransaction(ctx context.Context, fn mongodb.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

type mockBookingReader struct {
	bookings map[string]*model.Booking
}

func (m *mockBookingReader) FindByID(_ context.Context, id string) (*model.Booking, error) {
	if b, ok := m.bookings[id]; ok {
		return b, nil
	}
	return nil, bookingserrors.ErrNotFound
}

// mockListingRater recomputes the rating from the review mock, the way the
// aggregation does over the Reviews collection.
type mockListingRater struct {
	reviews *mockReviewRepository
	ratings map[string]model.RatingSummary
}

func (m *mockListingRater) FindByID(_ context.Context, id string) (*model.Listing, error) {
	if id != listingID {
		return nil, listingserrors.ErrNotFound
	}
	return &model.Listing{ID: id, HostID: hostID}, nil
}

func (m *mockListingRater) ApplyRating(_ context.Context, id string) (*model.RatingSummary, error) {
	var sum, n int64
	for _, r := range m.reviews.reviews {
		if r.ListingID == id {
			sum += int64(r.Rating)
			n++
		}
	}
	summary := model.RatingSummary{Count: n}
	if n > 0 {
		summary.Average = model.RoundRating(float64(sum) / float64(n))
	}
	m.ratings[id] = summary
	return &summary, nil
}

type countingPublisher struct {
	types []string
}

func (p *countingPublisher) Publish(_ context.Context, eventType, _ string, _ any) error {
	p.types = append(p.types, eventType)
	return nil
}

func (p *countingPublisher) Close() error { return nil }

type fixture struct {
	svc      *reviewService
	repo     *mockReviewRepository
	bookings *mockBookingReader
	listings *mockListingRater
	events   *countingPublisher
}

func newFixture(status string) *fixture {
	log := logger.Discard()
	repo := &mockReviewRepository{}
	f := &fixture{
		repo: repo,
		bookings: &mockBookingReader{bookings: map[string]*model.Booking{
			bookingID: {ID: bookingID, ListingID: listingID, GuestID: guestID, HostID: hostID, Status: status},
		}},
		listings: &mockListingRater{reviews: repo, ratings: map[string]model.RatingSummary{}},
		events:   &countingPublisher{},
	}
	f.svc = &reviewService{
		repo:      f.repo,
		bookings:  f.bookings,
		listings:  f.listings,
		events:    f.events,
		validator: validator.NewReviewValidator(log),
		cfg:       &config.Config{Log: log},
	}
	return f
}

func statusOf(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return 0
}

func reviewRequest(rating int) *model.CreateReviewRequest {
	return &model.CreateReviewRequest{BookingID: bookingID, Rating: rating, Comment: "Lovely stay, very clean."}
}

func TestCreate_UpdatesRating(t *testing.T) {
	f := newFixture(model.BookingCheckedOut)
	f.repo.reviews = append(f.repo.reviews, &model.Review{BookingID: "6700000000000000000000bb", ListingID: listingID, Rating: 4})

	review, err := f.svc.Create(context.Background(), guest, reviewRequest(5))
	require.NoError(t, err)

	assert.NotEmpty(t, review.ID)
	assert.Equal(t, listingID, review.ListingID)
	assert.Equal(t, guestID, review.GuestID)
	assert.Equal(t, model.RatingSummary{Average: 4.5, Count: 2}, f.listings.ratings[listingID])
	assert.Equal(t, []string{model.EventReviewCreated}, f.events.types)
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		principal  *auth.Principal
		req        *model.CreateReviewRequest
		wantStatus int
	}{
		{"not checked out", model.BookingConfirmed, guest, reviewRequest(5), http.StatusUnprocessableEntity},
		{"cancelled", model.BookingCancelled, guest, reviewRequest(5), http.StatusUnprocessableEntity},
		{"host reviews own listing", model.BookingCheckedOut, host, reviewRequest(5), http.StatusForbidden},
		{"not the guest", model.BookingCheckedOut, stranger, reviewRequest(5), http.StatusForbidden},
		{"rating too high", model.BookingCheckedOut, guest, reviewRequest(6), http.StatusUnprocessableEntity},
		{"rating zero", model.BookingCheckedOut, guest, reviewRequest(0), http.StatusUnprocessableEntity},
		{"empty comment", model.BookingCheckedOut, guest, &model.CreateReviewRequest{BookingID: bookingID, Rating: 3, Comment: "  "}, http.StatusUnprocessableEntity},
		{"unknown booking", model.BookingCheckedOut, guest, &model.CreateReviewRequest{BookingID: "6700000000000000000000ff", Rating: 3, Comment: "fine"}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(tt.status)

			_, err := f.svc.Create(context.Background(), tt.principal, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.wantStatus, statusOf(err))
			assert.Empty(t, f.repo.reviews)
			assert.Empty(t, f.events.types)
		})
	}
}

func TestCreate_OncePerBooking(t *testing.T) {
	f := newFixture(model.BookingCheckedOut)

	_, err := f.svc.Create(context.Background(), guest, reviewRequest(5))
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), guest, reviewRequest(4))
	assert.Equal(t, http.StatusConflict, statusOf(err))

	f.repo.skipPreCheck = true
	_, err = f.svc.Create(context.Background(), guest, reviewRequest(4))
	assert.Equal(t, http.StatusConflict, statusOf(err), "unique index must also map to 409")
	assert.Len(t, f.repo.reviews, 1)
}

func TestListForListing(t *testing.T) {
	f := newFixture(model.BookingCheckedOut)
	_, err := f.svc.Create(context.Background(), guest, reviewRequest(5))
	require.NoError(t, err)

	reviews, total, err := f.svc.ListForListing(context.Background(), listingID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, reviews, 1)

	_, _, err = f.svc.ListForListing(context.Background(), "6600000000000000000000ff", 10, 0)
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}

func TestGetForBooking(t *testing.T) {
	f := newFixture(model.BookingCheckedOut)

	_, err := f.svc.GetForBooking(context.Background(), guest, bookingID)
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	_, err = f.svc.Create(context.Background(), guest, reviewRequest(3))
	require.NoError(t, err)

	for _, p := range []*auth.Principal{guest, host, admin} {
		review, err := f.svc.GetForBooking(context.Background(), p, bookingID)
		require.NoError(t, err)
		assert.Equal(t, 3, review.Rating)
	}

	_, err = f.svc.GetForBooking(context.Background(), stranger, bookingID)
	assert.Equal(t, http.StatusNotFound, statusOf(err))
}
