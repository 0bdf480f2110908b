package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"otithi/internal/auth"
	bookingserrors "otithi/internal/bookings/errors"
	"otithi/internal/bookings/validator"
	"otithi/internal/listings/cache"
	listingserrors "otithi/internal/listings/errors"
	"otithi/pkg/config"
	mongodb "otithi/pkg/db/mongo"
	apperrors "otithi/pkg/errors"
	"otithi/pkg/logger"
	"otithi/pkg/model"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	hostID    = "65f1a2b3c4d5e6f708090a0b"
	guestID   = "65f1a2b3c4d5e6f708090a0c"
	adminID   = "65f1a2b3c4d5e6f708090a0d"
	listingID = "6600000000000000000000aa"
)

var (
	host       = &auth.Principal{UserID: hostID, Role: model.RoleHost, Verified: true}
	guest      = &auth.Principal{UserID: guestID, Role: model.RoleGuest}
	stranger   = &auth.Principal{UserID: "65f1a2b3c4d5e6f708090aff", Role: model.RoleGuest}
	admin      = &auth.Principal{UserID: adminID, Role: model.RoleAdmin, Verified: true}
	fixedToday = time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)
)

func day(offset int) time.Time {
	return time.Date(2026, 6, 1+offset, 0, 0, 0, 0, time.UTC)
}

type mockBookingRepository struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking
	seq      int
	// raceStatus, when set, is written before UpdateStatus runs.
	raceStatus string
}

func newMockBookingRepository() *mockBookingRepository {
	return &mockBookingRepository{bookings: map[string]*model.Booking{}}
}

func (m *mockBookingRepository) add(b *model.Booking) *model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	b.ID = fmt.Sprintf("6700000000000000000000%02d", m.seq)
	m.bookings[b.ID] = b
	return b
}

func (m *mockBookingRepository) Create(_ context.Context, b *model.Booking) error {
	copied := *b
	m.add(&copied)
	b.ID = copied.ID
	return nil
}

func (m *mockBookingRepository) FindByID(_ context.Context, id string) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.bookings[id]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, bookingserrors.ErrNotFound
}

func (m *mockBookingRepository) matching(f *model.BookingFilter) []*model.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Booking
	for _, b := range m.bookings {
		if f.GuestID != "" && b.GuestID != f.GuestID {
			continue
		}
		if f.HostID != "" && b.HostID != f.HostID {
			continue
		}
		if f.ListingID != "" && b.ListingID != f.ListingID {
			continue
		}
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		out = append(out, b)
	}
	return out
}

func (m *mockBookingRepository) FindByFilter(_ context.Context, f *model.BookingFilter, _ int, _ int64) ([]*model.Booking, error) {
	return m.matching(f), nil
}

func (m *mockBookingRepository) CountByFilter(_ context.Context, f *model.BookingFilter) (int64, error) {
	return int64(len(m.matching(f))), nil
}

func (m *mockBookingRepository) FindRecent(context.Context, int) ([]*model.Booking, error) {
	return nil, nil
}

func (m *mockBookingRepository) Revenue(context.Context) (int64, error) {
	return 0, nil
}

func (m *mockBookingRepository) FindActiveForListing(_ context.Context, id string, from, to time.Time) ([]model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Booking
	for _, b := range m.bookings {
		if b.ListingID == id && b.IsActive() && b.CheckIn.Before(to) && b.CheckOut.After(from) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockBookingRepository) ListingsWithConflicts(context.Context, time.Time, time.Time) ([]string, error) {
	return nil, nil
}

func (m *mockBookingRepository) CountActiveForListing(context.Context, string) (int64, error) {
	return 0, nil
}

func (m *mockBookingRepository) CountActiveForUser(context.Context, string) (int64, error) {
	return 0, nil
}

func (m *mockBookingRepository) UpdateStatus(_ context.Context, id string, change *model.StatusChange) (*model.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, bookingserrors.ErrNotFound
	}
	if m.raceStatus != "" {
		b.Status = m.raceStatus
	}
	if b.Status != change.From {
		return nil, bookingserrors.ErrStatusChanged
	}
	b.Status = change.To
	at := change.At
	switch change.To {
	case model.BookingConfirmed:
		b.ConfirmedBy, b.ConfirmedAt = change.ActorID, &at
	case model.BookingCancelled:
		b.CancelledBy, b.CancelledAt = change.ActorID, &at
		b.PaymentStatus = model.PaymentRefunded
	case model.BookingCheckedIn:
		b.CheckedInAt = &at
	case model.BookingCheckedOut:
		b.CheckedOutAt = &at
	}
	copied := *b
	return &copied, nil
}

func (m *mockBookingRepository) ExecuteTransaction(ctx context.Context, fn mongodb.TransactionFunc) error {
	return fn(mongo.NewSessionContext(ctx, nil))
}

type mockLockRepository struct {
	held     map[string]string
	acquired int
	released int
}

func (m *mockLockRepository) Acquire(_ context.Context, listingID, owner string, _ time.Duration) error {
	if _, ok := m.held[listingID]; ok {
		return bookingserrors.ErrLockHeld
	}
	m.held[listingID] = owner
	m.acquired++
	return nil
}

func (m *mockLockRepository) Release(_ context.Context, listingID, owner string) error {
	if m.held[listingID] == owner {
		delete(m.held, listingID)
		m.released++
	}
	return nil
}

type mockListingReader struct {
	listings map[string]*model.Listing
}

func (m *mockListingReader) FindByID(_ context.Context, id string) (*model.Listing, error) {
	if l, ok := m.listings[id]; ok {
		copied := *l
		return &copied, nil
	}
	return nil, listingserrors.ErrNotFound
}

type publishedEvent struct {
	eventType string
	key       string
	payload   any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, eventType, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{eventType, key, payload})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	svc      *bookingService
	repo     *mockBookingRepository
	locks    *mockLockRepository
	listings *mockListingReader
	cache    *cache.MemoryCache
	events   *recordingPublisher
}

func newFixture() *fixture {
	log := logger.Discard()
	cfg := &config.Config{
		Log:               log,
		CleaningFee:       500,
		ServiceFeePercent: 10,
		MaxStayNights:     30,
	}

	f := &fixture{
		repo:  newMockBookingRepository(),
		locks: &mockLockRepository{held: map[string]string{}},
		listings: &mockListingReader{listings: map[string]*model.Listing{
			listingID: {
				ID:            listingID,
				HostID:        hostID,
				Title:         "Lake view flat",
				PricePerNight: 5000,
				MaxGuests:     4,
				Available:     true,
				Status:        model.ListingApproved,
			},
		}},
		cache:  cache.NewMemoryCache(5 * time.Minute),
		events: &recordingPublisher{},
	}
	f.svc = &bookingService{
		repo:      f.repo,
		locks:     f.locks,
		listings:  f.listings,
		cache:     f.cache,
		events:    f.events,
		validator: validator.NewBookingValidator(log),
		cfg:       cfg,
		now:       func() time.Time { return fixedToday },
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

func request(in, out string, guests int) *model.CreateBookingRequest {
	return &model.CreateBookingRequest{
		ListingID: listingID,
		CheckIn:   in,
		CheckOut:  out,
		Guests:    guests,
	}
}

func (f *fixture) seed(status string, in, out int) *model.Booking {
	return f.repo.add(&model.Booking{
		ListingID:     listingID,
		GuestID:       guestID,
		HostID:        hostID,
		CheckIn:       day(in),
		CheckOut:      day(out),
		Guests:        2,
		Status:        status,
		PaymentStatus: model.PaymentPending,
	})
}

func TestCreate_PricesAndPublishes(t *testing.T) {
	f := newFixture()
	f.cache.Set(context.Background(), listingID, "2026-06-01", "2027-06-01", []string{})

	booking, err := f.svc.Create(context.Background(), guest, request("2026-06-10", "2026-06-13", 2))
	require.NoError(t, err)

	assert.NotEmpty(t, booking.ID)
	assert.Equal(t, model.BookingPending, booking.Status)
	assert.Equal(t, model.PaymentPending, booking.PaymentStatus)
	assert.Equal(t, hostID, booking.HostID)
	assert.Equal(t, 3, booking.Nights)
	assert.Equal(t, int64(15000), booking.Price.BasePrice)
	assert.Equal(t, int64(1500), booking.Price.ServiceFee)
	assert.Equal(t, int64(17000), booking.TotalPrice)

	assert.Equal(t, 1, f.locks.acquired)
	assert.Equal(t, 1, f.locks.released)
	assert.Empty(t, f.locks.held)

	_, cached := f.cache.Get(context.Background(), listingID, "2026-06-01", "2027-06-01")
	assert.False(t, cached, "booking must invalidate the calendar cache")

	require.Len(t, f.events.events, 1)
	assert.Equal(t, model.EventBookingCreated, f.events.events[0].eventType)
	assert.Equal(t, booking.ID, f.events.events[0].key)
}

func TestCreate_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		principal  *auth.Principal
		req        *model.CreateBookingRequest
		mutate     func(l *model.Listing)
		wantStatus int
	}{
		{"check-in in the past", guest, request("2026-05-31", "2026-06-03", 2), nil, http.StatusUnprocessableEntity},
		{"check-out before check-in", guest, request("2026-06-10", "2026-06-09", 2), nil, http.StatusUnprocessableEntity},
		{"same day", guest, request("2026-06-10", "2026-06-10", 2), nil, http.StatusUnprocessableEntity},
		{"bad date format", guest, request("10/06/2026", "2026-06-12", 2), nil, http.StatusUnprocessableEntity},
		{"zero guests", guest, request("2026-06-10", "2026-06-12", 0), nil, http.StatusUnprocessableEntity},
		{"too many guests", guest, request("2026-06-10", "2026-06-12", 5), nil, http.StatusUnprocessableEntity},
		{"stay longer than maximum", guest, request("2026-06-10", "2026-07-11", 2), nil, http.StatusUnprocessableEntity},
		{"stay of several centuries", guest, request("2026-06-10", "2999-06-10", 2), nil, http.StatusUnprocessableEntity},
		{"host books own listing", host, request("2026-06-10", "2026-06-12", 2), nil, http.StatusForbidden},
		{"listing pending approval", guest, request("2026-06-10", "2026-06-12", 2), func(l *model.Listing) {
			l.Status = model.ListingPendingApproval
		}, http.StatusUnprocessableEntity},
		{"listing unavailable", guest, request("2026-06-10", "2026-06-12", 2), func(l *model.Listing) {
			l.Available = false
		}, http.StatusConflict},
		{"unknown listing", guest, &model.CreateBookingRequest{
			ListingID: "6600000000000000000000ff", CheckIn: "2026-06-10", CheckOut: "2026-06-12", Guests: 1,
		}, nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			if tt.mutate != nil {
				tt.mutate(f.listings.listings[listingID])
			}

			_, err := f.svc.Create(context.Background(), tt.principal, tt.req)
			require.Error(t, err)
			assert.Equal(t, tt.wantStatus, statusOf(err))
			assert.Empty(t, f.events.events)
			assert.Empty(t, f.repo.bookings)
		})
	}
}

func TestCreate_Overlap(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		in, out  string
		wantErr  bool
	}{
		{"overlapping pending", model.BookingPending, "2026-06-11", "2026-06-14", true},
		{"contained confirmed", model.BookingConfirmed, "2026-06-10", "2026-06-20", true},
		{"checked in guest", model.BookingCheckedIn, "2026-06-12", "2026-06-13", true},
		{"back to back", model.BookingConfirmed, "2026-06-15", "2026-06-17", false},
		{"ends on existing check-in", model.BookingConfirmed, "2026-06-08", "2026-06-10", false},
		{"cancelled does not block", model.BookingCancelled, "2026-06-11", "2026-06-14", false},
		{"checked out does not block", model.BookingCheckedOut, "2026-06-11", "2026-06-14", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.seed(tt.existing, 10, 15)

			_, err := f.svc.Create(context.Background(), stranger, request(tt.in, tt.out, 2))
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Equal(t, http.StatusConflict, statusOf(err))
			appErr := apperrors.AsAppError(err)
			require.Contains(t, appErr.Details, "conflicts")
			assert.Len(t, appErr.Details["conflicts"], 1)
			assert.Empty(t, f.locks.held, "lock must be released after a conflict")
		})
	}
}

func TestCreate_LockHeld(t *testing.T) {
	f := newFixture()
	f.locks.held[listingID] = "another-request"

	_, err := f.svc.Create(context.Background(), guest, request("2026-06-10", "2026-06-12", 2))
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, statusOf(err))
	assert.Equal(t, "another-request", f.locks.held[listingID])
}

// listingChangingLock applies a change to the listing once the lock is
// taken, standing in for a host or admin action that won the race.
type listingChangingLock struct {
	mockLockRepository
	change func()
}

func (l *listingChangingLock) Acquire(ctx context.Context, listingID, owner string, ttl time.Duration) error {
	if err := l.mockLockRepository.Acquire(ctx, listingID, owner, ttl); err != nil {
		return err
	}
	l.change()
	return nil
}

func TestCreate_ListingChangedWhileLocking(t *testing.T) {
	tests := []struct {
		name       string
		change     func(listings map[string]*model.Listing)
		wantStatus int
	}{
		{"listing deleted", func(m map[string]*model.Listing) { delete(m, listingID) }, http.StatusNotFound},
		{"listing unpublished", func(m map[string]*model.Listing) { m[listingID].Status = model.ListingRejected }, http.StatusConflict},
		{"listing made unavailable", func(m map[string]*model.Listing) { m[listingID].Available = false }, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			lock := &listingChangingLock{mockLockRepository: mockLockRepository{held: map[string]string{}}}
			lock.change = func() { tt.change(f.listings.listings) }
			f.svc.locks = lock

			_, err := f.svc.Create(context.Background(), guest, request("2026-06-10", "2026-06-12", 2))
			require.Error(t, err)
			assert.Equal(t, tt.wantStatus, statusOf(err))
			assert.Empty(t, f.repo.bookings)
			assert.Empty(t, lock.held)
		})
	}
}

func TestCreate_ConcurrentRequestsDoNotDoubleBook(t *testing.T) {
	f := newFixture()
	f.svc.locks = &serialLock{}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	guests := []*auth.Principal{guest, stranger, admin}
	for _, p := range guests {
		wg.Add(1)
		go func(p *auth.Principal) {
			defer wg.Done()
			if _, err := f.svc.Create(context.Background(), p, request("2026-06-10", "2026-06-12", 2)); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
}

// serialLock blocks instead of failing so that concurrent requests queue
// behind each other and exercise the overlap check.
type serialLock struct {
	mu sync.Mutex
}

func (l *serialLock) Acquire(context.Context, string, string, time.Duration) error {
	l.mu.Lock()
	return nil
}

func (l *serialLock) Release(context.Context, string, string) error {
	l.mu.Unlock()
	return nil
}

func TestGetByID_Visibility(t *testing.T) {
	f := newFixture()
	b := f.seed(model.BookingPending, 10, 12)

	for _, p := range []*auth.Principal{guest, host, admin} {
		got, err := f.svc.GetByID(context.Background(), p, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b.ID, got.ID)
	}

	_, err := f.svc.GetByID(context.Background(), stranger, b.ID)
	assert.Equal(t, http.StatusNotFound, statusOf(err))

	_, err = f.svc.GetByID(context.Background(), guest, "not-an-id")
	require.Error(t, err)
}

func TestTransitions(t *testing.T) {
	type op func(s *bookingService, ctx context.Context, p *auth.Principal, id string) (*model.Booking, error)
	confirm := func(s *bookingService, ctx context.Context, p *auth.Principal, id string) (*model.Booking, error) {
		return s.Confirm(ctx, p, id)
	}
	reject := func(s *bookingService, ctx context.Context, p *auth.Principal, id string) (*model.Booking, error) {
		return s.Reject(ctx, p, id)
	}
	cancel := func(s *bookingService, ctx context.Context, p *auth.Principal, id string) (*model.Booking, error) {
		return s.Cancel(ctx, p, id)
	}
	checkIn := func(s *bookingService, ctx context.Context, p *auth.Principal, id string) (*model.Booking, error) {
		return s.CheckIn(ctx, p, id)
	}
	checkOut := func(s *bookingService, ctx context.Context, p *auth.Principal, id string) (*model.Booking, error) {
		return s.CheckOut(ctx, p, id)
	}

	tests := []struct {
		name       string
		status     string
		in, out    int
		principal  *auth.Principal
		op         op
		wantStatus string
		wantCode   int
	}{
		{"host confirms", model.BookingPending, 10, 12, host, confirm, model.BookingConfirmed, 0},
		{"admin confirms", model.BookingPending, 10, 12, admin, confirm, model.BookingConfirmed, 0},
		{"guest cannot confirm", model.BookingPending, 10, 12, guest, confirm, "", http.StatusForbidden},
		{"stranger sees nothing", model.BookingPending, 10, 12, stranger, confirm, "", http.StatusNotFound},
		{"confirm twice", model.BookingConfirmed, 10, 12, host, confirm, "", http.StatusConflict},
		{"host rejects pending", model.BookingPending, 10, 12, host, reject, model.BookingCancelled, 0},
		{"reject confirmed", model.BookingConfirmed, 10, 12, host, reject, "", http.StatusConflict},
		{"guest cancels pending", model.BookingPending, 10, 12, guest, cancel, model.BookingCancelled, 0},
		{"guest cancels confirmed", model.BookingConfirmed, 10, 12, guest, cancel, model.BookingCancelled, 0},
		{"cancel on check-in day", model.BookingConfirmed, 0, 2, guest, cancel, "", http.StatusUnprocessableEntity},
		{"cancel checked in", model.BookingCheckedIn, -1, 2, guest, cancel, "", http.StatusConflict},
		{"cancel cancelled", model.BookingCancelled, 10, 12, guest, cancel, "", http.StatusConflict},
		{"check in on arrival day", model.BookingConfirmed, 0, 2, guest, checkIn, model.BookingCheckedIn, 0},
		{"check in mid stay", model.BookingConfirmed, -1, 2, host, checkIn, model.BookingCheckedIn, 0},
		{"check in too early", model.BookingConfirmed, 1, 3, guest, checkIn, "", http.StatusUnprocessableEntity},
		{"check in on departure day", model.BookingConfirmed, -2, 0, guest, checkIn, "", http.StatusUnprocessableEntity},
		{"check in pending", model.BookingPending, 0, 2, guest, checkIn, "", http.StatusConflict},
		{"check out", model.BookingCheckedIn, -2, 0, guest, checkOut, model.BookingCheckedOut, 0},
		{"check out confirmed", model.BookingConfirmed, -2, 0, host, checkOut, "", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			b := f.seed(tt.status, tt.in, tt.out)

			got, err := tt.op(f.svc, context.Background(), tt.principal, b.ID)
			if tt.wantCode != 0 {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, statusOf(err))
				assert.Empty(t, f.events.events)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, got.Status)
			require.Len(t, f.events.events, 1)
			assert.Equal(t, model.BookingEventType(tt.wantStatus), f.events.events[0].eventType)
		})
	}
}

func TestConfirm_RecordsActor(t *testing.T) {
	f := newFixture()
	b := f.seed(model.BookingPending, 10, 12)

	got, err := f.svc.Confirm(context.Background(), host, b.ID)
	require.NoError(t, err)
	assert.Equal(t, hostID, got.ConfirmedBy)
	require.NotNil(t, got.ConfirmedAt)
}

func TestCancel_Refunds(t *testing.T) {
	f := newFixture()
	b := f.seed(model.BookingConfirmed, 10, 12)

	got, err := f.svc.Cancel(context.Background(), guest, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentRefunded, got.PaymentStatus)
	assert.Equal(t, guestID, got.CancelledBy)
}

func TestTransition_ConcurrentChange(t *testing.T) {
	f := newFixture()
	b := f.seed(model.BookingPending, 10, 12)
	f.repo.raceStatus = model.BookingCancelled

	_, err := f.svc.Confirm(context.Background(), host, b.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, statusOf(err))
}

func TestAdminSetStatus(t *testing.T) {
	f := newFixture()
	b := f.seed(model.BookingConfirmed, -1, 2)

	got, err := f.svc.AdminSetStatus(context.Background(), admin, b.ID, &model.BookingStatusRequest{Status: model.BookingCheckedIn})
	require.NoError(t, err)
	assert.Equal(t, model.BookingCheckedIn, got.Status)

	_, err = f.svc.AdminSetStatus(context.Background(), admin, b.ID, &model.BookingStatusRequest{Status: model.BookingConfirmed})
	assert.Equal(t, http.StatusConflict, statusOf(err))

	_, err = f.svc.AdminSetStatus(context.Background(), admin, b.ID, &model.BookingStatusRequest{Status: "paid"})
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))
}

func TestListForHost_ScopedToHost(t *testing.T) {
	f := newFixture()
	f.seed(model.BookingPending, 10, 12)
	f.seed(model.BookingConfirmed, 20, 22)
	f.repo.add(&model.Booking{ListingID: "6600000000000000000000bb", GuestID: guestID, HostID: "someone-else", Status: model.BookingPending})

	bookings, total, err := f.svc.ListForHost(context.Background(), host, &model.BookingFilter{HostID: "someone-else"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, bookings, 2)

	_, total, err = f.svc.ListForHost(context.Background(), host, &model.BookingFilter{Status: model.BookingConfirmed}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	_, _, err = f.svc.ListForHost(context.Background(), host, &model.BookingFilter{Status: "archived"}, 10, 0)
	assert.Equal(t, http.StatusUnprocessableEntity, statusOf(err))
}

func TestListMine_Empty(t *testing.T) {
	f := newFixture()

	bookings, total, err := f.svc.ListMine(context.Background(), stranger, "", 10, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NotNil(t, bookings)
	assert.Empty(t, bookings)
}
