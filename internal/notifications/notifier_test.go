package notifications

import (
	"context"
	"errors"
	"net/smtp"
	"net/textproto"
	listingserrors "otithi/internal/listings/errors"
	userserrors "otithi/internal/users/errors"
	"otithi/pkg/kafka"
	"otithi/pkg/logger"
	"otithi/pkg/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockUsers struct {
	users map[string]*model.User
	err   error
}

func (m *mockUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, userserrors.ErrNotFound
}

type mockListings struct {
	listings map[string]*model.Listing
}

func (m *mockListings) FindByID(_ context.Context, id string) (*model.Listing, error) {
	if l, ok := m.listings[id]; ok {
		return l, nil
	}
	return nil, listingserrors.ErrNotFound
}

type recordingMailer struct {
	sent []Email
	err  error
}

func (m *recordingMailer) Send(_ context.Context, email Email) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, email)
	return nil
}

func newNotifier() (*Notifier, *recordingMailer, *mockUsers) {
	users := &mockUsers{users: map[string]*model.User{
		"host1":  {ID: "host1", FullName: "Karim Host", Email: "karim@example.com"},
		"guest1": {ID: "guest1", FullName: "Nusrat Guest", Email: "nusrat@example.com"},
	}}
	listings := &mockListings{listings: map[string]*model.Listing{
		"l1": {ID: "l1", Title: "Lakeside cottage in Sylhet"},
	}}
	mailer := &recordingMailer{}
	return NewNotifier(users, listings, mailer, logger.Discard()), mailer, users
}

func event(t *testing.T, eventType string, payload any) kafka.Message {
	t.Helper()
	mb := kafka.NewMessage().WithEventType(eventType).WithValue(payload)
	require.NoError(t, mb.Err())
	return mb.Build()
}

var booking = model.BookingEvent{
	BookingID:  "b1",
	ListingID:  "l1",
	GuestID:    "guest1",
	HostID:     "host1",
	Status:     model.BookingPending,
	CheckIn:    "2026-06-10",
	CheckOut:   "2026-06-13",
	TotalPrice: 1700050,
}

func TestHandle_Dispatch(t *testing.T) {
	confirmed := booking
	confirmed.Status = model.BookingConfirmed
	checkedIn := booking
	checkedIn.Status = model.BookingCheckedIn

	tests := []struct {
		name        string
		eventType   string
		payload     any
		wantTo      string
		wantSubject string
		wantBody    string
	}{
		{
			name:      "verification code",
			eventType: model.EventVerificationRequested,
			payload: model.VerificationEvent{
				UserID: "guest1", Email: "nusrat@example.com", FullName: "Nusrat Guest",
				Code: "482913", ExpiresAt: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
			},
			wantTo:      "nusrat@example.com",
			wantSubject: "Your Otithi verification code",
			wantBody:    "482913",
		},
		{
			name:        "booking request goes to host",
			eventType:   model.EventBookingCreated,
			payload:     booking,
			wantTo:      "karim@example.com",
			wantSubject: "New booking request for Lakeside cottage in Sylhet",
			wantBody:    "BDT 17000.50",
		},
		{
			name:        "confirmation goes to guest",
			eventType:   model.EventBookingConfirmed,
			payload:     confirmed,
			wantTo:      "nusrat@example.com",
			wantSubject: "Your booking at Lakeside cottage in Sylhet is confirmed",
			wantBody:    "2026-06-10 to 2026-06-13",
		},
		{
			name:        "check-in status is humanized",
			eventType:   model.EventBookingCheckedIn,
			payload:     checkedIn,
			wantTo:      "nusrat@example.com",
			wantSubject: "Your booking at Lakeside cottage in Sylhet is checked in",
		},
		{
			name:      "review goes to host",
			eventType: model.EventReviewCreated,
			payload: model.ReviewEvent{
				ReviewID: "r1", BookingID: "b1", ListingID: "l1",
				GuestID: "guest1", HostID: "host1", Rating: 5,
			},
			wantTo:      "karim@example.com",
			wantSubject: "New 5-star review for Lakeside cottage in Sylhet",
			wantBody:    "Nusrat Guest left a 5-star review",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, mailer, _ := newNotifier()

			require.NoError(t, n.Handle(context.Background(), event(t, tt.eventType, tt.payload)))
			require.Len(t, mailer.sent, 1)
			assert.Equal(t, tt.wantTo, mailer.sent[0].To)
			assert.Equal(t, tt.wantSubject, mailer.sent[0].Subject)
			assert.Contains(t, mailer.sent[0].Body, tt.wantBody)
		})
	}
}

func TestHandle_IgnoresOtherEvents(t *testing.T) {
	n, mailer, _ := newNotifier()

	err := n.Handle(context.Background(), event(t, model.EventMessageSent, model.MessageEvent{MessageID: "m1"}))
	require.NoError(t, err)
	assert.Empty(t, mailer.sent)
}

func TestHandle_DeletedListingStillNotifies(t *testing.T) {
	n, mailer, _ := newNotifier()
	ev := booking
	ev.ListingID = "gone"

	require.NoError(t, n.Handle(context.Background(), event(t, model.EventBookingCreated, ev)))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "New booking request for your listing", mailer.sent[0].Subject)
}

func TestHandle_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		msg    func(t *testing.T) kafka.Message
		setup  func(m *recordingMailer, u *mockUsers)
		expect kafka.ErrorType
	}{
		{
			name: "undecodable payload",
			msg: func(*testing.T) kafka.Message {
				return kafka.NewMessage().WithEventType(model.EventBookingCreated).WithRawValue([]byte("{not json")).Build()
			},
			expect: kafka.ErrorTypePermanent,
		},
		{
			name: "unknown recipient",
			msg: func(t *testing.T) kafka.Message {
				ev := booking
				ev.HostID = "nobody"
				return event(t, model.EventBookingCreated, ev)
			},
			expect: kafka.ErrorTypePermanent,
		},
		{
			name: "verification without code",
			msg: func(t *testing.T) kafka.Message {
				return event(t, model.EventVerificationRequested, model.VerificationEvent{Email: "a@b.com"})
			},
			expect: kafka.ErrorTypePermanent,
		},
		{
			name: "user store down",
			msg: func(t *testing.T) kafka.Message {
				return event(t, model.EventBookingConfirmed, booking)
			},
			setup: func(_ *recordingMailer, u *mockUsers) {
				u.err = errors.New("server selection error")
			},
			expect: kafka.ErrorTypeTransient,
		},
		{
			name: "mailer unreachable",
			msg: func(t *testing.T) kafka.Message {
				return event(t, model.EventBookingConfirmed, booking)
			},
			setup: func(m *recordingMailer, _ *mockUsers) {
				m.err = kafka.NewTransientError("mail delivery failed", errors.New("dial tcp: connection refused"))
			},
			expect: kafka.ErrorTypeTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, mailer, users := newNotifier()
			if tt.setup != nil {
				tt.setup(mailer, users)
			}

			err := n.Handle(context.Background(), tt.msg(t))
			require.Error(t, err)
			assert.Equal(t, tt.expect, kafka.ClassifyError(err))
		})
	}
}

func TestSMTPMailer(t *testing.T) {
	tests := []struct {
		name    string
		sendErr error
		expect  kafka.ErrorType
	}{
		{name: "delivered"},
		{name: "mailbox unavailable", sendErr: &textproto.Error{Code: 550, Msg: "no such user"}, expect: kafka.ErrorTypePermanent},
		{name: "greylisted", sendErr: &textproto.Error{Code: 451, Msg: "try again later"}, expect: kafka.ErrorTypeTransient},
		{name: "network", sendErr: errors.New("dial tcp 10.0.0.1:587: i/o timeout"), expect: kafka.ErrorTypeTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewSMTPMailer("smtp.example.com", "587", "user", "pass", "no-reply@otithi.com")
			var raw []byte
			m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
				assert.Equal(t, "smtp.example.com:587", addr)
				assert.Equal(t, "no-reply@otithi.com", from)
				assert.Equal(t, []string{"guest@example.com"}, to)
				raw = msg
				return tt.sendErr
			}

			err := m.Send(context.Background(), Email{To: "guest@example.com", Subject: "Hello", Body: "line one\nline two"})
			if tt.sendErr == nil {
				require.NoError(t, err)
				assert.Contains(t, string(raw), "Subject: Hello\r\n")
				assert.Contains(t, string(raw), "line one\r\nline two")
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.expect, kafka.ClassifyError(err))
		})
	}
}

func TestFormatTaka(t *testing.T) {
	assert.Equal(t, "0.05", formatTaka(5))
	assert.Equal(t, "17000.50", formatTaka(1700050))
}
