package notifications

import (
	"context"
	"errors"
	"fmt"
	listingserrors "otithi/internal/listings/errors"
	userserrors "otithi/internal/users/errors"
	"otithi/pkg/kafka"
	"otithi/pkg/logger"
	"otithi/pkg/model"
	"strings"
	"time"
)

type UserReader interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

type ListingReader interface {
	FindByID(ctx context.Context, id string) (*model.Listing, error)
}

// Notifier turns domain events into emails.
type Notifier struct {
	users    UserReader
	listings ListingReader
	mailer   Mailer
	log      *logger.Logger
}

func NewNotifier(users UserReader, listings ListingReader, mailer Mailer, log *logger.Logger) *Notifier {
	return &Notifier{
		users:    users,
		listings: listings,
		mailer:   mailer,
		log:      log,
	}
}

// Handle is a kafka.MessageHandler. Event types without a notification are
// acknowledged and skipped.
func (n *Notifier) Handle(ctx context.Context, msg kafka.Message) error {
	switch eventType := msg.GetEventType(); eventType {
	case model.EventVerificationRequested:
		var ev model.VerificationEvent
		if err := decode(msg, &ev); err != nil {
			return err
		}
		return n.verification(ctx, &ev)

	case model.EventBookingCreated:
		var ev model.BookingEvent
		if err := decode(msg, &ev); err != nil {
			return err
		}
		return n.bookingRequested(ctx, &ev)

	case model.EventBookingConfirmed, model.EventBookingCancelled,
		model.EventBookingCheckedIn, model.EventBookingCheckedOut:
		var ev model.BookingEvent
		if err := decode(msg, &ev); err != nil {
			return err
		}
		return n.bookingStatus(ctx, &ev)

	case model.EventReviewCreated:
		var ev model.ReviewEvent
		if err := decode(msg, &ev); err != nil {
			return err
		}
		return n.reviewCreated(ctx, &ev)

	default:
		n.log.Debug("No notification for event", "event_type", eventType, "event_id", msg.GetEventID())
		return nil
	}
}

func decode(msg kafka.Message, v any) error {
	if err := msg.DecodeValue(v); err != nil {
		return kafka.NewPermanentError("undecodable event payload", err).
			WithDetail("event_type", msg.GetEventType())
	}
	return nil
}

func (n *Notifier) user(ctx context.Context, id string) (*model.User, error) {
	user, err := n.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) || errors.Is(err, userserrors.ErrInvalidID) {
			return nil, kafka.NewPermanentError("recipient does not exist", err).WithDetail("user_id", id)
		}
		return nil, kafka.NewTransientError("failed to load user", err)
	}
	return user, nil
}

// listingTitle falls back to a generic name; a deleted listing should not
// block a notification about it.
func (n *Notifier) listingTitle(ctx context.Context, id string) (string, error) {
	listing, err := n.listings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, listingserrors.ErrNotFound) || errors.Is(err, listingserrors.ErrInvalidID) {
			return "your listing", nil
		}
		return "", kafka.NewTransientError("failed to load listing", err)
	}
	return listing.Title, nil
}

func (n *Notifier) send(ctx context.Context, to string, tmpl content, data any) error {
	subject, body, err := tmpl.render(data)
	if err != nil {
		return kafka.NewPermanentError("failed to render email", err)
	}
	return n.mailer.Send(ctx, Email{To: to, Subject: subject, Body: body})
}

func (n *Notifier) verification(ctx context.Context, ev *model.VerificationEvent) error {
	if ev.Email == "" || ev.Code == "" {
		return kafka.NewPermanentError("verification event missing email or code", nil)
	}
	return n.send(ctx, ev.Email, verificationEmail, map[string]any{
		"Name":      ev.FullName,
		"Code":      ev.Code,
		"ExpiresAt": ev.ExpiresAt.UTC().Format(time.RFC1123),
	})
}

func (n *Notifier) bookingRequested(ctx context.Context, ev *model.BookingEvent) error {
	host, err := n.user(ctx, ev.HostID)
	if err != nil {
		return err
	}
	guest, err := n.user(ctx, ev.GuestID)
	if err != nil {
		return err
	}
	title, err := n.listingTitle(ctx, ev.ListingID)
	if err != nil {
		return err
	}

	return n.send(ctx, host.Email, bookingRequestEmail, map[string]any{
		"Name":     host.FullName,
		"Other":    guest.FullName,
		"Listing":  title,
		"CheckIn":  ev.CheckIn,
		"CheckOut": ev.CheckOut,
		"Total":    formatTaka(ev.TotalPrice),
	})
}

func (n *Notifier) bookingStatus(ctx context.Context, ev *model.BookingEvent) error {
	guest, err := n.user(ctx, ev.GuestID)
	if err != nil {
		return err
	}
	title, err := n.listingTitle(ctx, ev.ListingID)
	if err != nil {
		return err
	}

	return n.send(ctx, guest.Email, bookingStatusEmail, map[string]any{
		"Name":     guest.FullName,
		"Listing":  title,
		"Status":   strings.ReplaceAll(ev.Status, "_", " "),
		"CheckIn":  ev.CheckIn,
		"CheckOut": ev.CheckOut,
	})
}

func (n *Notifier) reviewCreated(ctx context.Context, ev *model.ReviewEvent) error {
	host, err := n.user(ctx, ev.HostID)
	if err != nil {
		return err
	}
	guest, err := n.user(ctx, ev.GuestID)
	if err != nil {
		return err
	}
	title, err := n.listingTitle(ctx, ev.ListingID)
	if err != nil {
		return err
	}

	return n.send(ctx, host.Email, reviewEmail, map[string]any{
		"Name":    host.FullName,
		"Other":   guest.FullName,
		"Listing": title,
		"Rating":  ev.Rating,
	})
}

// formatTaka renders minor units (poisha) as taka.
func formatTaka(poisha int64) string {
	return fmt.Sprintf("%d.%02d", poisha/100, poisha%100)
}
