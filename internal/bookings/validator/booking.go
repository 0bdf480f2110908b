package validator

import (
	"otithi/pkg/logger"
	"otithi/pkg/model"
	"otithi/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validation.New(log)
	log.Info("Booking validator initialized successfully")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

func (v *BookingValidator) ValidateCreate(req *model.CreateBookingRequest) error {
	return validation.Struct(v.validate, req)
}

func (v *BookingValidator) ValidateStatus(req *model.BookingStatusRequest) error {
	return validation.Struct(v.validate, req)
}

// ValidateFilter rejects unknown status filters. An empty status matches all.
func (v *BookingValidator) ValidateFilter(filter *model.BookingFilter) error {
	if filter.Status != "" && !model.IsBookingStatus(filter.Status) {
		return validation.Field("status", "status must be one of: pending confirmed checked_in checked_out cancelled")
	}
	if filter.ListingID != "" {
		if err := v.validate.Var(filter.ListingID, "mongodb"); err != nil {
			return validation.Field("listing_id", "listing_id must be a valid id")
		}
	}
	return nil
}
