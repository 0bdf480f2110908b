package validator

import (
	"otithi/pkg/logger"
	"otithi/pkg/model"
	"otithi/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type ListingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewListingValidator(log *logger.Logger) *ListingValidator {
	v := validation.New(log)
	log.Info("Listing validator initialized successfully")

	return &ListingValidator{
		validate: v,
		logger:   log,
	}
}

func (v *ListingValidator) Validate(listing *model.Listing) error {
	return validation.Struct(v.validate, listing)
}

func (v *ListingValidator) ValidateUpdate(update *model.ListingUpdate) error {
	return validation.Struct(v.validate, update)
}

// ValidateSearch checks the fields of a search that the query string can
// carry. Dates are checked by the service.
func (v *ListingValidator) ValidateSearch(search *model.ListingSearch) error {
	var errs validation.ValidationErrors
	if search.PropertyType != "" {
		if err := v.validate.Var(search.PropertyType, "property_type"); err != nil {
			errs = append(errs, validation.ValidationError{Field: "property_type", Message: "property_type is not a known type"})
		}
	}
	if search.Guests < 0 {
		errs = append(errs, validation.ValidationError{Field: "guests", Message: "guests cannot be negative"})
	}
	if search.MinPrice < 0 || search.MaxPrice < 0 {
		errs = append(errs, validation.ValidationError{Field: "price", Message: "prices cannot be negative"})
	}
	if search.MinPrice > 0 && search.MaxPrice > 0 && search.MinPrice > search.MaxPrice {
		errs = append(errs, validation.ValidationError{Field: "min_price", Message: "min_price cannot exceed max_price"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
