package validator

import (
	"otithi/pkg/logger"
	"otithi/pkg/model"
	"otithi/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type ReviewValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewReviewValidator(log *logger.Logger) *ReviewValidator {
	v := validation.New(log)
	log.Info("Review validator initialized successfully")

	return &ReviewValidator{
		validate: v,
		logger:   log,
	}
}

func (v *ReviewValidator) Validate(req *model.CreateReviewRequest) error {
	return validation.Struct(v.validate, req)
}
