package validator

import (
	"otithi/pkg/logger"
	"otithi/pkg/model"
	"otithi/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type MessageValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewMessageValidator(log *logger.Logger) *MessageValidator {
	v := validation.New(log)
	log.Info("Message validator initialized successfully")

	return &MessageValidator{
		validate: v,
		logger:   log,
	}
}

func (v *MessageValidator) ValidateSend(req *model.SendMessageRequest) error {
	return validation.Struct(v.validate, req)
}
