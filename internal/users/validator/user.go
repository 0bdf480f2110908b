package validator

import (
	"otithi/pkg/logger"
	"otithi/pkg/model"
	"otithi/pkg/validation"

	"github.com/go-playground/validator/v10"
)

type UserValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewUserValidator(log *logger.Logger) *UserValidator {
	v := validation.New(log)
	log.Info("User validator initialized successfully")

	return &UserValidator{
		validate: v,
		logger:   log,
	}
}

func (v *UserValidator) Validate(user *model.User) error {
	return validation.Struct(v.validate, user)
}

func (v *UserValidator) ValidateRegister(req *model.RegisterRequest) error {
	return validation.Struct(v.validate, req)
}

func (v *UserValidator) ValidateLogin(req *model.LoginRequest) error {
	return validation.Struct(v.validate, req)
}

func (v *UserValidator) ValidateProfileUpdate(update *model.ProfileUpdate) error {
	return validation.Struct(v.validate, update)
}

func (v *UserValidator) ValidatePasswordChange(req *model.PasswordChange) error {
	return validation.Struct(v.validate, req)
}

func (v *UserValidator) ValidateVerifyEmail(req *model.VerifyEmailRequest) error {
	return validation.Struct(v.validate, req)
}

func (v *UserValidator) ValidateRole(role string) error {
	if err := v.validate.Var(role, "required,role"); err != nil {
		return validation.Field("role", "role must be one of: guest host admin")
	}
	return nil
}
