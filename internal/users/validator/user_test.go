package validator

import (
	"otithi/pkg/logger"
	"otithi/pkg/model"
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestValidateRegister(t *testing.T) {
	v := NewUserValidator(logger.Discard())

	tests := []struct {
		name    string
		req     model.RegisterRequest
		wantErr bool
	}{
		{"valid guest", model.RegisterRequest{FullName: "Rahim Uddin", Email: "rahim@example.com", Password: "longenough"}, false},
		{"valid host", model.RegisterRequest{FullName: "Karim", Email: "k@example.com", Password: "longenough", Role: "host"}, false},
		{"admin not allowed", model.RegisterRequest{FullName: "Eve", Email: "e@example.com", Password: "longenough", Role: "admin"}, true},
		{"short password", model.RegisterRequest{FullName: "Rahim", Email: "r@example.com", Password: "short"}, true},
		{"bad email", model.RegisterRequest{FullName: "Rahim", Email: "not-an-email", Password: "longenough"}, true},
		{"missing name", model.RegisterRequest{Email: "r@example.com", Password: "longenough"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateRegister(&tt.req)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidatePasswordChange(t *testing.T) {
	v := NewUserValidator(logger.Discard())

	assert.NoError(t, v.ValidatePasswordChange(&model.PasswordChange{CurrentPassword: "oldpassword", NewPassword: "newpassword"}))
	assert.Error(t, v.ValidatePasswordChange(&model.PasswordChange{CurrentPassword: "samepassword", NewPassword: "samepassword"}))
}

func TestValidateProfileUpdate(t *testing.T) {
	v := NewUserValidator(logger.Discard())

	assert.NoError(t, v.ValidateProfileUpdate(&model.ProfileUpdate{FullName: strPtr("New Name")}))
	assert.Error(t, v.ValidateProfileUpdate(&model.ProfileUpdate{ProfilePhoto: strPtr("not a url")}))
}

func TestValidateVerifyEmailAndRole(t *testing.T) {
	v := NewUserValidator(logger.Discard())

	assert.NoError(t, v.ValidateVerifyEmail(&model.VerifyEmailRequest{Code: "123456"}))
	assert.Error(t, v.ValidateVerifyEmail(&model.VerifyEmailRequest{Code: "12a456"}))
	assert.Error(t, v.ValidateVerifyEmail(&model.VerifyEmailRequest{Code: "1234"}))

	assert.NoError(t, v.ValidateRole("admin"))
	assert.Error(t, v.ValidateRole("superuser"))
}
