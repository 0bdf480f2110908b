package service

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"otithi/internal/auth"
	"otithi/internal/events"
	"otithi/internal/listings/storage"
	userserrors "otithi/internal/users/errors"
	"otithi/internal/users/repository"
	"otithi/internal/users/validator"
	"otithi/pkg/config"
	apperrors "otithi/pkg/errors"
	"otithi/pkg/model"
	"otithi/pkg/sanitizer"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	invalidCredentials = "Invalid email or password"
	sniffLen           = 512
)

var nidExtensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"application/pdf": ".pdf",
}

type UserService interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResult, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResult, error)
	Logout(ctx context.Context, p *auth.Principal) error
	Me(ctx context.Context, p *auth.Principal) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.PublicProfile, error)
	UpdateProfile(ctx context.Context, p *auth.Principal, update *model.ProfileUpdate) (*model.User, error)
	ChangePassword(ctx context.Context, p *auth.Principal, req *model.PasswordChange) error
	VerifyEmail(ctx context.Context, p *auth.Principal, req *model.VerifyEmailRequest) (*model.AuthResult, error)
	ResendVerification(ctx context.Context, p *auth.Principal) error
	SubmitNID(ctx context.Context, p *auth.Principal, size int64, body io.Reader) (*model.User, error)
}

type userService struct {
	repo          repository.UserRepository
	verifications repository.VerificationRepository
	documents     storage.ImageStore
	validator     *validator.UserValidator
	auth          *auth.Authenticator
	publisher     events.Publisher
	cfg           *config.Config
	now           func() time.Time
}

func NewUserService(
	repo repository.UserRepository,
	verifications repository.VerificationRepository,
	documents storage.ImageStore,
	validator *validator.UserValidator,
	authenticator *auth.Authenticator,
	publisher events.Publisher,
	cfg *config.Config,
) UserService {
	return &userService{
		repo:          repo,
		verifications: verifications,
		documents:     documents,
		validator:     validator,
		auth:          authenticator,
		publisher:     publisher,
		cfg:           cfg,
		now:           time.Now,
	}
}

func (s *userService) Register(ctx context.Context, req *model.RegisterRequest) (*model.AuthResult, error) {
	req.Email = sanitizer.SanitizeEmail(req.Email)
	req.FullName = sanitizer.SanitizeName(req.FullName)
	if req.Role == "" {
		req.Role = model.RoleGuest
	}

	if err := s.validator.ValidateRegister(req); err != nil {
		s.cfg.Log.Warn("Registration validation failed",
			"email", req.Email,
			"error", err,
		)
		return nil, apperrors.Validation("Registration validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	var phone string
	if req.Phone != "" {
		phone = sanitizer.NormalizePhone(req.Phone)
		if phone == "" {
			return nil, apperrors.Validation("Registration validation failed", map[string]any{
				"error": "phone: must be a valid phone number",
			})
		}
	}

	if _, err := s.repo.FindByEmail(ctx, req.Email); err == nil {
		return nil, apperrors.Conflict("An account with this email already exists")
	} else if !errors.Is(err, userserrors.ErrNotFound) {
		s.cfg.Log.Error("Failed to check email uniqueness", "email", req.Email, "error", err)
		return nil, apperrors.Internal("Failed to register user", err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, apperrors.Internal("Failed to register user", err)
	}

	user := &model.User{
		FullName:     req.FullName,
		Email:        req.Email,
		PasswordHash: hash,
		Phone:        phone,
		Role:         req.Role,
		Verified:     false,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, userserrors.ErrEmailTaken) {
			return nil, apperrors.Conflict("An account with this email already exists")
		}
		s.cfg.Log.Error("Failed to create user", "email", user.Email, "error", err)
		return nil, apperrors.Internal("Failed to register user", err)
	}

	if err := s.issueVerification(ctx, user); err != nil {
		s.cfg.Log.Error("Failed to issue verification code",
			"user_id", user.ID,
			"error", err,
		)
	}

	result, err := s.auth.StartSession(ctx, user)
	if err != nil {
		s.cfg.Log.Error("Failed to start session", "user_id", user.ID, "error", err)
		return nil, apperrors.Internal("Failed to start session", err)
	}

	s.cfg.Log.Info("User registered successfully",
		"user_id", user.ID,
		"role", user.Role,
	)
	return result, nil
}

func (s *userService) Login(ctx context.Context, req *model.LoginRequest) (*model.AuthResult, error) {
	req.Email = sanitizer.SanitizeEmail(req.Email)
	if err := s.validator.ValidateLogin(req); err != nil {
		return nil, apperrors.Validation("Login validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	user, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			s.cfg.Log.Warn("Login failed", "reason", "unknown email")
			return nil, apperrors.Unauthorized(invalidCredentials)
		}
		s.cfg.Log.Error("Failed to load user for login", "error", err)
		return nil, apperrors.Internal("Failed to log in", err)
	}

	ok, err := auth.CheckPassword(user.PasswordHash, req.Password)
	if err != nil {
		s.cfg.Log.Error("Failed to check password", "user_id", user.ID, "error", err)
		return nil, apperrors.Internal("Failed to log in", err)
	}
	if !ok {
		s.cfg.Log.Warn("Login failed", "reason", "wrong password", "user_id", user.ID)
		return nil, apperrors.Unauthorized(invalidCredentials)
	}

	result, err := s.auth.StartSession(ctx, user)
	if err != nil {
		s.cfg.Log.Error("Failed to start session", "user_id", user.ID, "error", err)
		return nil, apperrors.Internal("Failed to start session", err)
	}

	s.cfg.Log.Info("User logged in", "user_id", user.ID)
	return result, nil
}

func (s *userService) Logout(ctx context.Context, p *auth.Principal) error {
	if err := s.auth.Sessions().Delete(ctx, p.SessionID); err != nil {
		s.cfg.Log.Error("Failed to delete session", "user_id", p.UserID, "error", err)
		return apperrors.Internal("Failed to log out", err)
	}
	return nil
}

func (s *userService) load(ctx context.Context, id string) (*model.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("User", id)
		}
		if errors.Is(err, userserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid user ID format")
		}
		s.cfg.Log.Error("Failed to get user by ID", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve user", err)
	}
	return user, nil
}

func (s *userService) Me(ctx context.Context, p *auth.Principal) (*model.User, error) {
	return s.load(ctx, p.UserID)
}

func (s *userService) GetByID(ctx context.Context, id string) (*model.PublicProfile, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}
	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	profile := user.Public()
	return &profile, nil
}

func (s *userService) UpdateProfile(ctx context.Context, p *auth.Principal, update *model.ProfileUpdate) (*model.User, error) {
	if err := s.validator.ValidateProfileUpdate(update); err != nil {
		return nil, apperrors.Validation("Profile validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	user, err := s.load(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	if update.FullName != nil {
		user.FullName = sanitizer.SanitizeName(*update.FullName)
	}
	if update.Bio != nil {
		user.Bio = sanitizer.SanitizeText(*update.Bio, 1000)
	}
	if update.ProfilePhoto != nil {
		user.ProfilePhoto = sanitizer.SanitizeURL(*update.ProfilePhoto)
	}
	if update.Phone != nil {
		user.Phone = ""
		if *update.Phone != "" {
			user.Phone = sanitizer.NormalizePhone(*update.Phone)
			if user.Phone == "" {
				return nil, apperrors.Validation("Profile validation failed", map[string]any{
					"error": "phone: must be a valid phone number",
				})
			}
		}
	}

	if err := s.validator.Validate(user); err != nil {
		s.cfg.Log.Warn("Profile validation failed", "user_id", user.ID, "error", err)
		return nil, apperrors.Validation("Profile validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		s.cfg.Log.Error("Failed to update profile", "user_id", user.ID, "error", err)
		return nil, apperrors.Internal("Failed to update profile", err)
	}
	return user, nil
}

func (s *userService) ChangePassword(ctx context.Context, p *auth.Principal, req *model.PasswordChange) error {
	if err := s.validator.ValidatePasswordChange(req); err != nil {
		return apperrors.Validation("Password validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	user, err := s.load(ctx, p.UserID)
	if err != nil {
		return err
	}

	ok, err := auth.CheckPassword(user.PasswordHash, req.CurrentPassword)
	if err != nil {
		return apperrors.Internal("Failed to change password", err)
	}
	if !ok {
		s.cfg.Log.Warn("Password change rejected", "user_id", user.ID, "reason", "wrong current password")
		return apperrors.Validation("Current password is incorrect", nil)
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return apperrors.Internal("Failed to change password", err)
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		s.cfg.Log.Error("Failed to update password", "user_id", user.ID, "error", err)
		return apperrors.Internal("Failed to change password", err)
	}

	// Revoke every session, then restore the caller's.
	sessions := s.auth.Sessions()
	if err := sessions.DeleteAllForUser(ctx, user.ID); err != nil {
		s.cfg.Log.Error("Failed to revoke sessions", "user_id", user.ID, "error", err)
	}
	if err := sessions.Create(ctx, p.SessionID, user.ID, s.auth.Tokens().TTL()); err != nil {
		s.cfg.Log.Error("Failed to restore current session", "user_id", user.ID, "error", err)
	}

	s.cfg.Log.Info("Password changed", "user_id", user.ID)
	return nil
}

func (s *userService) VerifyEmail(ctx context.Context, p *auth.Principal, req *model.VerifyEmailRequest) (*model.AuthResult, error) {
	if err := s.validator.ValidateVerifyEmail(req); err != nil {
		return nil, apperrors.Validation("Invalid or expired code", map[string]any{
			"error": err.Error(),
		})
	}

	user, err := s.load(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if user.Verified {
		return nil, apperrors.Conflict("Email is already verified")
	}

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		v, err := s.verifications.FindUnused(sessCtx, user.ID, req.Code)
		if err != nil {
			if errors.Is(err, userserrors.ErrVerificationNotFound) {
				return apperrors.Validation("Invalid or expired code", nil)
			}
			return err
		}
		if !v.Valid(s.now()) {
			return apperrors.Validation("Invalid or expired code", nil)
		}

		if err := s.verifications.MarkUsed(sessCtx, v.ID); err != nil {
			if errors.Is(err, userserrors.ErrVerificationNotFound) {
				return apperrors.Validation("Invalid or expired code", nil)
			}
			return err
		}
		return s.repo.SetVerified(sessCtx, user.ID, true)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			s.cfg.Log.Warn("Email verification rejected", "user_id", user.ID, "error", err)
			return nil, err
		}
		s.cfg.Log.Error("Failed to verify email", "user_id", user.ID, "error", err)
		return nil, apperrors.Internal("Failed to verify email", err)
	}

	// The token carries the verified flag, so rotate the session.
	user.Verified = true
	if err := s.auth.Sessions().Delete(ctx, p.SessionID); err != nil {
		s.cfg.Log.Error("Failed to delete old session", "user_id", user.ID, "error", err)
	}
	result, err := s.auth.StartSession(ctx, user)
	if err != nil {
		return nil, apperrors.Internal("Failed to start session", err)
	}

	s.cfg.Log.Info("Email verified", "user_id", user.ID)
	return result, nil
}

func (s *userService) ResendVerification(ctx context.Context, p *auth.Principal) error {
	user, err := s.load(ctx, p.UserID)
	if err != nil {
		return err
	}
	if user.Verified {
		return apperrors.Conflict("Email is already verified")
	}

	latest, err := s.verifications.FindLatest(ctx, user.ID)
	switch {
	case err == nil:
		if wait := latest.CreatedAt.Add(s.cfg.VerificationResendCooldown).Sub(s.now()); wait > 0 {
			retry := int(math.Ceil(wait.Seconds()))
			return apperrors.TooManyRequests(fmt.Sprintf("Please wait %d seconds before requesting another code", retry)).
				WithDetails(map[string]any{"retry_after_seconds": retry})
		}
	case !errors.Is(err, userserrors.ErrVerificationNotFound):
		s.cfg.Log.Error("Failed to look up verification code", "user_id", user.ID, "error", err)
		return apperrors.Internal("Failed to send verification code", err)
	}

	if err := s.issueVerification(ctx, user); err != nil {
		s.cfg.Log.Error("Failed to issue verification code", "user_id", user.ID, "error", err)
		return apperrors.Internal("Failed to send verification code", err)
	}
	return nil
}

func (s *userService) issueVerification(ctx context.Context, user *model.User) error {
	code, err := GenerateCode()
	if err != nil {
		return err
	}

	v := &model.EmailVerification{
		UserID:    user.ID,
		Email:     user.Email,
		Code:      code,
		ExpiresAt: s.now().UTC().Add(s.cfg.VerificationCodeTTL),
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.verifications.Create(ctx, v); err != nil {
		return err
	}

	events.Emit(ctx, s.publisher, s.cfg.Log, model.EventVerificationRequested, user.ID, model.VerificationEvent{
		UserID:    user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		Code:      code,
		ExpiresAt: v.ExpiresAt,
	})
	return nil
}

// SubmitNID stores a host's national-ID document and queues it for admin
// review. A new upload replaces a pending or rejected one.
func (s *userService) SubmitNID(ctx context.Context, p *auth.Principal, size int64, body io.Reader) (*model.User, error) {
	if size > int64(s.cfg.MaxUploadSize) {
		return nil, apperrors.New(apperrors.CodeInvalidInput,
			fmt.Sprintf("Document exceeds the %d byte limit", s.cfg.MaxUploadSize), http.StatusRequestEntityTooLarge)
	}

	user, err := s.load(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsHost() {
		return nil, apperrors.Forbidden("Only hosts submit identity documents")
	}
	if user.NID != nil && user.NID.Status == model.NIDApproved {
		return nil, apperrors.Conflict("Identity document is already approved")
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, apperrors.InvalidInput("Failed to read upload")
	}
	head = head[:n]
	if n == 0 {
		return nil, apperrors.InvalidInput("Document file is empty")
	}

	contentType := http.DetectContentType(head)
	ext, ok := nidExtensions[contentType]
	if !ok {
		return nil, apperrors.Validation("Unsupported document type", map[string]any{
			"content_type": contentType,
			"allowed":      []string{"image/jpeg", "image/png", "application/pdf"},
		})
	}

	key := fmt.Sprintf("nid/%s/%s%s", user.ID, uuid.NewString(), ext)
	url, err := s.documents.Save(ctx, key, contentType, io.MultiReader(bytes.NewReader(head), body))
	if err != nil {
		s.cfg.Log.Error("Failed to store NID document", "user_id", user.ID, "error", err)
		return nil, apperrors.Internal("Failed to upload document", err)
	}

	nid := &model.NIDVerification{
		Status:      model.NIDPending,
		DocumentURL: url,
		SubmittedAt: s.now().UTC().Truncate(time.Millisecond),
	}
	if err := s.repo.SetNID(ctx, user.ID, nid); err != nil {
		if delErr := s.documents.Delete(ctx, url); delErr != nil {
			s.cfg.Log.Warn("Failed to remove orphaned document", "url", url, "error", delErr)
		}
		s.cfg.Log.Error("Failed to record NID submission", "user_id", user.ID, "error", err)
		return nil, apperrors.Internal("Failed to upload document", err)
	}

	if prev := user.NID; prev != nil && prev.DocumentURL != "" {
		if err := s.documents.Delete(ctx, prev.DocumentURL); err != nil {
			s.cfg.Log.Warn("Failed to remove replaced document", "user_id", user.ID, "error", err)
		}
	}

	user.NID = nid
	s.cfg.Log.Info("NID submitted for review", "user_id", user.ID, "content_type", contentType)
	return user, nil
}

// GenerateCode returns a uniformly random 6-digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
