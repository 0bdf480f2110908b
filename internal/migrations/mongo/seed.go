package mongo

import (
	"context"
	"errors"
	"fmt"
	"otithi/internal/auth"
	userserrors "otithi/internal/users/errors"
	"otithi/pkg/logger"
	"otithi/pkg/model"
	"strings"
	"time"
)

const minAdminPasswordLength = 8

type AdminStore interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	SetRole(ctx context.Context, id, role string) error
	SetVerified(ctx context.Context, id string, verified bool) error
}

type AdminSeed struct {
	Email    string
	Password string
	Name     string
}

// SeedAdmin makes sure an admin account exists for seed.Email. An existing
// account is promoted and verified; its password is left alone.
func SeedAdmin(ctx context.Context, store AdminStore, seed AdminSeed, log *logger.Logger) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(seed.Email))
	if email == "" {
		return nil, errors.New("admin email is required")
	}

	existing, err := store.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if existing.Role != model.RoleAdmin {
			if err := store.SetRole(ctx, existing.ID, model.RoleAdmin); err != nil {
				return nil, fmt.Errorf("failed to promote %s: %w", email, err)
			}
			existing.Role = model.RoleAdmin
		}
		if !existing.Verified {
			if err := store.SetVerified(ctx, existing.ID, true); err != nil {
				return nil, fmt.Errorf("failed to verify %s: %w", email, err)
			}
			existing.Verified = true
		}
		log.Info("Admin account already exists", "user_id", existing.ID, "email", email)
		return existing, nil

	case !errors.Is(err, userserrors.ErrNotFound):
		return nil, fmt.Errorf("failed to look up %s: %w", email, err)
	}

	if len(seed.Password) < minAdminPasswordLength {
		return nil, fmt.Errorf("admin password must be at least %d characters", minAdminPasswordLength)
	}
	hash, err := auth.HashPassword(seed.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &model.User{
		FullName:     strings.TrimSpace(seed.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		Verified:     true,
		JoinedAt:     now,
		UpdatedAt:    now,
	}
	if err := store.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create admin %s: %w", email, err)
	}

	log.Info("Admin account created", "user_id", user.ID, "email", email)
	return user, nil
}
