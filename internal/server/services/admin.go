package services

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/parceltrack/internal/common"
	"github.com/dmitrijs2005/parceltrack/internal/server/models"
)

// CreateSuperAdmin creates a verified SUPER_ADMIN account. No email is sent.
func (s *AccountService) CreateSuperAdmin(ctx context.Context, email, password string) (*models.User, error) {
	id := common.NormalizeIdentifier(email)
	if !common.IsEmailIdentifier(id) {
		return nil, common.ErrInvalidEmail
	}
	if strings.TrimSpace(password) == "" {
		return nil, common.NewError(common.ErrorValidation, "password is required")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, expose(ctx, s.logger, "hash password", err)
	}

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Identifier:   id,
		PasswordHash: hash,
		Role:         common.RoleSuperAdmin,
		Verified:     true,
	})
	if errors.Is(err, common.ErrorAlreadyExists) {
		return nil, common.ErrUserExists
	}
	if err != nil {
		return nil, expose(ctx, s.logger, "create super admin", err)
	}

	s.logger.Info(ctx, "super admin created", "identifier", id)
	return user, nil
}
