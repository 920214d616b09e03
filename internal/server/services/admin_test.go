package services

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/parceltrack/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSuperAdmin(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	user, err := f.svc.CreateSuperAdmin(ctx, "  Root@Example.com ", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, "root@example.com", user.Identifier)
	assert.Equal(t, common.RoleSuperAdmin, user.Role)
	assert.True(t, user.Verified)
	assert.Empty(t, f.notifier.codes, "no verification mail for seeded admins")

	res, err := f.svc.Login(ctx, "root@example.com", "Secret123")
	require.NoError(t, err)
	assert.True(t, res.IsVerified)
	assert.NotEmpty(t, res.Token)
}

func TestCreateSuperAdmin_Rejections(t *testing.T) {
	f := newAccountFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateSuperAdmin(ctx, "12345", "Secret123")
	assert.ErrorIs(t, err, common.ErrInvalidEmail)

	_, err = f.svc.CreateSuperAdmin(ctx, "root@example.com", " ")
	assert.ErrorIs(t, err, common.ErrorValidation)

	_, err = f.svc.CreateSuperAdmin(ctx, "root@example.com", "Secret123")
	require.NoError(t, err)
	_, err = f.svc.CreateSuperAdmin(ctx, "ROOT@example.com", "Other123")
	assert.ErrorIs(t, err, common.ErrUserExists)
}
