package auth

import (
	"testing"

	"github.com/me/folio/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	admin := &model.Admin{ID: "adm_1", Email: "owner@example.com", PasswordHash: hash}
	assert.NoError(t, VerifyPassword(admin, "correct horse"))
	assert.ErrorIs(t, VerifyPassword(admin, "wrong horse"), ErrInvalidCredentials)
	assert.ErrorIs(t, VerifyPassword(nil, "correct horse"), ErrInvalidCredentials)
}

func TestHashPassword_TooShort(t *testing.T) {
	_, err := HashPassword("short")
	assert.Error(t, err)
}
