package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", time.Hour)
	id := uuid.New()

	token, err := m.CreateToken(id, "admin")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, id.String(), claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestJWTRejectsForeignSignatureAndExpiry(t *testing.T) {
	token, err := NewJWTManager("one", time.Hour).CreateToken(uuid.New(), "user")
	require.NoError(t, err)

	_, err = NewJWTManager("two", time.Hour).ValidateToken(token)
	assert.Error(t, err)

	expired, err := NewJWTManager("one", -time.Minute).CreateToken(uuid.New(), "user")
	require.NoError(t, err)
	_, err = NewJWTManager("one", time.Hour).ValidateToken(expired)
	assert.Error(t, err)
}
