package util

import (
	"edumate_backend/internal/model"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	user := &model.User{Email: "alice@example.com", Role: model.Instructor}
	user.ID = 42

	token, err := GenerateJWT(user, "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, model.Instructor, claims.Role)
	assert.Equal(t, "alice@example.com", claims.Email)

	_, err = ParseJWT(token, "other")
	assert.Error(t, err)

	expired, err := GenerateJWT(user, "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWT(expired, "secret")
	assert.Error(t, err)
}

func TestGetUserFromContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetUserFromContext(c))

	c.Set("user", "not claims")
	assert.Nil(t, GetUserFromContext(c))

	c.Set("user", &Claims{UserID: 7})
	claims := GetUserFromContext(c)
	require.NotNil(t, claims)
	assert.Equal(t, uint(7), claims.UserID)
}

func TestHasAllowedExtension(t *testing.T) {
	assert.True(t, HasAllowedExtension("Badge.PNG", AllowedImageExtensions))
	assert.True(t, HasAllowedExtension("icon.svg", AllowedImageExtensions))
	assert.False(t, HasAllowedExtension("notes.txt", AllowedImageExtensions))
	assert.False(t, HasAllowedExtension("noext", AllowedImageExtensions))
}
