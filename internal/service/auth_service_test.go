package service

import (
	"context"
	"edumate_backend/internal/config"
	"edumate_backend/internal/model"
	"edumate_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour}}
	auth := NewAuthService(env.users, env.activity, cfg)

	user, err := auth.Register(ctx, RegisterRequest{Name: "Alice", Email: " Alice@Example.com ", Password: "secret1", Role: model.Admin})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	// 自助注册不能获得管理员角色
	assert.Equal(t, model.Student, user.Role)
	assert.NotEqual(t, "secret1", user.Password)

	_, err = auth.Register(ctx, RegisterRequest{Name: "Again", Email: "alice@example.com", Password: "secret2"})
	assert.ErrorIs(t, err, util.ErrEmailRegistered)

	inst, err := auth.Register(ctx, RegisterRequest{Name: "Tom", Email: "tom@example.com", Password: "secret1", Role: model.Instructor})
	require.NoError(t, err)
	assert.Equal(t, model.Instructor, inst.Role)

	resp, err := auth.Login(ctx, LoginRequest{Email: "ALICE@example.com", Password: "secret1"})
	require.NoError(t, err)
	claims, err := util.ParseJWT(resp.Token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	_, err = auth.Login(ctx, LoginRequest{Email: "alice@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)
	_, err = auth.Login(ctx, LoginRequest{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, util.ErrInvalidCredentials)

	profile, err := auth.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", profile.Name)
	_, err = auth.GetProfile(ctx, 9999)
	assert.ErrorIs(t, err, util.ErrUserNotFound)
}
