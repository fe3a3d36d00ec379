package util

import (
	"edumate_backend/pkg/logger"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogInternalErrorCarriesRequestContext(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	t.Cleanup(func() { logger.Log = prev })

	router := gin.New()
	router.Use(func(c *gin.Context) {
		ctx := logger.WithRequestID(c.Request.Context(), "req-9")
		c.Request = c.Request.WithContext(logger.WithUserID(ctx, 12))
		c.Next()
	})
	router.POST("/api/attempts/:id/submit", func(c *gin.Context) {
		LogInternalError(c, errors.New("deadlock detected"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/attempts/5/submit", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Internal server error", body.Message)
	assert.NotContains(t, w.Body.String(), "deadlock")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-9", fields["requestId"])
	assert.EqualValues(t, 12, fields["actorId"])
	assert.Equal(t, "/api/attempts/:id/submit", fields["path"])
	assert.Equal(t, http.MethodPost, fields["method"])
	assert.Equal(t, "deadlock detected", fields["error"])
}
