package controller

import (
	"edumate_backend/internal/util"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{util.ErrQuizNotFound, http.StatusNotFound},
		{util.ErrPermissionDenied, http.StatusForbidden},
		{util.ErrNotEnrolled, http.StatusForbidden},
		{util.ErrActiveAttemptExists, http.StatusConflict},
		{util.ErrAlreadyCompleted, http.StatusConflict},
		{util.ErrAttemptExpired, http.StatusGone},
		{util.ErrInvalidAnswer, http.StatusBadRequest},
		{fmt.Errorf("%w: passing score", util.ErrInvalidQuestion), http.StatusBadRequest},
		{pkgerrors.Wrap(util.ErrChallengeNotAccepted, "update progress"), http.StatusBadRequest},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	respondError(c, util.ErrAttemptExpired)
	assert.Equal(t, http.StatusGone, w.Code)

	var body util.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, util.ErrAttemptExpired.Error(), body.Message)

	// 内部错误不向外暴露细节
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	respondError(c, errors.New("dial tcp 10.0.0.1:3306: timeout"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.1")
}

func TestPathID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		value  string
		want   uint
		wantOK bool
	}{
		{"12", 12, true},
		{"0", 0, false},
		{"-3", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: tt.value}}
		id, ok := pathID(c, "id")
		assert.Equal(t, tt.wantOK, ok, tt.value)
		assert.Equal(t, tt.want, id)
		if !ok {
			assert.Equal(t, http.StatusBadRequest, w.Code)
		}
	}
}
