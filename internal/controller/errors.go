package controller

import (
	"edumate_backend/internal/util"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{util.ErrUserNotFound, http.StatusNotFound},
	{util.ErrCourseNotFound, http.StatusNotFound},
	{util.ErrModuleNotFound, http.StatusNotFound},
	{util.ErrLessonNotFound, http.StatusNotFound},
	{util.ErrQuizNotFound, http.StatusNotFound},
	{util.ErrAttemptNotFound, http.StatusNotFound},
	{util.ErrBadgeNotFound, http.StatusNotFound},
	{util.ErrAchievementNotFound, http.StatusNotFound},
	{util.ErrChallengeNotFound, http.StatusNotFound},

	{util.ErrInvalidCredentials, http.StatusUnauthorized},

	{util.ErrPermissionDenied, http.StatusForbidden},
	{util.ErrNotEnrolled, http.StatusForbidden},

	{util.ErrEmailRegistered, http.StatusConflict},
	{util.ErrAlreadyEnrolled, http.StatusConflict},
	{util.ErrActiveAttemptExists, http.StatusConflict},
	{util.ErrAlreadyCompleted, http.StatusConflict},
	{util.ErrQuizHasOpenAttempts, http.StatusConflict},

	{util.ErrAttemptExpired, http.StatusGone},
	{util.ErrChallengeInactive, http.StatusGone},

	{util.ErrInvalidInput, http.StatusBadRequest},
	{util.ErrInvalidQuestion, http.StatusBadRequest},
	{util.ErrInvalidQuestionReference, http.StatusBadRequest},
	{util.ErrInvalidAnswer, http.StatusBadRequest},
	{util.ErrInvalidTransaction, http.StatusBadRequest},
	{util.ErrChallengeNotAccepted, http.StatusBadRequest},
}

// StatusFor 业务错误对应的 HTTP 状态码，未知错误返回 500
func StatusFor(err error) int {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// respondError 业务错误原样返回信息，其余记录日志后返回 500
func respondError(ctx *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		util.LogInternalError(ctx, err)
		return
	}
	util.Error(ctx, status, err.Error())
}

// pathID 解析路径中的 ID，非法时直接返回 400
func pathID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil || id == 0 {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func currentActor(ctx *gin.Context) (*util.Claims, bool) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return nil, false
	}
	return claims, true
}
