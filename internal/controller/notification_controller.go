package controller

import (
	"edumate_backend/internal/service"

	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	Hub *service.NotificationHub
}

func NewNotificationController(hub *service.NotificationHub) *NotificationController {
	return &NotificationController{Hub: hub}
}

// Connect godoc
// @Summary 实时通知连接
// @Description 建立 WebSocket 连接接收积分、等级、徽章等通知，token 可通过 query 传递
// @Tags 通知
// @Security ApiKeyAuth
// @Param token query string false "JWT"
// @Router /api/ws/notifications [get]
func (c *NotificationController) Connect(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	service.ServeWs(c.Hub, ctx.Writer, ctx.Request, claims.UserID)
}
