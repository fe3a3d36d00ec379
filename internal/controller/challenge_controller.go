package controller

import (
	"edumate_backend/internal/service"
	"edumate_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ChallengeController struct {
	ChallengeService *service.ChallengeService
}

func NewChallengeController(challengeService *service.ChallengeService) *ChallengeController {
	return &ChallengeController{ChallengeService: challengeService}
}

// ListActive godoc
// @Summary 进行中的挑战
// @Tags 挑战
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Challenge}
// @Router /api/challenges [get]
func (c *ChallengeController) ListActive(ctx *gin.Context) {
	list, err := c.ChallengeService.ListActive(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// MyChallenges godoc
// @Summary 我的挑战
// @Tags 挑战
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.UserChallenge}
// @Router /api/challenges/mine [get]
func (c *ChallengeController) MyChallenges(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	list, err := c.ChallengeService.ListUserChallenges(ctx.Request.Context(), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// Accept godoc
// @Summary 接受挑战
// @Description 重复接受返回已有记录
// @Tags 挑战
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "挑战ID"
// @Success 200 {object} util.Response{data=model.UserChallenge}
// @Failure 410 {object} util.Response "挑战已结束"
// @Router /api/challenges/{id}/accept [post]
func (c *ChallengeController) Accept(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	challengeID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	uc, err := c.ChallengeService.Accept(ctx.Request.Context(), claims.UserID, challengeID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, uc)
}

type ProgressRequest struct {
	Progress int `json:"progress" binding:"min=0,max=100"`
}

// UpdateProgress godoc
// @Summary 记录学员挑战进度
// @Description 进度只增不减，达到 100 时发放奖励；不能为自己记录
// @Tags 挑战管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "挑战ID"
// @Param userId path int true "学员ID"
// @Param body body ProgressRequest true "进度"
// @Success 200 {object} util.Response{data=model.UserChallenge}
// @Failure 403 {object} util.Response "无权记录"
// @Router /api/manage/challenges/{id}/users/{userId}/progress [put]
func (c *ChallengeController) UpdateProgress(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	challengeID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	userID, ok := pathID(ctx, "userId")
	if !ok {
		return
	}
	var req ProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	actor := service.Actor{UserID: claims.UserID, Role: claims.Role}
	uc, err := c.ChallengeService.UpdateProgress(ctx.Request.Context(), actor, userID, challengeID, req.Progress)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, uc)
}

// CreateChallenge godoc
// @Summary 创建挑战
// @Tags 挑战管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.ChallengeRequest true "挑战"
// @Success 201 {object} util.Response{data=model.Challenge}
// @Router /api/admin/challenges [post]
func (c *ChallengeController) CreateChallenge(ctx *gin.Context) {
	var req service.ChallengeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	challenge, err := c.ChallengeService.CreateChallenge(ctx.Request.Context(), req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, challenge)
}
