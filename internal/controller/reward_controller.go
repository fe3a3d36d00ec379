package controller

import (
	"edumate_backend/internal/model"
	"edumate_backend/internal/service"
	"edumate_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type RewardController struct {
	RewardService   *service.RewardService
	ActivityService *service.ActivityService
}

func NewRewardController(rewardService *service.RewardService, activityService *service.ActivityService) *RewardController {
	return &RewardController{
		RewardService:   rewardService,
		ActivityService: activityService,
	}
}

// GetSummary godoc
// @Summary 奖励概览
// @Description 积分、等级、徽章、成就与连续学习天数
// @Tags 奖励
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=service.RewardSummary}
// @Router /api/rewards/summary [get]
func (c *RewardController) GetSummary(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	summary, err := c.RewardService.GetSummary(ctx.Request.Context(), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// GetPointsHistory godoc
// @Summary 积分流水
// @Tags 奖励
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=service.PointsHistory}
// @Router /api/rewards/points [get]
func (c *RewardController) GetPointsHistory(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	page := util.ParseLimit(ctx.Query("page"), 1, 10000)
	limit := util.ParseLimit(ctx.Query("limit"), 20, 100)

	history, err := c.RewardService.GetPointsHistory(ctx.Request.Context(), claims.UserID, page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, history)
}

// ListBadges godoc
// @Summary 全部徽章
// @Tags 奖励
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Badge}
// @Router /api/badges [get]
func (c *RewardController) ListBadges(ctx *gin.Context) {
	badges, err := c.RewardService.ListBadges(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, badges)
}

// MyBadges godoc
// @Summary 我的徽章
// @Tags 奖励
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.UserBadge}
// @Router /api/badges/mine [get]
func (c *RewardController) MyBadges(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	badges, err := c.RewardService.ListUserBadges(ctx.Request.Context(), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, badges)
}

// CheckBadges godoc
// @Summary 检查徽章资格
// @Description 立即评估所有未获得的徽章，返回本次新获得的徽章
// @Tags 奖励
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Badge}
// @Router /api/badges/check [post]
func (c *RewardController) CheckBadges(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	granted, err := c.RewardService.CheckBadgeEligibility(ctx.Request.Context(), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, granted)
}

// ListAchievements godoc
// @Summary 全部成就
// @Tags 奖励
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Achievement}
// @Router /api/achievements [get]
func (c *RewardController) ListAchievements(ctx *gin.Context) {
	list, err := c.RewardService.ListAchievements(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// MyAchievements godoc
// @Summary 我的成就
// @Tags 奖励
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.UserAchievement}
// @Router /api/achievements/mine [get]
func (c *RewardController) MyAchievements(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	list, err := c.RewardService.ListUserAchievements(ctx.Request.Context(), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// AchievementProgress godoc
// @Summary 成就进度
// @Description 已解锁为 100，其余按当前指标与阈值的比例计算
// @Tags 奖励
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]service.AchievementProgress}
// @Router /api/achievements/progress [get]
func (c *RewardController) AchievementProgress(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	list, err := c.RewardService.AchievementProgress(ctx.Request.Context(), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// GetStreak godoc
// @Summary 连续学习天数
// @Tags 奖励
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=model.Streak}
// @Router /api/streak [get]
func (c *RewardController) GetStreak(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	streak, err := c.RewardService.GetStreak(ctx.Request.Context(), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, streak)
}

// RecordActivity godoc
// @Summary 上报学习行为
// @Description 记录行为日志并更新连续天数与活跃类成就
// @Tags 奖励
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body service.LogActivityRequest true "行为"
// @Success 201 {object} util.Response{data=model.UserActivity}
// @Router /api/activities [post]
func (c *RewardController) RecordActivity(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	var req service.LogActivityRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	activity, err := c.ActivityService.Record(ctx.Request.Context(), claims.UserID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, activity)
}

// RecentActivities godoc
// @Summary 最近学习行为
// @Tags 奖励
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "数量"
// @Success 200 {object} util.Response{data=[]model.UserActivity}
// @Router /api/activities [get]
func (c *RewardController) RecentActivities(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	limit := util.ParseLimit(ctx.Query("limit"), 20, 100)
	list, err := c.ActivityService.Recent(ctx.Request.Context(), claims.UserID, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// AwardPointsRequest 管理员手动调整积分
type AwardPointsRequest struct {
	UserID      uint                  `json:"userId" binding:"required"`
	Points      int                   `json:"points" binding:"required"`
	Kind        model.TransactionKind `json:"kind" binding:"required,oneof=earned spent bonus penalty"`
	Description string                `json:"description"`
}

// AwardPoints godoc
// @Summary 调整用户积分
// @Description earned/bonus 必须为正，spent/penalty 必须为负
// @Tags 奖励管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param body body AwardPointsRequest true "积分调整"
// @Success 200 {object} util.Response{data=service.PointsResult}
// @Failure 400 {object} util.Response "积分符号与类型不符"
// @Router /api/admin/points [post]
func (c *RewardController) AwardPoints(ctx *gin.Context) {
	var req AwardPointsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.RewardService.AwardPoints(ctx.Request.Context(), req.UserID, req.Points, req.Kind, req.Description)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GrantBadgeRequest 管理员直接授予徽章
type GrantBadgeRequest struct {
	UserID uint `json:"userId" binding:"required"`
}

// GrantBadge godoc
// @Summary 授予徽章
// @Description 已拥有时不会重复发放奖励
// @Tags 奖励管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "徽章ID"
// @Param body body GrantBadgeRequest true "用户"
// @Success 200 {object} util.Response{data=object}
// @Router /api/admin/badges/{id}/grant [post]
func (c *RewardController) GrantBadge(ctx *gin.Context) {
	badgeID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req GrantBadgeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	granted, err := c.RewardService.GrantBadge(ctx.Request.Context(), req.UserID, badgeID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"granted": granted})
}
