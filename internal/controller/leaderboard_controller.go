package controller

import (
	"edumate_backend/internal/service"
	"edumate_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LeaderboardController struct {
	LeaderboardService *service.LeaderboardService
}

func NewLeaderboardController(leaderboardService *service.LeaderboardService) *LeaderboardController {
	return &LeaderboardController{LeaderboardService: leaderboardService}
}

// GetLeaderboard godoc
// @Summary 积分排行榜
// @Tags 排行榜
// @Produce json
// @Security ApiKeyAuth
// @Param limit query int false "数量"
// @Success 200 {object} util.Response{data=[]repository.RankedEntry}
// @Router /api/leaderboard [get]
func (c *LeaderboardController) GetLeaderboard(ctx *gin.Context) {
	limit := util.ParseLimit(ctx.Query("limit"), c.LeaderboardService.DefaultLimit, 100)
	entries, err := c.LeaderboardService.GetLeaderboard(ctx.Request.Context(), limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, entries)
}

// GetMyRank godoc
// @Summary 我的排名
// @Description 尚未获得积分时 data 为空
// @Tags 排行榜
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=repository.RankedEntry}
// @Router /api/leaderboard/me [get]
func (c *LeaderboardController) GetMyRank(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	entry, err := c.LeaderboardService.GetUserRank(ctx.Request.Context(), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, entry)
}

// RecomputeRanks godoc
// @Summary 重新计算排名
// @Tags 排行榜管理
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object}
// @Router /api/admin/leaderboard/recompute [post]
func (c *LeaderboardController) RecomputeRanks(ctx *gin.Context) {
	updated, err := c.LeaderboardService.RecomputeRanks(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"updated": updated})
}
