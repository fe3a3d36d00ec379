package controller

import (
	"edumate_backend/internal/model"
	"edumate_backend/internal/service"
	"edumate_backend/internal/util"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type ReportController struct {
	ReportService *service.ReportService
}

func NewReportController(reportService *service.ReportService) *ReportController {
	return &ReportController{ReportService: reportService}
}

// UserSummary godoc
// @Summary 用户学习报告
// @Description 本人或管理员可查看
// @Tags 报表
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Success 200 {object} util.Response{data=service.UserSummary}
// @Router /api/reports/users/{id} [get]
func (c *ReportController) UserSummary(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	userID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if claims.UserID != userID && claims.Role != model.Admin {
		util.Forbidden(ctx)
		return
	}

	summary, err := c.ReportService.UserSummary(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, summary)
}

// WeakAreas godoc
// @Summary 薄弱模块
// @Description 平均分低于 70% 的模块，从低到高。本人或管理员可查看
// @Tags 报表
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "用户ID"
// @Success 200 {object} util.Response{data=[]repository.WeakArea}
// @Router /api/reports/users/{id}/weak-areas [get]
func (c *ReportController) WeakAreas(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	userID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	if claims.UserID != userID && claims.Role != model.Admin {
		util.Forbidden(ctx)
		return
	}

	list, err := c.ReportService.WeakAreas(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// CourseCompletion godoc
// @Summary 课程完成率
// @Tags 报表
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=repository.CourseEngagement}
// @Router /api/reports/courses/{id}/completion [get]
func (c *ReportController) CourseCompletion(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	actor := service.Actor{UserID: claims.UserID, Role: claims.Role}
	stats, err := c.ReportService.CourseCompletionRate(ctx.Request.Context(), actor, courseID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// CourseEngagement godoc
// @Summary 课程活跃度
// @Description 最近 7 天活跃学生占比与完成率，讲师只看到自己的课程
// @Tags 报表
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]repository.CourseEngagement}
// @Router /api/reports/engagement [get]
func (c *ReportController) CourseEngagement(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	actor := service.Actor{UserID: claims.UserID, Role: claims.Role}
	list, err := c.ReportService.CourseEngagement(ctx.Request.Context(), actor)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// QuizStats godoc
// @Summary 测验统计
// @Tags 报表
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {object} util.Response{data=repository.QuizStats}
// @Router /api/reports/quizzes/{id} [get]
func (c *ReportController) QuizStats(ctx *gin.Context) {
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	stats, err := c.ReportService.QuizStats(ctx.Request.Context(), quizID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// ExportQuizAttempts godoc
// @Summary 导出测验作答
// @Tags 报表
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security ApiKeyAuth
// @Param id path int true "测验ID"
// @Success 200 {file} file
// @Router /api/reports/quizzes/{id}/export [get]
func (c *ReportController) ExportQuizAttempts(ctx *gin.Context) {
	quizID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	buf, filename, err := c.ReportService.ExportQuizAttempts(ctx.Request.Context(), quizID)
	if err != nil {
		respondError(ctx, err)
		return
	}

	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	ctx.Data(http.StatusOK, util.MimeXLSX, buf.Bytes())
}
