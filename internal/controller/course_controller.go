package controller

import (
	"edumate_backend/internal/model"
	"edumate_backend/internal/service"
	"edumate_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CourseController struct {
	CatalogService    *service.CatalogService
	EnrollmentService *service.EnrollmentService
}

func NewCourseController(catalogService *service.CatalogService, enrollmentService *service.EnrollmentService) *CourseController {
	return &CourseController{
		CatalogService:    catalogService,
		EnrollmentService: enrollmentService,
	}
}

// ListCourses godoc
// @Summary 课程列表
// @Description 学生只能看到已发布课程
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Course}
// @Router /api/courses [get]
func (c *CourseController) ListCourses(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	courses, err := c.CatalogService.ListCourses(ctx.Request.Context(), claims.Role == model.Student)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, courses)
}

// GetCourse godoc
// @Summary 课程详情
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 200 {object} util.Response{data=model.Course}
// @Failure 404 {object} util.Response "课程不存在"
// @Router /api/courses/{id} [get]
func (c *CourseController) GetCourse(ctx *gin.Context) {
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	course, err := c.CatalogService.GetCourse(ctx.Request.Context(), courseID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, course)
}

// Enroll godoc
// @Summary 选课
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课程ID"
// @Success 201 {object} util.Response{data=model.Enrollment}
// @Failure 409 {object} util.Response "已选过该课程"
// @Router /api/courses/{id}/enroll [post]
func (c *CourseController) Enroll(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	courseID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	enrollment, err := c.EnrollmentService.Enroll(ctx.Request.Context(), claims.UserID, courseID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, enrollment)
}

// MyEnrollments godoc
// @Summary 我的选课
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Enrollment}
// @Router /api/enrollments [get]
func (c *CourseController) MyEnrollments(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	list, err := c.EnrollmentService.ListEnrollments(ctx.Request.Context(), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// CompleteLesson godoc
// @Summary 完成课时
// @Description 重复完成同一课时不会重复计入进度
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "课时ID"
// @Success 200 {object} util.Response{data=model.ModuleProgress}
// @Failure 403 {object} util.Response "未选课"
// @Router /api/lessons/{id}/complete [post]
func (c *CourseController) CompleteLesson(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	lessonID, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	progress, err := c.EnrollmentService.CompleteLesson(ctx.Request.Context(), claims.UserID, lessonID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, progress)
}

// MyProgress godoc
// @Summary 模块学习进度
// @Tags 课程
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.ModuleProgress}
// @Router /api/progress [get]
func (c *CourseController) MyProgress(ctx *gin.Context) {
	claims, ok := currentActor(ctx)
	if !ok {
		return
	}
	list, err := c.EnrollmentService.ListModuleProgress(ctx.Request.Context(), claims.UserID)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, list)
}
