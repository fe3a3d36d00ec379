package repository

import (
	"context"
	"edumate_backend/internal/model"

	"gorm.io/gorm"
)

// CourseRepository 课程、模块、课时
type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) WithTx(tx *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: tx}
}

func (r *CourseRepository) CreateCourse(ctx context.Context, course *model.Course) error {
	return r.DB.WithContext(ctx).Create(course).Error
}

func (r *CourseRepository) FindCourseByID(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	if err := r.DB.WithContext(ctx).First(&course, id).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

// FindCourseDetail 课程及其模块、课时，按排序字段
func (r *CourseRepository) FindCourseDetail(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.WithContext(ctx).
		Preload("Modules", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
		Preload("Modules.Lessons", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order, id") }).
		First(&course, id).Error
	if err != nil {
		return nil, err
	}
	return &course, nil
}

func (r *CourseRepository) ListCourses(ctx context.Context, publishedOnly bool) ([]model.Course, error) {
	var courses []model.Course
	db := r.DB.WithContext(ctx).Order("id")
	if publishedOnly {
		db = db.Where("is_published = ?", true)
	}
	err := db.Find(&courses).Error
	return courses, err
}

func (r *CourseRepository) UpdateCourse(ctx context.Context, course *model.Course) error {
	return r.DB.WithContext(ctx).Save(course).Error
}

func (r *CourseRepository) CreateModule(ctx context.Context, module *model.Module) error {
	return r.DB.WithContext(ctx).Create(module).Error
}

func (r *CourseRepository) FindModuleByID(ctx context.Context, id uint) (*model.Module, error) {
	var module model.Module
	if err := r.DB.WithContext(ctx).First(&module, id).Error; err != nil {
		return nil, err
	}
	return &module, nil
}

func (r *CourseRepository) ListModuleIDsByCourse(ctx context.Context, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.Module{}).Where("course_id = ?", courseID).Order("id").Pluck("id", &ids).Error
	return ids, err
}

// ModuleCourses 返回存在的模块及其所属课程
func (r *CourseRepository) ModuleCourses(ctx context.Context, moduleIDs []uint) (map[uint]uint, error) {
	result := make(map[uint]uint, len(moduleIDs))
	if len(moduleIDs) == 0 {
		return result, nil
	}
	var modules []model.Module
	if err := r.DB.WithContext(ctx).Select("id", "course_id").Where("id IN ?", moduleIDs).Find(&modules).Error; err != nil {
		return nil, err
	}
	for _, m := range modules {
		result[m.ID] = m.CourseID
	}
	return result, nil
}

func (r *CourseRepository) ExistingCourseIDs(ctx context.Context, courseIDs []uint) (map[uint]bool, error) {
	result := make(map[uint]bool, len(courseIDs))
	if len(courseIDs) == 0 {
		return result, nil
	}
	var ids []uint
	if err := r.DB.WithContext(ctx).Model(&model.Course{}).Where("id IN ?", courseIDs).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		result[id] = true
	}
	return result, nil
}

func (r *CourseRepository) CreateLesson(ctx context.Context, lesson *model.Lesson) error {
	return r.DB.WithContext(ctx).Create(lesson).Error
}

func (r *CourseRepository) FindLessonByID(ctx context.Context, id uint) (*model.Lesson, error) {
	var lesson model.Lesson
	if err := r.DB.WithContext(ctx).First(&lesson, id).Error; err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (r *CourseRepository) CountLessonsByModule(ctx context.Context, moduleID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&model.Lesson{}).Where("module_id = ?", moduleID).Count(&count).Error
	return count, err
}
