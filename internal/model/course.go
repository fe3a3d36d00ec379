package model

import "time"

// swagger:model Course
type Course struct {
	BaseModel
	Title        string   `gorm:"size:200;not null" json:"title"`
	Description  string   `gorm:"type:text" json:"description"`
	InstructorID uint     `gorm:"index;not null" json:"instructorId"`
	Difficulty   string   `gorm:"size:20" json:"difficulty"`
	IsPublished  bool     `json:"isPublished"`
	Modules      []Module `gorm:"foreignKey:CourseID" json:"modules,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

// swagger:model Module
type Module struct {
	BaseModel
	CourseID    uint     `gorm:"index;not null" json:"courseId"`
	Title       string   `gorm:"size:200;not null" json:"title"`
	Description string   `gorm:"type:text" json:"description"`
	SortOrder   int      `json:"sortOrder"`
	Lessons     []Lesson `gorm:"foreignKey:ModuleID" json:"lessons,omitempty"`
}

func (Module) TableName() string {
	return "modules"
}

// swagger:model Lesson
type Lesson struct {
	BaseModel
	ModuleID  uint   `gorm:"index;not null" json:"moduleId"`
	CourseID  uint   `gorm:"index;not null" json:"courseId"`
	Title     string `gorm:"size:200;not null" json:"title"`
	Content   string `gorm:"type:text" json:"content"`
	SortOrder int    `json:"sortOrder"`
}

func (Lesson) TableName() string {
	return "lessons"
}

type EnrollmentStatus string

const (
	EnrollmentEnrolled  EnrollmentStatus = "enrolled"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentDropped   EnrollmentStatus = "dropped"
)

// swagger:model Enrollment
type Enrollment struct {
	BaseModel
	UserID      uint             `gorm:"uniqueIndex:idx_enrollment_user_course;not null" json:"userId"`
	CourseID    uint             `gorm:"uniqueIndex:idx_enrollment_user_course;not null;index" json:"courseId"`
	Status      EnrollmentStatus `gorm:"size:20;not null" json:"status"`
	EnrolledAt  time.Time        `json:"enrolledAt"`
	CompletedAt *time.Time       `json:"completedAt"`
	Course      *Course          `gorm:"foreignKey:CourseID" json:"course,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
