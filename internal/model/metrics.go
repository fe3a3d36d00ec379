package model

// PassedAttempt 通过的测验作答，用于测验表现类徽章
type PassedAttempt struct {
	AttemptID  uint
	QuizID     uint
	ModuleID   uint
	CourseID   uint
	Percentage float64
}

// UserMetrics 徽章判定使用的用户指标快照，不落库
type UserMetrics struct {
	UserID             uint
	Points             int
	EnrollmentCount    int
	CompletedCourseIDs []uint
	ModuleProgress     []ModuleProgress
	LessonCompletions  []LessonCompletion
	PassedAttempts     []PassedAttempt
	ActivityCount      int
	CurrentStreak      int

	// 判定条件引用到的模块 -> 所属课程、课程是否存在
	Modules map[uint]uint
	Courses map[uint]bool
}
