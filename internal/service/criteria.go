package service

import (
	"edumate_backend/internal/model"
	"edumate_backend/internal/util"
	"fmt"
)

// CriterionFunc 计算条件对应的当前指标值，与阈值比较由调用方完成
type CriterionFunc func(m *model.UserMetrics, c *model.BadgeCriterion) int

var criterionRegistry = map[model.ProgressType]CriterionFunc{
	model.ProgressCourseCompletion: courseCompletionValue,
	model.ProgressModuleCompletion: moduleCompletionValue,
	model.ProgressLessonCompletion: lessonCompletionValue,
	model.ProgressQuizPerformance:  quizPerformanceValue,
	model.ProgressActivityCount:    func(m *model.UserMetrics, _ *model.BadgeCriterion) int { return m.ActivityCount },
	model.ProgressPointsMilestone:  func(m *model.UserMetrics, _ *model.BadgeCriterion) int { return m.Points },
}

// RegisterCriterion 新增或覆盖一种进度类型
func RegisterCriterion(t model.ProgressType, fn CriterionFunc) {
	criterionRegistry[t] = fn
}

func KnownProgressType(t model.ProgressType) bool {
	_, ok := criterionRegistry[t]
	return ok
}

// badgeCriterion 没有显式条件的徽章按 PointsRequired 视为积分里程碑，两者都没有时返回 nil
func badgeCriterion(b *model.Badge) *model.BadgeCriterion {
	if b.Criterion != nil {
		return b.Criterion
	}
	if b.PointsRequired > 0 {
		return &model.BadgeCriterion{
			BadgeID:      b.ID,
			ProgressType: model.ProgressPointsMilestone,
			Threshold:    b.PointsRequired,
		}
	}
	return nil
}

// EvaluateCriterion 返回是否满足；条件本身无法判定时返回 *util.CriterionError
func EvaluateCriterion(m *model.UserMetrics, badgeID uint, c *model.BadgeCriterion) (bool, error) {
	fn, ok := criterionRegistry[c.ProgressType]
	if !ok {
		return false, &util.CriterionError{BadgeID: badgeID, Reason: fmt.Sprintf("unknown progress type %q", c.ProgressType)}
	}
	if err := checkCriterionScope(m, badgeID, c); err != nil {
		return false, err
	}
	return fn(m, c) >= c.Threshold, nil
}

func checkCriterionScope(m *model.UserMetrics, badgeID uint, c *model.BadgeCriterion) error {
	if c.CourseID != nil && !m.Courses[*c.CourseID] {
		return &util.CriterionError{BadgeID: badgeID, Reason: fmt.Sprintf("course %d no longer exists", *c.CourseID)}
	}
	if c.ModuleID != nil {
		courseID, ok := m.Modules[*c.ModuleID]
		if !ok {
			return &util.CriterionError{BadgeID: badgeID, Reason: fmt.Sprintf("module %d no longer exists", *c.ModuleID)}
		}
		if c.CourseID != nil && courseID != *c.CourseID {
			return &util.CriterionError{BadgeID: badgeID, Reason: fmt.Sprintf("module %d does not belong to course %d", *c.ModuleID, *c.CourseID)}
		}
	}
	return nil
}

func inScope(c *model.BadgeCriterion, courseID, moduleID uint) bool {
	if c.ModuleID != nil && *c.ModuleID != moduleID {
		return false
	}
	if c.CourseID != nil && *c.CourseID != courseID {
		return false
	}
	return true
}

func courseCompletionValue(m *model.UserMetrics, c *model.BadgeCriterion) int {
	if c.CourseID == nil {
		return len(m.CompletedCourseIDs)
	}
	for _, id := range m.CompletedCourseIDs {
		if id == *c.CourseID {
			return 1
		}
	}
	return 0
}

func moduleCompletionValue(m *model.UserMetrics, c *model.BadgeCriterion) int {
	n := 0
	for _, p := range m.ModuleProgress {
		if p.CompletionPercentage >= 100 && inScope(c, p.CourseID, p.ModuleID) {
			n++
		}
	}
	return n
}

func lessonCompletionValue(m *model.UserMetrics, c *model.BadgeCriterion) int {
	n := 0
	for _, l := range m.LessonCompletions {
		if inScope(c, l.CourseID, l.ModuleID) {
			n++
		}
	}
	return n
}

func quizPerformanceValue(m *model.UserMetrics, c *model.BadgeCriterion) int {
	n := 0
	for _, a := range m.PassedAttempts {
		if a.Percentage >= c.MinScore && inScope(c, a.CourseID, a.ModuleID) {
			n++
		}
	}
	return n
}

// criterionRefs 收集条件引用的模块和课程，供快照加载时校验
func criterionRefs(badges []model.Badge) (moduleIDs, courseIDs []uint) {
	for i := range badges {
		c := badges[i].Criterion
		if c == nil {
			continue
		}
		if c.ModuleID != nil {
			moduleIDs = append(moduleIDs, *c.ModuleID)
		}
		if c.CourseID != nil {
			courseIDs = append(courseIDs, *c.CourseID)
		}
	}
	return moduleIDs, courseIDs
}
