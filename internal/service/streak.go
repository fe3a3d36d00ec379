package service

import (
	"edumate_backend/internal/model"
	"edumate_backend/internal/util"
	"time"
)

// activityDay 按 UTC 取自然日
func activityDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ApplyStreakActivity 纯函数，返回记录是否被修改。早于最后记录日期的活动直接忽略
func ApplyStreakActivity(s *model.Streak, at time.Time) bool {
	day := activityDay(at)

	if s.LastActivityDate == "" {
		s.CurrentStreak = 1
		if s.LongestStreak < 1 {
			s.LongestStreak = 1
		}
		s.LastActivityDate = day.Format(util.DateFormat)
		return true
	}

	last, err := time.Parse(util.DateFormat, s.LastActivityDate)
	if err != nil {
		// 脏数据按首次活动处理
		s.LastActivityDate = ""
		return ApplyStreakActivity(s, at)
	}

	days := int(day.Sub(last).Hours() / 24)
	switch {
	case days <= 0:
		return false
	case days == 1:
		s.CurrentStreak++
	default:
		s.CurrentStreak = 1
	}
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.LastActivityDate = day.Format(util.DateFormat)
	return true
}
