package service

import (
	"context"
	"edumate_backend/internal/config"
	"edumate_backend/internal/model"
	"edumate_backend/internal/repository"
	"edumate_backend/internal/util"
	"edumate_backend/pkg/logger"
	"edumate_backend/pkg/monitoring"
	"edumate_backend/pkg/tracing"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RewardService 积分、等级、徽章、成就、连续学习天数
type RewardService struct {
	DB              *gorm.DB
	UserRepo        *repository.UserRepository
	PointsRepo      *repository.PointsRepository
	LeaderboardRepo *repository.LeaderboardRepository
	BadgeRepo       *repository.BadgeRepository
	AchievementRepo *repository.AchievementRepository
	StreakRepo      *repository.StreakRepository
	EnrollmentRepo  *repository.EnrollmentRepository
	ActivityRepo    *repository.ActivityRepository
	MetricsRepo     *repository.MetricsRepository
	Notifier        Notifier

	mu       sync.RWMutex
	settings config.RewardConfig
	now      func() time.Time
}

func NewRewardService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	pointsRepo *repository.PointsRepository,
	leaderboardRepo *repository.LeaderboardRepository,
	badgeRepo *repository.BadgeRepository,
	achievementRepo *repository.AchievementRepository,
	streakRepo *repository.StreakRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	activityRepo *repository.ActivityRepository,
	metricsRepo *repository.MetricsRepository,
	notifier Notifier,
	settings config.RewardConfig,
) *RewardService {
	return &RewardService{
		DB:              db,
		UserRepo:        userRepo,
		PointsRepo:      pointsRepo,
		LeaderboardRepo: leaderboardRepo,
		BadgeRepo:       badgeRepo,
		AchievementRepo: achievementRepo,
		StreakRepo:      streakRepo,
		EnrollmentRepo:  enrollmentRepo,
		ActivityRepo:    activityRepo,
		MetricsRepo:     metricsRepo,
		Notifier:        notifier,
		settings:        settings,
		now:             time.Now,
	}
}

func (s *RewardService) Settings() config.RewardConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// UpdateSettings 配置热更新，非法配置保持原值
func (s *RewardService) UpdateSettings(cfg config.RewardConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.settings = cfg
	s.mu.Unlock()
	logger.Log.Info("Reward settings updated",
		zap.Int("enrollmentPoints", cfg.EnrollmentPoints),
		zap.Int("quizPassPoints", cfg.QuizPassPoints),
		zap.Ints("levelThresholds", cfg.LevelThresholds))
	return nil
}

// PointsResult 一次积分变动后的用户状态
type PointsResult struct {
	UserID        uint                    `json:"userId"`
	Balance       int                     `json:"balance"`
	Level         int                     `json:"level"`
	PreviousLevel int                     `json:"previousLevel"`
	Transaction   model.PointsTransaction `json:"transaction"`
}

func (r *PointsResult) LeveledUp() bool {
	return r.Level > r.PreviousLevel
}

// AwardPoints 写入一条积分流水并重算积分与等级，随后检查徽章
func (s *RewardService) AwardPoints(ctx context.Context, userID uint, points int, kind model.TransactionKind, description string) (*PointsResult, error) {
	if !kind.ValidDelta(points) {
		return nil, util.ErrInvalidTransaction
	}

	res, err := s.commitPoints(ctx, userID, points, kind, description)
	if err != nil {
		return nil, err
	}

	// 徽章检查失败不影响积分结果
	s.step(ctx, "check_badges", userID, func() error {
		return s.checkBadges(ctx, userID, 1)
	})
	return res, nil
}

// commitPoints 单事务写流水，提交后刷新缓存并推送
func (s *RewardService) commitPoints(ctx context.Context, userID uint, points int, kind model.TransactionKind, description string) (*PointsResult, error) {
	var res *PointsResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockUser(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		res, err = s.applyPoints(ctx, tx, userID, points, kind, description)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterPoints(ctx, res)
	return res, nil
}

func (s *RewardService) lockUser(ctx context.Context, tx *gorm.DB, userID uint) (*model.User, error) {
	user, err := s.UserRepo.WithTx(tx).LockByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "lock user")
	}
	return user, nil
}

// applyPoints 必须在已锁定用户行的事务中调用。积分以流水总和为准，不做增量更新
func (s *RewardService) applyPoints(ctx context.Context, tx *gorm.DB, userID uint, points int, kind model.TransactionKind, description string) (*PointsResult, error) {
	user, err := s.UserRepo.WithTx(tx).FindByID(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "load user")
	}

	t := model.PointsTransaction{
		UserID:      userID,
		Points:      points,
		Kind:        kind,
		Description: description,
		CreatedAt:   s.now(),
	}
	if err := s.PointsRepo.WithTx(tx).Create(ctx, &t); err != nil {
		return nil, errors.Wrap(err, "insert points transaction")
	}

	total, err := s.PointsRepo.WithTx(tx).SumByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "sum points")
	}
	level := LevelForPoints(total, s.Settings().LevelThresholds)

	if err := s.UserRepo.WithTx(tx).UpdatePointsAndLevel(ctx, userID, total, level); err != nil {
		return nil, errors.Wrap(err, "update user points")
	}
	if err := s.LeaderboardRepo.WithTx(tx).UpsertPoints(ctx, userID, total, t.ID); err != nil {
		return nil, errors.Wrap(err, "upsert leaderboard")
	}

	return &PointsResult{
		UserID:        userID,
		Balance:       total,
		Level:         level,
		PreviousLevel: user.Level,
		Transaction:   t,
	}, nil
}

func (s *RewardService) afterPoints(ctx context.Context, res *PointsResult) {
	delta := res.Transaction.Points
	if delta < 0 {
		delta = -delta
	}
	monitoring.PointsAwarded.WithLabelValues(string(res.Transaction.Kind)).Add(float64(delta))

	if _, err := s.LeaderboardRepo.CacheScore(ctx, res.UserID, res.Balance, res.Transaction.ID); err != nil {
		// 缓存落后于数据库，由定时重排重建
		logger.Ctx(ctx).Warn("Failed to update leaderboard cache", zap.Error(err), zap.Uint("userId", res.UserID))
	}

	s.notify(res.UserID, NotifyPointsAwarded, map[string]interface{}{
		"points":      res.Transaction.Points,
		"kind":        res.Transaction.Kind,
		"description": res.Transaction.Description,
		"balance":     res.Balance,
	})
	if res.LeveledUp() {
		logger.Ctx(ctx).Info("User leveled up", zap.Uint("userId", res.UserID), zap.Int("level", res.Level))
		s.notify(res.UserID, NotifyLevelUp, map[string]interface{}{
			"level":         res.Level,
			"previousLevel": res.PreviousLevel,
		})
	}
}

func (s *RewardService) notify(userID uint, msgType string, data interface{}) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.PushToUsers([]uint{userID}, WSMessage{Type: msgType, Data: data})
}

// CheckBadgeEligibility 判定全部未获得的徽章，返回本次新获得的徽章
func (s *RewardService) CheckBadgeEligibility(ctx context.Context, userID uint) ([]model.Badge, error) {
	return s.evaluateBadges(ctx, userID, 1)
}

func (s *RewardService) checkBadges(ctx context.Context, userID uint, depth int) error {
	_, err := s.evaluateBadges(ctx, userID, depth)
	return err
}

func (s *RewardService) evaluateBadges(ctx context.Context, userID uint, depth int) ([]model.Badge, error) {
	if limit := s.Settings().MaxPropagationDepth; limit > 0 && depth > limit {
		logger.Ctx(ctx).Warn("Badge propagation depth exceeded", zap.Uint("userId", userID), zap.Int("depth", depth))
		return nil, nil
	}

	badges, err := s.BadgeRepo.ListUnearned(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list unearned badges")
	}
	if len(badges) == 0 {
		return nil, nil
	}

	moduleIDs, courseIDs := criterionRefs(badges)
	metrics, err := s.MetricsRepo.Load(ctx, userID, moduleIDs, courseIDs)
	if err != nil {
		return nil, err
	}

	var earned []model.Badge
	for i := range badges {
		b := &badges[i]
		c := badgeCriterion(b)
		if c == nil {
			continue
		}
		ok, err := EvaluateCriterion(metrics, b.ID, c)
		if err != nil {
			logger.Ctx(ctx).Warn("Skipping badge criterion", zap.Error(err), zap.Uint("userId", userID), zap.Uint("badgeId", b.ID))
			monitoring.RewardFailureCounter.WithLabelValues("criterion").Inc()
			continue
		}
		if !ok {
			continue
		}

		granted, err := s.grantBadge(ctx, userID, b, depth)
		if err != nil {
			logger.Ctx(ctx).Error("Failed to grant badge", zap.Error(err), zap.Uint("userId", userID), zap.Uint("badgeId", b.ID))
			monitoring.RewardFailureCounter.WithLabelValues("grant_badge").Inc()
			continue
		}
		if granted {
			earned = append(earned, *b)
		}
	}
	return earned, nil
}

// grantBadge 发放徽章及其奖励积分，重复发放返回 false
func (s *RewardService) grantBadge(ctx context.Context, userID uint, b *model.Badge, depth int) (bool, error) {
	var (
		granted bool
		res     *PointsResult
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockUser(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		granted, err = s.BadgeRepo.WithTx(tx).Grant(ctx, userID, b.ID)
		if err != nil || !granted {
			return err
		}
		if b.PointsReward > 0 {
			res, err = s.applyPoints(ctx, tx, userID, b.PointsReward, model.TransactionBonus,
				fmt.Sprintf("Earned badge: %s", b.Name))
		}
		return err
	})
	if err != nil || !granted {
		return false, err
	}

	s.announceBadge(userID, b)
	if res != nil {
		s.afterPoints(ctx, res)
		if err := s.checkBadges(ctx, userID, depth+1); err != nil {
			logger.Ctx(ctx).Warn("Cascading badge check failed", zap.Error(err), zap.Uint("userId", userID))
		}
	}
	return true, nil
}

func (s *RewardService) announceBadge(userID uint, b *model.Badge) {
	monitoring.RewardGrantCounter.WithLabelValues("badge").Inc()
	logger.Log.Info("Badge granted", zap.Uint("userId", userID), zap.Uint("badgeId", b.ID), zap.String("badge", b.Name))
	s.notify(userID, NotifyBadgeEarned, map[string]interface{}{
		"badgeId":  b.ID,
		"name":     b.Name,
		"icon":     b.Icon,
		"imageUrl": b.ImageURL,
	})
}

// CheckAchievements 发放指定类型中阈值不超过 metric 的成就，返回本次新解锁的成就
func (s *RewardService) CheckAchievements(ctx context.Context, userID uint, t model.AchievementType, metric int) ([]model.Achievement, error) {
	return s.checkAchievements(ctx, userID, t, metric, 1)
}

func (s *RewardService) checkAchievements(ctx context.Context, userID uint, t model.AchievementType, metric, depth int) ([]model.Achievement, error) {
	list, err := s.AchievementRepo.ListReachable(ctx, userID, t, metric)
	if err != nil {
		return nil, errors.Wrap(err, "list reachable achievements")
	}

	var unlocked []model.Achievement
	for i := range list {
		granted, err := s.grantAchievement(ctx, userID, &list[i], depth)
		if err != nil {
			logger.Ctx(ctx).Error("Failed to grant achievement", zap.Error(err), zap.Uint("userId", userID), zap.Uint("achievementId", list[i].ID))
			monitoring.RewardFailureCounter.WithLabelValues("grant_achievement").Inc()
			continue
		}
		if granted {
			unlocked = append(unlocked, list[i])
		}
	}
	return unlocked, nil
}

// grantAchievement 成就、关联徽章及两者的奖励积分在同一事务内发放
func (s *RewardService) grantAchievement(ctx context.Context, userID uint, a *model.Achievement, depth int) (bool, error) {
	var (
		granted      bool
		badgeGranted bool
		results      []*PointsResult
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.lockUser(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		granted, err = s.AchievementRepo.WithTx(tx).Grant(ctx, userID, a.ID)
		if err != nil || !granted {
			return err
		}

		if a.PointsReward > 0 {
			res, err := s.applyPoints(ctx, tx, userID, a.PointsReward, model.TransactionBonus,
				fmt.Sprintf("Achievement unlocked: %s", a.Name))
			if err != nil {
				return err
			}
			results = append(results, res)
		}

		if a.BadgeID == nil {
			return nil
		}
		badgeGranted, err = s.BadgeRepo.WithTx(tx).Grant(ctx, userID, *a.BadgeID)
		if err != nil {
			return err
		}
		if badgeGranted && a.Badge != nil && a.Badge.PointsReward > 0 {
			res, err := s.applyPoints(ctx, tx, userID, a.Badge.PointsReward, model.TransactionBonus,
				fmt.Sprintf("Earned badge: %s", a.Badge.Name))
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil || !granted {
		return false, err
	}

	monitoring.RewardGrantCounter.WithLabelValues("achievement").Inc()
	logger.Ctx(ctx).Info("Achievement unlocked", zap.Uint("userId", userID), zap.Uint("achievementId", a.ID), zap.String("achievement", a.Name))
	s.notify(userID, NotifyAchievementUnlocked, map[string]interface{}{
		"achievementId": a.ID,
		"name":          a.Name,
		"icon":          a.Icon,
		"pointsReward":  a.PointsReward,
	})
	if badgeGranted && a.Badge != nil {
		s.announceBadge(userID, a.Badge)
	}
	for _, res := range results {
		s.afterPoints(ctx, res)
	}
	if len(results) > 0 {
		if err := s.checkBadges(ctx, userID, depth+1); err != nil {
			logger.Ctx(ctx).Warn("Cascading badge check failed", zap.Error(err), zap.Uint("userId", userID))
		}
	}
	return true, nil
}

// UpdateStreak 记录 at 所在日期的学习活动，并重新判定连续天数成就
func (s *RewardService) UpdateStreak(ctx context.Context, userID uint, at time.Time) (*model.Streak, error) {
	var streak *model.Streak
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.StreakRepo.WithTx(tx)
		var err error
		streak, err = repo.LockOrCreate(ctx, userID)
		if err != nil {
			return err
		}
		if !ApplyStreakActivity(streak, at) {
			return nil
		}
		return repo.Save(ctx, streak)
	})
	if err != nil {
		return nil, errors.Wrap(err, "update streak")
	}

	if _, err := s.CheckAchievements(ctx, userID, model.AchievementStreak, streak.CurrentStreak); err != nil {
		logger.Ctx(ctx).Warn("Streak achievement check failed", zap.Error(err), zap.Uint("userId", userID))
	}
	return streak, nil
}

// Dispatch 处理一个领域事件。每一步失败都只记录并跳过，不回滚已完成的主流程写入
func (s *RewardService) Dispatch(ctx context.Context, ev Event) {
	ctx, span := tracing.StartSpan(ctx, "RewardService.Dispatch")
	defer span.End()

	if ev.At.IsZero() {
		ev.At = s.now()
	}
	cfg := s.Settings()

	s.step(ctx, "streak", ev.UserID, func() error {
		_, err := s.UpdateStreak(ctx, ev.UserID, ev.At)
		return err
	})

	switch ev.Kind {
	case EventEnrolled:
		s.eventPoints(ctx, ev.UserID, cfg.EnrollmentPoints, fmt.Sprintf("Enrolled in course: %s", ev.Title))
		s.step(ctx, "enrollment_achievements", ev.UserID, func() error {
			count, err := s.EnrollmentRepo.CountByUser(ctx, ev.UserID)
			if err != nil {
				return err
			}
			_, err = s.CheckAchievements(ctx, ev.UserID, model.AchievementEnrollment, int(count))
			return err
		})

	case EventQuizSubmitted:
		if ev.Passed {
			s.eventPoints(ctx, ev.UserID, QuizPassPoints(cfg, ev.Percentage), fmt.Sprintf("Passed quiz: %s", ev.Title))
		}
		s.step(ctx, "quiz_achievements", ev.UserID, func() error {
			_, err := s.CheckAchievements(ctx, ev.UserID, model.AchievementQuizScore, int(ev.Percentage))
			return err
		})

	case EventModuleCompleted:
		s.eventPoints(ctx, ev.UserID, cfg.ModuleCompletionPoints, fmt.Sprintf("Completed module: %s", ev.Title))

	case EventCourseCompleted:
		s.step(ctx, "course_achievements", ev.UserID, func() error {
			count, err := s.EnrollmentRepo.CountCompletedByUser(ctx, ev.UserID)
			if err != nil {
				return err
			}
			_, err = s.CheckAchievements(ctx, ev.UserID, model.AchievementCourseCompletion, int(count))
			return err
		})
	}

	s.step(ctx, "activity_achievements", ev.UserID, func() error {
		count, err := s.ActivityRepo.CountByUser(ctx, ev.UserID)
		if err != nil {
			return err
		}
		_, err = s.CheckAchievements(ctx, ev.UserID, model.AchievementActivity, int(count))
		return err
	})

	s.step(ctx, "check_badges", ev.UserID, func() error {
		return s.checkBadges(ctx, ev.UserID, 1)
	})
}

// QuizPassPoints 通过测验的积分：基础分 + 百分比 / 除数
func QuizPassPoints(cfg config.RewardConfig, percentage float64) int {
	points := cfg.QuizPassPoints
	if cfg.QuizScoreBonusDivisor > 0 {
		points += int(percentage) / cfg.QuizScoreBonusDivisor
	}
	return points
}

func (s *RewardService) eventPoints(ctx context.Context, userID uint, points int, description string) {
	if points <= 0 {
		return
	}
	s.step(ctx, "award_points", userID, func() error {
		_, err := s.commitPoints(ctx, userID, points, model.TransactionEarned, description)
		return err
	})
}

func (s *RewardService) step(ctx context.Context, name string, userID uint, fn func() error) {
	if err := fn(); err != nil {
		logger.Ctx(ctx).Warn("Reward propagation step failed",
			zap.String("step", name), zap.Uint("userId", userID), zap.Error(err))
		monitoring.RewardFailureCounter.WithLabelValues(name).Inc()
	}
}

// RewardSummary 用户奖励概览
type RewardSummary struct {
	Points          int                     `json:"points"`
	Level           int                     `json:"level"`
	NextLevelPoints *int                    `json:"nextLevelPoints"`
	Badges          []model.UserBadge       `json:"badges"`
	Achievements    []model.UserAchievement `json:"achievements"`
	Streak          *model.Streak           `json:"streak"`
}

func (s *RewardService) GetSummary(ctx context.Context, userID uint) (*RewardSummary, error) {
	user, err := s.UserRepo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	badges, err := s.BadgeRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	achievements, err := s.AchievementRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	streak, err := s.StreakRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &RewardSummary{
		Points:       user.Points,
		Level:        user.Level,
		Badges:       badges,
		Achievements: achievements,
		Streak:       streak,
	}
	if next, ok := NextLevelPoints(user.Points, s.Settings().LevelThresholds); ok {
		summary.NextLevelPoints = &next
	}
	return summary, nil
}

// PointsHistory 积分流水分页，附带按类型汇总
type PointsHistory struct {
	Items  []model.PointsTransaction `json:"items"`
	Total  int64                     `json:"total"`
	Totals []repository.KindTotal    `json:"totals"`
}

func (s *RewardService) GetPointsHistory(ctx context.Context, userID uint, page, limit int) (*PointsHistory, error) {
	items, total, err := s.PointsRepo.ListByUser(ctx, userID, page, limit)
	if err != nil {
		return nil, err
	}
	totals, err := s.PointsRepo.TotalsByKind(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &PointsHistory{Items: items, Total: total, Totals: totals}, nil
}

func (s *RewardService) ListBadges(ctx context.Context) ([]model.Badge, error) {
	return s.BadgeRepo.List(ctx)
}

func (s *RewardService) ListUserBadges(ctx context.Context, userID uint) ([]model.UserBadge, error) {
	return s.BadgeRepo.ListByUser(ctx, userID)
}

func (s *RewardService) ListAchievements(ctx context.Context) ([]model.Achievement, error) {
	return s.AchievementRepo.List(ctx)
}

func (s *RewardService) ListUserAchievements(ctx context.Context, userID uint) ([]model.UserAchievement, error) {
	return s.AchievementRepo.ListByUser(ctx, userID)
}

// AchievementProgress 成就的完成进度，百分比取整且不超过 100
type AchievementProgress struct {
	Achievement model.Achievement `json:"achievement"`
	Unlocked    bool              `json:"unlocked"`
	AchievedAt  *time.Time        `json:"achievedAt,omitempty"`
	Current     int               `json:"current"`
	Progress    int               `json:"progress"`
}

func (s *RewardService) AchievementProgress(ctx context.Context, userID uint) ([]AchievementProgress, error) {
	if _, err := s.UserRepo.FindByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}
	all, err := s.AchievementRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	owned, err := s.AchievementRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	metrics, err := s.MetricsRepo.AchievementMetrics(ctx, userID)
	if err != nil {
		return nil, err
	}

	achievedAt := make(map[uint]time.Time, len(owned))
	for _, ua := range owned {
		achievedAt[ua.AchievementID] = ua.AchievedAt
	}

	list := make([]AchievementProgress, 0, len(all))
	for _, a := range all {
		p := AchievementProgress{Achievement: a, Current: metrics[a.Type]}
		if at, ok := achievedAt[a.ID]; ok {
			p.Unlocked = true
			p.AchievedAt = &at
			p.Progress = 100
		} else {
			p.Progress = progressPercent(p.Current, a.Threshold)
		}
		list = append(list, p)
	}
	return list, nil
}

func progressPercent(current, threshold int) int {
	if threshold <= 0 || current >= threshold {
		return 100
	}
	if current <= 0 {
		return 0
	}
	return current * 100 / threshold
}

func (s *RewardService) GetStreak(ctx context.Context, userID uint) (*model.Streak, error) {
	return s.StreakRepo.FindByUser(ctx, userID)
}

// GrantBadge 管理员手动发放
func (s *RewardService) GrantBadge(ctx context.Context, userID, badgeID uint) (bool, error) {
	b, err := s.BadgeRepo.FindByID(ctx, badgeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, util.ErrBadgeNotFound
	}
	if err != nil {
		return false, err
	}
	return s.grantBadge(ctx, userID, b, 1)
}
