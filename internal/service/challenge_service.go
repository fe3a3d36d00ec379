package service

import (
	"context"
	"edumate_backend/internal/model"
	"edumate_backend/internal/repository"
	"edumate_backend/internal/util"
	"edumate_backend/pkg/logger"
	"edumate_backend/pkg/monitoring"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ChallengeService struct {
	DB            *gorm.DB
	ChallengeRepo *repository.ChallengeRepository
	Rewards       *RewardService
	now           func() time.Time
}

func NewChallengeService(db *gorm.DB, challengeRepo *repository.ChallengeRepository, rewards *RewardService) *ChallengeService {
	return &ChallengeService{
		DB:            db,
		ChallengeRepo: challengeRepo,
		Rewards:       rewards,
		now:           time.Now,
	}
}

type ChallengeRequest struct {
	Title        string     `json:"title" binding:"required"`
	Description  string     `json:"description"`
	Difficulty   string     `json:"difficulty"`
	PointsReward int        `json:"pointsReward" binding:"min=0"`
	BadgeID      *uint      `json:"badgeId"`
	StartDate    *time.Time `json:"startDate"`
	EndDate      *time.Time `json:"endDate"`
	IsActive     *bool      `json:"isActive"`
}

func (s *ChallengeService) CreateChallenge(ctx context.Context, req ChallengeRequest) (*model.Challenge, error) {
	c := &model.Challenge{
		Title:        req.Title,
		Description:  req.Description,
		Difficulty:   req.Difficulty,
		PointsReward: req.PointsReward,
		BadgeID:      req.BadgeID,
		StartDate:    s.now(),
		EndDate:      req.EndDate,
		IsActive:     true,
	}
	if req.StartDate != nil {
		c.StartDate = *req.StartDate
	}
	if req.IsActive != nil {
		c.IsActive = *req.IsActive
	}
	if c.EndDate != nil && c.EndDate.Before(c.StartDate) {
		return nil, fmt.Errorf("%w: endDate must not be before startDate", util.ErrInvalidInput)
	}
	if err := s.ChallengeRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ChallengeService) ListActive(ctx context.Context) ([]model.Challenge, error) {
	return s.ChallengeRepo.ListActive(ctx, s.now())
}

func (s *ChallengeService) ListUserChallenges(ctx context.Context, userID uint) ([]model.UserChallenge, error) {
	return s.ChallengeRepo.ListByUser(ctx, userID)
}

func (s *ChallengeService) findChallenge(ctx context.Context, id uint) (*model.Challenge, error) {
	c, err := s.ChallengeRepo.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrChallengeNotFound
	}
	return c, err
}

// Accept 重复接受返回已有记录
func (s *ChallengeService) Accept(ctx context.Context, userID, challengeID uint) (*model.UserChallenge, error) {
	c, err := s.findChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if !c.OpenAt(s.now()) {
		return nil, util.ErrChallengeInactive
	}

	var uc *model.UserChallenge
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.ChallengeRepo.WithTx(tx)
		if _, err := repo.Accept(ctx, &model.UserChallenge{
			UserID:      userID,
			ChallengeID: challengeID,
			Status:      model.ChallengeAccepted,
			AcceptedAt:  s.now(),
		}); err != nil {
			return err
		}
		var err error
		uc, err = repo.LockUserChallenge(ctx, userID, challengeID)
		return err
	})
	if err != nil {
		return nil, errors.Wrap(err, "accept challenge")
	}
	uc.Challenge = c
	return uc, nil
}

// UpdateProgress 由教师或管理员记录学员进度，学员不能为自己上报。
// 进度只增不减，达到 100 时完成并发放奖励，奖励只发一次
func (s *ChallengeService) UpdateProgress(ctx context.Context, actor Actor, userID, challengeID uint, progress int) (*model.UserChallenge, error) {
	if !actor.isStaff() || actor.UserID == userID {
		return nil, util.ErrPermissionDenied
	}
	c, err := s.findChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}

	var (
		uc           *model.UserChallenge
		completed    bool
		badgeGranted bool
		results      []*PointsResult
	)
	now := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.ChallengeRepo.WithTx(tx)
		var err error
		uc, err = repo.LockUserChallenge(ctx, userID, challengeID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrChallengeNotAccepted
		}
		if err != nil {
			return err
		}
		if uc.Status == model.ChallengeCompleted {
			return nil
		}
		if !c.OpenAt(now) {
			return util.ErrChallengeInactive
		}

		if progress > uc.Progress {
			uc.Progress = progress
		}
		uc.Status = model.ChallengeInProgress
		if uc.Progress >= 100 {
			uc.Status = model.ChallengeCompleted
			uc.CompletedAt = &now
			completed = true
		}
		if err := repo.SaveUserChallenge(ctx, uc); err != nil {
			return err
		}
		if !completed {
			return nil
		}

		if _, err := s.Rewards.lockUser(ctx, tx, userID); err != nil {
			return err
		}
		if c.PointsReward > 0 {
			res, err := s.Rewards.applyPoints(ctx, tx, userID, c.PointsReward, model.TransactionEarned,
				fmt.Sprintf("Completed challenge: %s", c.Title))
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		if c.BadgeID == nil {
			return nil
		}
		badgeGranted, err = s.Rewards.BadgeRepo.WithTx(tx).Grant(ctx, userID, *c.BadgeID)
		if err != nil {
			return err
		}
		if badgeGranted && c.Badge != nil && c.Badge.PointsReward > 0 {
			res, err := s.Rewards.applyPoints(ctx, tx, userID, c.Badge.PointsReward, model.TransactionBonus,
				fmt.Sprintf("Earned badge: %s", c.Badge.Name))
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.Challenge = c
	if !completed {
		return uc, nil
	}

	monitoring.RewardGrantCounter.WithLabelValues("challenge").Inc()
	logger.Ctx(ctx).Info("Challenge completed", zap.Uint("userId", userID), zap.Uint("challengeId", challengeID))
	s.Rewards.notify(userID, NotifyChallengeCompleted, map[string]interface{}{
		"challengeId":  c.ID,
		"title":        c.Title,
		"pointsReward": c.PointsReward,
	})
	if badgeGranted && c.Badge != nil {
		s.Rewards.announceBadge(userID, c.Badge)
	}
	for _, res := range results {
		s.Rewards.afterPoints(ctx, res)
	}
	s.Rewards.step(ctx, "check_badges", userID, func() error {
		return s.Rewards.checkBadges(ctx, userID, 1)
	})
	return uc, nil
}
