package service

import (
	"context"
	"database/sql"
	"edumate_backend/internal/model"
	"edumate_backend/internal/repository"
	"edumate_backend/pkg/logger"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LeaderboardService 排名在读取时计算，定时任务负责持久化名次和重建缓存
type LeaderboardService struct {
	DB              *gorm.DB
	LeaderboardRepo *repository.LeaderboardRepository
	UserRepo        *repository.UserRepository
	DefaultLimit    int
}

func NewLeaderboardService(db *gorm.DB, leaderboardRepo *repository.LeaderboardRepository, userRepo *repository.UserRepository, defaultLimit int) *LeaderboardService {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &LeaderboardService{
		DB:              db,
		LeaderboardRepo: leaderboardRepo,
		UserRepo:        userRepo,
		DefaultLimit:    defaultLimit,
	}
}

// GetLeaderboard Redis 有数据时读缓存，否则由数据库实时排名
func (s *LeaderboardService) GetLeaderboard(ctx context.Context, limit int) ([]repository.RankedEntry, error) {
	if limit <= 0 {
		limit = s.DefaultLimit
	}

	if entries, ok := s.cachedTop(ctx, limit); ok {
		return entries, nil
	}
	entries, err := s.LeaderboardRepo.Top(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query leaderboard")
	}
	return entries, nil
}

// cachedTop 缓存不可用或为空时返回 false。缓存中同分按成员字典序倒序，与数据库的 user_id 升序不同
func (s *LeaderboardService) cachedTop(ctx context.Context, limit int) ([]repository.RankedEntry, bool) {
	if !s.LeaderboardRepo.CacheEnabled() {
		return nil, false
	}
	zs, err := s.LeaderboardRepo.CachedTop(ctx, limit)
	if err != nil {
		logger.Ctx(ctx).Warn("Leaderboard cache read failed, falling back to database", zap.Error(err))
		return nil, false
	}
	if len(zs) == 0 {
		return nil, false
	}

	ids := make([]uint, 0, len(zs))
	for _, z := range zs {
		id, err := memberID(z)
		if err != nil {
			logger.Ctx(ctx).Warn("Invalid leaderboard cache member", zap.Any("member", z.Member))
			return nil, false
		}
		ids = append(ids, id)
	}
	users, err := s.UserRepo.FindByIDs(ctx, ids)
	if err != nil {
		logger.Ctx(ctx).Warn("Failed to load leaderboard users", zap.Error(err))
		return nil, false
	}

	entries := make([]repository.RankedEntry, 0, len(zs))
	for i, z := range zs {
		// 已删除的用户在下次重排时移出缓存
		u, ok := users[ids[i]]
		if !ok {
			continue
		}
		entries = append(entries, repository.RankedEntry{
			UserID: ids[i],
			Name:   u.Name,
			Avatar: u.Avatar,
			Points: int(z.Score),
			Level:  u.Level,
			Rank:   len(entries) + 1,
		})
	}
	return entries, true
}

func memberID(z redis.Z) (uint, error) {
	str, ok := z.Member.(string)
	if !ok {
		return 0, errors.New("member is not a string")
	}
	id, err := strconv.ParseUint(str, 10, 64)
	return uint(id), err
}

// GetUserRank 用户不在榜上时返回 nil
func (s *LeaderboardService) GetUserRank(ctx context.Context, userID uint) (*repository.RankedEntry, error) {
	if s.LeaderboardRepo.CacheEnabled() {
		rank, err := s.LeaderboardRepo.CachedRank(ctx, userID)
		if err == nil {
			user, err := s.UserRepo.FindByID(ctx, userID)
			if err == nil {
				return &repository.RankedEntry{
					UserID: userID,
					Name:   user.Name,
					Avatar: user.Avatar,
					Points: user.Points,
					Level:  user.Level,
					Rank:   int(rank) + 1,
				}, nil
			}
		} else if err != redis.Nil {
			logger.Ctx(ctx).Warn("Leaderboard cache rank failed, falling back to database", zap.Error(err))
		}
	}

	entry, err := s.LeaderboardRepo.RankOf(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "query user rank")
	}
	return entry, nil
}

// RecomputeRanks 持久化名次，只更新发生变化的行，并用数据库快照刷新缓存。返回更新行数
func (s *LeaderboardService) RecomputeRanks(ctx context.Context) (int, error) {
	var (
		entries  []model.LeaderboardEntry
		inactive []uint
		updated  int
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.LeaderboardRepo.WithTx(tx)
		var err error
		entries, err = repo.OrderedEntries(ctx)
		if err != nil {
			return err
		}
		for i := range entries {
			rank := i + 1
			if entries[i].Rank == rank {
				continue
			}
			if err := repo.UpdateRank(ctx, entries[i].UserID, rank); err != nil {
				return err
			}
			entries[i].Rank = rank
			updated++
		}

		// 已删除用户不占名次
		inactive, err = repo.InactiveUserIDs(ctx)
		if err != nil {
			return err
		}
		for _, id := range inactive {
			if err := repo.UpdateRank(ctx, id, 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "recompute ranks")
	}

	if err := s.LeaderboardRepo.RebuildCache(ctx, entries, inactive); err != nil {
		logger.Ctx(ctx).Warn("Failed to rebuild leaderboard cache", zap.Error(err))
	}
	logger.Ctx(ctx).Info("Leaderboard ranks recomputed",
		zap.Int("entries", len(entries)), zap.Int("updated", updated), zap.Int("inactive", len(inactive)))
	return updated, nil
}
