package repository

import (
	"context"
	"edumate_backend/internal/model"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RankedEntry 排名在读取时计算
type RankedEntry struct {
	UserID uint   `db:"user_id" json:"userId"`
	Name   string `db:"name" json:"name"`
	Avatar string `db:"avatar" json:"avatar,omitempty"`
	Points int    `db:"points" json:"points"`
	Level  int    `db:"level" json:"level"`
	Rank   int    `db:"rank_no" json:"rank"`
}

// LeaderboardRepository 排行榜：数据库为准，Redis ZSET 作为可选缓存
type LeaderboardRepository struct {
	DB       *gorm.DB
	SQLX     *sqlx.DB
	Redis    *redis.Client
	CacheKey string
}

func NewLeaderboardRepository(db *gorm.DB, sx *sqlx.DB, rdb *redis.Client, cacheKey string) *LeaderboardRepository {
	return &LeaderboardRepository{DB: db, SQLX: sx, Redis: rdb, CacheKey: cacheKey}
}

func (r *LeaderboardRepository) WithTx(tx *gorm.DB) *LeaderboardRepository {
	return &LeaderboardRepository{DB: tx, SQLX: r.SQLX, Redis: r.Redis, CacheKey: r.CacheKey}
}

// UpsertPoints 只更新积分和版本，排名由定时任务维护
func (r *LeaderboardRepository) UpsertPoints(ctx context.Context, userID uint, points int, version uint) error {
	entry := model.LeaderboardEntry{UserID: userID, Points: points, Version: version, UpdatedAt: time.Now()}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"points", "version", "updated_at"}),
	}).Create(&entry).Error
}

const rankedQuery = `
SELECT user_id, name, avatar, points, level, rank_no FROM (
	SELECT l.user_id, u.name, COALESCE(u.avatar, '') AS avatar, l.points, u.level,
		ROW_NUMBER() OVER (ORDER BY l.points DESC, l.user_id ASC) AS rank_no
	FROM leaderboard l
	JOIN users u ON u.id = l.user_id AND u.deleted_at IS NULL
) ranked`

// Top 按积分实时计算排名
func (r *LeaderboardRepository) Top(ctx context.Context, limit int) ([]RankedEntry, error) {
	var entries []RankedEntry
	query := r.SQLX.Rebind(rankedQuery + ` ORDER BY rank_no LIMIT ?`)
	err := r.SQLX.SelectContext(ctx, &entries, query, limit)
	return entries, err
}

// RankOf 用户不在榜上时返回 sql.ErrNoRows
func (r *LeaderboardRepository) RankOf(ctx context.Context, userID uint) (*RankedEntry, error) {
	var entry RankedEntry
	query := r.SQLX.Rebind(rankedQuery + ` WHERE user_id = ?`)
	if err := r.SQLX.GetContext(ctx, &entry, query, userID); err != nil {
		return nil, err
	}
	return &entry, nil
}

// OrderedEntries 重排任务使用，已按名次排序，不含已删除用户
func (r *LeaderboardRepository) OrderedEntries(ctx context.Context) ([]model.LeaderboardEntry, error) {
	var entries []model.LeaderboardEntry
	err := r.DB.WithContext(ctx).Select("leaderboard.*").
		Joins("JOIN users u ON u.id = leaderboard.user_id AND u.deleted_at IS NULL").
		Order("leaderboard.points DESC, leaderboard.user_id ASC").Find(&entries).Error
	return entries, err
}

// InactiveUserIDs 用户已删除或不存在的榜单条目
func (r *LeaderboardRepository) InactiveUserIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).Model(&model.LeaderboardEntry{}).
		Joins("LEFT JOIN users u ON u.id = leaderboard.user_id AND u.deleted_at IS NULL").
		Where("u.id IS NULL").Pluck("leaderboard.user_id", &ids).Error
	return ids, err
}

func (r *LeaderboardRepository) UpdateRank(ctx context.Context, userID uint, rank int) error {
	return r.DB.WithContext(ctx).Model(&model.LeaderboardEntry{}).Where("user_id = ?", userID).
		UpdateColumn("rank", rank).Error
}

func (r *LeaderboardRepository) CacheEnabled() bool {
	return r.Redis != nil
}

func (r *LeaderboardRepository) versionKey() string {
	return r.CacheKey + ":version"
}

func member(userID uint) string {
	return strconv.FormatUint(uint64(userID), 10)
}

// setScoreScript 版本不低于缓存中的版本时才写入分数
var setScoreScript = redis.NewScript(`
local cur = tonumber(redis.call('HGET', KEYS[2], ARGV[3]) or '0')
if tonumber(ARGV[1]) < cur then
	return 0
end
redis.call('HSET', KEYS[2], ARGV[3], ARGV[1])
redis.call('ZADD', KEYS[1], ARGV[2], ARGV[3])
return 1
`)

func (r *LeaderboardRepository) setScore(ctx context.Context, c redis.Scripter, userID uint, points int, version uint) *redis.Cmd {
	return setScoreScript.Eval(ctx, c, []string{r.CacheKey, r.versionKey()},
		strconv.FormatUint(uint64(version), 10), strconv.Itoa(points), member(userID))
}

// CacheScore 写入用户分数，旧版本的写入被忽略。返回是否写入
func (r *LeaderboardRepository) CacheScore(ctx context.Context, userID uint, points int, version uint) (bool, error) {
	if r.Redis == nil {
		return false, nil
	}
	n, err := r.setScore(ctx, r.Redis, userID, points, version).Int()
	return n == 1, err
}

// CachedTop 返回按分数降序的用户ID和分数，缓存为空时返回 nil
func (r *LeaderboardRepository) CachedTop(ctx context.Context, limit int) ([]redis.Z, error) {
	if r.Redis == nil {
		return nil, nil
	}
	return r.Redis.ZRevRangeWithScores(ctx, r.CacheKey, 0, int64(limit-1)).Result()
}

// CachedRank 从 0 开始的名次，缓存不存在该用户时返回 redis.Nil
func (r *LeaderboardRepository) CachedRank(ctx context.Context, userID uint) (int64, error) {
	return r.Redis.ZRevRank(ctx, r.CacheKey, member(userID)).Result()
}

func (r *LeaderboardRepository) CacheSize(ctx context.Context) (int64, error) {
	if r.Redis == nil {
		return 0, nil
	}
	return r.Redis.ZCard(ctx, r.CacheKey).Result()
}

// RebuildCache 按版本写入数据库快照并移除失效用户。不清空缓存，
// 快照之后提交的积分版本更高，不会被覆盖
func (r *LeaderboardRepository) RebuildCache(ctx context.Context, entries []model.LeaderboardEntry, removed []uint) error {
	if r.Redis == nil {
		return nil
	}
	pipe := r.Redis.Pipeline()
	for _, e := range entries {
		r.setScore(ctx, pipe, e.UserID, e.Points, e.Version)
	}
	for _, id := range removed {
		pipe.ZRem(ctx, r.CacheKey, member(id))
		pipe.HDel(ctx, r.versionKey(), member(id))
	}
	_, err := pipe.Exec(ctx)
	return err
}
