package database

import (
	"edumate_backend/internal/config"
	"edumate_backend/internal/model"
	"edumate_backend/pkg/logger"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverMySQL:
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		return mysql.Open(dsn), nil
	case DriverPostgres:
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
			cfg.Host,
			cfg.User,
			cfg.Password,
			cfg.DBName,
			cfg.Port,
			cfg.SSLMode,
		)
		return postgres.Open(dsn), nil
	case DriverSQLite:
		// 内存库（file::memory: / mode=memory）不需要建目录
		if !strings.Contains(cfg.Path, "memory") {
			if dir := filepath.Dir(cfg.Path); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return nil, err
				}
			}
		}
		return sqlite.Open(cfg.Path), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

// InitDB 建立连接，migrate 为 true 时执行 AutoMigrate 并写入默认数据
func InitDB(cfg *config.DatabaseConfig, migrate bool) (*gorm.DB, error) {
	d, err := dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(d, &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(cfg.Driver, DriverSQLite) {
		// SQLite 单写者，串行化连接避免 database is locked
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	logger.Log.Info("Database connection established", zap.String("driver", cfg.Driver))

	if !migrate {
		return db, nil
	}

	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		return nil, err
	}
	logger.Log.Info("Database migration completed")

	if err := seed(db); err != nil {
		return nil, err
	}

	return db, nil
}

// seed 默认徽章与成就，仅在表为空时写入
func seed(db *gorm.DB) error {
	var badgeCount int64
	if err := db.Model(&model.Badge{}).Count(&badgeCount).Error; err != nil {
		return err
	}
	if badgeCount == 0 {
		defaultBadges := []model.Badge{
			{Name: "Century", Description: "Earn 100 points", Icon: "💯", BadgeType: model.BadgeActivity, PointsRequired: 100},
			{Name: "High Roller", Description: "Earn 1000 points", Icon: "🏆", BadgeType: model.BadgeSpecial, PointsRequired: 1000},
			{
				Name: "Graduate", Description: "Complete your first course", Icon: "🎓", BadgeType: model.BadgeProgress, PointsReward: 25,
				Criterion: &model.BadgeCriterion{ProgressType: model.ProgressCourseCompletion, Threshold: 1},
			},
			{
				Name: "Quiz Master", Description: "Pass 5 quizzes with at least 90%", Icon: "🧠", BadgeType: model.BadgeMastery, PointsReward: 50,
				Criterion: &model.BadgeCriterion{ProgressType: model.ProgressQuizPerformance, Threshold: 5, MinScore: 90},
			},
		}
		for i := range defaultBadges {
			if err := db.Create(&defaultBadges[i]).Error; err != nil {
				return err
			}
		}
	}

	var achievementCount int64
	if err := db.Model(&model.Achievement{}).Count(&achievementCount).Error; err != nil {
		return err
	}
	if achievementCount == 0 {
		defaultAchievements := []model.Achievement{
			{Name: "First Steps", Description: "Enroll in your first course", Icon: "👣", Type: model.AchievementEnrollment, Threshold: 1, PointsReward: 5},
			{Name: "Perfect Score", Description: "Score 100% on a quiz", Icon: "⭐", Type: model.AchievementQuizScore, Threshold: 100, PointsReward: 30},
			{Name: "Finisher", Description: "Complete a course", Icon: "🏁", Type: model.AchievementCourseCompletion, Threshold: 1, PointsReward: 40},
			{Name: "On Fire", Description: "Keep a 7 day learning streak", Icon: "🔥", Type: model.AchievementStreak, Threshold: 7, PointsReward: 35},
			{Name: "Regular", Description: "Record 50 learning activities", Icon: "📚", Type: model.AchievementActivity, Threshold: 50, PointsReward: 20},
		}
		for i := range defaultAchievements {
			if err := db.Create(&defaultAchievements[i]).Error; err != nil {
				return err
			}
		}
	}

	return nil
}
