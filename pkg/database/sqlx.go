package database

import (
	"strings"

	"github.com/jmoiron/sqlx"
	"gorm.io/gorm"
)

// sqlxDriverName 仅用于决定占位符风格
func sqlxDriverName(driver string) string {
	switch strings.ToLower(driver) {
	case DriverPostgres:
		return "pgx"
	case DriverSQLite:
		return "sqlite3"
	}
	return "mysql"
}

// NewSQLX 复用 gorm 的连接池，供只读报表查询使用
func NewSQLX(db *gorm.DB, driver string) (*sqlx.DB, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	return sqlx.NewDb(sqlDB, sqlxDriverName(driver)), nil
}
