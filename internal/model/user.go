package model

import (
	"time"
)

type UserRole string

const (
	Student    UserRole = "student"
	Instructor UserRole = "instructor"
	Admin      UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name      string     `gorm:"size:100;not null" json:"name"`
	Email     string     `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password  string     `gorm:"size:100;not null" json:"-"`
	Role      UserRole   `gorm:"size:20;not null;default:'student'" json:"role"`
	Points    int        `gorm:"not null;default:0" json:"points"` // 积分流水之和的缓存
	Level     int        `gorm:"not null;default:1" json:"level"`
	Avatar    string     `gorm:"size:255" json:"avatar"`
	LastLogin *time.Time `json:"lastLogin"`
	LastSeen  *time.Time `json:"lastSeen"`
}

func (User) TableName() string {
	return "users"
}
