package model

import (
	"time"
)

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name     string    `gorm:"size:100;not null" json:"name"`
	Email    string    `gorm:"size:100;unique;not null" json:"email"`
	Role     UserRole  `gorm:"size:20;default:'student'" json:"role"`
	Language string    `gorm:"size:10;default:'en'" json:"language"`
	Avatar   string    `gorm:"size:255" json:"avatar"`
	Disabled bool      `gorm:"default:false" json:"disabled"`
	LastSeen time.Time `json:"lastSeen"`
}

func (User) TableName() string {
	return "users"
}

// AccessScope 每个请求解析一次的访问范围，替代散落在各接口里的角色判断
type AccessScope struct {
	UserID         uint
	Role           UserRole
	Email          string
	OwnedCourseIDs []uint
}

// OwnsCourse 教师是否拥有该课程（管理员视为拥有全部课程）
func (s *AccessScope) OwnsCourse(courseID uint) bool {
	if s.Role == Admin {
		return true
	}
	for _, id := range s.OwnedCourseIDs {
		if id == courseID {
			return true
		}
	}
	return false
}

func (s *AccessScope) IsTeacher() bool {
	return s.Role == Teacher || s.Role == Admin
}
