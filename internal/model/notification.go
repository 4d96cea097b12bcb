package model

import (
	"gorm.io/datatypes"
)

type NotificationType string

const (
	NotifyModuleCompletion NotificationType = "module_completion"
	NotifyCourseCompletion NotificationType = "course_completion"
)

// swagger:model Notification
type Notification struct {
	BaseModel
	UserID  uint              `gorm:"index;not null" json:"userId"`
	Type    NotificationType  `gorm:"size:40;not null" json:"type"`
	Title   string            `gorm:"size:255;not null" json:"title"`
	Message string            `gorm:"size:500" json:"message"`
	Data    datatypes.JSONMap `json:"data"`
	Read    bool              `gorm:"default:false" json:"read"`
}

func (Notification) TableName() string {
	return "notifications"
}
