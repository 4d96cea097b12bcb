package model

import (
	"fmt"

	"gorm.io/datatypes"
)

type ProgressEventType string

const (
	EventLessonCompleted        ProgressEventType = "lesson_completed"
	EventQuizPassed             ProgressEventType = "quiz_passed"
	EventQuizFailed             ProgressEventType = "quiz_failed"
	EventAssignmentSubmitted    ProgressEventType = "assignment_submitted"
	EventDiscussionParticipated ProgressEventType = "discussion_participated"
	EventPollResponded          ProgressEventType = "poll_responded"
	EventModuleCompleted        ProgressEventType = "module_completed"
	EventCourseCompleted        ProgressEventType = "course_completed"
)

type ProgressStatus string

const (
	StatusCompleted ProgressStatus = "completed"
	StatusSubmitted ProgressStatus = "submitted"
	StatusFailed    ProgressStatus = "failed"
)

// OneTime 一次性成就类事件只允许一条记录，重复提交返回已有记录
func (t ProgressEventType) OneTime() bool {
	switch t {
	case EventLessonCompleted, EventModuleCompleted, EventCourseCompleted:
		return true
	}
	return false
}

// ProgressRecord 学习进度事件，只追加不修改，作为所有聚合计算的审计日志
// swagger:model ProgressRecord
type ProgressRecord struct {
	BaseModel
	UserID    uint              `gorm:"index;not null" json:"userId"`
	CourseID  uint              `gorm:"index;not null" json:"courseId"`
	ModuleID  uint              `gorm:"index" json:"moduleId"`
	TargetID  uint              `gorm:"index" json:"targetId"`
	EventType ProgressEventType `gorm:"size:40;not null" json:"eventType"`
	Status    ProgressStatus    `gorm:"size:20;default:'completed'" json:"status"`
	Score     int               `gorm:"default:0" json:"score"`
	TimeSpent int               `gorm:"default:0" json:"timeSpent"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	// DedupKey 一次性事件用确定性键，由唯一索引在存储层关闭“先查后插”的竞态；
	// 可重复事件用随机 UUID，不参与去重
	DedupKey string `gorm:"size:191;uniqueIndex;not null" json:"-"`
}

func (ProgressRecord) TableName() string {
	return "progress_records"
}

// OneTimeDedupKey 一次性事件的确定性去重键
func OneTimeDedupKey(userID, courseID, targetID uint, eventType ProgressEventType) string {
	return fmt.Sprintf("u:%d:c:%d:t:%d:%s", userID, courseID, targetID, eventType)
}

// ActivityLog 人类可读的学习动态，供看板最近活动展示
type ActivityLog struct {
	BaseModel
	UserID   uint   `gorm:"index;not null" json:"userId"`
	CourseID uint   `gorm:"index;not null" json:"courseId"`
	Action   string `gorm:"size:60;not null" json:"action"`
	Detail   string `gorm:"size:500" json:"detail"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}
