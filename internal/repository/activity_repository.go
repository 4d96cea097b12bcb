package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type ActivityRepository struct {
	DB *gorm.DB
}

func NewActivityRepository(db *gorm.DB) *ActivityRepository {
	return &ActivityRepository{DB: db}
}

func (r *ActivityRepository) Create(log *model.ActivityLog) error {
	return r.DB.Create(log).Error
}

func (r *ActivityRepository) RecentByUserAndCourse(userID, courseID uint, limit int) ([]model.ActivityLog, error) {
	var logs []model.ActivityLog
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

func (r *ActivityRepository) RecentByCourse(courseID uint, limit int) ([]model.ActivityLog, error) {
	var logs []model.ActivityLog
	err := r.DB.Where("course_id = ?", courseID).
		Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
