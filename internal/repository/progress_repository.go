package repository

import (
	"errors"

	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

// Insert 写入一条进度记录。一次性事件撞上唯一索引时返回已有记录，
// already=true 表示本次没有写入新行
func (r *ProgressRepository) Insert(record *model.ProgressRecord) (*model.ProgressRecord, bool, error) {
	err := r.DB.Create(record).Error
	if err == nil {
		return record, false, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, false, err
	}

	var existing model.ProgressRecord
	if err := r.DB.Where("dedup_key = ?", record.DedupKey).First(&existing).Error; err != nil {
		return nil, false, err
	}
	return &existing, true, nil
}

func (r *ProgressRepository) ListByUser(userID uint) ([]model.ProgressRecord, error) {
	var records []model.ProgressRecord
	err := r.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&records).Error
	return records, err
}

func (r *ProgressRepository) ListByUserAndCourse(userID, courseID uint) ([]model.ProgressRecord, error) {
	var records []model.ProgressRecord
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("created_at DESC").Find(&records).Error
	return records, err
}

// CompletedLessonIDs 学生在课程内已完成的课时 id 集合
func (r *ProgressRepository) CompletedLessonIDs(userID, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.ProgressRecord{}).
		Where("user_id = ? AND course_id = ? AND event_type = ?", userID, courseID, model.EventLessonCompleted).
		Pluck("target_id", &ids).Error
	return ids, err
}

// CompletedModuleIDs 学生在课程内已有 module_completed 记录的模块 id 集合
func (r *ProgressRepository) CompletedModuleIDs(userID, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.ProgressRecord{}).
		Where("user_id = ? AND course_id = ? AND event_type = ?", userID, courseID, model.EventModuleCompleted).
		Pluck("target_id", &ids).Error
	return ids, err
}

func (r *ProgressRepository) CountByType(userID, courseID uint, eventType model.ProgressEventType) (int64, error) {
	var count int64
	err := r.DB.Model(&model.ProgressRecord{}).
		Where("user_id = ? AND course_id = ? AND event_type = ?", userID, courseID, eventType).
		Count(&count).Error
	return count, err
}

// CountDistinctTargets 可重复事件按目标去重计数（例如多次通过同一测验只算一个）
func (r *ProgressRepository) CountDistinctTargets(userID, courseID uint, eventType model.ProgressEventType) (int64, error) {
	var count int64
	err := r.DB.Model(&model.ProgressRecord{}).
		Where("user_id = ? AND course_id = ? AND event_type = ?", userID, courseID, eventType).
		Distinct("target_id").Count(&count).Error
	return count, err
}

func (r *ProgressRepository) CountAllByUserAndCourse(userID, courseID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.ProgressRecord{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count, err
}

func (r *ProgressRepository) CourseCompletion(userID, courseID uint) (*model.ProgressRecord, error) {
	var record model.ProgressRecord
	err := r.DB.Where("user_id = ? AND course_id = ? AND event_type = ?",
		userID, courseID, model.EventCourseCompleted).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *ProgressRepository) ModuleCompletions(userID, courseID uint) ([]model.ProgressRecord, error) {
	var records []model.ProgressRecord
	err := r.DB.Where("user_id = ? AND course_id = ? AND event_type = ?",
		userID, courseID, model.EventModuleCompleted).
		Order("created_at ASC").Find(&records).Error
	return records, err
}
