package repository

import (
	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) FindByID(id uint) (*model.Course, error) {
	var course model.Course
	err := r.DB.First(&course, id).Error
	return &course, err
}

func (r *CourseRepository) FindModule(id uint) (*model.CourseModule, error) {
	var mod model.CourseModule
	err := r.DB.First(&mod, id).Error
	return &mod, err
}

func (r *CourseRepository) ModuleIDsByCourse(courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.CourseModule{}).Where("course_id = ?", courseID).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *CourseRepository) LessonIDsByModule(moduleID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.Lesson{}).Where("module_id = ?", moduleID).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *CourseRepository) CountLessonsByCourse(courseID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Lesson{}).Where("course_id = ?", courseID).Count(&count).Error
	return count, err
}

func (r *CourseRepository) CountAssignmentsByCourse(courseID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Assignment{}).Where("course_id = ?", courseID).Count(&count).Error
	return count, err
}

func (r *CourseRepository) CountQuizzesByCourse(courseID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Quiz{}).Where("course_id = ? AND published = ?", courseID, true).
		Count(&count).Error
	return count, err
}

// CourseIDsByTeacher 教师可访问范围，由 CourseScope 中间件每请求解析一次
func (r *CourseRepository) CourseIDsByTeacher(teacherID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.Course{}).Where("teacher_id = ?", teacherID).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *CourseRepository) IsEnrolled(userID, courseID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}

func (r *CourseRepository) EnrolledUserIDs(courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&model.Enrollment{}).Where("course_id = ?", courseID).
		Pluck("user_id", &ids).Error
	return ids, err
}
