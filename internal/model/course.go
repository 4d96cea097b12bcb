package model

import (
	"time"
)

// swagger:model Course
type Course struct {
	BaseModel
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	TeacherID   uint   `gorm:"index" json:"teacherId"`
	Published   bool   `gorm:"default:false" json:"published"`
}

func (Course) TableName() string {
	return "courses"
}

// CourseModule 课程下的章节模块，模块完成状态由进度记录推导，不单独存表
type CourseModule struct {
	BaseModel
	CourseID uint   `gorm:"index;not null" json:"courseId"`
	Title    string `gorm:"size:255;not null" json:"title"`
	Order    int    `gorm:"default:0" json:"order"`
}

func (CourseModule) TableName() string {
	return "course_modules"
}

type Lesson struct {
	BaseModel
	CourseID uint   `gorm:"index;not null" json:"courseId"`
	ModuleID uint   `gorm:"index;not null" json:"moduleId"`
	Title    string `gorm:"size:255;not null" json:"title"`
	Order    int    `gorm:"default:0" json:"order"`
}

func (Lesson) TableName() string {
	return "lessons"
}

// Enrollment 选课记录，同一学生同一课程只允许一条
type Enrollment struct {
	BaseModel
	UserID   uint `gorm:"index:idx_user_course,unique;not null" json:"userId"`
	CourseID uint `gorm:"index:idx_user_course,unique;not null" json:"courseId"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}

type Assignment struct {
	BaseModel
	CourseID uint       `gorm:"index;not null" json:"courseId"`
	ModuleID uint       `gorm:"index" json:"moduleId"`
	Title    string     `gorm:"size:255;not null" json:"title"`
	DueDate  *time.Time `json:"dueDate"`
}

func (Assignment) TableName() string {
	return "assignments"
}
