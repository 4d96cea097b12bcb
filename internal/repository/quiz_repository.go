package repository

import (
	"errors"

	"lms_backend/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) FindByID(id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("quiz_questions.`order` ASC")
	}).First(&quiz, id).Error
	return &quiz, err
}

// FindModuleExam 模块的已发布模块考试，没有配置时返回 nil
func (r *QuizRepository) FindModuleExam(moduleID uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.Where("module_id = ? AND is_module_exam = ? AND published = ?",
		moduleID, true, true).First(&quiz).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

func (r *QuizRepository) CountAttempts(quizID, userID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).
		Where("quiz_id = ? AND user_id = ?", quizID, userID).Count(&count).Error
	return count, err
}

// ActiveAttempt 进行中的尝试（无完成时间），没有时返回 nil
func (r *QuizRepository) ActiveAttempt(quizID, userID uint) (*model.QuizAttempt, error) {
	var attempt model.QuizAttempt
	err := r.DB.Where("quiz_id = ? AND user_id = ? AND completed_at IS NULL", quizID, userID).
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// HasPassedAttempt 学生对该测验是否有已通过的尝试
func (r *QuizRepository) HasPassedAttempt(quizID, userID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&model.QuizAttempt{}).
		Where("quiz_id = ? AND user_id = ? AND passed = ?", quizID, userID, true).
		Count(&count).Error
	return count > 0, err
}

// 并发开卷撞号时的重取号上限
const attemptNumberRetries = 5

// CreateAttempt 取 MAX+1 作为候选编号，真正的防重号在
// (quiz_id, user_id, attempt_number) 唯一索引：并发插入同号时
// 落败方收到 gorm.ErrDuplicatedKey，重读 MAX 再试
func (r *QuizRepository) CreateAttempt(attempt *model.QuizAttempt) error {
	var err error
	for i := 0; i < attemptNumberRetries; i++ {
		var maxNumber int64
		if err = r.DB.Model(&model.QuizAttempt{}).
			Where("quiz_id = ? AND user_id = ?", attempt.QuizID, attempt.UserID).
			Select("COALESCE(MAX(attempt_number), 0)").Scan(&maxNumber).Error; err != nil {
			return err
		}
		attempt.AttemptNumber = int(maxNumber) + 1

		err = r.DB.Create(attempt).Error
		if err == nil || !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
	}
	return err
}

func (r *QuizRepository) SaveAttempt(attempt *model.QuizAttempt) error {
	return r.DB.Save(attempt).Error
}

func (r *QuizRepository) AttemptsByQuiz(quizID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.Where("quiz_id = ? AND completed_at IS NOT NULL", quizID).
		Order("completed_at DESC").Find(&attempts).Error
	return attempts, err
}
