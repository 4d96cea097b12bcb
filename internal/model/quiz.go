package model

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	MultipleChoice QuestionType = "multiple_choice"
	TrueFalse      QuestionType = "true_false"
)

// swagger:model Quiz
type Quiz struct {
	BaseModel
	CourseID     uint           `gorm:"index;not null" json:"courseId"`
	ModuleID     uint           `gorm:"index" json:"moduleId"`
	Title        string         `gorm:"size:255;not null" json:"title"`
	IsModuleExam bool           `gorm:"default:false" json:"isModuleExam"`
	Published    bool           `gorm:"default:false" json:"published"`
	PassingScore int            `gorm:"default:60" json:"passingScore"`
	MaxAttempts  int            `gorm:"default:3" json:"maxAttempts"`
	TimeLimit    int            `gorm:"default:0" json:"timeLimit"` // 分钟，0 表示不限时
	Questions    []QuizQuestion `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

type QuizQuestion struct {
	BaseModel
	QuizID  uint           `gorm:"index;not null" json:"quizId"`
	Type    QuestionType   `gorm:"size:20;not null" json:"type"`
	Content string         `gorm:"type:text;not null" json:"content"`
	Options datatypes.JSON `json:"options"`
	Answer  string         `gorm:"size:255;not null" json:"-"`
	Order   int            `gorm:"default:0" json:"order"`
}

func (QuizQuestion) TableName() string {
	return "quiz_questions"
}

// QuizAttempt 同一测验同一学生的尝试编号从 1 连续递增，
// 编号唯一性由 (quiz_id, user_id, attempt_number) 唯一索引在存储层保证。
// CompletedAt 为空表示进行中，同一时刻最多一条进行中
type QuizAttempt struct {
	BaseModel
	QuizID        uint              `gorm:"index:idx_quiz_user_attempt,unique;not null" json:"quizId"`
	UserID        uint              `gorm:"index:idx_quiz_user_attempt,unique;not null" json:"userId"`
	AttemptNumber int               `gorm:"index:idx_quiz_user_attempt,unique;not null" json:"attemptNumber"`
	Answers       datatypes.JSONMap `json:"answers"`
	Score         int               `gorm:"default:0" json:"score"`
	Passed        bool              `gorm:"default:false" json:"passed"`
	TimeTaken     int               `gorm:"default:0" json:"timeTaken"` // 秒
	StartedAt     time.Time         `json:"startedAt"`
	CompletedAt   *time.Time        `json:"completedAt"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}
