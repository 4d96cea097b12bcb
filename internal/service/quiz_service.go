package service

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"

	"gorm.io/gorm"
)

type QuizService struct {
	QuizRepo   *repository.QuizRepository
	CourseRepo *repository.CourseRepository
	UserRepo   *repository.UserRepository
	Progress   *ProgressService
}

func NewQuizService(quizRepo *repository.QuizRepository, courseRepo *repository.CourseRepository, userRepo *repository.UserRepository, progress *ProgressService) *QuizService {
	return &QuizService{
		QuizRepo:   quizRepo,
		CourseRepo: courseRepo,
		UserRepo:   userRepo,
		Progress:   progress,
	}
}

// StartAttempt 状态机入口 not_started → in_progress。
// 校验选课、次数上限，同一时刻只允许一条进行中的尝试
func (s *QuizService) StartAttempt(userID, quizID uint) (*model.QuizAttempt, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	if !quiz.Published {
		return nil, util.ErrQuizNotPublished
	}

	enrolled, err := s.CourseRepo.IsEnrolled(userID, quiz.CourseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.ErrNotEnrolled
	}

	active, err := s.QuizRepo.ActiveAttempt(quizID, userID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, util.ErrAttemptInProgress
	}

	count, err := s.QuizRepo.CountAttempts(quizID, userID)
	if err != nil {
		return nil, err
	}
	if quiz.MaxAttempts > 0 && count >= int64(quiz.MaxAttempts) {
		return nil, util.ErrMaxAttemptsReached
	}

	attempt := &model.QuizAttempt{
		QuizID:    quizID,
		UserID:    userID,
		StartedAt: time.Now(),
	}
	// 编号防重号靠 (quiz, user, attempt_number) 唯一索引，见仓储层
	if err := s.QuizRepo.CreateAttempt(attempt); err != nil {
		return nil, err
	}
	return attempt, nil
}

type QuizSubmission struct {
	Answers          map[uint]string `json:"answers" binding:"required"` // questionID -> 答案
	TimeTakenSeconds int             `json:"timeTakenSeconds"`
}

type QuizAttemptResult struct {
	AttemptNumber int  `json:"attemptNumber"`
	Score         int  `json:"score"`
	Passed        bool `json:"passed"`
	Correct       int  `json:"correct"`
	Total         int  `json:"total"`
}

// SubmitAttempt in_progress → completed。逐题精确比对计分，
// score = round(100*correct/total)；零题测验得 0 分且不可能通过。
// 通过时记 quiz_passed 进度，模块考试再触发模块完成评估
func (s *QuizService) SubmitAttempt(userID, quizID uint, submission QuizSubmission) (*QuizAttemptResult, error) {
	attempt, err := s.QuizRepo.ActiveAttempt(quizID, userID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, util.ErrNoActiveAttempt
	}

	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		return nil, err
	}

	correct := 0
	total := len(quiz.Questions)
	for _, q := range quiz.Questions {
		answer, ok := submission.Answers[q.ID]
		if !ok {
			continue
		}
		switch q.Type {
		case model.MultipleChoice, model.TrueFalse:
			if strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.Answer)) {
				correct++
			}
		}
	}

	score := 0
	if total > 0 {
		score = int(math.Round(100 * float64(correct) / float64(total)))
	}
	passed := total > 0 && score >= quiz.PassingScore

	now := time.Now()
	answers := make(map[string]interface{}, len(submission.Answers))
	for qid, answer := range submission.Answers {
		answers[fmt.Sprint(qid)] = answer
	}
	attempt.Answers = answers
	attempt.Score = score
	attempt.Passed = passed
	attempt.TimeTaken = submission.TimeTakenSeconds
	attempt.CompletedAt = &now

	if err := s.QuizRepo.SaveAttempt(attempt); err != nil {
		return nil, err
	}

	if _, err := s.Progress.RecordQuizCompleted(userID, quiz.CourseID, quiz.ModuleID, quiz.ID, score, passed, submission.TimeTakenSeconds); err != nil {
		return nil, err
	}

	return &QuizAttemptResult{
		AttemptNumber: attempt.AttemptNumber,
		Score:         score,
		Passed:        passed,
		Correct:       correct,
		Total:         total,
	}, nil
}

type QuizResultRow struct {
	UserID        uint      `json:"userId"`
	StudentName   string    `json:"studentName"`
	AttemptNumber int       `json:"attemptNumber"`
	Score         int       `json:"score"`
	Passed        bool      `json:"passed"`
	TimeTaken     int       `json:"timeTaken"`
	CompletedAt   time.Time `json:"completedAt"`
}

type QuizResults struct {
	Quiz         *model.Quiz     `json:"quiz"`
	Attempts     []QuizResultRow `json:"attempts"`
	AttemptCount int             `json:"attemptCount"`
	PassRate     float64         `json:"passRate"`
	AverageScore float64         `json:"averageScore"`
}

// Results 教师端成绩单，需要对测验所属课程有访问权
func (s *QuizService) Results(scope *model.AccessScope, quizID uint) (*QuizResults, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	if !scope.OwnsCourse(quiz.CourseID) {
		return nil, util.ErrPermissionDenied
	}

	attempts, err := s.QuizRepo.AttemptsByQuiz(quizID)
	if err != nil {
		return nil, err
	}

	rows := make([]QuizResultRow, 0, len(attempts))
	passedCount := 0
	scoreSum := 0
	for _, a := range attempts {
		row := QuizResultRow{
			UserID:        a.UserID,
			StudentName:   s.UserRepo.NameOf(a.UserID),
			AttemptNumber: a.AttemptNumber,
			Score:         a.Score,
			Passed:        a.Passed,
			TimeTaken:     a.TimeTaken,
		}
		if a.CompletedAt != nil {
			row.CompletedAt = *a.CompletedAt
		}
		rows = append(rows, row)
		if a.Passed {
			passedCount++
		}
		scoreSum += a.Score
	}

	results := &QuizResults{
		Quiz:         quiz,
		Attempts:     rows,
		AttemptCount: len(rows),
	}
	if len(rows) > 0 {
		results.PassRate = float64(passedCount) / float64(len(rows))
		results.AverageScore = float64(scoreSum) / float64(len(rows))
	}
	return results, nil
}
