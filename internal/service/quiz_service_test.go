package service

import (
	"fmt"
	"testing"

	"lms_backend/internal/model"
	"lms_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedQuiz(t *testing.T, env *testEnv, courseID, moduleID uint, questions int, answers ...string) *model.Quiz {
	t.Helper()
	quiz := env.createQuiz(t, &model.Quiz{
		CourseID:     courseID,
		ModuleID:     moduleID,
		Title:        "单元测验",
		Published:    true,
		PassingScore: 70,
		MaxAttempts:  3,
	})
	for i := 0; i < questions; i++ {
		answer := "A"
		if i < len(answers) {
			answer = answers[i]
		}
		require.NoError(t, env.db.Create(&model.QuizQuestion{
			QuizID:  quiz.ID,
			Type:    model.MultipleChoice,
			Content: fmt.Sprintf("第 %d 题", i+1),
			Answer:  answer,
			Order:   i,
		}).Error)
	}
	return quiz
}

func TestStartAttemptChecks(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.createUser(t, "王老师", model.Teacher)
	student := env.createUser(t, "小明", model.Student)
	course := env.createCourse(t, teacher.ID)

	_, err := env.quiz.StartAttempt(student.ID, 999)
	assert.ErrorIs(t, err, util.ErrQuizNotFound)

	unpublished := env.createQuiz(t, &model.Quiz{CourseID: course.ID, Title: "草稿", Published: false, MaxAttempts: 3})
	_, err = env.quiz.StartAttempt(student.ID, unpublished.ID)
	assert.ErrorIs(t, err, util.ErrQuizNotPublished)

	quiz := seedQuiz(t, env, course.ID, 0, 2)
	_, err = env.quiz.StartAttempt(student.ID, quiz.ID)
	assert.ErrorIs(t, err, util.ErrNotEnrolled)
}

func TestStartAttemptSingleInProgress(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.createUser(t, "王老师", model.Teacher)
	student := env.createUser(t, "小明", model.Student)
	course := env.createCourse(t, teacher.ID)
	quiz := seedQuiz(t, env, course.ID, 0, 2)
	env.enroll(t, student.ID, course.ID)

	attempt, err := env.quiz.StartAttempt(student.ID, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, attempt.AttemptNumber)

	_, err = env.quiz.StartAttempt(student.ID, quiz.ID)
	assert.ErrorIs(t, err, util.ErrAttemptInProgress)
}

func TestSubmitWithoutActiveAttempt(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.createUser(t, "王老师", model.Teacher)
	student := env.createUser(t, "小明", model.Student)
	course := env.createCourse(t, teacher.ID)
	quiz := seedQuiz(t, env, course.ID, 0, 2)
	env.enroll(t, student.ID, course.ID)

	_, err := env.quiz.SubmitAttempt(student.ID, quiz.ID, QuizSubmission{Answers: map[uint]string{}})
	assert.ErrorIs(t, err, util.ErrNoActiveAttempt)
}

func TestSubmitScoring(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.createUser(t, "王老师", model.Teacher)
	student := env.createUser(t, "小明", model.Student)
	course := env.createCourse(t, teacher.ID)
	quiz := seedQuiz(t, env, course.ID, 0, 4, "A", "B", "C", "D")
	env.enroll(t, student.ID, course.ID)

	_, err := env.quiz.StartAttempt(student.ID, quiz.ID)
	require.NoError(t, err)

	var questions []model.QuizQuestion
	require.NoError(t, env.db.Where("quiz_id = ?", quiz.ID).Order("`order`").Find(&questions).Error)

	// 答对 3/4，四舍五入得 75 分，过 70 的及格线
	answers := map[uint]string{
		questions[0].ID: "a",  // 忽略大小写
		questions[1].ID: " B", // 忽略首尾空白
		questions[2].ID: "C",
		questions[3].ID: "X",
	}
	result, err := env.quiz.SubmitAttempt(student.ID, quiz.ID, QuizSubmission{Answers: answers, TimeTakenSeconds: 300})
	require.NoError(t, err)

	assert.Equal(t, 75, result.Score)
	assert.Equal(t, 3, result.Correct)
	assert.Equal(t, 4, result.Total)
	assert.True(t, result.Passed)

	// 通过记 quiz_passed 进度事件
	assert.EqualValues(t, 1, env.countRecords(t, student.ID, course.ID, model.EventQuizPassed))
}

func TestSubmitZeroQuestionQuiz(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.createUser(t, "王老师", model.Teacher)
	student := env.createUser(t, "小明", model.Student)
	course := env.createCourse(t, teacher.ID)
	quiz := seedQuiz(t, env, course.ID, 0, 0)
	env.enroll(t, student.ID, course.ID)

	_, err := env.quiz.StartAttempt(student.ID, quiz.ID)
	require.NoError(t, err)

	result, err := env.quiz.SubmitAttempt(student.ID, quiz.ID, QuizSubmission{Answers: map[uint]string{}})
	require.NoError(t, err)

	assert.Equal(t, 0, result.Score)
	assert.False(t, result.Passed)
	assert.EqualValues(t, 1, env.countRecords(t, student.ID, course.ID, model.EventQuizFailed))
}

func TestAttemptLimitAndNumbering(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.createUser(t, "王老师", model.Teacher)
	student := env.createUser(t, "小明", model.Student)
	course := env.createCourse(t, teacher.ID)
	quiz := seedQuiz(t, env, course.ID, 0, 1, "A")
	quiz.MaxAttempts = 2
	require.NoError(t, env.db.Save(quiz).Error)
	env.enroll(t, student.ID, course.ID)

	for i := 1; i <= 2; i++ {
		attempt, err := env.quiz.StartAttempt(student.ID, quiz.ID)
		require.NoError(t, err)
		assert.Equal(t, i, attempt.AttemptNumber)
		_, err = env.quiz.SubmitAttempt(student.ID, quiz.ID, QuizSubmission{Answers: map[uint]string{}})
		require.NoError(t, err)
	}

	_, err := env.quiz.StartAttempt(student.ID, quiz.ID)
	assert.ErrorIs(t, err, util.ErrMaxAttemptsReached)
}

func TestFailedThenPassedExamUnlocksModule(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.createUser(t, "王老师", model.Teacher)
	student := env.createUser(t, "小明", model.Student)
	course := env.createCourse(t, teacher.ID)
	mod := env.createModule(t, course.ID, "基础")
	lesson := env.createLesson(t, course.ID, mod.ID, "第一课")
	exam := seedQuiz(t, env, course.ID, mod.ID, 2, "A", "B")
	exam.IsModuleExam = true
	require.NoError(t, env.db.Save(exam).Error)
	env.enroll(t, student.ID, course.ID)

	_, _, err := env.progress.RecordLessonCompleted(student.ID, course.ID, mod.ID, lesson.ID, lesson.Title, 60)
	require.NoError(t, err)

	var questions []model.QuizQuestion
	require.NoError(t, env.db.Where("quiz_id = ?", exam.ID).Order("`order`").Find(&questions).Error)

	// 第一次 1/2 = 50 分不及格，模块保持未完成
	_, err = env.quiz.StartAttempt(student.ID, exam.ID)
	require.NoError(t, err)
	result, err := env.quiz.SubmitAttempt(student.ID, exam.ID, QuizSubmission{
		Answers: map[uint]string{questions[0].ID: "A", questions[1].ID: "X"},
	})
	require.NoError(t, err)
	require.False(t, result.Passed)
	assert.EqualValues(t, 0, env.countRecords(t, student.ID, course.ID, model.EventModuleCompleted))

	// 重考通过后级联出模块完成
	_, err = env.quiz.StartAttempt(student.ID, exam.ID)
	require.NoError(t, err)
	result, err = env.quiz.SubmitAttempt(student.ID, exam.ID, QuizSubmission{
		Answers: map[uint]string{questions[0].ID: "A", questions[1].ID: "B"},
	})
	require.NoError(t, err)
	require.True(t, result.Passed)
	assert.Equal(t, 2, result.AttemptNumber)
	assert.EqualValues(t, 1, env.countRecords(t, student.ID, course.ID, model.EventModuleCompleted))
}

func TestResultsRequiresCourseAccess(t *testing.T) {
	env := newTestEnv(t)
	teacher := env.createUser(t, "王老师", model.Teacher)
	other := env.createUser(t, "李老师", model.Teacher)
	student := env.createUser(t, "小明", model.Student)
	course := env.createCourse(t, teacher.ID)
	quiz := seedQuiz(t, env, course.ID, 0, 1, "A")
	env.enroll(t, student.ID, course.ID)

	_, err := env.quiz.StartAttempt(student.ID, quiz.ID)
	require.NoError(t, err)
	_, err = env.quiz.SubmitAttempt(student.ID, quiz.ID, QuizSubmission{Answers: map[uint]string{}})
	require.NoError(t, err)

	ownerScope := &model.AccessScope{UserID: teacher.ID, Role: model.Teacher, OwnedCourseIDs: []uint{course.ID}}
	results, err := env.quiz.Results(ownerScope, quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, results.AttemptCount)
	assert.Equal(t, 0.0, results.PassRate)

	otherScope := &model.AccessScope{UserID: other.ID, Role: model.Teacher}
	_, err = env.quiz.Results(otherScope, quiz.ID)
	assert.ErrorIs(t, err, util.ErrPermissionDenied)

	adminScope := &model.AccessScope{UserID: 42, Role: model.Admin}
	_, err = env.quiz.Results(adminScope, quiz.ID)
	assert.NoError(t, err)
}
