package repository

import (
	"fmt"
	"sync"
	"testing"

	"lms_backend/internal/model"
	"lms_backend/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func TestInsertReturnsExistingOnDuplicateKey(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProgressRepository(db)

	key := model.OneTimeDedupKey(1, 2, 3, model.EventLessonCompleted)
	first, already, err := repo.Insert(&model.ProgressRecord{
		UserID: 1, CourseID: 2, TargetID: 3,
		EventType: model.EventLessonCompleted,
		Status:    model.StatusCompleted,
		DedupKey:  key,
	})
	require.NoError(t, err)
	require.False(t, already)

	second, already, err := repo.Insert(&model.ProgressRecord{
		UserID: 1, CourseID: 2, TargetID: 3,
		EventType: model.EventLessonCompleted,
		Status:    model.StatusCompleted,
		DedupKey:  key,
	})
	require.NoError(t, err)
	assert.True(t, already)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&model.ProgressRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestInsertDistinctKeysBothKept(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProgressRepository(db)

	for i := 0; i < 2; i++ {
		_, already, err := repo.Insert(&model.ProgressRecord{
			UserID: 1, CourseID: 2, TargetID: 3,
			EventType: model.EventDiscussionParticipated,
			Status:    model.StatusCompleted,
			DedupKey:  uuid.NewString(),
		})
		require.NoError(t, err)
		assert.False(t, already)
	}

	var count int64
	require.NoError(t, db.Model(&model.ProgressRecord{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestCountDistinctTargets(t *testing.T) {
	db := setupTestDB(t)
	repo := NewProgressRepository(db)

	for _, target := range []uint{10, 10, 11} {
		_, _, err := repo.Insert(&model.ProgressRecord{
			UserID: 1, CourseID: 2, TargetID: target,
			EventType: model.EventQuizPassed,
			Status:    model.StatusCompleted,
			DedupKey:  uuid.NewString(),
		})
		require.NoError(t, err)
	}

	count, err := repo.CountDistinctTargets(1, 2, model.EventQuizPassed)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestCreateAttemptNumbersSequentially(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuizRepository(db)

	for i := 1; i <= 3; i++ {
		attempt := &model.QuizAttempt{QuizID: 5, UserID: 7}
		require.NoError(t, repo.CreateAttempt(attempt))
		assert.Equal(t, i, attempt.AttemptNumber)
	}

	// 其他学生从 1 重新编号
	other := &model.QuizAttempt{QuizID: 5, UserID: 8}
	require.NoError(t, repo.CreateAttempt(other))
	assert.Equal(t, 1, other.AttemptNumber)
}

func TestAttemptNumberUniquePerQuizAndUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuizRepository(db)

	first := &model.QuizAttempt{QuizID: 5, UserID: 7}
	require.NoError(t, repo.CreateAttempt(first))
	require.Equal(t, 1, first.AttemptNumber)

	// 同号直插必须被唯一索引拒绝，防重号不依赖应用层先查后插
	dup := &model.QuizAttempt{QuizID: 5, UserID: 7, AttemptNumber: 1}
	err := db.Create(dup).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// 另一个测验或学生的同号不受影响
	otherQuiz := &model.QuizAttempt{QuizID: 6, UserID: 7, AttemptNumber: 1}
	assert.NoError(t, db.Create(otherQuiz).Error)
}

func TestCreateAttemptConcurrentStartsGetDistinctNumbers(t *testing.T) {
	db := setupTestDB(t)
	repo := NewQuizRepository(db)

	const starts = 4
	attempts := make([]*model.QuizAttempt, starts)
	errs := make([]error, starts)

	var wg sync.WaitGroup
	for i := 0; i < starts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			attempts[i] = &model.QuizAttempt{QuizID: 9, UserID: 3}
			errs[i] = repo.CreateAttempt(attempts[i])
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool, starts)
	for i := 0; i < starts; i++ {
		require.NoError(t, errs[i])
		assert.False(t, seen[attempts[i].AttemptNumber], "attempt number %d assigned twice", attempts[i].AttemptNumber)
		seen[attempts[i].AttemptNumber] = true
	}
	for n := 1; n <= starts; n++ {
		assert.True(t, seen[n], "missing attempt number %d", n)
	}
}
