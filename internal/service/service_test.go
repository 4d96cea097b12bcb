package service

import (
	"fmt"
	"sync"
	"testing"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/pkg/database"
	"lms_backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	m.Run()
}

// setupTestDB 每个测试一个独立的内存库。
// cache=shared 让连接池里的多条连接看到同一个库
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

// fakeDispatcher 记录派发的通知，供断言使用
type fakeDispatcher struct {
	mu      sync.Mutex
	notices []CompletionNotice
	fail    bool
}

func (d *fakeDispatcher) Dispatch(notice CompletionNotice) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return fmt.Errorf("dispatch failed")
	}
	d.notices = append(d.notices, notice)
	return nil
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.notices)
}

func (d *fakeDispatcher) forUser(userID uint) []CompletionNotice {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []CompletionNotice
	for _, n := range d.notices {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type testEnv struct {
	db         *gorm.DB
	progress   *ProgressService
	query      *ProgressQueryService
	quiz       *QuizService
	dispatcher *fakeDispatcher

	progressRepo *repository.ProgressRepository
	quizRepo     *repository.QuizRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := setupTestDB(t)
	progressRepo := repository.NewProgressRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	userRepo := repository.NewUserRepository(db)

	dispatcher := &fakeDispatcher{}
	progress := NewProgressService(progressRepo, activityRepo, courseRepo, quizRepo, userRepo, dispatcher)
	query := NewProgressQueryService(progressRepo, activityRepo, courseRepo, userRepo, nil)
	quiz := NewQuizService(quizRepo, courseRepo, userRepo, progress)

	return &testEnv{
		db:           db,
		progress:     progress,
		query:        query,
		quiz:         quiz,
		dispatcher:   dispatcher,
		progressRepo: progressRepo,
		quizRepo:     quizRepo,
	}
}

func (e *testEnv) createUser(t *testing.T, name string, role model.UserRole) *model.User {
	t.Helper()
	user := &model.User{
		Name:  name,
		Email: fmt.Sprintf("%s@example.com", uuid.NewString()[:8]),
		Role:  role,
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) createCourse(t *testing.T, teacherID uint) *model.Course {
	t.Helper()
	course := &model.Course{Title: "Go 入门", TeacherID: teacherID, Published: true}
	require.NoError(t, e.db.Create(course).Error)
	return course
}

func (e *testEnv) createModule(t *testing.T, courseID uint, title string) *model.CourseModule {
	t.Helper()
	mod := &model.CourseModule{CourseID: courseID, Title: title}
	require.NoError(t, e.db.Create(mod).Error)
	return mod
}

func (e *testEnv) createLesson(t *testing.T, courseID, moduleID uint, title string) *model.Lesson {
	t.Helper()
	lesson := &model.Lesson{CourseID: courseID, ModuleID: moduleID, Title: title}
	require.NoError(t, e.db.Create(lesson).Error)
	return lesson
}

func (e *testEnv) enroll(t *testing.T, userID, courseID uint) {
	t.Helper()
	require.NoError(t, e.db.Create(&model.Enrollment{UserID: userID, CourseID: courseID}).Error)
}

func (e *testEnv) createQuiz(t *testing.T, quiz *model.Quiz) *model.Quiz {
	t.Helper()
	require.NoError(t, e.db.Create(quiz).Error)
	return quiz
}

func (e *testEnv) countRecords(t *testing.T, userID, courseID uint, eventType model.ProgressEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Model(&model.ProgressRecord{}).
		Where("user_id = ? AND course_id = ? AND event_type = ?", userID, courseID, eventType).
		Count(&count).Error)
	return count
}
