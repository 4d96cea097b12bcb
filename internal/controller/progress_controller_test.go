package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/service"
	"lms_backend/internal/util"
	"lms_backend/pkg/database"
	"lms_backend/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	gin.SetMode(gin.TestMode)
	m.Run()
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(service.CompletionNotice) error { return nil }

// setupProgressRouter 真实服务栈 + 内存库，身份由注入的 claims 固定
func setupProgressRouter(t *testing.T, userID uint) (*gin.Engine, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	progressRepo := repository.NewProgressRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	userRepo := repository.NewUserRepository(db)

	progressService := service.NewProgressService(progressRepo, activityRepo, courseRepo, quizRepo, userRepo, noopDispatcher{})
	queryService := service.NewProgressQueryService(progressRepo, activityRepo, courseRepo, userRepo, nil)
	ctrl := NewProgressController(progressService, queryService)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user", &util.Claims{UserID: userID, Role: model.Student})
	})
	router.POST("/api/progress/lesson-completed", ctrl.LessonCompleted)
	router.GET("/api/progress/my-progress", ctrl.MyProgress)
	return router, db
}

func postJSON(t *testing.T, router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code int `json:"code"`
	Data struct {
		Message string `json:"message"`
	} `json:"data"`
}

func TestLessonCompletedDuplicateEnvelope(t *testing.T) {
	router, db := setupProgressRouter(t, 1)

	student := &model.User{Name: "小明", Email: "ming@example.com", Role: model.Student}
	require.NoError(t, db.Create(student).Error)
	require.Equal(t, uint(1), student.ID)

	course := &model.Course{Title: "Go 入门", Published: true}
	require.NoError(t, db.Create(course).Error)
	mod := &model.CourseModule{CourseID: course.ID, Title: "基础"}
	require.NoError(t, db.Create(mod).Error)
	lesson := &model.Lesson{CourseID: course.ID, ModuleID: mod.ID, Title: "第一课"}
	require.NoError(t, db.Create(lesson).Error)
	require.NoError(t, db.Create(&model.Lesson{CourseID: course.ID, ModuleID: mod.ID, Title: "第二课"}).Error)

	body := map[string]interface{}{
		"courseId": course.ID,
		"moduleId": mod.ID,
		"lessonId": lesson.ID,
	}

	first := postJSON(t, router, "/api/progress/lesson-completed", body)
	require.Equal(t, http.StatusOK, first.Code)

	var firstResp envelope
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &firstResp))
	assert.Equal(t, "progress recorded", firstResp.Data.Message)

	// 重复提交仍是 200，但提示已完成且不产生新记录
	second := postJSON(t, router, "/api/progress/lesson-completed", body)
	require.Equal(t, http.StatusOK, second.Code)

	var secondResp envelope
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &secondResp))
	assert.Equal(t, "already completed", secondResp.Data.Message)

	var count int64
	require.NoError(t, db.Model(&model.ProgressRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestLessonCompletedValidation(t *testing.T) {
	router, _ := setupProgressRouter(t, 1)

	w := postJSON(t, router, "/api/progress/lesson-completed", map[string]interface{}{"moduleId": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMyProgressReturnsRecords(t *testing.T) {
	router, db := setupProgressRouter(t, 1)

	student := &model.User{Name: "小明", Email: "ming@example.com", Role: model.Student}
	require.NoError(t, db.Create(student).Error)
	course := &model.Course{Title: "Go 入门", Published: true}
	require.NoError(t, db.Create(course).Error)
	mod := &model.CourseModule{CourseID: course.ID, Title: "基础"}
	require.NoError(t, db.Create(mod).Error)
	lesson := &model.Lesson{CourseID: course.ID, ModuleID: mod.ID, Title: "第一课"}
	require.NoError(t, db.Create(lesson).Error)
	require.NoError(t, db.Create(&model.Lesson{CourseID: course.ID, ModuleID: mod.ID, Title: "第二课"}).Error)

	postJSON(t, router, "/api/progress/lesson-completed", map[string]interface{}{
		"courseId": course.ID,
		"moduleId": mod.ID,
		"lessonId": lesson.ID,
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/progress/my-progress", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Code int                    `json:"code"`
		Data []model.ProgressRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, model.EventLessonCompleted, resp.Data[0].EventType)
}
