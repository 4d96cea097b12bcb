package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"lms_backend/internal/model"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCourseRepo struct {
	ids map[uint][]uint
}

func (s *stubCourseRepo) CourseIDsByTeacher(teacherID uint) ([]uint, error) {
	return s.ids[teacherID], nil
}

func performWithClaims(t *testing.T, claims *util.Claims, repo courseOwnershipRepo) (*httptest.ResponseRecorder, *model.AccessScope) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	var captured *model.AccessScope
	router := gin.New()
	router.GET("/x",
		func(c *gin.Context) {
			if claims != nil {
				c.Set("user", claims)
			}
		},
		CourseScope(repo),
		func(c *gin.Context) {
			captured = ScopeFromContext(c)
			c.Status(http.StatusOK)
		})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	router.ServeHTTP(w, req)
	return w, captured
}

func TestCourseScopeResolvesTeacherCourses(t *testing.T) {
	repo := &stubCourseRepo{ids: map[uint][]uint{3: {10, 11}}}
	claims := &util.Claims{UserID: 3, Role: model.Teacher, Email: "t@example.com"}

	w, scope := performWithClaims(t, claims, repo)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, scope)
	assert.Equal(t, []uint{10, 11}, scope.OwnedCourseIDs)
	assert.True(t, scope.OwnsCourse(10))
	assert.False(t, scope.OwnsCourse(12))
}

func TestCourseScopeStudentHasNoOwnedCourses(t *testing.T) {
	repo := &stubCourseRepo{ids: map[uint][]uint{}}
	claims := &util.Claims{UserID: 5, Role: model.Student}

	w, scope := performWithClaims(t, claims, repo)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, scope)
	assert.Empty(t, scope.OwnedCourseIDs)
	assert.False(t, scope.OwnsCourse(10))
}

func TestCourseScopeRequiresAuthentication(t *testing.T) {
	repo := &stubCourseRepo{ids: map[uint][]uint{}}

	w, scope := performWithClaims(t, nil, repo)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Nil(t, scope)
}

func TestCourseScopeAdminOwnsEverything(t *testing.T) {
	repo := &stubCourseRepo{ids: map[uint][]uint{}}
	claims := &util.Claims{UserID: 1, Role: model.Admin}

	w, scope := performWithClaims(t, claims, repo)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, scope)
	assert.True(t, scope.OwnsCourse(999))
}
