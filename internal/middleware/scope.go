package middleware

import (
	"lms_backend/internal/model"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
)

const scopeKey = "access_scope"

type courseOwnershipRepo interface {
	CourseIDsByTeacher(teacherID uint) ([]uint, error)
}

// CourseScope 每个请求解析一次“当前身份 + 可访问范围”，
// 各 handler 消费解析好的 AccessScope，不再各自查课程归属
func CourseScope(courses courseOwnershipRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := util.GetUserFromContext(c)
		if claims == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		scope := &model.AccessScope{
			UserID: claims.UserID,
			Role:   claims.Role,
			Email:  claims.Email,
		}

		if scope.IsTeacher() {
			ids, err := courses.CourseIDsByTeacher(claims.UserID)
			if err != nil {
				util.LogInternalError(c, err)
				c.Abort()
				return
			}
			scope.OwnedCourseIDs = ids
		}

		c.Set(scopeKey, scope)
		c.Next()
	}
}

func ScopeFromContext(c *gin.Context) *model.AccessScope {
	v, exists := c.Get(scopeKey)
	if !exists {
		return nil
	}
	scope, ok := v.(*model.AccessScope)
	if !ok {
		return nil
	}
	return scope
}
