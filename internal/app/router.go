package app

import (
	"lms_backend/internal/config"
	"lms_backend/internal/middleware"
	"lms_backend/internal/model"
	"lms_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", monitoring.PrometheusHandler())

	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	authenticated := router.Group("/api")
	authenticated.Use(middleware.AuthMiddleware(cfg))
	authenticated.Use(middleware.ActivityMiddleware(repos.user))
	{
		progress := authenticated.Group("/progress")
		{
			// 进度事件只接受学生身份上报
			events := progress.Group("")
			events.Use(middleware.RoleMiddleware(model.Student))
			{
				events.POST("/lesson-completed", c.progress.LessonCompleted)
				events.POST("/quiz-completed", c.progress.QuizCompleted)
				events.POST("/assignment-submitted", c.progress.AssignmentSubmitted)
				events.POST("/discussion-participated", c.progress.DiscussionParticipated)
				events.POST("/poll-responded", c.progress.PollResponded)
				events.POST("/poll-participation", c.progress.PollParticipation)
			}

			progress.GET("/my-progress", c.progress.MyProgress)
			progress.GET("/course/:courseId", c.progress.CourseProgress)
		}

		quizzes := authenticated.Group("/quizzes")
		quizzes.Use(middleware.RoleMiddleware(model.Student))
		{
			quizzes.POST("/:quizId/start", c.quiz.StartAttempt)
			quizzes.POST("/:quizId/submit", c.quiz.SubmitAttempt)
		}

		notifications := authenticated.Group("/notifications")
		{
			notifications.GET("", c.notification.List)
			notifications.PUT("/:id/read", c.notification.MarkRead)
		}

		teacher := authenticated.Group("/teacher")
		teacher.Use(middleware.RoleMiddleware(model.Teacher))
		teacher.Use(middleware.CourseScope(repos.course))
		{
			teacher.GET("/progress/dashboard", c.progress.TeacherDashboard)
			teacher.GET("/progress/student/:studentEmail/course/:courseId", c.progress.TeacherStudentProgress)
			teacher.GET("/progress/course/:courseId/analytics", c.progress.TeacherCourseAnalytics)
			teacher.GET("/quizzes/:quizId/results", c.quiz.Results)
		}
	}
}
