package controller

import (
	"errors"

	"lms_backend/internal/middleware"
	"lms_backend/internal/service"
	"lms_backend/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ProgressController struct {
	ProgressService *service.ProgressService
	QueryService    *service.ProgressQueryService
}

func NewProgressController(progressService *service.ProgressService, queryService *service.ProgressQueryService) *ProgressController {
	return &ProgressController{
		ProgressService: progressService,
		QueryService:    queryService,
	}
}

type lessonCompletedReq struct {
	CourseID         uint   `json:"courseId" binding:"required"`
	ModuleID         uint   `json:"moduleId"`
	LessonID         uint   `json:"lessonId" binding:"required"`
	LessonTitle      string `json:"lessonTitle"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
}

// @Summary 记录课时完成
// @Description 幂等：重复提交返回已有记录和 already completed 提示
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param event body lessonCompletedReq true "课时完成事件"
// @Success 200 {object} util.Response
// @Router /progress/lesson-completed [post]
func (c *ProgressController) LessonCompleted(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req lessonCompletedReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	record, already, err := c.ProgressService.RecordLessonCompleted(
		user.UserID, req.CourseID, req.ModuleID, req.LessonID, req.LessonTitle, req.TimeSpentSeconds)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	message := "progress recorded"
	if already {
		message = "already completed"
	}
	util.Success(ctx, gin.H{"message": message, "progress": record})
}

type quizCompletedReq struct {
	CourseID         uint `json:"courseId" binding:"required"`
	ModuleID         uint `json:"moduleId"`
	QuizID           uint `json:"quizId" binding:"required"`
	Score            int  `json:"score"`
	Passed           bool `json:"passed"`
	TimeSpentSeconds int  `json:"timeSpentSeconds"`
}

// @Summary 记录测验完成
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param event body quizCompletedReq true "测验完成事件"
// @Success 200 {object} util.Response
// @Router /progress/quiz-completed [post]
func (c *ProgressController) QuizCompleted(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req quizCompletedReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	record, err := c.ProgressService.RecordQuizCompleted(
		user.UserID, req.CourseID, req.ModuleID, req.QuizID, req.Score, req.Passed, req.TimeSpentSeconds)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"message": "progress recorded", "progress": record})
}

type assignmentSubmittedReq struct {
	CourseID         uint   `json:"courseId" binding:"required"`
	ModuleID         uint   `json:"moduleId"`
	AssignmentID     uint   `json:"assignmentId" binding:"required"`
	AssignmentTitle  string `json:"assignmentTitle"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
}

// @Summary 记录作业提交
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param event body assignmentSubmittedReq true "作业提交事件"
// @Success 200 {object} util.Response
// @Router /progress/assignment-submitted [post]
func (c *ProgressController) AssignmentSubmitted(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req assignmentSubmittedReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	record, err := c.ProgressService.RecordAssignmentSubmitted(
		user.UserID, req.CourseID, req.ModuleID, req.AssignmentID, req.AssignmentTitle, req.TimeSpentSeconds)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"message": "progress recorded", "progress": record})
}

type discussionParticipatedReq struct {
	CourseID     uint   `json:"courseId" binding:"required"`
	ModuleID     uint   `json:"moduleId"`
	DiscussionID uint   `json:"discussionId" binding:"required"`
	Topic        string `json:"topic"`
}

// @Summary 记录讨论参与
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param event body discussionParticipatedReq true "讨论参与事件"
// @Success 200 {object} util.Response
// @Router /progress/discussion-participated [post]
func (c *ProgressController) DiscussionParticipated(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req discussionParticipatedReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	record, err := c.ProgressService.RecordDiscussionParticipated(
		user.UserID, req.CourseID, req.ModuleID, req.DiscussionID, req.Topic)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"message": "progress recorded", "progress": record})
}

type pollRespondedReq struct {
	CourseID uint `json:"courseId" binding:"required"`
	ModuleID uint `json:"moduleId"`
	PollID   uint `json:"pollId" binding:"required"`
}

// @Summary 记录投票参与
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param event body pollRespondedReq true "投票事件"
// @Success 200 {object} util.Response
// @Router /progress/poll-responded [post]
func (c *ProgressController) PollResponded(ctx *gin.Context) {
	c.recordPoll(ctx, false)
}

// @Summary 记录课时内投票参与
// @Tags 学习进度
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param event body pollRespondedReq true "投票事件"
// @Success 200 {object} util.Response
// @Router /progress/poll-participation [post]
func (c *ProgressController) PollParticipation(ctx *gin.Context) {
	c.recordPoll(ctx, true)
}

func (c *ProgressController) recordPoll(ctx *gin.Context, lessonScoped bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req pollRespondedReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	record, err := c.ProgressService.RecordPollResponded(
		user.UserID, req.CourseID, req.ModuleID, req.PollID, lessonScoped)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"message": "progress recorded", "progress": record})
}

// @Summary 我的学习进度
// @Description 当前学生的全部进度记录，按完成时间倒序
// @Tags 学习进度
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /progress/my-progress [get]
func (c *ProgressController) MyProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	records, err := c.QueryService.MyProgress(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, records)
}

// @Summary 课程进度详情
// @Description 课程/模块完成记录、最近动态和明细进度
// @Tags 学习进度
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /progress/course/{courseId} [get]
func (c *ProgressController) CourseProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	courseID := util.MustParseUint(ctx.Param("courseId"))
	if courseID == 0 {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	bundle, err := c.QueryService.CourseProgress(user.UserID, courseID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, bundle)
}

// @Summary 教师进度看板
// @Description 教师名下课程的学生进度聚合，courseId 可选
// @Tags 教师端
// @Produce json
// @Security ApiKeyAuth
// @Param courseId query int false "课程ID"
// @Success 200 {object} util.Response
// @Router /teacher/progress/dashboard [get]
func (c *ProgressController) TeacherDashboard(ctx *gin.Context) {
	scope := middleware.ScopeFromContext(ctx)
	if scope == nil {
		util.Unauthorized(ctx)
		return
	}

	courseID := util.MustParseUint(ctx.Query("courseId"))
	rows, err := c.QueryService.TeacherDashboard(scope, courseID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	util.Success(ctx, rows)
}

// @Summary 单个学生的课程进度
// @Tags 教师端
// @Produce json
// @Security ApiKeyAuth
// @Param studentEmail path string true "学生邮箱"
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /teacher/progress/student/{studentEmail}/course/{courseId} [get]
func (c *ProgressController) TeacherStudentProgress(ctx *gin.Context) {
	scope := middleware.ScopeFromContext(ctx)
	if scope == nil {
		util.Unauthorized(ctx)
		return
	}

	courseID := util.MustParseUint(ctx.Param("courseId"))
	studentEmail := ctx.Param("studentEmail")
	if courseID == 0 || studentEmail == "" {
		util.BadRequest(ctx, "student email and course id are required")
		return
	}

	result, err := c.QueryService.StudentCourseProgress(scope, studentEmail, courseID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 课程完成分析
// @Description 零进度/进行中/已完成学生分布、平均完成度和最近动态
// @Tags 教师端
// @Produce json
// @Security ApiKeyAuth
// @Param courseId path int true "课程ID"
// @Success 200 {object} util.Response
// @Router /teacher/progress/course/{courseId}/analytics [get]
func (c *ProgressController) TeacherCourseAnalytics(ctx *gin.Context) {
	scope := middleware.ScopeFromContext(ctx)
	if scope == nil {
		util.Unauthorized(ctx)
		return
	}

	courseID := util.MustParseUint(ctx.Param("courseId"))
	if courseID == 0 {
		util.BadRequest(ctx, "invalid course id")
		return
	}

	bundle, err := c.QueryService.CourseAnalyticsFor(scope, courseID)
	if err != nil {
		respondServiceError(ctx, err)
		return
	}
	util.Success(ctx, bundle)
}

// respondServiceError 服务层错误到响应码的统一映射
func respondServiceError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrUserNotFound),
		errors.Is(err, util.ErrCourseNotFound),
		errors.Is(err, util.ErrModuleNotFound),
		errors.Is(err, util.ErrQuizNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrNotEnrolled),
		errors.Is(err, util.ErrQuizNotPublished),
		errors.Is(err, util.ErrMaxAttemptsReached),
		errors.Is(err, util.ErrAttemptInProgress),
		errors.Is(err, util.ErrNoActiveAttempt):
		util.BadRequest(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
