package service

import (
	"errors"
	"fmt"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 固定积分策略：课时完成满分，讨论/投票给参与分
const (
	ScoreLessonCompleted = 100
	ScoreDiscussion      = 10
	ScorePoll            = 5
)

type ProgressService struct {
	ProgressRepo *repository.ProgressRepository
	ActivityRepo *repository.ActivityRepository
	CourseRepo   *repository.CourseRepository
	QuizRepo     *repository.QuizRepository
	UserRepo     *repository.UserRepository
	Dispatcher   Dispatcher
}

func NewProgressService(
	progressRepo *repository.ProgressRepository,
	activityRepo *repository.ActivityRepository,
	courseRepo *repository.CourseRepository,
	quizRepo *repository.QuizRepository,
	userRepo *repository.UserRepository,
	dispatcher Dispatcher,
) *ProgressService {
	return &ProgressService{
		ProgressRepo: progressRepo,
		ActivityRepo: activityRepo,
		CourseRepo:   courseRepo,
		QuizRepo:     quizRepo,
		UserRepo:     userRepo,
		Dispatcher:   dispatcher,
	}
}

type RecordEventInput struct {
	CourseID  uint
	ModuleID  uint
	TargetID  uint
	EventType model.ProgressEventType
	Status    model.ProgressStatus
	Score     int
	TimeSpent int
	Metadata  map[string]interface{}
	Activity  string
}

// RecordEvent 写入一条学习进度事件。
// 一次性事件重复提交不报错：返回已有记录，already=true。
// 去重不靠先查后插，而是由 dedup_key 唯一索引兜底
func (s *ProgressService) RecordEvent(userID uint, in RecordEventInput) (*model.ProgressRecord, bool, error) {
	if userID == 0 || in.CourseID == 0 {
		return nil, false, errors.New("user and course are required")
	}
	if in.TargetID == 0 && in.EventType != model.EventModuleCompleted && in.EventType != model.EventCourseCompleted {
		return nil, false, errors.New("target id is required for this event type")
	}

	dedupKey := uuid.NewString()
	if in.EventType.OneTime() {
		dedupKey = model.OneTimeDedupKey(userID, in.CourseID, in.TargetID, in.EventType)
	}

	status := in.Status
	if status == "" {
		status = model.StatusCompleted
	}

	record := &model.ProgressRecord{
		UserID:    userID,
		CourseID:  in.CourseID,
		ModuleID:  in.ModuleID,
		TargetID:  in.TargetID,
		EventType: in.EventType,
		Status:    status,
		Score:     in.Score,
		TimeSpent: in.TimeSpent,
		Metadata:  in.Metadata,
		DedupKey:  dedupKey,
	}

	record, already, err := s.ProgressRepo.Insert(record)
	if err != nil {
		return nil, false, err
	}
	if already {
		return record, true, nil
	}

	if in.Activity != "" {
		entry := &model.ActivityLog{
			UserID:   userID,
			CourseID: in.CourseID,
			Action:   string(in.EventType),
			Detail:   in.Activity,
		}
		if err := s.ActivityRepo.Create(entry); err != nil {
			logger.Log.Warn("activity log append failed", zap.Error(err))
		}
	}

	return record, false, nil
}

// RecordLessonCompleted 课时完成，幂等；新记录会触发模块完成评估
func (s *ProgressService) RecordLessonCompleted(userID, courseID, moduleID, lessonID uint, lessonTitle string, timeSpent int) (*model.ProgressRecord, bool, error) {
	metadata := map[string]interface{}{}
	if lessonTitle != "" {
		metadata["lessonTitle"] = lessonTitle
	}

	record, already, err := s.RecordEvent(userID, RecordEventInput{
		CourseID:  courseID,
		ModuleID:  moduleID,
		TargetID:  lessonID,
		EventType: model.EventLessonCompleted,
		Score:     ScoreLessonCompleted,
		TimeSpent: timeSpent,
		Metadata:  metadata,
		Activity:  fmt.Sprintf("完成了课时「%s」", lessonTitle),
	})
	if err != nil || already {
		return record, already, err
	}

	if moduleID != 0 {
		// 评估是发后即忘的：失败只记日志，不影响本次记录
		if err := s.CheckModuleCompletion(userID, courseID, moduleID); err != nil {
			logger.Log.Error("module completion check failed",
				zap.Uint("userId", userID), zap.Uint("moduleId", moduleID), zap.Error(err))
		}
	}
	return record, false, nil
}

// RecordQuizCompleted 测验结果记录。每次尝试一条，不去重；
// 通过的模块考试会触发模块完成评估
func (s *ProgressService) RecordQuizCompleted(userID, courseID, moduleID, quizID uint, score int, passed bool, timeSpent int) (*model.ProgressRecord, error) {
	eventType := model.EventQuizPassed
	status := model.StatusCompleted
	if !passed {
		eventType = model.EventQuizFailed
		status = model.StatusFailed
	}

	record, _, err := s.RecordEvent(userID, RecordEventInput{
		CourseID:  courseID,
		ModuleID:  moduleID,
		TargetID:  quizID,
		EventType: eventType,
		Status:    status,
		Score:     score,
		TimeSpent: timeSpent,
		Metadata:  map[string]interface{}{"passed": passed},
		Activity:  fmt.Sprintf("提交了测验，得分 %d", score),
	})
	if err != nil {
		return nil, err
	}

	if passed && moduleID != 0 {
		if err := s.CheckModuleCompletion(userID, courseID, moduleID); err != nil {
			logger.Log.Error("module completion check failed",
				zap.Uint("userId", userID), zap.Uint("moduleId", moduleID), zap.Error(err))
		}
	}
	return record, nil
}

func (s *ProgressService) RecordAssignmentSubmitted(userID, courseID, moduleID, assignmentID uint, title string, timeSpent int) (*model.ProgressRecord, error) {
	// 提交时得分为 0，批改流程之后再更新
	record, _, err := s.RecordEvent(userID, RecordEventInput{
		CourseID:  courseID,
		ModuleID:  moduleID,
		TargetID:  assignmentID,
		EventType: model.EventAssignmentSubmitted,
		Status:    model.StatusSubmitted,
		TimeSpent: timeSpent,
		Metadata:  map[string]interface{}{"assignmentTitle": title},
		Activity:  fmt.Sprintf("提交了作业「%s」", title),
	})
	return record, err
}

func (s *ProgressService) RecordDiscussionParticipated(userID, courseID, moduleID, discussionID uint, topic string) (*model.ProgressRecord, error) {
	record, _, err := s.RecordEvent(userID, RecordEventInput{
		CourseID:  courseID,
		ModuleID:  moduleID,
		TargetID:  discussionID,
		EventType: model.EventDiscussionParticipated,
		Score:     ScoreDiscussion,
		Metadata:  map[string]interface{}{"topic": topic},
		Activity:  "参与了课程讨论",
	})
	return record, err
}

// RecordPollResponded lessonScoped 标记课时内投票，两个入口共用一条路径
func (s *ProgressService) RecordPollResponded(userID, courseID, moduleID, pollID uint, lessonScoped bool) (*model.ProgressRecord, error) {
	metadata := map[string]interface{}{}
	if lessonScoped {
		metadata["scope"] = "lesson"
	}
	record, _, err := s.RecordEvent(userID, RecordEventInput{
		CourseID:  courseID,
		ModuleID:  moduleID,
		TargetID:  pollID,
		EventType: model.EventPollResponded,
		Score:     ScorePoll,
		Metadata:  metadata,
		Activity:  "参与了课堂投票",
	})
	return record, err
}

// CheckModuleCompletion 模块完成评估：全部课时完成且（无考试或考试已通过）
// 时写入 module_completed 并向学生和教师发通知，然后级联课程评估。
// 注意：零课时且无考试的模块首次评估即视为完成（沿用原系统行为，见 DESIGN.md）
func (s *ProgressService) CheckModuleCompletion(userID, courseID, moduleID uint) error {
	lessonIDs, err := s.CourseRepo.LessonIDsByModule(moduleID)
	if err != nil {
		return err
	}

	completedIDs, err := s.ProgressRepo.CompletedLessonIDs(userID, courseID)
	if err != nil {
		return err
	}
	completed := make(map[uint]bool, len(completedIDs))
	for _, id := range completedIDs {
		completed[id] = true
	}

	allLessonsCompleted := true
	for _, id := range lessonIDs {
		if !completed[id] {
			allLessonsCompleted = false
			break
		}
	}
	if !allLessonsCompleted {
		return nil
	}

	exam, err := s.QuizRepo.FindModuleExam(moduleID)
	if err != nil {
		return err
	}
	if exam != nil {
		passed, err := s.QuizRepo.HasPassedAttempt(exam.ID, userID)
		if err != nil {
			return err
		}
		if !passed {
			return nil
		}
	}

	module, err := s.CourseRepo.FindModule(moduleID)
	if err != nil {
		return util.ErrModuleNotFound
	}

	record := &model.ProgressRecord{
		UserID:    userID,
		CourseID:  courseID,
		ModuleID:  moduleID,
		TargetID:  moduleID,
		EventType: model.EventModuleCompleted,
		Status:    model.StatusCompleted,
		Score:     100,
		Metadata: map[string]interface{}{
			"moduleTitle": module.Title,
			"hadExam":     exam != nil,
		},
		DedupKey: model.OneTimeDedupKey(userID, courseID, moduleID, model.EventModuleCompleted),
	}
	_, already, err := s.ProgressRepo.Insert(record)
	if err != nil {
		return err
	}
	if already {
		// 已经处理过，保证通知至多发一次
		return nil
	}

	s.notifyCompletion(userID, courseID, model.NotifyModuleCompletion,
		"模块完成", fmt.Sprintf("完成了模块「%s」", module.Title),
		map[string]interface{}{"moduleId": moduleID, "moduleTitle": module.Title})

	return s.CheckCourseCompletion(userID, courseID)
}

// CheckCourseCompletion 课程完成评估，模块评估的上一层级联。
// 写入 course_completed 即具备证书资格，证书生成在系统其他位置
func (s *ProgressService) CheckCourseCompletion(userID, courseID uint) error {
	moduleIDs, err := s.CourseRepo.ModuleIDsByCourse(courseID)
	if err != nil {
		return err
	}

	completedIDs, err := s.ProgressRepo.CompletedModuleIDs(userID, courseID)
	if err != nil {
		return err
	}
	completed := make(map[uint]bool, len(completedIDs))
	for _, id := range completedIDs {
		completed[id] = true
	}

	for _, id := range moduleIDs {
		if !completed[id] {
			return nil
		}
	}

	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		return util.ErrCourseNotFound
	}

	record := &model.ProgressRecord{
		UserID:    userID,
		CourseID:  courseID,
		TargetID:  courseID,
		EventType: model.EventCourseCompleted,
		Status:    model.StatusCompleted,
		Score:     100,
		Metadata: map[string]interface{}{
			"courseTitle": course.Title,
		},
		DedupKey: model.OneTimeDedupKey(userID, courseID, courseID, model.EventCourseCompleted),
	}
	_, already, err := s.ProgressRepo.Insert(record)
	if err != nil {
		return err
	}
	if already {
		return nil
	}

	s.notifyCompletion(userID, courseID, model.NotifyCourseCompletion,
		"课程完成", fmt.Sprintf("完成了课程「%s」，可以申领证书了", course.Title),
		map[string]interface{}{"courseId": courseID, "courseTitle": course.Title, "certificateEligible": true})

	return nil
}

// notifyCompletion 学生和任课教师各一条。派发失败只记日志：
// 完成记录才是事实源，不因通知失败回滚
func (s *ProgressService) notifyCompletion(userID, courseID uint, notifyType model.NotificationType, title, message string, data map[string]interface{}) {
	studentName := s.UserRepo.NameOf(userID)
	if studentName == "" {
		studentName = "学生"
	}

	if err := s.Dispatcher.Dispatch(CompletionNotice{
		UserID:  userID,
		Type:    notifyType,
		Title:   title,
		Message: fmt.Sprintf("恭喜，你%s！", message),
		Data:    data,
	}); err != nil {
		logger.Log.Warn("completion notification dispatch failed",
			zap.Uint("userId", userID), zap.Error(err))
	}

	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil || course.TeacherID == 0 {
		return
	}
	if err := s.Dispatcher.Dispatch(CompletionNotice{
		UserID:  course.TeacherID,
		Type:    notifyType,
		Title:   title,
		Message: fmt.Sprintf("%s%s。", studentName, message),
		Data:    data,
	}); err != nil {
		logger.Log.Warn("completion notification dispatch failed",
			zap.Uint("userId", course.TeacherID), zap.Error(err))
	}
}
