package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"
	"lms_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	recentActivitiesStudent = 10
	recentActivitiesCourse  = 20
	analyticsCacheTTL       = time.Minute
)

// ProgressQueryService 只读聚合，全部从进度事件表重算，不落聚合表
type ProgressQueryService struct {
	ProgressRepo *repository.ProgressRepository
	ActivityRepo *repository.ActivityRepository
	CourseRepo   *repository.CourseRepository
	UserRepo     *repository.UserRepository
	Redis        *redis.Client
}

func NewProgressQueryService(
	progressRepo *repository.ProgressRepository,
	activityRepo *repository.ActivityRepository,
	courseRepo *repository.CourseRepository,
	userRepo *repository.UserRepository,
	rdb *redis.Client,
) *ProgressQueryService {
	return &ProgressQueryService{
		ProgressRepo: progressRepo,
		ActivityRepo: activityRepo,
		CourseRepo:   courseRepo,
		UserRepo:     userRepo,
		Redis:        rdb,
	}
}

type CompletionCounts struct {
	Completed int64 `json:"completed"`
	Total     int64 `json:"total"`
}

type CourseProgressSummary struct {
	CompletionPercent float64          `json:"completionPercent"`
	Lessons           CompletionCounts `json:"lessons"`
	Modules           CompletionCounts `json:"modules"`
	Quizzes           CompletionCounts `json:"quizzes"`
	Assignments       CompletionCounts `json:"assignments"`
}

type CourseProgressBundle struct {
	CourseCompletion  *model.ProgressRecord  `json:"courseCompletion"`
	ModuleCompletions []model.ProgressRecord `json:"moduleCompletions"`
	Activities        []model.ActivityLog    `json:"activities"`
	DetailedProgress  []model.ProgressRecord `json:"detailedProgress"`
	Summary           CourseProgressSummary  `json:"summary"`
}

func (s *ProgressQueryService) MyProgress(userID uint) ([]model.ProgressRecord, error) {
	return s.ProgressRepo.ListByUser(userID)
}

func (s *ProgressQueryService) CourseProgress(userID, courseID uint) (*CourseProgressBundle, error) {
	completion, err := s.ProgressRepo.CourseCompletion(userID, courseID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	moduleCompletions, err := s.ProgressRepo.ModuleCompletions(userID, courseID)
	if err != nil {
		return nil, err
	}

	activities, err := s.ActivityRepo.RecentByUserAndCourse(userID, courseID, recentActivitiesStudent)
	if err != nil {
		return nil, err
	}

	detailed, err := s.ProgressRepo.ListByUserAndCourse(userID, courseID)
	if err != nil {
		return nil, err
	}

	summary, err := s.summarize(userID, courseID, completion != nil)
	if err != nil {
		return nil, err
	}

	return &CourseProgressBundle{
		CourseCompletion:  completion,
		ModuleCompletions: moduleCompletions,
		Activities:        activities,
		DetailedProgress:  detailed,
		Summary:           *summary,
	}, nil
}

func (s *ProgressQueryService) summarize(userID, courseID uint, courseCompleted bool) (*CourseProgressSummary, error) {
	totalLessons, err := s.CourseRepo.CountLessonsByCourse(courseID)
	if err != nil {
		return nil, err
	}
	completedLessons, err := s.ProgressRepo.CountByType(userID, courseID, model.EventLessonCompleted)
	if err != nil {
		return nil, err
	}

	moduleIDs, err := s.CourseRepo.ModuleIDsByCourse(courseID)
	if err != nil {
		return nil, err
	}
	completedModules, err := s.ProgressRepo.CountByType(userID, courseID, model.EventModuleCompleted)
	if err != nil {
		return nil, err
	}

	totalQuizzes, err := s.CourseRepo.CountQuizzesByCourse(courseID)
	if err != nil {
		return nil, err
	}
	passedQuizzes, err := s.ProgressRepo.CountDistinctTargets(userID, courseID, model.EventQuizPassed)
	if err != nil {
		return nil, err
	}

	totalAssignments, err := s.CourseRepo.CountAssignmentsByCourse(courseID)
	if err != nil {
		return nil, err
	}
	submittedAssignments, err := s.ProgressRepo.CountDistinctTargets(userID, courseID, model.EventAssignmentSubmitted)
	if err != nil {
		return nil, err
	}

	percent := 0.0
	if totalLessons > 0 {
		percent = math.Round(1000*float64(completedLessons)/float64(totalLessons)) / 10
	} else if courseCompleted {
		percent = 100
	}

	return &CourseProgressSummary{
		CompletionPercent: percent,
		Lessons:           CompletionCounts{Completed: completedLessons, Total: totalLessons},
		Modules:           CompletionCounts{Completed: completedModules, Total: int64(len(moduleIDs))},
		Quizzes:           CompletionCounts{Completed: passedQuizzes, Total: totalQuizzes},
		Assignments:       CompletionCounts{Completed: submittedAssignments, Total: totalAssignments},
	}, nil
}

type StudentCourseProgress struct {
	Student *model.User           `json:"student"`
	Bundle  *CourseProgressBundle `json:"progress"`
}

// StudentCourseProgress 教师查看单个学生的课程进度，范围已在中间件解析
func (s *ProgressQueryService) StudentCourseProgress(scope *model.AccessScope, studentEmail string, courseID uint) (*StudentCourseProgress, error) {
	if !scope.OwnsCourse(courseID) {
		return nil, util.ErrPermissionDenied
	}

	student, err := s.UserRepo.FindByEmail(studentEmail)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, err
	}

	bundle, err := s.CourseProgress(student.ID, courseID)
	if err != nil {
		return nil, err
	}

	return &StudentCourseProgress{Student: student, Bundle: bundle}, nil
}

type DashboardRow struct {
	CourseID          uint    `json:"courseId"`
	CourseTitle       string  `json:"courseTitle"`
	UserID            uint    `json:"userId"`
	StudentName       string  `json:"studentName"`
	StudentEmail      string  `json:"studentEmail"`
	CompletionPercent float64 `json:"completionPercent"`
	CompletedLessons  int64   `json:"completedLessons"`
	TotalLessons      int64   `json:"totalLessons"`
	CourseCompleted   bool    `json:"courseCompleted"`
}

// TeacherDashboard courseID 为 0 时跨教师全部课程聚合
func (s *ProgressQueryService) TeacherDashboard(scope *model.AccessScope, courseID uint) ([]DashboardRow, error) {
	courseIDs := scope.OwnedCourseIDs
	if courseID != 0 {
		if !scope.OwnsCourse(courseID) {
			return nil, util.ErrPermissionDenied
		}
		courseIDs = []uint{courseID}
	}

	rows := make([]DashboardRow, 0)
	for _, cid := range courseIDs {
		course, err := s.CourseRepo.FindByID(cid)
		if err != nil {
			return nil, err
		}
		studentIDs, err := s.CourseRepo.EnrolledUserIDs(cid)
		if err != nil {
			return nil, err
		}

		for _, sid := range studentIDs {
			completion, err := s.ProgressRepo.CourseCompletion(sid, cid)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
			summary, err := s.summarize(sid, cid, completion != nil)
			if err != nil {
				return nil, err
			}

			row := DashboardRow{
				CourseID:          cid,
				CourseTitle:       course.Title,
				UserID:            sid,
				CompletionPercent: summary.CompletionPercent,
				CompletedLessons:  summary.Lessons.Completed,
				TotalLessons:      summary.Lessons.Total,
				CourseCompleted:   completion != nil,
			}
			if student, err := s.UserRepo.FindByID(sid); err == nil {
				row.StudentName = student.Name
				row.StudentEmail = student.Email
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

type CourseAnalytics struct {
	TotalStudents      int     `json:"totalStudents"`
	CompletedStudents  int     `json:"completedStudents"`
	InProgressStudents int     `json:"inProgressStudents"`
	NotStartedStudents int     `json:"notStartedStudents"`
	AverageCompletion  float64 `json:"averageCompletion"`
	CompletionRate     float64 `json:"completionRate"`
}

type CourseAnalyticsBundle struct {
	Course           *model.Course       `json:"course"`
	Analytics        CourseAnalytics     `json:"analytics"`
	RecentActivities []model.ActivityLog `json:"recentActivities"`
}

// CourseAnalyticsFor 汇总开销随学生数线性增长，结果进 redis 缓存一分钟
func (s *ProgressQueryService) CourseAnalyticsFor(scope *model.AccessScope, courseID uint) (*CourseAnalyticsBundle, error) {
	if !scope.OwnsCourse(courseID) {
		return nil, util.ErrPermissionDenied
	}

	cacheKey := fmt.Sprintf("progress:analytics:%d", courseID)
	if s.Redis != nil {
		if cached, err := s.Redis.Get(context.Background(), cacheKey).Result(); err == nil {
			var bundle CourseAnalyticsBundle
			if err := json.Unmarshal([]byte(cached), &bundle); err == nil {
				return &bundle, nil
			}
		}
	}

	course, err := s.CourseRepo.FindByID(courseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCourseNotFound
		}
		return nil, err
	}

	studentIDs, err := s.CourseRepo.EnrolledUserIDs(courseID)
	if err != nil {
		return nil, err
	}

	analytics := CourseAnalytics{TotalStudents: len(studentIDs)}
	percentSum := 0.0
	for _, sid := range studentIDs {
		completion, err := s.ProgressRepo.CourseCompletion(sid, courseID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if completion != nil {
			analytics.CompletedStudents++
			percentSum += 100
			continue
		}

		recorded, err := s.ProgressRepo.CountAllByUserAndCourse(sid, courseID)
		if err != nil {
			return nil, err
		}
		if recorded == 0 {
			analytics.NotStartedStudents++
			continue
		}

		analytics.InProgressStudents++
		summary, err := s.summarize(sid, courseID, false)
		if err != nil {
			return nil, err
		}
		percentSum += summary.CompletionPercent
	}

	if len(studentIDs) > 0 {
		analytics.AverageCompletion = math.Round(10*percentSum/float64(len(studentIDs))) / 10
		analytics.CompletionRate = math.Round(1000*float64(analytics.CompletedStudents)/float64(len(studentIDs))) / 1000
	}

	activities, err := s.ActivityRepo.RecentByCourse(courseID, recentActivitiesCourse)
	if err != nil {
		return nil, err
	}

	bundle := &CourseAnalyticsBundle{
		Course:           course,
		Analytics:        analytics,
		RecentActivities: activities,
	}

	if s.Redis != nil {
		if data, err := json.Marshal(bundle); err == nil {
			if err := s.Redis.Set(context.Background(), cacheKey, data, analyticsCacheTTL).Err(); err != nil {
				logger.Log.Debug("analytics cache write failed", zap.Error(err))
			}
		}
	}

	return bundle, nil
}
