package util

import "errors"

var (
	ErrUserNotFound       = errors.New("用户不存在")
	ErrCourseNotFound     = errors.New("course not found")
	ErrModuleNotFound     = errors.New("module not found")
	ErrQuizNotFound       = errors.New("quiz not found")
	ErrQuizNotPublished   = errors.New("quiz not published or not accessible")
	ErrNotEnrolled        = errors.New("not enrolled in this course")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrMaxAttemptsReached = errors.New("maximum attempts reached")
	ErrAttemptInProgress  = errors.New("an attempt is already in progress")
	ErrNoActiveAttempt    = errors.New("no active attempt to submit")
)
