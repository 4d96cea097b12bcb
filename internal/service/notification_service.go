package service

import (
	"context"
	"encoding/json"
	"errors"

	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/pkg/logger"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	mail "gopkg.in/mail.v2"
)

const TypeNotificationDeliver = "notification:deliver"

// CompletionNotice 评估器产出的结构化完成事件
type CompletionNotice struct {
	UserID  uint                   `json:"userId"`
	Type    model.NotificationType `json:"type"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data"`
}

// Dispatcher 完成通知的派发入口。实现必须是“发后即忘”：
// 慢或失败的投递不能拖慢或失败触发它的完成写入
type Dispatcher interface {
	Dispatch(notice CompletionNotice) error
}

// AsynqDispatcher 把通知塞进 redis 队列，重试退避交给 asynq
type AsynqDispatcher struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

func NewAsynqDispatcher(client *asynq.Client, cfg *config.NotifyConfig) *AsynqDispatcher {
	return &AsynqDispatcher{
		client:   client,
		queue:    cfg.Queue,
		maxRetry: cfg.MaxRetry,
	}
}

func (d *AsynqDispatcher) Dispatch(notice CompletionNotice) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return err
	}

	task := asynq.NewTask(TypeNotificationDeliver, payload)
	_, err = d.client.Enqueue(task, asynq.Queue(d.queue), asynq.MaxRetry(d.maxRetry))
	return err
}

// NotificationService 队列消费侧：落库 + 尽力而为的邮件投递
type NotificationService struct {
	Repo     *repository.NotificationRepository
	UserRepo *repository.UserRepository
	SMTP     *config.SMTPConfig
}

func NewNotificationService(repo *repository.NotificationRepository, userRepo *repository.UserRepository, smtp *config.SMTPConfig) *NotificationService {
	return &NotificationService{Repo: repo, UserRepo: userRepo, SMTP: smtp}
}

// HandleDeliverTask asynq 任务处理器。返回错误会触发重试，
// 所以只有落库失败才报错，邮件失败只记日志
func (s *NotificationService) HandleDeliverTask(ctx context.Context, t *asynq.Task) error {
	var notice CompletionNotice
	if err := json.Unmarshal(t.Payload(), &notice); err != nil {
		return err
	}

	notification := &model.Notification{
		UserID:  notice.UserID,
		Type:    notice.Type,
		Title:   notice.Title,
		Message: notice.Message,
		Data:    notice.Data,
	}
	if err := s.Repo.Create(notification); err != nil {
		return err
	}

	if err := s.sendEmail(notice); err != nil {
		logger.Log.Warn("notification email delivery failed",
			zap.Uint("userId", notice.UserID),
			zap.String("type", string(notice.Type)),
			zap.Error(err))
	}

	return nil
}

func (s *NotificationService) sendEmail(notice CompletionNotice) error {
	if s.SMTP == nil || s.SMTP.Host == "" {
		return nil
	}

	user, err := s.UserRepo.FindByID(notice.UserID)
	if err != nil {
		return err
	}
	if user.Email == "" {
		return errors.New("user has no email address")
	}

	m := mail.NewMessage()
	m.SetHeader("From", s.SMTP.From)
	m.SetHeader("To", user.Email)
	m.SetHeader("Subject", notice.Title)
	m.SetBody("text/plain", notice.Message)

	d := mail.NewDialer(s.SMTP.Host, s.SMTP.Port, s.SMTP.User, s.SMTP.Password)
	return d.DialAndSend(m)
}

func (s *NotificationService) ListForUser(userID uint, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.Repo.ListByUser(userID, limit)
}

func (s *NotificationService) MarkRead(id, userID uint) error {
	return s.Repo.MarkRead(id, userID)
}
