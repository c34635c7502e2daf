package service

import (
	"go.uber.org/zap"

	"tempbox/backend/internal/domain"
	"tempbox/backend/internal/monitoring"
	"tempbox/backend/internal/storage"
	"tempbox/backend/internal/websocket"
)

// EmailService 封装邮件与附件相关业务操作。
type EmailService struct {
	store   storage.Store
	hub     *websocket.Hub // 可选，为 nil 时不推送通知
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewEmailService 创建邮件业务服务。
func NewEmailService(store storage.Store, hub *websocket.Hub, metrics *monitoring.Metrics, log *zap.Logger) *EmailService {
	if log == nil {
		log = zap.NewNop()
	}
	return &EmailService{
		store:   store,
		hub:     hub,
		metrics: metrics,
		log:     log,
	}
}

// Save 保存一封新邮件并向订阅者推送通知。
func (s *EmailService) Save(email *domain.Email) error {
	if email.ID == "" {
		email.ID = domain.NewID()
	}
	if email.ReceivedAt.IsZero() {
		email.ReceivedAt = domain.Now()
	}

	if err := s.store.SaveEmail(email); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordEmailReceived()
	}
	if s.hub != nil {
		s.hub.NotifyNewMail(email.Summary())
	}

	s.log.Info("email saved",
		zap.String("emailID", email.ID),
		zap.String("mailboxID", email.MailboxID),
		zap.String("from", email.FromAddress))
	return nil
}

// ListByMailbox 返回邮箱下按接收时间倒序的邮件列表项。
func (s *EmailService) ListByMailbox(mailboxID string) ([]domain.EmailSummary, error) {
	return s.store.ListEmails(mailboxID)
}

// Get 获取邮件详情。首次读取会把邮件标记为已读，
// 已读邮件会被下一轮清理任务删除。
func (s *EmailService) Get(id string) (*domain.Email, error) {
	email, err := s.store.GetEmail(id)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordEmailRead()
	}
	return email, nil
}

// Delete 删除邮件及其附件。幂等。
func (s *EmailService) Delete(id string) error {
	if err := s.store.DeleteEmail(id); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RecordEmailDeleted()
	}
	return nil
}

// SaveAttachment 保存附件。Content 字段携带完整的 base64 内容，
// 超过分块阈值时由存储层拆块写入。
func (s *EmailService) SaveAttachment(attachment *domain.Attachment) error {
	if attachment.ID == "" {
		attachment.ID = domain.NewID()
	}
	if attachment.CreatedAt.IsZero() {
		attachment.CreatedAt = domain.Now()
	}

	if err := s.store.SaveAttachment(attachment); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordAttachmentStored(attachment.Size, attachment.IsLarge)
	}
	return nil
}

// ListAttachments 返回邮件下的附件元数据列表。
func (s *EmailService) ListAttachments(emailID string) ([]domain.AttachmentSummary, error) {
	return s.store.ListAttachments(emailID)
}

// GetAttachment 获取附件详情，大附件返回重组后的完整内容。
func (s *EmailService) GetAttachment(id string) (*domain.Attachment, error) {
	return s.store.GetAttachment(id)
}
