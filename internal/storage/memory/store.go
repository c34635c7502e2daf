package memory

import (
	"sort"
	"sync"
	"time"

	"tempbox/backend/internal/chunk"
	"tempbox/backend/internal/domain"
)

// Store 使用内存保存邮箱、邮件与附件数据，主要用于开发验证和测试。
// 所有删除路径与 SQL 存储保持相同的级联语义。
type Store struct {
	mu          sync.RWMutex
	mailboxes   map[string]*domain.Mailbox        // mailboxID -> mailbox
	byAddress   map[string]string                 // address -> mailboxID
	emails      map[string]*domain.Email          // emailID -> email
	attachments map[string]*domain.Attachment     // attachmentID -> attachment
	chunks      map[string][]domain.AttachmentChunk // attachmentID -> chunks

	chunkSize int
}

// NewStore 创建一个内存存储实例。
func NewStore(chunkSize int) *Store {
	if chunkSize <= 0 {
		chunkSize = chunk.DefaultChunkSize
	}
	return &Store{
		mailboxes:   make(map[string]*domain.Mailbox),
		byAddress:   make(map[string]string),
		emails:      make(map[string]*domain.Email),
		attachments: make(map[string]*domain.Attachment),
		chunks:      make(map[string][]domain.AttachmentChunk),
		chunkSize:   chunkSize,
	}
}

// ========== Mailbox Repository ==========

// CreateMailbox 保存邮箱信息。
func (s *Store) CreateMailbox(mailbox *domain.Mailbox) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *mailbox
	s.mailboxes[stored.ID] = &stored
	s.byAddress[stored.Address] = stored.ID
	return nil
}

// GetMailboxByAddress 根据地址获取未过期的邮箱，并更新最后访问时间。
func (s *Store) GetMailboxByAddress(address string) (*domain.Mailbox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byAddress[address]
	if !ok {
		return nil, domain.ErrMailboxNotFound
	}
	mailbox, ok := s.mailboxes[id]
	if !ok || mailbox.Expired(domain.Now()) {
		// 过期但尚未被清理的邮箱视为不存在
		return nil, domain.ErrMailboxNotFound
	}

	mailbox.LastAccessedAt = domain.Now()
	result := *mailbox
	return &result, nil
}

// DeleteMailbox 级联删除邮箱及其全部数据。删除不存在的地址不报错。
func (s *Store) DeleteMailbox(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byAddress[address]
	if !ok {
		return nil
	}
	s.deleteMailboxLocked(id)
	return nil
}

// DeleteExpiredMailboxes 级联删除所有已过期邮箱，返回删除数量。
func (s *Store) DeleteExpiredMailboxes() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := domain.Now()
	expired := make([]string, 0)
	for id, mailbox := range s.mailboxes {
		if mailbox.Expired(now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		s.deleteMailboxLocked(id)
	}
	return len(expired), nil
}

// deleteMailboxLocked 删除邮箱与其下全部邮件。调用方持有写锁。
func (s *Store) deleteMailboxLocked(mailboxID string) {
	mailbox, ok := s.mailboxes[mailboxID]
	if !ok {
		return
	}
	for emailID, email := range s.emails {
		if email.MailboxID == mailboxID {
			s.deleteEmailLocked(emailID)
		}
	}
	// 地址可能已被过期后重建的新邮箱占用，只解除仍指向自己的映射
	if s.byAddress[mailbox.Address] == mailboxID {
		delete(s.byAddress, mailbox.Address)
	}
	delete(s.mailboxes, mailboxID)
}

// ========== Email Repository ==========

// SaveEmail 保存邮件。
// 不重新校验邮箱是否仍然存在：并发删除窗口内宁可写入也不报错，
// 残留数据由保留窗口清理兜底。
func (s *Store) SaveEmail(email *domain.Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *email
	s.emails[stored.ID] = &stored
	return nil
}

// ListEmails 返回某个邮箱下按接收时间倒序的邮件列表项。
func (s *Store) ListEmails(mailboxID string) ([]domain.EmailSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]domain.EmailSummary, 0)
	for _, email := range s.emails {
		if email.MailboxID == mailboxID {
			summaries = append(summaries, email.Summary())
		}
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].ReceivedAt.After(summaries[j].ReceivedAt)
	})
	return summaries, nil
}

// GetEmail 获取邮件详情并标记为已读。
func (s *Store) GetEmail(id string) (*domain.Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.emails[id]
	if !ok {
		return nil, domain.ErrEmailNotFound
	}
	email.IsRead = true
	result := *email
	return &result, nil
}

// DeleteEmail 级联删除邮件及其附件。幂等。
func (s *Store) DeleteEmail(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteEmailLocked(id)
	return nil
}

// DeleteExpiredEmails 级联删除接收时间不晚于 before 的邮件。
func (s *Store) DeleteExpiredEmails(before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, email := range s.emails {
		if !email.ReceivedAt.After(before) {
			s.deleteEmailLocked(id)
			count++
		}
	}
	return count, nil
}

// DeleteReadEmails 级联删除所有已读邮件。
func (s *Store) DeleteReadEmails() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, email := range s.emails {
		if email.IsRead {
			s.deleteEmailLocked(id)
			count++
		}
	}
	return count, nil
}

// deleteEmailLocked 删除邮件与其下全部附件。调用方持有写锁。
func (s *Store) deleteEmailLocked(emailID string) {
	for attachmentID, attachment := range s.attachments {
		if attachment.EmailID == emailID {
			delete(s.chunks, attachmentID)
			delete(s.attachments, attachmentID)
		}
	}
	delete(s.emails, emailID)
}

// ========== Attachment Repository ==========

// SaveAttachment 保存附件，超过分块阈值时拆块存储。
func (s *Store) SaveAttachment(attachment *domain.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *attachment
	if len(stored.Content) > s.chunkSize {
		parts := chunk.Split(stored.Content, s.chunkSize)
		stored.IsLarge = true
		stored.ChunksCount = len(parts)
		stored.Content = ""

		rows := make([]domain.AttachmentChunk, 0, len(parts))
		for i, content := range parts {
			rows = append(rows, domain.AttachmentChunk{
				ID:           domain.NewID(),
				AttachmentID: stored.ID,
				ChunkIndex:   i,
				Content:      content,
			})
		}
		s.chunks[stored.ID] = rows
	} else {
		stored.IsLarge = false
		stored.ChunksCount = 0
	}

	s.attachments[stored.ID] = &stored

	// 回填调用方可见的分块信息
	attachment.IsLarge = stored.IsLarge
	attachment.ChunksCount = stored.ChunksCount
	if stored.IsLarge {
		attachment.Content = ""
	}
	return nil
}

// ListAttachments 返回某封邮件下按创建时间升序的附件元数据。
func (s *Store) ListAttachments(emailID string) ([]domain.AttachmentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]domain.AttachmentSummary, 0)
	for _, attachment := range s.attachments {
		if attachment.EmailID == emailID {
			summaries = append(summaries, attachment.Summary())
		}
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// GetAttachment 获取附件详情，大附件按分块重组内容。
func (s *Store) GetAttachment(id string) (*domain.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	attachment, ok := s.attachments[id]
	if !ok {
		return nil, domain.ErrAttachmentNotFound
	}

	result := *attachment
	if result.IsLarge {
		rows := s.chunks[id]
		parts := make([]chunk.Chunk, 0, len(rows))
		for _, row := range rows {
			parts = append(parts, chunk.Chunk{Index: row.ChunkIndex, Content: row.Content})
		}
		content, err := chunk.Join(parts, result.ChunksCount)
		if err != nil {
			return nil, err
		}
		result.Content = content
	}
	return &result, nil
}

// DeleteOrphanedAttachments 删除父邮件已不存在的附件及其分块，
// 以及父附件已不存在的游离分块。返回删除的附件数量。
func (s *Store) DeleteOrphanedAttachments() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for id, attachment := range s.attachments {
		if _, ok := s.emails[attachment.EmailID]; !ok {
			delete(s.chunks, id)
			delete(s.attachments, id)
			count++
		}
	}
	for attachmentID := range s.chunks {
		if _, ok := s.attachments[attachmentID]; !ok {
			delete(s.chunks, attachmentID)
		}
	}
	return count, nil
}

// ========== 工具方法 ==========

// Close 关闭存储。内存存储无需释放资源。
func (s *Store) Close() error {
	return nil
}

// Health 返回存储健康状态。
func (s *Store) Health() error {
	return nil
}
