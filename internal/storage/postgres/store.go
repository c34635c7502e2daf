package postgres

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tempbox/backend/internal/chunk"
	"tempbox/backend/internal/domain"
)

// Options 数据库存储的初始化参数。
type Options struct {
	ChunkSize       int           // 附件分块阈值与块大小（base64 字符数）
	MaxOpenConns    int           // 最大打开连接数
	MaxIdleConns    int           // 最大空闲连接数
	ConnMaxLifetime time.Duration // 连接最大生命周期
}

// Store SQL 存储实现（支持 PostgreSQL 和 MySQL）。
// 级联删除在应用层事务内完成：先删子表再删父表，
// 不依赖数据库原生的 ON DELETE CASCADE。
type Store struct {
	db        *gorm.DB
	chunkSize int
}

// NewStore 创建 PostgreSQL 存储实例。
func NewStore(dsn string, opts Options) (*Store, error) {
	return NewStoreWithDialector(postgres.Open(dsn), opts)
}

// NewMySQLStore 创建 MySQL 存储实例。
func NewMySQLStore(dsn string, opts Options) (*Store, error) {
	return NewStoreWithDialector(mysql.Open(dsn), opts)
}

// NewStoreWithDialector 使用指定的 GORM dialector 创建存储实例。
func NewStoreWithDialector(dialector gorm.Dialector, opts Options) (*Store, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // 静默模式
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(defaultInt(opts.MaxOpenConns, 25))
	sqlDB.SetMaxIdleConns(defaultInt(opts.MaxIdleConns, 5))
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = 5 * time.Minute
	}
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)

	store := &Store{
		db:        db,
		chunkSize: defaultInt(opts.ChunkSize, chunk.DefaultChunkSize),
	}

	// 自动迁移数据库表
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate 自动迁移数据库表结构
func (s *Store) migrate() error {
	return s.db.AutoMigrate(
		&domain.Mailbox{},
		&domain.Email{},
		&domain.Attachment{},
		&domain.AttachmentChunk{},
	)
}

func defaultInt(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

// ========== Mailbox Repository ==========

// CreateMailbox 保存邮箱信息。
func (s *Store) CreateMailbox(mailbox *domain.Mailbox) error {
	return s.db.Create(mailbox).Error
}

// GetMailboxByAddress 根据地址获取未过期的邮箱，并更新最后访问时间。
func (s *Store) GetMailboxByAddress(address string) (*domain.Mailbox, error) {
	now := time.Now().UTC()

	var mailbox domain.Mailbox
	err := s.db.Where("address = ? AND expires_at > ?", address, now).First(&mailbox).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMailboxNotFound
		}
		return nil, err
	}

	if err := s.db.Model(&domain.Mailbox{}).
		Where("id = ?", mailbox.ID).
		Update("last_accessed_at", now).Error; err != nil {
		return nil, err
	}
	mailbox.LastAccessedAt = now

	return &mailbox, nil
}

// DeleteMailbox 级联删除邮箱及其全部数据。删除不存在的地址不报错。
func (s *Store) DeleteMailbox(address string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var mailboxIDs []string
		if err := tx.Model(&domain.Mailbox{}).
			Where("address = ?", address).
			Pluck("id", &mailboxIDs).Error; err != nil {
			return err
		}
		if len(mailboxIDs) == 0 {
			return nil
		}
		return deleteMailboxTree(tx, mailboxIDs)
	})
}

// DeleteExpiredMailboxes 级联删除所有已过期邮箱，返回删除数量。
func (s *Store) DeleteExpiredMailboxes() (int, error) {
	var count int

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var mailboxIDs []string
		if err := tx.Model(&domain.Mailbox{}).
			Where("expires_at <= ?", time.Now().UTC()).
			Pluck("id", &mailboxIDs).Error; err != nil {
			return err
		}
		count = len(mailboxIDs)
		if count == 0 {
			return nil
		}
		return deleteMailboxTree(tx, mailboxIDs)
	})

	return count, err
}

// deleteMailboxTree 在事务内自下而上删除邮箱子树：
// 分块 -> 附件 -> 邮件 -> 邮箱。
func deleteMailboxTree(tx *gorm.DB, mailboxIDs []string) error {
	var emailIDs []string
	if err := tx.Model(&domain.Email{}).
		Where("mailbox_id IN ?", mailboxIDs).
		Pluck("id", &emailIDs).Error; err != nil {
		return err
	}

	if err := deleteEmailTree(tx, emailIDs); err != nil {
		return err
	}

	return tx.Where("id IN ?", mailboxIDs).Delete(&domain.Mailbox{}).Error
}

// deleteEmailTree 在事务内删除邮件子树：分块 -> 附件 -> 邮件。
func deleteEmailTree(tx *gorm.DB, emailIDs []string) error {
	if len(emailIDs) == 0 {
		return nil
	}

	var attachmentIDs []string
	if err := tx.Model(&domain.Attachment{}).
		Where("email_id IN ?", emailIDs).
		Pluck("id", &attachmentIDs).Error; err != nil {
		return err
	}

	if len(attachmentIDs) > 0 {
		if err := tx.Where("attachment_id IN ?", attachmentIDs).
			Delete(&domain.AttachmentChunk{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", attachmentIDs).
			Delete(&domain.Attachment{}).Error; err != nil {
			return err
		}
	}

	return tx.Where("id IN ?", emailIDs).Delete(&domain.Email{}).Error
}

// ========== Email Repository ==========

// SaveEmail 保存邮件。
// 不重新校验邮箱是否仍然存在：并发删除窗口内宁可写入也不报错，
// 残留数据由保留窗口清理和孤儿回收兜底。
func (s *Store) SaveEmail(email *domain.Email) error {
	return s.db.Create(email).Error
}

// ListEmails 返回某个邮箱下按接收时间倒序的邮件列表项（不含正文）。
func (s *Store) ListEmails(mailboxID string) ([]domain.EmailSummary, error) {
	var emails []domain.Email
	err := s.db.
		Select("id", "mailbox_id", "from_address", "from_name", "to_address",
			"subject", "received_at", "has_attachments", "is_read").
		Where("mailbox_id = ?", mailboxID).
		Order("received_at DESC").
		Find(&emails).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.EmailSummary, 0, len(emails))
	for i := range emails {
		summaries = append(summaries, emails[i].Summary())
	}
	return summaries, nil
}

// GetEmail 获取邮件详情并标记为已读。
func (s *Store) GetEmail(id string) (*domain.Email, error) {
	var email domain.Email
	err := s.db.Where("id = ?", id).First(&email).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEmailNotFound
		}
		return nil, err
	}

	// 每次详情读取都无条件标记已读
	if err := s.db.Model(&domain.Email{}).
		Where("id = ?", id).
		Update("is_read", true).Error; err != nil {
		return nil, err
	}
	email.IsRead = true

	return &email, nil
}

// DeleteEmail 级联删除邮件及其附件。幂等。
func (s *Store) DeleteEmail(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return deleteEmailTree(tx, []string{id})
	})
}

// DeleteExpiredEmails 级联删除接收时间不晚于 before 的邮件。
func (s *Store) DeleteExpiredEmails(before time.Time) (int, error) {
	var count int

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var emailIDs []string
		if err := tx.Model(&domain.Email{}).
			Where("received_at <= ?", before).
			Pluck("id", &emailIDs).Error; err != nil {
			return err
		}
		count = len(emailIDs)
		return deleteEmailTree(tx, emailIDs)
	})

	return count, err
}

// DeleteReadEmails 级联删除所有已读邮件。
func (s *Store) DeleteReadEmails() (int, error) {
	var count int

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var emailIDs []string
		if err := tx.Model(&domain.Email{}).
			Where("is_read = ?", true).
			Pluck("id", &emailIDs).Error; err != nil {
			return err
		}
		count = len(emailIDs)
		return deleteEmailTree(tx, emailIDs)
	})

	return count, err
}

// ========== Attachment Repository ==========

// SaveAttachment 保存附件。超过分块阈值时，附件行与全部分块行
// 在同一事务内写入，任一分块失败则整体回滚，
// 保证 chunks_count 永远与实际存储的分块数一致。
func (s *Store) SaveAttachment(attachment *domain.Attachment) error {
	if len(attachment.Content) <= s.chunkSize {
		attachment.IsLarge = false
		attachment.ChunksCount = 0
		return s.db.Create(attachment).Error
	}

	parts := chunk.Split(attachment.Content, s.chunkSize)
	attachment.IsLarge = true
	attachment.ChunksCount = len(parts)
	attachment.Content = ""

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(attachment).Error; err != nil {
			return err
		}
		for i, content := range parts {
			row := domain.AttachmentChunk{
				ID:           domain.NewID(),
				AttachmentID: attachment.ID,
				ChunkIndex:   i,
				Content:      content,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListAttachments 返回某封邮件下按创建时间升序的附件元数据。
func (s *Store) ListAttachments(emailID string) ([]domain.AttachmentSummary, error) {
	var attachments []domain.Attachment
	err := s.db.
		Select("id", "email_id", "filename", "mime_type", "size",
			"created_at", "is_large", "chunks_count").
		Where("email_id = ?", emailID).
		Order("created_at ASC").
		Find(&attachments).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.AttachmentSummary, 0, len(attachments))
	for i := range attachments {
		summaries = append(summaries, attachments[i].Summary())
	}
	return summaries, nil
}

// GetAttachment 获取附件详情，大附件按分块序号重组完整内容。
func (s *Store) GetAttachment(id string) (*domain.Attachment, error) {
	var attachment domain.Attachment
	err := s.db.Where("id = ?", id).First(&attachment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAttachmentNotFound
		}
		return nil, err
	}

	if attachment.IsLarge {
		var rows []domain.AttachmentChunk
		err := s.db.Where("attachment_id = ?", id).
			Order("chunk_index ASC").
			Find(&rows).Error
		if err != nil {
			return nil, err
		}

		parts := make([]chunk.Chunk, 0, len(rows))
		for _, row := range rows {
			parts = append(parts, chunk.Chunk{Index: row.ChunkIndex, Content: row.Content})
		}
		content, err := chunk.Join(parts, attachment.ChunksCount)
		if err != nil {
			return nil, err
		}
		attachment.Content = content
	}

	return &attachment, nil
}

// DeleteOrphanedAttachments 删除父邮件已不存在的附件及其分块，
// 以及父附件已不存在的游离分块。级联删除未生效时的兜底。
func (s *Store) DeleteOrphanedAttachments() (int, error) {
	var count int

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var attachmentIDs []string
		if err := tx.Table("attachments").
			Joins("LEFT JOIN emails ON attachments.email_id = emails.id").
			Where("emails.id IS NULL").
			Pluck("attachments.id", &attachmentIDs).Error; err != nil {
			return err
		}
		count = len(attachmentIDs)

		if count > 0 {
			if err := tx.Where("attachment_id IN ?", attachmentIDs).
				Delete(&domain.AttachmentChunk{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", attachmentIDs).
				Delete(&domain.Attachment{}).Error; err != nil {
				return err
			}
		}

		// 游离分块：父附件行已被删除、分块却残留的情况
		var chunkIDs []string
		if err := tx.Table("attachment_chunks").
			Joins("LEFT JOIN attachments ON attachment_chunks.attachment_id = attachments.id").
			Where("attachments.id IS NULL").
			Pluck("attachment_chunks.id", &chunkIDs).Error; err != nil {
			return err
		}
		if len(chunkIDs) > 0 {
			if err := tx.Where("id IN ?", chunkIDs).
				Delete(&domain.AttachmentChunk{}).Error; err != nil {
				return err
			}
		}
		return nil
	})

	return count, err
}

// ========== 工具方法 ==========

// Close 关闭数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Health 返回数据库连接健康状态。
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
