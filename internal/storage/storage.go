package storage

import (
	"time"

	"tempbox/backend/internal/domain"
)

// MailboxRepository 定义邮箱数据存取操作。
// 地址是对外的软唯一键，作用域为"当前未过期"；唯一性由服务层
// 在创建前通过 GetMailboxByAddress 预检，存储层不强制。
type MailboxRepository interface {
	CreateMailbox(mailbox *domain.Mailbox) error
	// GetMailboxByAddress 只返回未过期的邮箱，命中时更新 last_accessed_at。
	GetMailboxByAddress(address string) (*domain.Mailbox, error)
	// DeleteMailbox 级联删除邮箱及其全部邮件、附件和分块。幂等。
	DeleteMailbox(address string) error
	// DeleteExpiredMailboxes 级联删除所有已过期邮箱，返回删除数量。
	DeleteExpiredMailboxes() (int, error)
}

// EmailRepository 定义邮件数据存取操作。
type EmailRepository interface {
	SaveEmail(email *domain.Email) error
	// ListEmails 返回按接收时间倒序的邮件列表项，不含正文。
	ListEmails(mailboxID string) ([]domain.EmailSummary, error)
	// GetEmail 返回邮件详情，并无条件把 is_read 置为 true。
	// 标记已读是读取操作刻意为之的副作用，且不可逆。
	GetEmail(id string) (*domain.Email, error)
	// DeleteEmail 级联删除邮件及其附件和分块。幂等。
	DeleteEmail(id string) error
	// DeleteExpiredEmails 级联删除接收时间不晚于 before 的邮件，返回删除数量。
	DeleteExpiredEmails(before time.Time) (int, error)
	// DeleteReadEmails 级联删除所有已读邮件，返回删除数量。
	DeleteReadEmails() (int, error)
}

// AttachmentRepository 定义附件数据存取操作。
type AttachmentRepository interface {
	// SaveAttachment 持久化附件。入参 attachment.Content 携带完整的
	// base64 内容；存储层根据分块阈值决定内联保存还是拆块保存，
	// 并据此回填 IsLarge 与 ChunksCount（大附件的 Content 置空）。
	// 分块写入若中途失败，整个附件回滚，绝不留下与 chunks_count
	// 不符的残缺分块集。
	SaveAttachment(attachment *domain.Attachment) error
	// ListAttachments 返回按创建时间升序的附件元数据列表。
	ListAttachments(emailID string) ([]domain.AttachmentSummary, error)
	// GetAttachment 返回附件详情；大附件按分块序号重组完整内容，
	// 重组失败时返回 domain.ErrCorruptAttachment 而不是残缺内容。
	GetAttachment(id string) (*domain.Attachment, error)
	// DeleteOrphanedAttachments 删除父邮件已不存在的附件及其分块，
	// 以及父附件已不存在的游离分块；返回删除的附件数量。
	// 这是级联删除未生效时的兜底。
	DeleteOrphanedAttachments() (int, error)
}

// Store 聚合引擎需要的全部存储接口。
type Store interface {
	MailboxRepository
	EmailRepository
	AttachmentRepository

	Close() error
	Health() error
}
