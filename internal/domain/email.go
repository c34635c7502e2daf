package domain

import "time"

// Email 表示临时邮箱内收到的一封邮件。
// IsRead 只会从 false 变为 true（首次读取详情时），没有反向操作；
// 已读邮件会被下一轮清理任务删除。
type Email struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MailboxID      string    `json:"mailboxId" gorm:"type:varchar(36);index;not null"`
	FromAddress    string    `json:"fromAddress" gorm:"type:varchar(255)"`
	FromName       string    `json:"fromName" gorm:"type:varchar(255)"`
	ToAddress      string    `json:"toAddress" gorm:"type:varchar(255)"`
	Subject        string    `json:"subject" gorm:"type:varchar(500)"`
	TextContent    string    `json:"textContent" gorm:"type:text"`
	HTMLContent    string    `json:"htmlContent" gorm:"type:text"`
	ReceivedAt     time.Time `json:"receivedAt" gorm:"index"`
	HasAttachments bool      `json:"hasAttachments" gorm:"default:false"`
	IsRead         bool      `json:"isRead" gorm:"default:false;index"`
}

// EmailSummary 邮件列表项，不携带正文，保证列表响应体积有界。
type EmailSummary struct {
	ID             string    `json:"id"`
	MailboxID      string    `json:"mailboxId"`
	FromAddress    string    `json:"fromAddress"`
	FromName       string    `json:"fromName"`
	ToAddress      string    `json:"toAddress"`
	Subject        string    `json:"subject"`
	ReceivedAt     time.Time `json:"receivedAt"`
	HasAttachments bool      `json:"hasAttachments"`
	IsRead         bool      `json:"isRead"`
}

// Summary 返回邮件的列表项视图。
func (e *Email) Summary() EmailSummary {
	return EmailSummary{
		ID:             e.ID,
		MailboxID:      e.MailboxID,
		FromAddress:    e.FromAddress,
		FromName:       e.FromName,
		ToAddress:      e.ToAddress,
		Subject:        e.Subject,
		ReceivedAt:     e.ReceivedAt,
		HasAttachments: e.HasAttachments,
		IsRead:         e.IsRead,
	}
}
