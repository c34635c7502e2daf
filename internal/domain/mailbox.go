package domain

import "time"

// Mailbox 表示一个地址唯一、带生存期的临时邮箱。
// 过期后由清理任务连同其下所有邮件和附件一并删除。
type Mailbox struct {
	ID             string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Address        string    `json:"address" gorm:"type:varchar(255);uniqueIndex"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt" gorm:"index"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	OriginIP       string    `json:"-" gorm:"type:varchar(45)"`
}

// Expired 判断邮箱在给定时刻是否已过期。
// 已过期但尚未被清理的邮箱对所有查询视为不存在。
func (m *Mailbox) Expired(now time.Time) bool {
	return !m.ExpiresAt.After(now)
}
