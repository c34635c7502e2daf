package domain

import "errors"

var (
	// ErrMailboxNotFound 表示邮箱不存在或已过期。
	ErrMailboxNotFound = errors.New("mailbox not found")
	// ErrEmailNotFound 表示邮件不存在。
	ErrEmailNotFound = errors.New("email not found")
	// ErrAttachmentNotFound 表示附件不存在。
	ErrAttachmentNotFound = errors.New("attachment not found")
	// ErrDuplicateAddress 表示地址已被一个未过期的邮箱占用。
	ErrDuplicateAddress = errors.New("address already in use")
	// ErrInvalidAddress 表示用户自选的邮箱地址格式无效。
	ErrInvalidAddress = errors.New("address invalid")
	// ErrCorruptAttachment 表示大附件分块缺失或内容不一致，无法还原。
	// 读取时宁可报错也不返回残缺内容。
	ErrCorruptAttachment = errors.New("attachment content corrupted")
)
