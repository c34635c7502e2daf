package domain

import "time"

// Attachment 表示邮件附件的元数据。
// 小附件把 base64 内容直接存在 Content 字段；
// 超过分块阈值的大附件 Content 为空，内容拆成 ChunksCount 个分块单独存储。
type Attachment struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	EmailID     string    `json:"emailId" gorm:"type:varchar(36);index;not null"`
	Filename    string    `json:"filename" gorm:"type:varchar(255)"`
	MimeType    string    `json:"mimeType" gorm:"type:varchar(100)"`
	Content     string    `json:"content,omitempty" gorm:"type:text"` // base64 编码；is_large 时恒为空
	Size        int64     `json:"size"`                               // 原始二进制大小（字节）
	CreatedAt   time.Time `json:"createdAt"`
	IsLarge     bool      `json:"isLarge" gorm:"default:false"`
	ChunksCount int       `json:"chunksCount" gorm:"default:0"`
}

// AttachmentChunk 大附件的定长内容分块。
// chunk_index 从 0 开始连续编号，按序拼接即可还原完整的 base64 内容。
type AttachmentChunk struct {
	ID           string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	AttachmentID string `json:"attachmentId" gorm:"type:varchar(36);index;not null"`
	ChunkIndex   int    `json:"chunkIndex" gorm:"index"`
	Content      string `json:"content" gorm:"type:text"`
}

// AttachmentSummary 附件列表项（仅元数据，不携带内容）。
type AttachmentSummary struct {
	ID          string    `json:"id"`
	EmailID     string    `json:"emailId"`
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mimeType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
	IsLarge     bool      `json:"isLarge"`
	ChunksCount int       `json:"chunksCount"`
}

// Summary 返回附件的列表项视图。
func (a *Attachment) Summary() AttachmentSummary {
	return AttachmentSummary{
		ID:          a.ID,
		EmailID:     a.EmailID,
		Filename:    a.Filename,
		MimeType:    a.MimeType,
		Size:        a.Size,
		CreatedAt:   a.CreatedAt,
		IsLarge:     a.IsLarge,
		ChunksCount: a.ChunksCount,
	}
}
