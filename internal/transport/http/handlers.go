package httptransport

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"tempbox/backend/internal/config"
	"tempbox/backend/internal/domain"
	"tempbox/backend/internal/service"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	mailboxes *service.MailboxService
	emails    *service.EmailService
	cfg       *config.Config
}

// NewHandler 创建 HTTP 处理器。
func NewHandler(mailboxes *service.MailboxService, emails *service.EmailService, cfg *config.Config) *Handler {
	return &Handler{
		mailboxes: mailboxes,
		emails:    emails,
		cfg:       cfg,
	}
}

// ========== 请求/响应结构体 ==========

type createMailboxRequest struct {
	Address        string `json:"address"`        // 可选：期望的地址本地部分
	ExpiresInHours int    `json:"expiresInHours"` // 可选：生存时间（小时），0 使用默认值
}

type configResponse struct {
	Domain         string `json:"domain"`         // 收件域名
	DefaultTTL     string `json:"defaultTtl"`     // 邮箱默认生存时间
	EmailRetention string `json:"emailRetention"` // 邮件保留窗口
	ChunkSize      int    `json:"chunkSize"`      // 附件分块大小（base64 字符数）
}

// ========== 邮箱 ==========

// createMailbox 创建临时邮箱
// POST /api/mailboxes
func (h *Handler) createMailbox(c *gin.Context) {
	var req createMailboxRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, MsgInvalidRequest)
			return
		}
	}
	if req.ExpiresInHours < 0 {
		BadRequest(c, MsgInvalidExpiresIn)
		return
	}

	mailbox, err := h.mailboxes.Create(service.CreateMailboxInput{
		Address:  req.Address,
		TTL:      time.Duration(req.ExpiresInHours) * time.Hour,
		OriginIP: c.ClientIP(),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	Created(c, mailbox)
}

// getMailbox 获取邮箱详情，读取会刷新最后访问时间
// GET /api/mailboxes/:address
func (h *Handler) getMailbox(c *gin.Context) {
	mailbox, err := h.mailboxes.Get(c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, mailbox)
}

// deleteMailbox 删除邮箱及其全部数据（幂等）
// DELETE /api/mailboxes/:address
func (h *Handler) deleteMailbox(c *gin.Context) {
	if err := h.mailboxes.Delete(c.Param("address")); err != nil {
		respondError(c, err)
		return
	}
	Deleted(c)
}

// listEmails 获取邮箱下的邮件列表（按接收时间倒序）
// GET /api/mailboxes/:address/emails
func (h *Handler) listEmails(c *gin.Context) {
	mailbox, err := h.mailboxes.Get(c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}

	summaries, err := h.emails.ListByMailbox(mailbox.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, summaries)
}

// ========== 邮件 ==========

// getEmail 获取邮件详情，首次读取标记已读
// GET /api/emails/:id
func (h *Handler) getEmail(c *gin.Context) {
	email, err := h.emails.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, email)
}

// deleteEmail 删除邮件及其附件（幂等）
// DELETE /api/emails/:id
func (h *Handler) deleteEmail(c *gin.Context) {
	if err := h.emails.Delete(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	Deleted(c)
}

// listAttachments 获取邮件的附件元数据列表
// GET /api/emails/:id/attachments
func (h *Handler) listAttachments(c *gin.Context) {
	summaries, err := h.emails.ListAttachments(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, summaries)
}

// ========== 附件 ==========

// getAttachment 获取附件。默认返回元数据，带 ?download=true 时返回解码后的二进制内容
// GET /api/attachments/:id
func (h *Handler) getAttachment(c *gin.Context) {
	attachment, err := h.emails.GetAttachment(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("download") != "true" {
		Success(c, attachment.Summary())
		return
	}

	content, err := base64.StdEncoding.DecodeString(attachment.Content)
	if err != nil {
		respondError(c, domain.ErrCorruptAttachment)
		return
	}

	mimeType := attachment.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.Filename))
	c.Data(200, mimeType, content)
}

// ========== 系统 ==========

// getConfig 获取对外公开的系统配置
// GET /api/config
func (h *Handler) getConfig(c *gin.Context) {
	Success(c, configResponse{
		Domain:         h.cfg.Mailbox.Domain,
		DefaultTTL:     h.cfg.Mailbox.DefaultTTL.String(),
		EmailRetention: h.cfg.Mailbox.EmailRetention.String(),
		ChunkSize:      h.cfg.Mailbox.ChunkSize,
	})
}
