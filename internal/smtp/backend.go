package smtp

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	gosmtp "github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"tempbox/backend/internal/config"
	"tempbox/backend/internal/domain"
	"tempbox/backend/internal/monitoring"
	"tempbox/backend/internal/service"
)

// Backend 实现 go-smtp 的 Backend 接口。
//
// 这是一个只接收邮件的 SMTP 服务器：
// 收件人必须是本系统内存在且未过期的邮箱，
// 其余地址一律返回 550，不做任何中继。
type Backend struct {
	mailboxes *service.MailboxService
	emails    *service.EmailService
	cfg       *config.Config
	metrics   *monitoring.Metrics
	limiter   *ConnectionLimiter
	log       *zap.Logger
}

// NewBackend 创建 SMTP Backend。
func NewBackend(mailboxes *service.MailboxService, emails *service.EmailService, cfg *config.Config, metrics *monitoring.Metrics, log *zap.Logger) *Backend {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backend{
		mailboxes: mailboxes,
		emails:    emails,
		cfg:       cfg,
		metrics:   metrics,
		limiter:   NewConnectionLimiter(cfg.SMTP.MaxConns, cfg.SMTP.MaxConnRate),
		log:       log,
	}
}

// NewSession 创建新的 SMTP 会话。
func (b *Backend) NewSession(c *gosmtp.Conn) (gosmtp.Session, error) {
	if !b.limiter.Acquire() {
		return nil, &gosmtp.SMTPError{
			Code:         421,
			EnhancedCode: gosmtp.EnhancedCode{4, 7, 0},
			Message:      "too many connections, try again later",
		}
	}
	if b.metrics != nil {
		b.metrics.SMTPConnections.Inc()
	}
	return &session{backend: b}, nil
}

// NewServer 构建配置好的 go-smtp 服务器。
func NewServer(backend *Backend) *gosmtp.Server {
	server := gosmtp.NewServer(backend)
	server.Addr = backend.cfg.SMTP.BindAddr
	server.Domain = backend.cfg.SMTP.Domain
	server.MaxMessageBytes = backend.cfg.SMTP.MaxMessageBytes
	server.MaxRecipients = 50
	server.AllowInsecureAuth = true
	return server
}

type session struct {
	backend     *Backend
	fromAddress string
	recipients  []recipient
}

type recipient struct {
	address string
	id      string
}

// Mail 处理 MAIL 命令。
func (s *session) Mail(from string, opts *gosmtp.MailOptions) error {
	s.fromAddress = normalizeAddress(from)
	return nil
}

// Rcpt 处理 RCPT 命令。收件人必须是系统内存在且未过期的邮箱。
func (s *session) Rcpt(to string, _ *gosmtp.RcptOptions) error {
	addr := normalizeAddress(to)

	local, recipientDomain, found := strings.Cut(addr, "@")
	if !found || local == "" {
		return &gosmtp.SMTPError{
			Code:         501,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 3},
			Message:      "invalid recipient address",
		}
	}

	// 只服务配置的域名，其余一律拒绝中继
	if s.backend.cfg.Mailbox.Domain != "" && !strings.EqualFold(recipientDomain, s.backend.cfg.Mailbox.Domain) {
		s.rejectRcpt()
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 7, 1},
			Message:      "relay access denied - domain not managed by this server",
		}
	}

	mailbox, err := s.backend.mailboxes.Resolve(addr)
	if err != nil {
		s.rejectRcpt()
		return &gosmtp.SMTPError{
			Code:         550,
			EnhancedCode: gosmtp.EnhancedCode{5, 1, 1},
			Message:      "recipient mailbox not found",
		}
	}

	s.recipients = append(s.recipients, recipient{
		address: addr,
		id:      mailbox.ID,
	})
	return nil
}

func (s *session) rejectRcpt() {
	if s.backend.metrics != nil {
		s.backend.metrics.SMTPRejectedRcpts.Inc()
	}
}

// Data 处理邮件内容：解析 MIME，为每个收件人落库。
// 附件入库失败只丢弃该附件，邮件本体照常保存。
func (s *session) Data(r io.Reader) error {
	maxBytes := s.backend.cfg.SMTP.MaxMessageBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	rawBytes, err := io.ReadAll(io.LimitReader(r, maxBytes))
	if err != nil {
		return err
	}

	parsed, err := ParseEmail(rawBytes)
	if err != nil {
		return fmt.Errorf("parse email: %w", err)
	}

	fromAddress := parsed.From
	if fromAddress == "" {
		fromAddress = s.fromAddress
	}

	for _, rcpt := range s.recipients {
		email := &domain.Email{
			ID:             domain.NewID(),
			MailboxID:      rcpt.id,
			FromAddress:    fromAddress,
			FromName:       parsed.FromName,
			ToAddress:      rcpt.address,
			Subject:        parsed.Subject,
			TextContent:    parsed.Text,
			HTMLContent:    parsed.HTML,
			ReceivedAt:     domain.Now(),
			HasAttachments: len(parsed.Attachments) > 0,
		}

		if err := s.backend.emails.Save(email); err != nil {
			return err
		}

		for _, att := range parsed.Attachments {
			attachment := &domain.Attachment{
				ID:       domain.NewID(),
				EmailID:  email.ID,
				Filename: att.Filename,
				MimeType: att.MimeType,
				Content:  base64.StdEncoding.EncodeToString(att.Content),
				Size:     int64(len(att.Content)),
			}
			if err := s.backend.emails.SaveAttachment(attachment); err != nil {
				// 单个附件失败不影响邮件与其它附件
				s.backend.log.Warn("attachment dropped",
					zap.String("emailID", email.ID),
					zap.String("filename", att.Filename),
					zap.Error(err))
				if s.backend.metrics != nil {
					s.backend.metrics.SMTPAttachmentDrops.Inc()
				}
			}
		}
	}

	return nil
}

// AuthPlain 处理 PLAIN 认证（此处允许匿名）。
func (s *session) AuthPlain(username, password string) error {
	return nil
}

// Reset 重置状态。
func (s *session) Reset() {
	s.fromAddress = ""
	s.recipients = nil
}

// Logout 会话结束。
func (s *session) Logout() error {
	s.backend.limiter.Release()
	return nil
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	addr = strings.Trim(addr, "<>")
	return strings.ToLower(addr)
}
