package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tempbox/backend/internal/config"
	"tempbox/backend/internal/domain"
	"tempbox/backend/internal/monitoring"
	"tempbox/backend/internal/storage"
	"tempbox/backend/internal/storage/redis"
)

// ErrRateLimited 来源 IP 在当前窗口内申请邮箱的次数超出上限。
var ErrRateLimited = errors.New("mailbox provisioning rate limited")

// 限流窗口与 SMTP 投递查询的缓存时长
const (
	provisionWindow  = time.Hour
	resolveCacheTTL  = time.Minute
	randomRetryLimit = 5
)

// MailboxService 封装邮箱相关业务操作。
type MailboxService struct {
	store   storage.Store
	cache   *redis.Cache // 可选，为 nil 时限流与查询缓存禁用
	cfg     *config.Config
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewMailboxService 创建邮箱业务服务。
func NewMailboxService(store storage.Store, cache *redis.Cache, cfg *config.Config, metrics *monitoring.Metrics, log *zap.Logger) *MailboxService {
	if log == nil {
		log = zap.NewNop()
	}
	return &MailboxService{
		store:   store,
		cache:   cache,
		cfg:     cfg,
		metrics: metrics,
		log:     log,
	}
}

// CreateMailboxInput 定义创建邮箱所需的输入。
type CreateMailboxInput struct {
	Address  string        // 可选：期望的地址本地部分，留空则随机生成
	TTL      time.Duration // 可选：生存时间，零值使用配置默认值
	OriginIP string        // 来源 IP，用于限流计数
}

// Create 创建新的临时邮箱。
// 指定地址已被占用时返回 ErrDuplicateAddress；
// 随机地址碰撞时自动重试若干次。
func (s *MailboxService) Create(input CreateMailboxInput) (*domain.Mailbox, error) {
	if err := s.checkProvisionLimit(input.OriginIP); err != nil {
		return nil, err
	}

	ttl := input.TTL
	if ttl <= 0 {
		ttl = s.cfg.Mailbox.DefaultTTL
	}

	if input.Address != "" {
		local := strings.ToLower(strings.TrimSpace(input.Address))
		if err := domain.ValidateAddress(local); err != nil {
			return nil, err
		}
		return s.create(s.fullAddress(local), ttl, input.OriginIP)
	}

	// 随机地址：碰撞时换一个再试
	var lastErr error
	for i := 0; i < randomRetryLimit; i++ {
		mailbox, err := s.create(s.fullAddress(domain.RandomAddress()), ttl, input.OriginIP)
		if err == nil {
			return mailbox, nil
		}
		if !errors.Is(err, domain.ErrDuplicateAddress) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *MailboxService) create(address string, ttl time.Duration, originIP string) (*domain.Mailbox, error) {
	// 占用检查：活跃邮箱已存在同名地址时拒绝创建
	if _, err := s.store.GetMailboxByAddress(address); err == nil {
		return nil, domain.ErrDuplicateAddress
	} else if !errors.Is(err, domain.ErrMailboxNotFound) {
		return nil, err
	}

	now := domain.Now()
	mailbox := &domain.Mailbox{
		ID:             domain.NewID(),
		Address:        address,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
		OriginIP:       originIP,
	}

	if err := s.store.CreateMailbox(mailbox); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.CacheMailbox(mailbox, resolveCacheTTL); err != nil {
			s.log.Warn("failed to cache mailbox", zap.Error(err))
		}
	}

	if s.metrics != nil {
		s.metrics.RecordMailboxCreated()
	}
	s.log.Info("mailbox created",
		zap.String("address", mailbox.Address),
		zap.Time("expiresAt", mailbox.ExpiresAt))

	return mailbox, nil
}

// Get 按地址获取邮箱，同时刷新最后访问时间。
func (s *MailboxService) Get(address string) (*domain.Mailbox, error) {
	return s.store.GetMailboxByAddress(strings.ToLower(strings.TrimSpace(address)))
}

// Resolve 按地址解析有效邮箱，供 SMTP 收件人校验和 WebSocket 订阅使用。
// 走短 TTL 缓存，不刷新最后访问时间。
func (s *MailboxService) Resolve(address string) (*domain.Mailbox, error) {
	address = strings.ToLower(strings.TrimSpace(address))

	if s.cache != nil {
		if mailbox, err := s.cache.GetCachedMailbox(address); err == nil {
			if mailbox.Expired(domain.Now()) {
				return nil, domain.ErrMailboxNotFound
			}
			return mailbox, nil
		}
	}

	mailbox, err := s.store.GetMailboxByAddress(address)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.CacheMailbox(mailbox, resolveCacheTTL); err != nil {
			s.log.Warn("failed to cache mailbox", zap.Error(err))
		}
	}
	return mailbox, nil
}

// Delete 删除邮箱及其全部邮件与附件。幂等。
func (s *MailboxService) Delete(address string) error {
	address = strings.ToLower(strings.TrimSpace(address))

	if err := s.store.DeleteMailbox(address); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.DeleteCachedMailbox(address); err != nil {
			s.log.Warn("failed to invalidate mailbox cache", zap.Error(err))
		}
	}

	if s.metrics != nil {
		s.metrics.RecordMailboxDeleted()
	}
	s.log.Info("mailbox deleted", zap.String("address", address))
	return nil
}

// fullAddress 拼出完整收件地址
func (s *MailboxService) fullAddress(local string) string {
	if s.cfg.Mailbox.Domain == "" {
		return local
	}
	return fmt.Sprintf("%s@%s", local, s.cfg.Mailbox.Domain)
}

// checkProvisionLimit 检查来源 IP 的申请限流。
// 未配置 Redis 或限流上限为零时不限制；Redis 故障时放行，不阻塞创建。
func (s *MailboxService) checkProvisionLimit(ip string) error {
	if s.cache == nil || s.cfg.Mailbox.MaxPerIP <= 0 || ip == "" {
		return nil
	}

	count, err := s.cache.IncrementProvisionCount(ip, provisionWindow)
	if err != nil {
		s.log.Warn("rate limit check failed, allowing request", zap.Error(err))
		return nil
	}

	if count > int64(s.cfg.Mailbox.MaxPerIP) {
		if s.metrics != nil {
			s.metrics.RecordRateLimitBlock("provision")
		}
		return ErrRateLimited
	}
	return nil
}
