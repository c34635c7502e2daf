package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tempbox/backend/internal/config"
	"tempbox/backend/internal/monitoring"
	"tempbox/backend/internal/storage"
)

// SweepResult 一轮清理任务各步骤的删除数量。
type SweepResult struct {
	ExpiredMailboxes    int `json:"expiredMailboxes"`
	ExpiredEmails       int `json:"expiredEmails"`
	ReadEmails          int `json:"readEmails"`
	OrphanedAttachments int `json:"orphanedAttachments"`
}

// Total 返回本轮删除的总行数
func (r SweepResult) Total() int {
	return r.ExpiredMailboxes + r.ExpiredEmails + r.ReadEmails + r.OrphanedAttachments
}

// SweepService 周期性清理过期数据。
// 每轮按固定顺序执行四步：过期邮箱、超出保留窗口的邮件、
// 已读邮件、孤儿附件。单步失败记录后继续执行后续步骤，
// 漏掉的数据留给下一轮补偿。
type SweepService struct {
	store   storage.Store
	cfg     *config.Config
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewSweepService 创建清理任务服务。
func NewSweepService(store storage.Store, cfg *config.Config, metrics *monitoring.Metrics, log *zap.Logger) *SweepService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SweepService{
		store:   store,
		cfg:     cfg,
		metrics: metrics,
		log:     log,
	}
}

// Run 执行一轮完整清理，返回各步骤删除数量。
func (s *SweepService) Run() SweepResult {
	start := time.Now()
	var result SweepResult

	result.ExpiredMailboxes = s.step("expired_mailboxes", s.store.DeleteExpiredMailboxes)

	cutoff := time.Now().UTC().Add(-s.cfg.Mailbox.EmailRetention)
	result.ExpiredEmails = s.step("expired_emails", func() (int, error) {
		return s.store.DeleteExpiredEmails(cutoff)
	})

	result.ReadEmails = s.step("read_emails", s.store.DeleteReadEmails)
	result.OrphanedAttachments = s.step("orphaned_attachments", s.store.DeleteOrphanedAttachments)

	duration := time.Since(start)
	if s.metrics != nil {
		s.metrics.RecordSweep(duration)
	}

	s.log.Info("sweep completed",
		zap.Int("expiredMailboxes", result.ExpiredMailboxes),
		zap.Int("expiredEmails", result.ExpiredEmails),
		zap.Int("readEmails", result.ReadEmails),
		zap.Int("orphanedAttachments", result.OrphanedAttachments),
		zap.Duration("duration", duration))

	return result
}

// RunPeriodic 按配置的间隔周期执行清理，直到 ctx 取消。
// 启动时先立即执行一轮。
func (s *SweepService) RunPeriodic(ctx context.Context) {
	interval := s.cfg.Mailbox.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}

	s.Run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweep loop stopped")
			return
		case <-ticker.C:
			s.Run()
		}
	}
}

// step 执行单个清理步骤，失败只记录不中断
func (s *SweepService) step(name string, fn func() (int, error)) int {
	count, err := fn()
	if err != nil {
		s.log.Error("sweep step failed", zap.String("step", name), zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordSweepStepError(name)
		}
		return 0
	}
	if s.metrics != nil {
		s.metrics.RecordSweepStep(name, count)
	}
	return count
}
