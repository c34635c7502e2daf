package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempbox/backend/internal/domain"
	"tempbox/backend/internal/storage/memory"
)

func TestSweepRun(t *testing.T) {
	store := memory.NewStore(100)
	cfg := testConfig()
	sweep := NewSweepService(store, cfg, nil, nil)

	now := domain.Now()

	// 过期邮箱，带一封邮件和附件
	expired := &domain.Mailbox{
		ID:             domain.NewID(),
		Address:        "expired@tempbox.local",
		CreatedAt:      now.Add(-48 * time.Hour),
		ExpiresAt:      now.Add(-time.Hour),
		LastAccessedAt: now.Add(-48 * time.Hour),
	}
	require.NoError(t, store.CreateMailbox(expired))
	expiredEmail := &domain.Email{
		ID:         domain.NewID(),
		MailboxID:  expired.ID,
		ReceivedAt: now.Add(-2 * time.Hour),
	}
	require.NoError(t, store.SaveEmail(expiredEmail))

	// 活跃邮箱：一封超出保留窗口的旧邮件、一封已读邮件、一封正常邮件
	alive := &domain.Mailbox{
		ID:             domain.NewID(),
		Address:        "alive@tempbox.local",
		CreatedAt:      now,
		ExpiresAt:      now.Add(24 * time.Hour),
		LastAccessedAt: now,
	}
	require.NoError(t, store.CreateMailbox(alive))

	oldEmail := &domain.Email{
		ID:         domain.NewID(),
		MailboxID:  alive.ID,
		ReceivedAt: now.Add(-48 * time.Hour),
	}
	require.NoError(t, store.SaveEmail(oldEmail))

	readEmail := &domain.Email{
		ID:         domain.NewID(),
		MailboxID:  alive.ID,
		ReceivedAt: now,
	}
	require.NoError(t, store.SaveEmail(readEmail))
	_, err := store.GetEmail(readEmail.ID) // 标记已读
	require.NoError(t, err)

	freshEmail := &domain.Email{
		ID:         domain.NewID(),
		MailboxID:  alive.ID,
		ReceivedAt: now,
	}
	require.NoError(t, store.SaveEmail(freshEmail))

	result := sweep.Run()

	assert.Equal(t, 1, result.ExpiredMailboxes)
	assert.Equal(t, 1, result.ExpiredEmails)
	assert.Equal(t, 1, result.ReadEmails)
	assert.Equal(t, 3, result.Total())

	// 正常邮件保留
	summaries, err := store.ListEmails(alive.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, freshEmail.ID, summaries[0].ID)

	// 幂等：再跑一轮什么都不删
	result = sweep.Run()
	assert.Zero(t, result.Total())
}

func TestSweepCollectsOrphans(t *testing.T) {
	store := memory.NewStore(100)
	sweep := NewSweepService(store, testConfig(), nil, nil)
	emails := NewEmailService(store, nil, nil, nil)

	now := domain.Now()
	mailbox := &domain.Mailbox{
		ID:             domain.NewID(),
		Address:        "host@tempbox.local",
		CreatedAt:      now,
		ExpiresAt:      now.Add(24 * time.Hour),
		LastAccessedAt: now,
	}
	require.NoError(t, store.CreateMailbox(mailbox))

	orphan := &domain.Attachment{
		EmailID:  domain.NewID(), // 父邮件不存在
		Filename: "ghost.bin",
		Content:  "YWJj",
		Size:     3,
	}
	require.NoError(t, emails.SaveAttachment(orphan))

	result := sweep.Run()
	assert.Equal(t, 1, result.OrphanedAttachments)

	_, err := store.GetAttachment(orphan.ID)
	assert.ErrorIs(t, err, domain.ErrAttachmentNotFound)
}
