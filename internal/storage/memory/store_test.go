package memory

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempbox/backend/internal/domain"
)

func newMailbox(address string, ttl time.Duration) *domain.Mailbox {
	now := domain.Now()
	return &domain.Mailbox{
		ID:             domain.NewID(),
		Address:        address,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		LastAccessedAt: now,
	}
}

func newEmail(mailboxID string) *domain.Email {
	return &domain.Email{
		ID:          domain.NewID(),
		MailboxID:   mailboxID,
		FromAddress: "sender@example.com",
		ToAddress:   "someone@tempbox.local",
		Subject:     "hello",
		TextContent: "body",
		ReceivedAt:  domain.Now(),
	}
}

func newAttachment(emailID, content string) *domain.Attachment {
	return &domain.Attachment{
		ID:        domain.NewID(),
		EmailID:   emailID,
		Filename:  "report.pdf",
		MimeType:  "application/pdf",
		Content:   content,
		Size:      int64(len(content)),
		CreatedAt: domain.Now(),
	}
}

func TestMailboxLifecycle(t *testing.T) {
	store := NewStore(0)

	t.Run("创建后可按地址读取", func(t *testing.T) {
		mailbox := newMailbox("abc123@tempbox.local", time.Hour)
		require.NoError(t, store.CreateMailbox(mailbox))

		got, err := store.GetMailboxByAddress(mailbox.Address)
		require.NoError(t, err)
		assert.Equal(t, mailbox.ID, got.ID)
	})

	t.Run("读取会更新最后访问时间", func(t *testing.T) {
		mailbox := newMailbox("touch@tempbox.local", time.Hour)
		mailbox.LastAccessedAt = domain.Now().Add(-time.Hour)
		require.NoError(t, store.CreateMailbox(mailbox))

		got, err := store.GetMailboxByAddress(mailbox.Address)
		require.NoError(t, err)
		assert.True(t, got.LastAccessedAt.After(mailbox.LastAccessedAt))
	})

	t.Run("已过期但未清理的邮箱读取为不存在", func(t *testing.T) {
		mailbox := newMailbox("expired@tempbox.local", -time.Minute)
		require.NoError(t, store.CreateMailbox(mailbox))

		_, err := store.GetMailboxByAddress(mailbox.Address)
		assert.ErrorIs(t, err, domain.ErrMailboxNotFound)
	})

	t.Run("删除不存在的地址不报错", func(t *testing.T) {
		assert.NoError(t, store.DeleteMailbox("missing@tempbox.local"))
	})
}

func TestAddressReuseAfterExpiry(t *testing.T) {
	store := NewStore(0)

	expired := newMailbox("reuse@tempbox.local", -time.Hour)
	require.NoError(t, store.CreateMailbox(expired))

	// 过期地址可被新邮箱重新占用
	fresh := newMailbox("reuse@tempbox.local", time.Hour)
	require.NoError(t, store.CreateMailbox(fresh))

	got, err := store.GetMailboxByAddress("reuse@tempbox.local")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, got.ID)

	// 清理旧的过期邮箱不能斩断新邮箱的地址映射
	count, err := store.DeleteExpiredMailboxes()
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err = store.GetMailboxByAddress("reuse@tempbox.local")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, got.ID)
}

func TestDeleteMailboxCascade(t *testing.T) {
	store := NewStore(100)

	mailbox := newMailbox("cascade@tempbox.local", time.Hour)
	require.NoError(t, store.CreateMailbox(mailbox))

	email := newEmail(mailbox.ID)
	require.NoError(t, store.SaveEmail(email))

	small := newAttachment(email.ID, "small-content")
	require.NoError(t, store.SaveAttachment(small))
	large := newAttachment(email.ID, strings.Repeat("x", 350))
	require.NoError(t, store.SaveAttachment(large))

	require.NoError(t, store.DeleteMailbox(mailbox.Address))

	_, err := store.GetMailboxByAddress(mailbox.Address)
	assert.ErrorIs(t, err, domain.ErrMailboxNotFound)
	_, err = store.GetEmail(email.ID)
	assert.ErrorIs(t, err, domain.ErrEmailNotFound)
	_, err = store.GetAttachment(small.ID)
	assert.ErrorIs(t, err, domain.ErrAttachmentNotFound)
	_, err = store.GetAttachment(large.ID)
	assert.ErrorIs(t, err, domain.ErrAttachmentNotFound)

	// 级联后不留游离分块
	assert.Empty(t, store.chunks)

	// 幂等：重复删除同样成功
	assert.NoError(t, store.DeleteMailbox(mailbox.Address))
}

func TestEmailReadLatch(t *testing.T) {
	store := NewStore(0)

	mailbox := newMailbox("read@tempbox.local", time.Hour)
	require.NoError(t, store.CreateMailbox(mailbox))
	email := newEmail(mailbox.ID)
	require.NoError(t, store.SaveEmail(email))

	t.Run("列表不改变已读状态", func(t *testing.T) {
		summaries, err := store.ListEmails(mailbox.ID)
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.False(t, summaries[0].IsRead)
	})

	t.Run("详情读取标记已读", func(t *testing.T) {
		got, err := store.GetEmail(email.ID)
		require.NoError(t, err)
		assert.True(t, got.IsRead)

		summaries, err := store.ListEmails(mailbox.ID)
		require.NoError(t, err)
		assert.True(t, summaries[0].IsRead)
	})

	t.Run("已读邮件被清理任务回收", func(t *testing.T) {
		count, err := store.DeleteReadEmails()
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		_, err = store.GetEmail(email.ID)
		assert.ErrorIs(t, err, domain.ErrEmailNotFound)
	})
}

func TestListEmailsOrder(t *testing.T) {
	store := NewStore(0)

	mailbox := newMailbox("order@tempbox.local", time.Hour)
	require.NoError(t, store.CreateMailbox(mailbox))

	base := domain.Now()
	for i := 0; i < 3; i++ {
		email := newEmail(mailbox.ID)
		email.Subject = string(rune('a' + i))
		email.ReceivedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.SaveEmail(email))
	}

	summaries, err := store.ListEmails(mailbox.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	// 最新的排最前
	assert.Equal(t, "c", summaries[0].Subject)
	assert.Equal(t, "a", summaries[2].Subject)
}

func TestLargeAttachmentRoundTrip(t *testing.T) {
	const chunkSize = 500_000
	store := NewStore(chunkSize)

	mailbox := newMailbox("large@tempbox.local", time.Hour)
	require.NoError(t, store.CreateMailbox(mailbox))
	email := newEmail(mailbox.ID)
	require.NoError(t, store.SaveEmail(email))

	content := strings.Repeat("A", 2_000_000)
	attachment := newAttachment(email.ID, content)
	require.NoError(t, store.SaveAttachment(attachment))

	assert.True(t, attachment.IsLarge)
	assert.Equal(t, 4, attachment.ChunksCount)
	assert.Empty(t, attachment.Content)

	t.Run("列表只返回元数据", func(t *testing.T) {
		summaries, err := store.ListAttachments(email.ID)
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.True(t, summaries[0].IsLarge)
		assert.Equal(t, 4, summaries[0].ChunksCount)
	})

	t.Run("详情重组出完整内容", func(t *testing.T) {
		got, err := store.GetAttachment(attachment.ID)
		require.NoError(t, err)
		assert.Equal(t, content, got.Content)
	})
}

func TestCorruptChunkedAttachment(t *testing.T) {
	store := NewStore(100)

	mailbox := newMailbox("corrupt@tempbox.local", time.Hour)
	require.NoError(t, store.CreateMailbox(mailbox))
	email := newEmail(mailbox.ID)
	require.NoError(t, store.SaveEmail(email))

	attachment := newAttachment(email.ID, strings.Repeat("z", 350))
	require.NoError(t, store.SaveAttachment(attachment))
	require.True(t, attachment.IsLarge)

	// 抹掉一个分块，模拟写入中断留下的不完整数据
	store.mu.Lock()
	rows := store.chunks[attachment.ID]
	store.chunks[attachment.ID] = rows[:len(rows)-1]
	store.mu.Unlock()

	// 宁可报错也不返回拼了一半的内容
	_, err := store.GetAttachment(attachment.ID)
	assert.ErrorIs(t, err, domain.ErrCorruptAttachment)
}

func TestSmallAttachmentStoredInline(t *testing.T) {
	store := NewStore(1000)

	mailbox := newMailbox("inline@tempbox.local", time.Hour)
	require.NoError(t, store.CreateMailbox(mailbox))
	email := newEmail(mailbox.ID)
	require.NoError(t, store.SaveEmail(email))

	// 恰好等于阈值的内容不分块
	content := strings.Repeat("B", 1000)
	attachment := newAttachment(email.ID, content)
	require.NoError(t, store.SaveAttachment(attachment))

	assert.False(t, attachment.IsLarge)
	assert.Equal(t, 0, attachment.ChunksCount)

	got, err := store.GetAttachment(attachment.ID)
	require.NoError(t, err)
	assert.Equal(t, content, got.Content)
}

func TestSweepOperations(t *testing.T) {
	store := NewStore(100)

	t.Run("清理过期邮箱并级联", func(t *testing.T) {
		expired := newMailbox("gone@tempbox.local", -time.Hour)
		require.NoError(t, store.CreateMailbox(expired))
		alive := newMailbox("alive@tempbox.local", time.Hour)
		require.NoError(t, store.CreateMailbox(alive))

		email := newEmail(expired.ID)
		require.NoError(t, store.SaveEmail(email))
		require.NoError(t, store.SaveAttachment(newAttachment(email.ID, strings.Repeat("x", 250))))

		count, err := store.DeleteExpiredMailboxes()
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		_, err = store.GetMailboxByAddress(alive.Address)
		assert.NoError(t, err)
		assert.Empty(t, store.chunks)

		// 无过期邮箱时再次执行为零
		count, err = store.DeleteExpiredMailboxes()
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("按保留窗口清理旧邮件", func(t *testing.T) {
		mailbox := newMailbox("retention@tempbox.local", time.Hour)
		require.NoError(t, store.CreateMailbox(mailbox))

		old := newEmail(mailbox.ID)
		old.ReceivedAt = domain.Now().Add(-48 * time.Hour)
		require.NoError(t, store.SaveEmail(old))
		recent := newEmail(mailbox.ID)
		require.NoError(t, store.SaveEmail(recent))

		count, err := store.DeleteExpiredEmails(domain.Now().Add(-24 * time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		_, err = store.GetEmail(old.ID)
		assert.ErrorIs(t, err, domain.ErrEmailNotFound)
	})

	t.Run("回收孤儿附件", func(t *testing.T) {
		mailbox := newMailbox("orphan@tempbox.local", time.Hour)
		require.NoError(t, store.CreateMailbox(mailbox))
		email := newEmail(mailbox.ID)
		require.NoError(t, store.SaveEmail(email))

		attachment := newAttachment(email.ID, strings.Repeat("y", 250))
		require.NoError(t, store.SaveAttachment(attachment))

		// 直接抹掉父邮件，模拟级联失效后的残留
		store.mu.Lock()
		delete(store.emails, email.ID)
		store.mu.Unlock()

		count, err := store.DeleteOrphanedAttachments()
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Empty(t, store.chunks)
	})
}
