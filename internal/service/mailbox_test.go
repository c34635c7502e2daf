package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempbox/backend/internal/config"
	"tempbox/backend/internal/domain"
	"tempbox/backend/internal/storage/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		Mailbox: config.MailboxConfig{
			Domain:         "tempbox.local",
			DefaultTTL:     24 * time.Hour,
			EmailRetention: 24 * time.Hour,
			ChunkSize:      100,
		},
	}
}

func newTestMailboxService() (*MailboxService, *memory.Store) {
	store := memory.NewStore(100)
	svc := NewMailboxService(store, nil, testConfig(), nil, nil)
	return svc, store
}

func TestCreateMailbox(t *testing.T) {
	svc, _ := newTestMailboxService()

	t.Run("随机地址", func(t *testing.T) {
		mailbox, err := svc.Create(CreateMailboxInput{})
		require.NoError(t, err)

		local, domainPart, found := strings.Cut(mailbox.Address, "@")
		require.True(t, found)
		assert.Equal(t, "tempbox.local", domainPart)
		assert.GreaterOrEqual(t, len(local), 8)
		assert.LessOrEqual(t, len(local), 12)
		assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), mailbox.ExpiresAt, time.Minute)
	})

	t.Run("自选地址", func(t *testing.T) {
		mailbox, err := svc.Create(CreateMailboxInput{Address: "MyBox"})
		require.NoError(t, err)
		assert.Equal(t, "mybox@tempbox.local", mailbox.Address)
	})

	t.Run("重复地址被拒绝", func(t *testing.T) {
		_, err := svc.Create(CreateMailboxInput{Address: "taken"})
		require.NoError(t, err)

		_, err = svc.Create(CreateMailboxInput{Address: "taken"})
		assert.ErrorIs(t, err, domain.ErrDuplicateAddress)
	})

	t.Run("非法地址被拒绝", func(t *testing.T) {
		_, err := svc.Create(CreateMailboxInput{Address: "-bad"})
		assert.ErrorIs(t, err, domain.ErrInvalidAddress)

		_, err = svc.Create(CreateMailboxInput{Address: "contains space"})
		assert.ErrorIs(t, err, domain.ErrInvalidAddress)
	})

	t.Run("自定义生存时间", func(t *testing.T) {
		mailbox, err := svc.Create(CreateMailboxInput{Address: "shortlived", TTL: time.Hour})
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().UTC().Add(time.Hour), mailbox.ExpiresAt, time.Minute)
	})
}

func TestGetMailbox(t *testing.T) {
	svc, _ := newTestMailboxService()

	created, err := svc.Create(CreateMailboxInput{Address: "reader"})
	require.NoError(t, err)

	t.Run("地址大小写不敏感", func(t *testing.T) {
		got, err := svc.Get("Reader@Tempbox.Local")
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
	})

	t.Run("不存在的地址", func(t *testing.T) {
		_, err := svc.Get("missing@tempbox.local")
		assert.ErrorIs(t, err, domain.ErrMailboxNotFound)
	})
}

func TestDeleteMailbox(t *testing.T) {
	svc, _ := newTestMailboxService()

	created, err := svc.Create(CreateMailboxInput{Address: "doomed"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(created.Address))
	_, err = svc.Get(created.Address)
	assert.ErrorIs(t, err, domain.ErrMailboxNotFound)

	// 幂等
	assert.NoError(t, svc.Delete(created.Address))

	// 地址释放后可重新创建
	_, err = svc.Create(CreateMailboxInput{Address: "doomed"})
	assert.NoError(t, err)
}

func TestResolveExpiredMailbox(t *testing.T) {
	svc, store := newTestMailboxService()

	now := domain.Now()
	expired := &domain.Mailbox{
		ID:             domain.NewID(),
		Address:        "stale@tempbox.local",
		CreatedAt:      now.Add(-48 * time.Hour),
		ExpiresAt:      now.Add(-time.Hour),
		LastAccessedAt: now.Add(-48 * time.Hour),
	}
	require.NoError(t, store.CreateMailbox(expired))

	_, err := svc.Resolve(expired.Address)
	assert.ErrorIs(t, err, domain.ErrMailboxNotFound)
}
