package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempbox/backend/internal/domain"
	"tempbox/backend/internal/storage/memory"
)

func newTestEmailService() (*EmailService, *MailboxService) {
	store := memory.NewStore(100)
	return NewEmailService(store, nil, nil, nil),
		NewMailboxService(store, nil, testConfig(), nil, nil)
}

func receiveEmail(t *testing.T, svc *EmailService, mailboxID string) *domain.Email {
	t.Helper()
	email := &domain.Email{
		MailboxID:   mailboxID,
		FromAddress: "sender@example.com",
		ToAddress:   "inbox@tempbox.local",
		Subject:     "test",
		TextContent: "hello",
	}
	require.NoError(t, svc.Save(email))
	return email
}

func TestSaveEmail(t *testing.T) {
	emails, mailboxes := newTestEmailService()

	mailbox, err := mailboxes.Create(CreateMailboxInput{Address: "inbox"})
	require.NoError(t, err)

	email := receiveEmail(t, emails, mailbox.ID)
	assert.NotEmpty(t, email.ID)
	assert.False(t, email.ReceivedAt.IsZero())

	summaries, err := emails.ListByMailbox(mailbox.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, email.ID, summaries[0].ID)
}

func TestGetEmailMarksRead(t *testing.T) {
	emails, mailboxes := newTestEmailService()

	mailbox, err := mailboxes.Create(CreateMailboxInput{Address: "reader"})
	require.NoError(t, err)
	email := receiveEmail(t, emails, mailbox.ID)

	got, err := emails.Get(email.ID)
	require.NoError(t, err)
	assert.True(t, got.IsRead)

	summaries, err := emails.ListByMailbox(mailbox.ID)
	require.NoError(t, err)
	assert.True(t, summaries[0].IsRead)
}

func TestDeleteEmail(t *testing.T) {
	emails, mailboxes := newTestEmailService()

	mailbox, err := mailboxes.Create(CreateMailboxInput{Address: "cleanup"})
	require.NoError(t, err)
	email := receiveEmail(t, emails, mailbox.ID)

	require.NoError(t, emails.Delete(email.ID))
	_, err = emails.Get(email.ID)
	assert.ErrorIs(t, err, domain.ErrEmailNotFound)

	// 幂等
	assert.NoError(t, emails.Delete(email.ID))
}

func TestAttachmentFlow(t *testing.T) {
	emails, mailboxes := newTestEmailService()

	mailbox, err := mailboxes.Create(CreateMailboxInput{Address: "files"})
	require.NoError(t, err)
	email := receiveEmail(t, emails, mailbox.ID)

	t.Run("小附件内联存储", func(t *testing.T) {
		attachment := &domain.Attachment{
			EmailID:  email.ID,
			Filename: "note.txt",
			MimeType: "text/plain",
			Content:  "aGVsbG8=",
			Size:     5,
		}
		require.NoError(t, emails.SaveAttachment(attachment))
		assert.NotEmpty(t, attachment.ID)
		assert.False(t, attachment.IsLarge)

		got, err := emails.GetAttachment(attachment.ID)
		require.NoError(t, err)
		assert.Equal(t, "aGVsbG8=", got.Content)
	})

	t.Run("大附件分块后可重组", func(t *testing.T) {
		content := strings.Repeat("Q", 350) // 阈值 100，拆 4 块
		attachment := &domain.Attachment{
			EmailID:   email.ID,
			Filename:  "big.bin",
			MimeType:  "application/octet-stream",
			Content:   content,
			Size:      262,
			CreatedAt: domain.Now().Add(time.Second),
		}
		require.NoError(t, emails.SaveAttachment(attachment))
		assert.True(t, attachment.IsLarge)
		assert.Equal(t, 4, attachment.ChunksCount)

		got, err := emails.GetAttachment(attachment.ID)
		require.NoError(t, err)
		assert.Equal(t, content, got.Content)
	})

	t.Run("附件列表按时间升序", func(t *testing.T) {
		summaries, err := emails.ListAttachments(email.ID)
		require.NoError(t, err)
		require.Len(t, summaries, 2)
		assert.Equal(t, "note.txt", summaries[0].Filename)
		assert.Equal(t, "big.bin", summaries[1].Filename)
	})
}
