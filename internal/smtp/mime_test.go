package smtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainEmail = "From: Alice <alice@example.com>\r\n" +
	"To: box@tempbox.local\r\n" +
	"Subject: hi\r\n" +
	"\r\n" +
	"plain body\r\n"

const multipartEmail = "From: bob@example.com\r\n" +
	"To: box@tempbox.local\r\n" +
	"Subject: with file\r\n" +
	"Content-Type: multipart/mixed; boundary=XYZ\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"see attachment\r\n" +
	"--XYZ\r\n" +
	"Content-Type: application/octet-stream\r\n" +
	"Content-Disposition: attachment; filename=\"data.bin\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"aGVsbG8gd29ybGQ=\r\n" +
	"--XYZ--\r\n"

func TestParseEmail(t *testing.T) {
	t.Run("纯文本邮件", func(t *testing.T) {
		parsed, err := ParseEmail([]byte(plainEmail))
		require.NoError(t, err)

		assert.Equal(t, "hi", parsed.Subject)
		assert.Equal(t, "alice@example.com", parsed.From)
		assert.Equal(t, "Alice", parsed.FromName)
		assert.Contains(t, parsed.Text, "plain body")
		assert.Empty(t, parsed.Attachments)
	})

	t.Run("多部分邮件带附件", func(t *testing.T) {
		parsed, err := ParseEmail([]byte(multipartEmail))
		require.NoError(t, err)

		assert.Equal(t, "bob@example.com", parsed.From)
		assert.Contains(t, parsed.Text, "see attachment")
		require.Len(t, parsed.Attachments, 1)

		att := parsed.Attachments[0]
		assert.Equal(t, "data.bin", att.Filename)
		assert.Equal(t, "application/octet-stream", att.MimeType)
		assert.Equal(t, []byte("hello world"), att.Content)
	})

	t.Run("quoted-printable 正文", func(t *testing.T) {
		raw := "From: c@example.com\r\n" +
			"Subject: qp\r\n" +
			"Content-Type: text/plain; charset=utf-8\r\n" +
			"Content-Transfer-Encoding: quoted-printable\r\n" +
			"\r\n" +
			"caf=C3=A9\r\n"
		parsed, err := ParseEmail([]byte(raw))
		require.NoError(t, err)
		assert.Contains(t, parsed.Text, "café")
	})
}

func TestConnectionLimiter(t *testing.T) {
	limiter := NewConnectionLimiter(2, 0)

	assert.True(t, limiter.Acquire())
	assert.True(t, limiter.Acquire())
	assert.False(t, limiter.Acquire())

	limiter.Release()
	assert.True(t, limiter.Acquire())
	assert.Equal(t, 2, limiter.Current())
}
