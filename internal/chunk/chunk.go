// Package chunk 提供附件内容的定长分块编解码。
// 纯函数实现，不依赖任何存储后端，便于单独测试。
package chunk

import (
	"sort"
	"strings"

	"tempbox/backend/internal/domain"
)

// DefaultChunkSize 默认分块大小（base64 字符数）。
// 取值需要保证单块内容不超过存储后端的单行/单语句大小限制。
const DefaultChunkSize = 500_000

// Chunk 表示一个带序号的内容分块。
type Chunk struct {
	Index   int
	Content string
}

// Count 计算给定长度的内容按 size 分块后的块数。
// 空内容产生 0 块。
func Count(length, size int) int {
	if length <= 0 || size <= 0 {
		return 0
	}
	return (length + size - 1) / size
}

// Split 把编码后的内容按 size 切成有序分块。
// 第 i 块覆盖 [i*size, min((i+1)*size, len(payload)))。
func Split(payload string, size int) []string {
	count := Count(len(payload), size)
	if count == 0 {
		return nil
	}
	chunks := make([]string, 0, count)
	for i := 0; i < count; i++ {
		start := i * size
		end := start + size
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, payload[start:end])
	}
	return chunks
}

// Join 按序号拼接分块还原完整内容。
// want 是期望的分块总数；序号必须恰好覆盖 0..want-1。
// 缺块、序号越界、或重复序号内容不一致时返回 ErrCorruptAttachment，
// 绝不返回拼接了一半的内容。
func Join(chunks []Chunk, want int) (string, error) {
	if want <= 0 {
		if want == 0 && len(chunks) == 0 {
			return "", nil
		}
		return "", domain.ErrCorruptAttachment
	}

	ordered := make([]*Chunk, want)
	for i := range chunks {
		c := chunks[i]
		if c.Index < 0 || c.Index >= want {
			return "", domain.ErrCorruptAttachment
		}
		if prev := ordered[c.Index]; prev != nil {
			if prev.Content != c.Content {
				return "", domain.ErrCorruptAttachment
			}
			continue
		}
		ordered[c.Index] = &chunks[i]
	}

	var b strings.Builder
	for _, c := range ordered {
		if c == nil {
			return "", domain.ErrCorruptAttachment
		}
		b.WriteString(c.Content)
	}
	return b.String(), nil
}

// Sort 按序号升序排列分块，方便存储层按任意顺序读出后归位。
func Sort(chunks []Chunk) {
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Index < chunks[j].Index
	})
}
