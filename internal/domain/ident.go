package domain

import (
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const addressAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// 自选地址只允许小写字母数字开头，最长 64 字符。
var addressPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)

// NewID 生成实体唯一标识。
func NewID() string {
	return uuid.NewString()
}

// Now 返回 UTC 当前时间。所有持久化时间戳统一使用 UTC。
func Now() time.Time {
	return time.Now().UTC()
}

// RandomAddress 生成 8-12 位小写字母数字组成的随机邮箱地址。
func RandomAddress() string {
	length := 8 + rand.Intn(5)
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(addressAlphabet[rand.Intn(len(addressAlphabet))])
	}
	return b.String()
}

// ValidateAddress 校验用户自选的邮箱地址。
func ValidateAddress(address string) error {
	if !addressPattern.MatchString(address) {
		return ErrInvalidAddress
	}
	return nil
}
