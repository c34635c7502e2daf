package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"tempbox/backend/internal/domain"
	"tempbox/backend/internal/service"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	domain.ErrMailboxNotFound:    "邮箱不存在或已过期",
	domain.ErrEmailNotFound:      "邮件不存在",
	domain.ErrAttachmentNotFound: "附件不存在",
	domain.ErrDuplicateAddress:   "邮箱地址已被占用",
	domain.ErrInvalidAddress:     "邮箱地址格式无效",
	domain.ErrCorruptAttachment:  "附件数据损坏",
	service.ErrRateLimited:       "创建邮箱过于频繁，请稍后再试",
}

// GetErrorMessage 获取错误的中文消息
func GetErrorMessage(err error) string {
	for sentinel, msg := range errorMessages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return err.Error()
}

// respondError 把业务错误映射为对应的 HTTP 响应
func respondError(c *gin.Context, err error) {
	msg := GetErrorMessage(err)

	switch {
	case errors.Is(err, domain.ErrMailboxNotFound),
		errors.Is(err, domain.ErrEmailNotFound),
		errors.Is(err, domain.ErrAttachmentNotFound):
		NotFound(c, msg)
	case errors.Is(err, domain.ErrDuplicateAddress):
		Conflict(c, msg)
	case errors.Is(err, domain.ErrInvalidAddress):
		BadRequest(c, msg)
	case errors.Is(err, service.ErrRateLimited):
		TooManyRequests(c, msg)
	default:
		InternalError(c, MsgInternalError)
	}
}

// 通用错误消息
const (
	MsgInvalidRequest   = "请求参数格式错误"
	MsgInvalidExpiresIn = "过期时间必须是正整数小时数"
	MsgInternalError    = "服务器内部错误，请稍后重试"
)
