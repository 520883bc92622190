package protocol

import "errors"

// ErrMissingType 消息缺少 type 字段
var ErrMissingType = errors.New("message missing type")

// 错误码
const (
	ErrCodeUnknown      = 1000
	ErrCodeInvalidMsg   = 1001
	ErrCodeNotSupported = 2001 // 不支持的游戏种类或人数
	ErrCodeBadRespawn   = 4001 // 重生令牌无效或已过期
)

// ErrorMessages 错误码对应的消息
var ErrorMessages = map[int]string{
	ErrCodeUnknown:      "未知错误",
	ErrCodeInvalidMsg:   "请求应为带有 type 字段的 JSON 字符串",
	ErrCodeNotSupported: "不支持的游戏或人数",
	ErrCodeBadRespawn:   "重连令牌无效或已过期",
}
