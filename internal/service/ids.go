package service

import (
	"strings"

	"github.com/google/uuid"
)

// parseID 主键列均为 uuid；非 uuid 的输入在访问存储前即视为不存在
// 返回规范化（小写、带连字符）的形式
func parseID(raw string) (string, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return id.String(), true
}
