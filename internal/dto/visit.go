package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ── 访客出入 DTO ──

// FlexID 兼容 JSON 数字与字符串两种写法的标识符
type FlexID string

// UnmarshalJSON 接受 "abc"、123 与 null
func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = FlexID(n.String())
	return nil
}

// String 返回字符串形式
func (id FlexID) String() string { return string(id) }

// Empty 是否未提供
func (id FlexID) Empty() bool { return id == "" }

// VisitActionRequest 出入登记请求（POST /visits/action）
// entryChecked / exitChecked 仅一次性访客使用，表示期望的最终状态
type VisitActionRequest struct {
	VisitorID    FlexID `json:"visitorId"`
	ScheduleID   FlexID `json:"scheduleId"`
	SecurityID   FlexID `json:"securityId"`
	Action       string `json:"action"`
	EntryChecked bool   `json:"entryChecked"`
	ExitChecked  bool   `json:"exitChecked"`
}

// ActionResult 出入登记结果，HTTP 状态码与 Code 一致
type ActionResult struct {
	Success bool        `json:"success"`
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
