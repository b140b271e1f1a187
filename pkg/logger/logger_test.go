package logger

import (
	"testing"

	"visitor-gate/config"
)

func TestNewLogger_Formats(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		l, err := NewLogger(&config.LogConfig{Level: "debug", Format: format})
		if err != nil {
			t.Fatalf("format=%s 初始化失败: %v", format, err)
		}
		if !l.Core().Enabled(-1) {
			t.Errorf("format=%s 期望 debug 级别启用", format)
		}
	}
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	if _, err := NewLogger(&config.LogConfig{Level: "loud", Format: "json"}); err == nil {
		t.Error("无效日志级别应返回错误")
	}
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	if _, err := NewLogger(&config.LogConfig{Level: "info", Format: "xml"}); err == nil {
		t.Error("无效日志格式应返回错误")
	}
}

func TestBuildConfig_AuditFriendly(t *testing.T) {
	for _, format := range []string{"", "json", "console"} {
		zapCfg, err := buildConfig(&config.LogConfig{Level: "info", Format: format})
		if err != nil {
			t.Fatalf("format=%q 构建失败: %v", format, err)
		}
		if zapCfg.Sampling != nil {
			t.Errorf("format=%q 不应启用采样", format)
		}
		if zapCfg.InitialFields["service"] != ServiceName {
			t.Errorf("format=%q 缺少 service 字段: %v", format, zapCfg.InitialFields)
		}
	}
}
