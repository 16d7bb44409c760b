package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"couple-app/backend/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LogConfig
		wantErr bool
	}{
		{"json info", config.LogConfig{Level: "info", Format: "json"}, false},
		{"console debug", config.LogConfig{Level: "debug", Format: "console", Output: "stderr"}, false},
		{"非法级别", config.LogConfig{Level: "verbose", Format: "json"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := NewLogger(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("期望 wantErr=%v，实际 err=%v", tt.wantErr, err)
			}
			if err == nil && l == nil {
				t.Error("logger 不应为 nil")
			}
		})
	}
}

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	l, err := NewLogger(&config.LogConfig{Level: "info", Format: "json", Output: path})
	if err != nil {
		t.Fatalf("NewLogger 失败: %v", err)
	}
	l.Info("hello")
	_ = l.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}
	line := string(b)
	if !strings.Contains(line, `"msg":"hello"`) || !strings.Contains(line, `"service":"couple-api"`) {
		t.Errorf("日志内容不符: %s", line)
	}
}
