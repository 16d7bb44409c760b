package service

import (
	"strings"
	"testing"
)

func TestGenerateInviteCode_Shape(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := generateInviteCode()
		if err != nil {
			t.Fatalf("generateInviteCode 失败: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("期望长度 6，实际 %d (%s)", len(code), code)
		}
		if strings.ContainsAny(code, "0O1I") {
			t.Fatalf("邀请码包含易混淆字符: %s", code)
		}
		if !validInviteCode(code) {
			t.Fatalf("生成的邀请码应通过校验: %s", code)
		}
	}
}

func TestValidInviteCode(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"ABC234", true},
		{"ZZZZZZ", true},
		{"ABC23", false},
		{"ABC2345", false},
		{"ABC0DE", false},
		{"abc234", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := validInviteCode(tt.code); got != tt.want {
				t.Errorf("validInviteCode(%q) = %v，期望 %v", tt.code, got, tt.want)
			}
		})
	}
}
