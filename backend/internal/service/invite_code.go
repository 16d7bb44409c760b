package service

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// 邀请码字符集：去掉易混淆的 0 O 1 I
const (
	inviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	inviteCodeLength   = 6
)

// generateInviteCode 使用 crypto/rand 生成 6 位邀请码
func generateInviteCode() (string, error) {
	max := big.NewInt(int64(len(inviteCodeAlphabet)))
	result := make([]byte, inviteCodeLength)
	for i := range result {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		result[i] = inviteCodeAlphabet[n.Int64()]
	}
	return string(result), nil
}

// validInviteCode 长度与字符集校验，不合法的输入不必查库
func validInviteCode(code string) bool {
	if len(code) != inviteCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(inviteCodeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}
