package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// SignedPrefix express 签名 cookie 的前缀（s:<value>.<sig>）
const SignedPrefix = "s:"

// SignCookie 与 node cookie-signature 相同：value + "." + base64(HMAC-SHA256) 去掉 '='
func SignCookie(value, secret string) string {
	return value + "." + cookieMAC(value, secret)
}

// UnsignCookie 校验签名并返回原始值；任意一个 secret 通过即可（支持密钥轮换）
func UnsignCookie(signed string, secrets ...string) (string, bool) {
	dot := strings.LastIndexByte(signed, '.')
	if dot <= 0 {
		return "", false
	}
	value := signed[:dot]
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		expected := SignCookie(value, secret)
		if hmac.Equal([]byte(expected), []byte(signed)) {
			return value, true
		}
	}
	return "", false
}

func cookieMAC(value, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(value))
	return base64.RawStdEncoding.EncodeToString(mac.Sum(nil))
}
