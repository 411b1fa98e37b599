package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// secretKey 是服务器启动时生成的32字节HMAC密钥。
// 邀请令牌只需要在单个进程的生命周期内有效，所以不做持久化。
var secretKey []byte

// InvitePayload 定义了会话邀请令牌中被签名的数据。
// 创建会话时生成，伴侣加入会话时回传并验证。
type InvitePayload struct {
	SessionID string `json:"s"`
	InviterID string `json:"i"`
}

// GenerateSecretKey 生成一个密码学安全的32字节随机密钥。
func GenerateSecretKey() {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic("无法生成安全的密钥: " + err.Error())
	}
	secretKey = key
	fmt.Println("HMAC密钥已成功生成。")
}

// GenerateInviteSignature 为给定的InvitePayload生成HMAC签名。
// 返回值是签名的Base64编码字符串。
func GenerateInviteSignature(payload InvitePayload) (string, error) {
	// 1. 将payload序列化为JSON
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", errors.New("无法序列化邀请令牌payload")
	}

	// 2. 使用HMAC-SHA256对payload签名
	mac := hmac.New(sha256.New, secretKey)
	mac.Write(payloadBytes)
	signature := mac.Sum(nil)

	// 3. Base64编码后返回
	return base64.RawURLEncoding.EncodeToString(signature), nil
}

// ValidateInviteSignature 验证payload和签名是否匹配。
func ValidateInviteSignature(payload InvitePayload, signatureB64 string) bool {
	// 1. 重新序列化payload，确保与签名时的字节完全一致
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return false
	}

	// 2. 重新计算预期签名
	mac := hmac.New(sha256.New, secretKey)
	mac.Write(payloadBytes)
	expectedSignature := mac.Sum(nil)

	// 3. 解码传入的签名
	actualSignature, err := base64.RawURLEncoding.DecodeString(signatureB64)
	if err != nil {
		return false
	}

	// 4. hmac.Equal是时间恒定的比较，防止时序攻击
	return hmac.Equal(expectedSignature, actualSignature)
}
