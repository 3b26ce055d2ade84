package backpack

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Credentials Backpack API 凭证
type Credentials struct {
	apiKey    string
	secretKey string
}

func NewCredentials(apiKey, secretKey string) *Credentials {
	return &Credentials{apiKey: apiKey, secretKey: secretKey}
}

func (c *Credentials) APIKey() string { return c.apiKey }

// Sign 对消息做 HMAC-SHA256，返回十六进制签名。
func (c *Credentials) Sign(message string) string {
	mac := hmac.New(sha256.New, []byte(c.secretKey))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

// signMessage 构造 Backpack 规范签名串：
// instruction=<ins>[&k1=v1&k2=v2...]&timestamp=<ts>&window=<w>，
// 参数按键名升序排列。
func signMessage(instruction string, params map[string]string, timestamp, window string) string {
	var sb strings.Builder
	sb.WriteString("instruction=")
	sb.WriteString(instruction)

	if len(params) > 0 {
		keys := make([]string, 0, len(params))
		for k := range params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString("&")
			sb.WriteString(k)
			sb.WriteString("=")
			sb.WriteString(params[k])
		}
	}

	sb.WriteString("&timestamp=")
	sb.WriteString(timestamp)
	sb.WriteString("&window=")
	sb.WriteString(window)
	return sb.String()
}
