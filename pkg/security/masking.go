package security

import (
	"net/url"
	"regexp"
	"strings"
)

const redacted = "***REDACTED***"

var (
	// 32-byte hex strings in the wild are either private keys or hashes; only keyed fields are treated as keys
	privateKeyPattern = regexp.MustCompile(`(?i)(private[_-]?key|secret)["\s:=]+["']?(0x)?[a-f0-9]{64}["']?`)
	urlPattern        = regexp.MustCompile(`https?://[^\s"']+|wss?://[^\s"']+`)
	walletPattern     = regexp.MustCompile(`0x[a-fA-F0-9]{40}\b`)

	// Hosted RPC providers embed the API key as the last path segment
	keyedPathPattern = regexp.MustCompile(`/(v2|v3|rpc|[a-z0-9-]*key)/[A-Za-z0-9_-]{16,}`)

	sensitiveFields = []string{
		"private_key", "privatekey", "secret", "encryption_key", "password", "token", "api_key", "mnemonic", "seed",
	}
)

// RedactURLs strips credentials, query strings and key-like path segments from every URL in s.
// RPC errors routinely echo the endpoint, which for hosted providers carries the API key.
func RedactURLs(s string) string {
	return urlPattern.ReplaceAllStringFunc(s, redactURL)
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = "redacted"
	}
	return keyedPathPattern.ReplaceAllString(u.String(), "/$1/"+redacted)
}

// MaskString removes private keys and RPC credentials from free text
func MaskString(s string) string {
	s = privateKeyPattern.ReplaceAllString(s, "$1: "+redacted)
	return RedactURLs(s)
}

// MaskAddress shortens an address to its first 6 and last 4 characters
func MaskAddress(addr string) string {
	if len(addr) < 10 {
		return "0x****"
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// MaskAddresses shortens every address in s
func MaskAddresses(s string) string {
	return walletPattern.ReplaceAllStringFunc(s, MaskAddress)
}

// MaskSignature keeps enough of a signature to correlate log lines
func MaskSignature(sig string) string {
	if len(sig) <= 14 {
		return strings.Repeat("*", len(sig))
	}
	return sig[:10] + "..." + sig[len(sig)-4:]
}

// MaskMap masks sensitive fields in a map
func MaskMap(data map[string]interface{}) map[string]interface{} {
	masked := make(map[string]interface{}, len(data))
	for k, v := range data {
		if isSensitiveField(k) {
			masked[k] = redacted
			continue
		}
		switch val := v.(type) {
		case string:
			masked[k] = MaskString(val)
		case map[string]interface{}:
			masked[k] = MaskMap(val)
		default:
			masked[k] = v
		}
	}
	return masked
}

func isSensitiveField(field string) bool {
	lower := strings.ToLower(field)
	for _, sensitive := range sensitiveFields {
		if strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}
