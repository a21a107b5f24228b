package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"
)

// DefaultTTL is how long a stored response is replayed
const DefaultTTL = 24 * time.Hour

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_\-:.]{8,128}$`)

// ErrBodyTooLarge is returned when a request body exceeds the read limit
var ErrBodyTooLarge = errors.New("request body too large")

// Record is a stored response keyed by the client's idempotency key
type Record struct {
	Key            string    `json:"key"`
	RequestPath    string    `json:"request_path"`
	RequestMethod  string    `json:"request_method"`
	RequestHash    string    `json:"request_hash"`
	ResponseStatus int       `json:"response_status"`
	ResponseBody   []byte    `json:"response_body"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists records. Get returns nil, nil when the key is unknown.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Save(ctx context.Context, record *Record, ttl time.Duration) error
}

// ValidateKey checks the header value is a usable key
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("idempotency key must be 8-128 characters of letters, digits, '-', '_', ':' or '.'")
	}
	return nil
}

// ReadBody reads at most limit bytes
func ReadBody(r io.Reader, limit int64) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

// HashRequest fingerprints a request body
func HashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Cacheable reports whether a response is final for its request and may be replayed.
// Conflicts, throttling and timeouts depend on server state that will change, so a
// retry with the same key has to reach the handler again.
func Cacheable(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return status >= 200 && status < 500
}

// ShouldReturnCached decides whether a stored response may be replayed for a new request
func ShouldReturnCached(record *Record, requestHash string) (bool, string) {
	if record.RequestHash != requestHash {
		return false, "idempotency key was used with a different request body"
	}
	// Server errors are not worth replaying; the client should be able to try again.
	if record.ResponseStatus >= 500 {
		return false, "previous attempt failed with a server error"
	}
	return true, ""
}
