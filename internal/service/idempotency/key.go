// Package idempotency suppresses duplicate processing of events by
// deterministic content fingerprint.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// keyBytes is the truncated width of the SHA-256 fingerprint. The reduced
// width is an accepted collision tradeoff for 24h key lifetimes.
const keyBytes = 16

// KeyParts is the canonical input to an idempotency key.
type KeyParts struct {
	Source    string
	Symbol    string
	Timestamp time.Time
	Type      string
	Extra     string
}

// Key derives the deterministic fingerprint from canonical parts.
func Key(p KeyParts) string {
	canonical := strings.Join([]string{
		p.Source,
		p.Symbol,
		fmt.Sprintf("%d", p.Timestamp.Unix()),
		p.Type,
		p.Extra,
	}, "|")
	return hash(canonical)
}

// KeyFromPayload fingerprints the serialized event when no structured
// generator applies.
func KeyFromPayload(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("idempotency payload: %w", err)
	}
	return hash(string(b)), nil
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:keyBytes])
}
