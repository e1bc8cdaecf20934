// Package piivault tokenizes PII values into opaque handles. Plaintext is
// AES-256-GCM encrypted at rest; tokens are the only references that leave
// the vault. Entries expire by severity and can be purged per conversation.
package piivault

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenPrefix is the opaque handle prefix.
const TokenPrefix = "pii_tok_"

// keyspace prefixes for the durable backend.
const (
	tokenKeyPrefix = "pii_vault:"
	convKeyPrefix  = "pii_vault:conv:"
)

// Severity grades a PII value and selects its retention.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// TTL returns the retention window for the severity.
func (s Severity) TTL() time.Duration {
	switch s {
	case SeverityCritical:
		return 300 * time.Second
	case SeverityHigh:
		return 7 * 24 * time.Hour
	case SeverityMedium:
		return 30 * 24 * time.Hour
	default:
		return 90 * 24 * time.Hour
	}
}

// Entry is the encrypted record stored per token.
type Entry struct {
	IV             []byte   `json:"iv"`
	Ciphertext     []byte   `json:"ciphertext"`
	Tag            []byte   `json:"tag"`
	ConversationID string   `json:"conversation_id"`
	PIIType        string   `json:"pii_type"`
	Severity       Severity `json:"severity"`
}

// Vault is the tokenization capability set shared by both backends.
type Vault interface {
	// Tokenize encrypts plaintext and returns an opaque token indexed under
	// the conversation.
	Tokenize(ctx context.Context, conversationID, piiType string, severity Severity, plaintext string) (string, error)
	// Detokenize returns the plaintext for token, or ok=false for unknown,
	// expired, or tamper-failing tokens.
	Detokenize(ctx context.Context, token string) (string, bool)
	// Purge removes every token belonging to the conversation.
	Purge(ctx context.Context, conversationID string) error
	// PurgeExpired removes expired entries and returns the count removed.
	// A no-op on backends with native TTL.
	PurgeExpired(ctx context.Context) int
}

// New picks the backend: Redis when a client is supplied, otherwise memory.
// keyMaterial is hashed into the 32-byte AES key; it must be non-empty and
// should be at least 32 bytes of secret material.
func New(rdb *redis.Client, keyMaterial []byte) (Vault, error) {
	cip, err := newCipher(keyMaterial)
	if err != nil {
		return nil, fmt.Errorf("initializing vault cipher: %w", err)
	}
	if rdb != nil {
		return &RedisVault{rdb: rdb, cipher: cip}, nil
	}
	return NewMemoryVault(cip), nil
}

func newToken() string {
	return TokenPrefix + uuid.New().String()
}
