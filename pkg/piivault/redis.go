package piivault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// convIndexTTL keeps the per-conversation token index alive at least as
// long as the longest-lived entry severity.
const convIndexTTL = 90 * 24 * time.Hour

// RedisVault is the durable vault backend. Entry expiry is native Redis TTL.
type RedisVault struct {
	rdb    *redis.Client
	cipher *vaultCipher
}

func (v *RedisVault) Tokenize(ctx context.Context, conversationID, piiType string, severity Severity, plaintext string) (string, error) {
	iv, ciphertext, tag, err := v.cipher.encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}

	token := newToken()
	entry := Entry{
		IV:             iv,
		Ciphertext:     ciphertext,
		Tag:            tag,
		ConversationID: conversationID,
		PIIType:        piiType,
		Severity:       severity,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshaling vault entry: %w", err)
	}

	pipe := v.rdb.TxPipeline()
	pipe.Set(ctx, tokenKeyPrefix+token, data, severity.TTL())
	pipe.SAdd(ctx, convKeyPrefix+conversationID, token)
	pipe.Expire(ctx, convKeyPrefix+conversationID, convIndexTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("storing vault entry: %w", err)
	}

	return token, nil
}

func (v *RedisVault) Detokenize(ctx context.Context, token string) (string, bool) {
	data, err := v.rdb.Get(ctx, tokenKeyPrefix+token).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("Vault read failed", "error", err)
		}
		return "", false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		slog.Warn("Vault entry corrupt", "error", err)
		return "", false
	}

	plaintext, err := v.cipher.decrypt(entry.IV, entry.Ciphertext, entry.Tag)
	if err != nil {
		// Tag verification failure: treat as unknown token.
		return "", false
	}
	return string(plaintext), true
}

// Purge deletes the conversation's tokens and its index in one transaction.
func (v *RedisVault) Purge(ctx context.Context, conversationID string) error {
	tokens, err := v.rdb.SMembers(ctx, convKeyPrefix+conversationID).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("reading conversation token index: %w", err)
	}

	pipe := v.rdb.TxPipeline()
	for _, token := range tokens {
		pipe.Del(ctx, tokenKeyPrefix+token)
	}
	pipe.Del(ctx, convKeyPrefix+conversationID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("purging conversation tokens: %w", err)
	}
	return nil
}

// PurgeExpired is a no-op: Redis TTL already removes expired entries.
func (v *RedisVault) PurgeExpired(context.Context) int {
	return 0
}
