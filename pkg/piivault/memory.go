package piivault

import (
	"context"
	"sync"
	"time"
)

type memVaultEntry struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryVault is the in-memory vault backend. Expiry is enforced on read
// and by PurgeExpired.
type MemoryVault struct {
	cipher *vaultCipher

	mu      sync.Mutex
	tokens  map[string]*memVaultEntry
	byConv  map[string]map[string]struct{}
}

// NewMemoryVault creates an in-memory vault around the given cipher.
func NewMemoryVault(cipher *vaultCipher) *MemoryVault {
	return &MemoryVault{
		cipher: cipher,
		tokens: make(map[string]*memVaultEntry),
		byConv: make(map[string]map[string]struct{}),
	}
}

func (v *MemoryVault) Tokenize(_ context.Context, conversationID, piiType string, severity Severity, plaintext string) (string, error) {
	iv, ciphertext, tag, err := v.cipher.encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}

	token := newToken()
	entry := &memVaultEntry{
		entry: Entry{
			IV:             iv,
			Ciphertext:     ciphertext,
			Tag:            tag,
			ConversationID: conversationID,
			PIIType:        piiType,
			Severity:       severity,
		},
		expiresAt: time.Now().Add(severity.TTL()),
	}

	v.mu.Lock()
	v.tokens[token] = entry
	if v.byConv[conversationID] == nil {
		v.byConv[conversationID] = make(map[string]struct{})
	}
	v.byConv[conversationID][token] = struct{}{}
	v.mu.Unlock()

	return token, nil
}

func (v *MemoryVault) Detokenize(_ context.Context, token string) (string, bool) {
	v.mu.Lock()
	entry, ok := v.tokens[token]
	if ok && time.Now().After(entry.expiresAt) {
		v.removeLocked(token, entry.entry.ConversationID)
		ok = false
	}
	v.mu.Unlock()

	if !ok {
		return "", false
	}

	plaintext, err := v.cipher.decrypt(entry.entry.IV, entry.entry.Ciphertext, entry.entry.Tag)
	if err != nil {
		return "", false
	}
	return string(plaintext), true
}

// Purge removes every token of the conversation atomically with respect to
// concurrent Tokenize/Detokenize calls.
func (v *MemoryVault) Purge(_ context.Context, conversationID string) error {
	v.mu.Lock()
	for token := range v.byConv[conversationID] {
		delete(v.tokens, token)
	}
	delete(v.byConv, conversationID)
	v.mu.Unlock()
	return nil
}

func (v *MemoryVault) PurgeExpired(_ context.Context) int {
	now := time.Now()
	removed := 0

	v.mu.Lock()
	for token, entry := range v.tokens {
		if now.After(entry.expiresAt) {
			v.removeLocked(token, entry.entry.ConversationID)
			removed++
		}
	}
	v.mu.Unlock()

	return removed
}

func (v *MemoryVault) removeLocked(token, conversationID string) {
	delete(v.tokens, token)
	if set, ok := v.byConv[conversationID]; ok {
		delete(set, token)
		if len(set) == 0 {
			delete(v.byConv, conversationID)
		}
	}
}
