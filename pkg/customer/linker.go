// Package customer joins conversations across channels by phone or email and
// merges structured memory from a customer's most recent other conversation,
// so a returning customer never has to repeat themselves.
package customer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/resolvr-ai/resolvr/pkg/convstore"
	"github.com/resolvr-ai/resolvr/pkg/models"
)

// ProfileLoader loads the Customer-360 profile from the customer data
// platform. A nil profile with nil error means "unknown customer".
type ProfileLoader interface {
	Load(ctx context.Context, customerID string) (*models.CustomerProfile, error)
}

// Linker resolves customer identity and performs cross-channel memory
// merging for new conversations.
type Linker struct {
	sessions SessionIndex
	convs    convstore.Store
	now      func() time.Time // test hook
}

// NewLinker creates a linker over the session index and conversation store.
func NewLinker(sessions SessionIndex, convs convstore.Store) *Linker {
	return &Linker{sessions: sessions, convs: convs, now: time.Now}
}

// DeriveCustomerID builds the stable customer key from identity hints.
// Phone wins over email; empty when neither is present.
func DeriveCustomerID(profile models.UserProfile) string {
	if phone := normalizePhone(profile.Phone); phone != "" {
		return "ph:" + phone
	}
	if profile.Email != "" {
		return "em:" + strings.ToLower(strings.TrimSpace(profile.Email))
	}
	return ""
}

// LinkNew wires a just-created conversation into the customer's session
// history: records linked conversation ids, merges structured memory from
// the most recent other conversation, and documents the continuation with a
// system turn. Safe to call with no identity hints; it then only registers
// the conversation once an id can be derived later.
func (l *Linker) LinkNew(ctx context.Context, conv *models.Conversation, profile models.UserProfile) error {
	customerID := DeriveCustomerID(profile)
	if customerID == "" {
		return nil
	}
	conv.CustomerID = customerID

	recent, err := l.sessions.Recent(ctx, customerID)
	if err != nil {
		return fmt.Errorf("looking up sessions for %s: %w", customerID, err)
	}

	var mergedFrom *models.Conversation
	for _, id := range recent {
		if id == conv.ID {
			continue
		}
		conv.LinkedConversationIDs = append(conv.LinkedConversationIDs, id)
		if mergedFrom != nil {
			continue
		}
		prev, err := l.convs.Get(ctx, id)
		if err != nil {
			slog.Warn("Linked conversation load failed", "conversation_id", id, "error", err)
			continue
		}
		if prev != nil {
			mergedFrom = prev
		}
	}

	if mergedFrom != nil {
		MergeMemory(&conv.Memory, &mergedFrom.Memory)
		conv.AppendTurn(models.RoleSystem, continuationNote(mergedFrom))
		slog.Info("Cross-channel context merged",
			"conversation_id", conv.ID,
			"customer_id", customerID,
			"merged_from", mergedFrom.ID)
	}

	return l.Register(ctx, conv)
}

// Register adds the conversation to the customer's session index.
func (l *Linker) Register(ctx context.Context, conv *models.Conversation) error {
	if conv.CustomerID == "" {
		return nil
	}
	return l.sessions.Add(ctx, conv.CustomerID, conv.ID, l.now())
}

// MergeMemory fills gaps in dst from src. Existing dst values always win;
// list-valued fields are unioned.
func MergeMemory(dst, src *models.StructuredMemory) {
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if dst.Email == "" {
		dst.Email = src.Email
	}
	if dst.Phone == "" {
		dst.Phone = src.Phone
	}
	if dst.Company == "" {
		dst.Company = src.Company
	}
	if dst.Intent == "" {
		dst.Intent = src.Intent
	}
	for _, p := range src.ProductInterest {
		if !hasString(dst.ProductInterest, p) {
			dst.ProductInterest = append(dst.ProductInterest, p)
		}
	}
	for _, n := range src.OrderNumbers {
		dst.AddOrderNumber(n)
	}
	for _, order := range src.OrderDataCache {
		if _, exists := dst.OrderDataCache[order.OrderNo]; !exists {
			dst.CacheOrder(order)
		}
	}
	for k, v := range src.CustomFields {
		if dst.CustomFields == nil {
			dst.CustomFields = make(map[string]any)
		}
		if _, exists := dst.CustomFields[k]; !exists {
			dst.CustomFields[k] = v
		}
	}
}

func continuationNote(prev *models.Conversation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Continuing from an earlier %s conversation (%s).", prev.SourceChannel, prev.ID)
	if prev.Memory.Name != "" {
		fmt.Fprintf(&b, " Customer: %s.", prev.Memory.Name)
	}
	if len(prev.Memory.OrderNumbers) > 0 {
		fmt.Fprintf(&b, " Known orders: %s.", strings.Join(prev.Memory.OrderNumbers, ", "))
	}
	if prev.PrimaryIntent != "" {
		fmt.Fprintf(&b, " Previous topic: %s.", prev.PrimaryIntent)
	}
	return b.String()
}

// normalizePhone strips formatting and a leading country code down to the
// 10-digit subscriber number.
func normalizePhone(phone string) string {
	var digits strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) == 12 && strings.HasPrefix(d, "91") {
		d = d[2:]
	}
	if len(d) != 10 {
		return ""
	}
	return d
}

func hasString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
