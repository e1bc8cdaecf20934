package voc

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/models"
)

func testTenant() *config.TenantConfig {
	return config.DefaultTenantConfig("default")
}

func entityValues(result models.VOCResult, t models.EntityType) []string {
	var out []string
	for _, e := range result.EntitiesOfType(t) {
		out = append(out, e.Value)
	}
	return out
}

func TestProcess_EnglishDefault(t *testing.T) {
	p := NewProcessor(nil)
	result := p.Process("Where is my order?", testTenant(), Context{})

	require.Len(t, result.DetectedLanguages, 1)
	assert.Equal(t, "en", result.DetectedLanguages[0].Language)
	assert.InDelta(t, 0.9, result.DetectedLanguages[0].Confidence, 0.001)
	assert.Equal(t, "latin", result.DetectedLanguages[0].Script)
}

func TestProcess_DevanagariDetection(t *testing.T) {
	p := NewProcessor(nil)
	result := p.Process("मेरा ऑर्डर कहाँ है", testTenant(), Context{})

	require.NotEmpty(t, result.DetectedLanguages)
	assert.Equal(t, "hi", result.DetectedLanguages[0].Language)
	assert.Equal(t, "devanagari", result.DetectedLanguages[0].Script)
	assert.Greater(t, result.DetectedLanguages[0].Confidence, 0.9)
}

func TestProcess_HinglishDetection(t *testing.T) {
	p := NewProcessor(nil)
	result := p.Process("mera order kab milega bhai, refund chahiye", testTenant(), Context{})

	require.Len(t, result.DetectedLanguages, 2)
	assert.Equal(t, "hinglish", result.DetectedLanguages[0].Language)
	assert.Equal(t, "en", result.DetectedLanguages[1].Language)
	assert.Greater(t, result.DetectedLanguages[0].Confidence, 0.5)
	assert.GreaterOrEqual(t, result.DetectedLanguages[1].Confidence, 0.3)
}

func TestProcess_OrderNumberExtraction(t *testing.T) {
	p := NewProcessor(nil)
	result := p.Process("status of Q2593VU and ord-12345 please", testTenant(), Context{})

	values := entityValues(result, models.EntityOrderNumber)
	assert.ElementsMatch(t, []string{"Q2593VU", "ORD12345"}, values)
}

func TestProcess_OrderPrefixDoesNotMatchWords(t *testing.T) {
	p := NewProcessor(nil)
	result := p.Process("please reply quickly", testTenant(), Context{})

	assert.Empty(t, result.EntitiesOfType(models.EntityOrderNumber))
}

func TestProcess_PhoneAndEmail(t *testing.T) {
	p := NewProcessor(nil)
	result := p.Process("call me at +91 9876543210 or mail Priya.S@Example.com", testTenant(), Context{})

	assert.Equal(t, []string{"9876543210"}, entityValues(result, models.EntityPhone))
	assert.Equal(t, []string{"priya.s@example.com"}, entityValues(result, models.EntityEmail))
}

func TestProcess_AmountNormalization(t *testing.T) {
	p := NewProcessor(nil)
	result := p.Process("I paid ₹1,299.50 for this", testTenant(), Context{})

	assert.Equal(t, []string{"1299.50"}, entityValues(result, models.EntityAmount))
}

func TestProcess_AWBRequiresNearbyKeyword(t *testing.T) {
	p := NewProcessor(nil)

	withKeyword := p.Process("my awb number is 12345678901", testTenant(), Context{})
	assert.Equal(t, []string{"12345678901"}, entityValues(withKeyword, models.EntityAWB))

	without := p.Process("the number 12345678901 appeared somewhere", testTenant(), Context{})
	assert.Empty(t, without.EntitiesOfType(models.EntityAWB))
}

func TestProcess_AWBDedupAgainstPhone(t *testing.T) {
	p := NewProcessor(nil)
	result := p.Process("tracking for 9876543210", testTenant(), Context{})

	assert.Equal(t, []string{"9876543210"}, entityValues(result, models.EntityPhone))
	assert.Empty(t, result.EntitiesOfType(models.EntityAWB), "phone must not double as AWB")
}

func TestProcess_UrgencyLadder(t *testing.T) {
	p := NewProcessor(nil)
	tenant := testTenant()

	cases := []struct {
		text   string
		level  models.UrgencyLevel
		signal string
	}{
		{"I will go to consumer court", models.UrgencyCritical, "legal_threat_keywords"},
		{"this is a scam", models.UrgencyCritical, "fraud_keywords"},
		{"I need this urgent, asap", models.UrgencyHigh, "urgency_keywords"},
		{"order is delayed again", models.UrgencyMedium, "delay_keywords"},
		{"what colours do you have", models.UrgencyLow, ""},
	}
	for _, tc := range cases {
		result := p.Process(tc.text, tenant, Context{})
		assert.Equal(t, tc.level, result.Urgency.Level, tc.text)
		if tc.signal != "" {
			assert.Contains(t, result.Urgency.Signals, tc.signal, tc.text)
		}
	}
}

func TestProcess_UrgencyElevations(t *testing.T) {
	p := NewProcessor(nil)
	tenant := testTenant()

	long := p.Process("what colours do you have", tenant, Context{TurnCount: 11})
	assert.Equal(t, models.UrgencyMedium, long.Urgency.Level)
	assert.Contains(t, long.Urgency.Signals, "long_conversation")

	// Long conversation does not touch non-low levels.
	high := p.Process("I need this urgent", tenant, Context{TurnCount: 11})
	assert.Equal(t, models.UrgencyHigh, high.Urgency.Level)

	bumped := p.Process("order is delayed", tenant, Context{ClarificationCount: 2})
	assert.Equal(t, models.UrgencyHigh, bumped.Urgency.Level)
	assert.Contains(t, bumped.Urgency.Signals, "repeated_clarification")
}

func TestProcess_RiskFlags(t *testing.T) {
	p := NewProcessor(nil)
	tenant := testTenant()

	legal := p.Process("I will file a consumer court case", tenant, Context{})
	assert.True(t, legal.HasRiskFlag(models.RiskLegalThreat))
	assert.Equal(t, models.UrgencyCritical, legal.Urgency.Level)

	social := p.Process("I will post about this on twitter", tenant, Context{})
	assert.True(t, social.HasRiskFlag(models.RiskSocialMediaThreat))

	policy := p.Process("can you make an exception just this once", tenant, Context{})
	assert.True(t, policy.HasRiskFlag(models.RiskPolicyException))
}

func TestProcess_RepeatComplaint(t *testing.T) {
	p := NewProcessor(nil)
	tenant := testTenant()

	repeat := p.Process("still nothing", tenant, Context{
		PreviousIntents: []string{"refund_status", "greeting", "refund_status"},
	})
	assert.True(t, repeat.HasRiskFlag(models.RiskRepeatComplaint))

	trivial := p.Process("hello again", tenant, Context{
		PreviousIntents: []string{"greeting", "greeting", "thanks"},
	})
	assert.False(t, trivial.HasRiskFlag(models.RiskRepeatComplaint),
		"trivial intents never count as complaints")
}

func TestProcess_Deterministic(t *testing.T) {
	p := NewProcessor(nil)
	tenant := testTenant()
	pctx := Context{TurnCount: 12, ClarificationCount: 2, PreviousIntents: []string{"refund_status", "refund_status"}}
	text := "refund for Q2593VU is delayed, call 9876543210"

	first := p.Process(text, tenant, pctx)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, p.Process(text, tenant, pctx))
	}
}

func TestRecordStore_AppendAndList(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	stores := map[string]RecordStore{
		"memory": NewRecordStore(nil),
		"redis":  NewRecordStore(rdb),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			for i := 1; i <= 3; i++ {
				rec := &models.VOCRecord{
					MessageID:      BuildMessageID("conv-1", i),
					ConversationID: "conv-1",
					TenantID:       "default",
					Text:           "turn text",
					CreatedAt:      time.Now(),
				}
				require.NoError(t, store.Save(ctx, rec))
			}

			records, err := store.List(ctx, "conv-1")
			require.NoError(t, err)
			require.Len(t, records, 3)
			assert.Equal(t, "conv-1-1", records[0].MessageID)
			assert.Equal(t, "conv-1-3", records[2].MessageID)

			other, err := store.List(ctx, "conv-other")
			require.NoError(t, err)
			assert.Empty(t, other)
		})
	}
}

func TestRedisRecordStore_Retention(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	store := NewRecordStore(rdb)

	rec := &models.VOCRecord{MessageID: "conv-2-1", ConversationID: "conv-2"}
	require.NoError(t, store.Save(ctx, rec))

	mr.FastForward(RecordTTL + time.Hour)

	records, err := store.List(ctx, "conv-2")
	require.NoError(t, err)
	assert.Empty(t, records)
}
