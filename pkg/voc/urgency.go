package voc

import (
	"strings"

	"github.com/resolvr-ai/resolvr/pkg/config"
	"github.com/resolvr-ai/resolvr/pkg/models"
)

// keywordClass maps a named signal to the phrases that raise it. Matching is
// case-insensitive substring search over the whole message.
type keywordClass struct {
	signal  string
	phrases []string
}

// urgencyLadder is evaluated top-down; the first matching class wins.
var urgencyLadder = []struct {
	level   models.UrgencyLevel
	classes []keywordClass
}{
	{
		level: models.UrgencyCritical,
		classes: []keywordClass{
			{"legal_threat_keywords", []string{
				"consumer court", "legal action", "legal notice", "lawyer",
				"court case", "sue you", "police complaint",
			}},
			{"fraud_keywords", []string{"fraud", "scam", "scammed", "cheated"}},
		},
	},
	{
		level: models.UrgencyHigh,
		classes: []keywordClass{
			{"urgency_keywords", []string{
				"urgent", "immediately", "asap", "right now", "emergency", "today itself",
			}},
			{"frustration_keywords", []string{
				"worst", "terrible", "pathetic", "ridiculous", "fed up",
				"third time", "still not received", "still waiting",
			}},
		},
	},
	{
		level: models.UrgencyMedium,
		classes: []keywordClass{
			{"delay_keywords", []string{
				"delayed", "delay", "not received", "not delivered",
				"when will", "waiting for", "no update",
			}},
			{"refund_keywords", []string{"refund", "money back", "return my"}},
		},
	},
}

// riskClasses are evaluated independently of the urgency ladder.
var riskClasses = []struct {
	flag    models.RiskFlag
	phrases []string
}{
	{models.RiskLegalThreat, []string{
		"consumer court", "legal action", "legal notice", "lawyer",
		"court case", "sue you", "police complaint", "consumer forum",
	}},
	{models.RiskSocialMediaThreat, []string{
		"twitter", "tweet", "instagram", "facebook", "linkedin",
		"viral", "social media", "google review", "post about this",
	}},
	{models.RiskPolicyException, []string{
		"make an exception", "just this once", "bend the rules",
		"special case", "one time exception",
	}},
}

// trivialIntents never count toward repeat-complaint detection.
var trivialIntents = map[string]struct{}{
	"":              {},
	"greeting":      {},
	"smalltalk":     {},
	"chitchat":      {},
	"thanks":        {},
	"goodbye":       {},
	"clarification": {},
	"unknown":       {},
}

// classifyUrgency walks the keyword ladder, then applies conversation-length
// and clarification elevations from the tenant's thresholds.
func classifyUrgency(text string, cfg config.VOCConfig, pctx Context) models.Urgency {
	lower := strings.ToLower(text)

	u := models.Urgency{Level: models.UrgencyLow}
ladder:
	for _, rung := range urgencyLadder {
		for _, class := range rung.classes {
			if matchesAny(lower, class.phrases) {
				u.Level = rung.level
				u.Signals = append(u.Signals, class.signal)
				break ladder
			}
		}
	}

	if pctx.TurnCount > cfg.UrgencyElevationTurnCount && u.Level == models.UrgencyLow {
		u.Level = models.UrgencyMedium
		u.Signals = append(u.Signals, "long_conversation")
	}
	if pctx.ClarificationCount > cfg.ClarificationBumpThreshold {
		u.Level = u.Level.Bump()
		u.Signals = append(u.Signals, "repeated_clarification")
	}
	return u
}

// detectRiskFlags evaluates every risk class plus the repeat-complaint rule.
func detectRiskFlags(text string, previousIntents []string) []models.RiskFlag {
	lower := strings.ToLower(text)

	var flags []models.RiskFlag
	for _, class := range riskClasses {
		if matchesAny(lower, class.phrases) {
			flags = append(flags, class.flag)
		}
	}

	counts := map[string]int{}
	for _, intent := range previousIntents {
		if _, trivial := trivialIntents[strings.ToLower(intent)]; trivial {
			continue
		}
		counts[strings.ToLower(intent)]++
	}
	for _, n := range counts {
		if n >= 2 {
			flags = append(flags, models.RiskRepeatComplaint)
			break
		}
	}
	return flags
}

func matchesAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
