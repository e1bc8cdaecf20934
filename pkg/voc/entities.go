package voc

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/resolvr-ai/resolvr/pkg/models"
)

var (
	phoneRe   = regexp.MustCompile(`(?:\+91[\s-]?)?\b([6-9]\d{9})\b`)
	emailRe   = regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)
	amountRe  = regexp.MustCompile(`₹\s?(\d[\d,]*(?:\.\d{1,2})?)`)
	returnRe  = regexp.MustCompile(`(?i)\b((?:RET|RTN)[-_]?[A-Z0-9]{4,16})\b`)
	paymentRe = regexp.MustCompile(`(?i)\b((?:PAY|TXN|PMT)[-_]?[A-Z0-9]{4,20})\b`)

	// AWB candidates are bare digit runs; they only count as an AWB when a
	// shipping keyword appears within awbProximity characters.
	awbCandidateRe = regexp.MustCompile(`\b(\d{10,18})\b`)
	awbKeywordRe   = regexp.MustCompile(`(?i)awb|tracking|shipment|courier`)
)

const awbProximity = 30

// orderRegexpCache holds one compiled pattern per tenant order prefix. The
// set of prefixes across tenants is tiny, so the cache never grows large.
var orderRegexpCache sync.Map

func orderRegexp(prefix string) *regexp.Regexp {
	if re, ok := orderRegexpCache.Load(prefix); ok {
		return re.(*regexp.Regexp)
	}
	// A digit must follow the prefix so ordinary words sharing the prefix
	// ("quickly" for prefix Q) are not picked up.
	re := regexp.MustCompile(`(?i)\b(` + regexp.QuoteMeta(prefix) + `[-_]?\d[A-Z0-9]{2,15})\b`)
	orderRegexpCache.Store(prefix, re)
	return re
}

// extractEntities runs the regex battery over the text. Order numbers and
// phones are extracted first so AWB dedup can check against them.
func extractEntities(text string, orderPrefixes []string) []models.Entity {
	var entities []models.Entity
	seen := map[string]struct{}{}

	add := func(t models.EntityType, value, raw string, confidence float64) {
		key := string(t) + ":" + value
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		entities = append(entities, models.Entity{
			Type:       t,
			Value:      value,
			RawText:    raw,
			Confidence: confidence,
		})
	}

	taken := map[string]struct{}{}

	for _, prefix := range orderPrefixes {
		for _, m := range orderRegexp(prefix).FindAllStringSubmatch(text, -1) {
			value := normalizeID(m[1])
			taken[value] = struct{}{}
			add(models.EntityOrderNumber, value, m[1], 0.95)
		}
	}

	for _, m := range phoneRe.FindAllStringSubmatch(text, -1) {
		taken[m[1]] = struct{}{}
		add(models.EntityPhone, m[1], m[0], 0.9)
	}

	for _, m := range emailRe.FindAllString(text, -1) {
		add(models.EntityEmail, strings.ToLower(m), m, 0.95)
	}

	for _, m := range amountRe.FindAllStringSubmatch(text, -1) {
		add(models.EntityAmount, strings.ReplaceAll(m[1], ",", ""), m[0], 0.9)
	}

	for _, m := range returnRe.FindAllStringSubmatch(text, -1) {
		add(models.EntityReturnID, normalizeID(m[1]), m[1], 0.9)
	}

	for _, m := range paymentRe.FindAllStringSubmatch(text, -1) {
		add(models.EntityPaymentID, normalizeID(m[1]), m[1], 0.9)
	}

	for _, loc := range awbCandidateRe.FindAllStringSubmatchIndex(text, -1) {
		candidate := text[loc[2]:loc[3]]
		if _, dup := taken[candidate]; dup {
			continue
		}
		if _, dup := taken[normalizeID(candidate)]; dup {
			continue
		}
		if !nearKeyword(text, loc[2], loc[3]) {
			continue
		}
		add(models.EntityAWB, candidate, candidate, 0.85)
	}

	return entities
}

// nearKeyword reports whether a shipping keyword appears within awbProximity
// characters of the candidate span.
func nearKeyword(text string, start, end int) bool {
	lo := max(0, start-awbProximity)
	hi := min(len(text), end+awbProximity)
	return awbKeywordRe.MatchString(text[lo:hi])
}

// normalizeID uppercases an identifier and strips separator characters so
// "q-2593vu" and "Q2593VU" compare equal.
func normalizeID(s string) string {
	s = strings.ToUpper(s)
	s = strings.ReplaceAll(s, "-", "")
	return strings.ReplaceAll(s, "_", "")
}

// BuildMessageID derives the per-turn VOC record ID.
func BuildMessageID(conversationID string, turnCount int) string {
	return fmt.Sprintf("%s-%d", conversationID, turnCount)
}
