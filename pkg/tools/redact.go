package tools

import (
	"regexp"
	"strings"
)

// RedactedValue replaces PII-bearing values in logged tool arguments.
const RedactedValue = "[REDACTED]"

// piiArgKeys are argument names whose values are always redacted regardless
// of content.
var piiArgKeys = map[string]struct{}{
	"phone":    {},
	"email":    {},
	"name":     {},
	"address":  {},
	"customer": {},
	"upi_id":   {},
	"card":     {},
}

var (
	redactPhonePattern = regexp.MustCompile(`(?:\+91[\s-]?)?\b[6-9]\d{9}\b`)
	redactEmailPattern = regexp.MustCompile(`\b[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}\b`)
)

// RedactArgs returns a copy of args safe for structured logging: known PII
// keys are replaced wholesale, and string values are scrubbed of phone
// numbers and email addresses. The input map is never mutated.
func RedactArgs(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		if _, pii := piiArgKeys[strings.ToLower(k)]; pii {
			out[k] = RedactedValue
			continue
		}
		out[k] = redactValue(v)
	}
	return out
}

func redactValue(v any) any {
	switch val := v.(type) {
	case string:
		return RedactString(val)
	case map[string]any:
		return RedactArgs(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = redactValue(item)
		}
		return out
	default:
		return v
	}
}

// RedactString scrubs phone numbers and email addresses from free text.
func RedactString(s string) string {
	s = redactPhonePattern.ReplaceAllString(s, RedactedValue)
	return redactEmailPattern.ReplaceAllString(s, RedactedValue)
}
