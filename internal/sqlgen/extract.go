package sqlgen

import (
	"regexp"
	"strings"
)

var (
	codeFencePattern  = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)```")
	selectPattern     = regexp.MustCompile(`(?i)\b(SELECT|WITH)\b`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Extract pulls a SQL statement out of free-form model output. The model is
// asked for bare SQL but routinely wraps it in fences or prose, so the
// extraction is defensive: prefer a fenced block, then cut from the first
// SELECT (or WITH) through the last semicolon. A response with no SELECT at
// all comes back trimmed but otherwise unchanged; judging it is the
// validator's job, and everything extracted here is still untrusted,
// including any stacked statements.
func Extract(response string) string {
	candidate := response

	if match := codeFencePattern.FindStringSubmatch(response); match != nil {
		candidate = match[1]
	}

	loc := selectPattern.FindStringIndex(candidate)
	if loc == nil {
		return strings.TrimSpace(candidate)
	}

	candidate = candidate[loc[0]:]

	if idx := strings.LastIndex(candidate, ";"); idx >= 0 {
		candidate = candidate[:idx+1]
	}

	candidate = whitespacePattern.ReplaceAllString(candidate, " ")

	return strings.TrimSpace(candidate)
}
