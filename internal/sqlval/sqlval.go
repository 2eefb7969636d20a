// Package sqlval validates generated SQL before it is allowed anywhere near
// a database. Validation is lexical, not a full parse: statements are
// tokenized with string literals and quoted identifiers skipped, then
// checked for statement type, forbidden keywords, stacked statements, and
// table references outside the allowed set.
package sqlval

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// forbiddenKeywords are rejected anywhere in a statement, even in positions
// where they would be harmless, because a lexical check cannot tell the
// difference.
var forbiddenKeywords = map[string]bool{
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"DROP":     true,
	"ALTER":    true,
	"TRUNCATE": true,
	"CREATE":   true,
	"EXEC":     true,
	"EXECUTE":  true,
	"GRANT":    true,
	"REVOKE":   true,
	"REPLACE":  true,
}

var tableRefPattern = regexp.MustCompile(`(?i)\b(?:from|join)\s+([a-zA-Z_][a-zA-Z0-9_.]*)`)

// Outcome is the result of validating one statement. Tables holds every
// extracted table reference, lowercased, whether or not it passed the
// whitelist check.
type Outcome struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
	Tables   []string `json:"tables,omitempty"`
}

// Validator checks statements against a fixed safety policy
type Validator struct{}

// NewValidator creates a validator
func NewValidator() *Validator {
	return &Validator{}
}

// token is one lexical unit of a statement. Words cover identifiers,
// keywords, numbers, and qualified names; everything else is punctuation.
type token struct {
	text   string
	isWord bool
}

// tokenize splits a statement into tokens, skipping the contents of single
// quoted string literals and treating double quoted identifiers as words.
// A forbidden keyword inside a string literal is therefore not a violation.
func tokenize(sql string) []token {
	var tokens []token

	runes := []rune(sql)

	for i := 0; i < len(runes); {
		r := runes[i]

		switch {
		case r == '\'':
			// String literal; '' escapes a quote inside it
			i++
			for i < len(runes) {
				if runes[i] == '\'' {
					if i+1 < len(runes) && runes[i+1] == '\'' {
						i += 2
						continue
					}

					i++
					break
				}
				i++
			}

		case r == '"':
			// Quoted identifier, kept as a word without the quotes
			i++
			start := i
			for i < len(runes) && runes[i] != '"' {
				i++
			}
			tokens = append(tokens, token{text: string(runes[start:i]), isWord: true})
			if i < len(runes) {
				i++
			}

		case isWordRune(r):
			start := i
			for i < len(runes) && isWordRune(runes[i]) {
				i++
			}
			tokens = append(tokens, token{text: string(runes[start:i]), isWord: true})

		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			i++

		default:
			tokens = append(tokens, token{text: string(r)})
			i++
		}
	}

	return tokens
}

func isWordRune(r rune) bool {
	return r == '_' || r == '.' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

var (
	lineCommentPattern  = regexp.MustCompile(`--[^\n]*`)
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
	whitespacePattern   = regexp.MustCompile(`\s+`)
	trailingPattern     = regexp.MustCompile(`[\s;]+$`)
)

// Sanitize strips comments, collapses whitespace, and removes the trailing
// run of semicolons. Sanitizing twice gives the same result as sanitizing
// once.
func Sanitize(sql string) string {
	sql = blockCommentPattern.ReplaceAllString(sql, " ")
	sql = lineCommentPattern.ReplaceAllString(sql, " ")
	sql = whitespacePattern.ReplaceAllString(sql, " ")
	sql = trailingPattern.ReplaceAllString(sql, "")

	return strings.TrimSpace(sql)
}

// HasStackedStatement reports whether a semicolon outside a string literal
// is followed by more statement text.
func HasStackedStatement(sql string) bool {
	tokens := tokenize(sql)

	for i, tok := range tokens {
		if tok.isWord || tok.text != ";" {
			continue
		}

		for _, rest := range tokens[i+1:] {
			if rest.text != ";" {
				return true
			}
		}
	}

	return false
}

// Validate checks one statement against the safety policy. The statement
// must be a single SELECT (or a WITH whose body is a SELECT), contain no
// forbidden keyword, and reference only tables in allowedTables. An empty
// or nil allowedTables set fails every table reference: the check never
// passes by default. All violations are collected, not just the first.
func (v *Validator) Validate(sql string, allowedTables map[string]struct{}) Outcome {
	outcome := Outcome{IsValid: true}

	sanitized := Sanitize(sql)
	if sanitized == "" {
		outcome.IsValid = false
		outcome.Errors = append(outcome.Errors, "empty SQL query")

		return outcome
	}

	tokens := tokenize(sanitized)

	words := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok.isWord {
			words = append(words, strings.ToUpper(tok.text))
		}
	}

	if len(words) == 0 {
		outcome.IsValid = false
		outcome.Errors = append(outcome.Errors, "empty SQL query")

		return outcome
	}

	switch words[0] {
	case "SELECT":
	case "WITH":
		if !containsWord(words, "SELECT") {
			outcome.IsValid = false
			outcome.Errors = append(outcome.Errors, "WITH statement does not contain a SELECT")
		}
	default:
		outcome.IsValid = false
		outcome.Errors = append(outcome.Errors,
			fmt.Sprintf("only SELECT statements are allowed, got %s", words[0]))
	}

	if HasStackedStatement(sanitized) {
		outcome.IsValid = false
		outcome.Errors = append(outcome.Errors, "multiple statements are not allowed")
	}

	for _, word := range words {
		if forbiddenKeywords[word] {
			outcome.IsValid = false
			outcome.Errors = append(outcome.Errors,
				fmt.Sprintf("forbidden keyword: %s", word))
		}
	}

	if containsWord(words, "UNION") {
		outcome.Warnings = append(outcome.Warnings,
			"UNION detected; verify both branches before trusting the result")
	}

	tables, cteNames := extractTables(tokens)
	if len(tables) == 0 && containsWord(words, "FROM") {
		// Second tier: the token walker found nothing but the statement
		// clearly reads from somewhere, so fall back to a pattern scan.
		tables = extractTablesByPattern(sanitized)
	}

	outcome.Tables = tables

	for _, table := range tables {
		if cteNames[table] {
			continue
		}

		if _, ok := allowedTables[table]; !ok {
			outcome.IsValid = false
			outcome.Errors = append(outcome.Errors,
				fmt.Sprintf("table %q is not in the schema context", table))
		}
	}

	return outcome
}

func containsWord(words []string, want string) bool {
	for _, w := range words {
		if w == want {
			return true
		}
	}

	return false
}

// clauseKeywords end a FROM list; an identifier in this set is never a
// table name or alias.
var clauseKeywords = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true, "LIMIT": true,
	"HAVING": true, "UNION": true, "JOIN": true, "LEFT": true,
	"RIGHT": true, "INNER": true, "OUTER": true, "CROSS": true,
	"FULL": true, "ON": true, "USING": true, "NATURAL": true,
	"OFFSET": true, "AS": true, "SELECT": true,
}

// extractTables walks the token stream collecting every identifier that
// follows FROM or JOIN, including aliased comma-separated lists. Subqueries
// after FROM are skipped; CTE names (identifier AS followed by an opening
// paren) are collected separately so the whitelist check can ignore them.
func extractTables(tokens []token) ([]string, map[string]bool) {
	var tables []string

	seen := make(map[string]bool)
	cteNames := make(map[string]bool)

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		if !tok.isWord {
			continue
		}

		if i+2 < len(tokens) &&
			strings.EqualFold(tokens[i+1].text, "AS") && tokens[i+1].isWord &&
			tokens[i+2].text == "(" {
			cteNames[normalizeTableName(tok.text)] = true
			continue
		}

		upper := strings.ToUpper(tok.text)
		if upper != "FROM" && upper != "JOIN" {
			continue
		}

		j := i + 1
		for j < len(tokens) {
			if !tokens[j].isWord || tokens[j].text == "(" {
				// Derived table or end of list; a subquery's inner
				// references surface on their own FROM tokens later.
				break
			}

			if clauseKeywords[strings.ToUpper(tokens[j].text)] {
				break
			}

			name := normalizeTableName(tokens[j].text)
			if name != "" && !seen[name] {
				seen[name] = true
				tables = append(tables, name)
			}

			// Skip an optional alias, with or without AS
			k := j + 1
			if k < len(tokens) && tokens[k].isWord && strings.EqualFold(tokens[k].text, "AS") {
				k++
			}
			if k < len(tokens) && tokens[k].isWord && !clauseKeywords[strings.ToUpper(tokens[k].text)] {
				k++
			}

			// FROM a x, b y continues the list; anything else ends it
			if k < len(tokens) && tokens[k].text == "," {
				j = k + 1
				continue
			}

			break
		}
	}

	return tables, cteNames
}

// extractTablesByPattern is the fallback extraction tier
func extractTablesByPattern(sql string) []string {
	var tables []string

	seen := make(map[string]bool)

	for _, match := range tableRefPattern.FindAllStringSubmatch(sql, -1) {
		name := normalizeTableName(match[1])
		if name != "" && !seen[name] {
			seen[name] = true
			tables = append(tables, name)
		}
	}

	sort.Strings(tables)

	return tables
}

// normalizeTableName lowercases a reference and strips a schema qualifier
func normalizeTableName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))

	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}

	// A bare keyword after FROM (such as a dangling comma list) is noise
	if name == "" || forbiddenKeywords[strings.ToUpper(name)] || name == "select" {
		return ""
	}

	return name
}
