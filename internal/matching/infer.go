package matching

import (
	"strings"
	"unicode"

	"github.com/transactwise/backend/internal/model"
)

// Scoring weights. Sub-account signals outrank parent-account signals so a
// vendor whose text names "5000.1 Airfare" lands on the sub-account entry,
// not its "5000 Travel" parent.
const (
	scoreSubNumber    = 6
	scoreSubNameTok   = 4
	scoreParentNumber = 3
	scoreParentTok    = 2

	// minInferScore keeps low-confidence single-token coincidences out.
	minInferScore = 2
)

// InferAccount keyword-matches the transaction description plus the matched
// entity's name against the chart of accounts. It returns the best account's
// ID, or "" when nothing scores above the confidence floor or the best score
// is tied between accounts (ambiguous inputs stay unmatched rather than
// guessed).
func InferAccount(description, entityName string, accounts []*model.ChartOfAccount) string {
	tokens := tokenize(description + " " + entityName)
	if len(tokens) == 0 {
		return ""
	}

	bestID := ""
	bestScore := 0
	tied := false
	for _, a := range accounts {
		score := scoreAccount(tokens, a)
		switch {
		case score > bestScore:
			bestID, bestScore, tied = a.ID, score, false
		case score == bestScore && score > 0:
			tied = true
		}
	}
	if bestScore < minInferScore || tied {
		return ""
	}
	return bestID
}

func scoreAccount(tokens map[string]bool, a *model.ChartOfAccount) int {
	score := 0
	if n := normalizeToken(a.SubAccountNumber); n != "" && tokens[n] {
		score += scoreSubNumber
	}
	for tok := range tokenize(a.SubAccountName) {
		if tokens[tok] {
			score += scoreSubNameTok
		}
	}
	if n := normalizeToken(a.AccountNumber); n != "" && tokens[n] {
		score += scoreParentNumber
	}
	for tok := range tokenize(a.AccountName) {
		if tokens[tok] {
			score += scoreParentTok
		}
	}
	return score
}

// tokenize splits text into normalized keyword tokens. Short alphabetic
// tokens are dropped as noise; numeric tokens of any length are kept since
// account numbers can be short.
func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, field := range strings.FieldsFunc(strings.ToUpper(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.'
	}) {
		tok := normalizeToken(field)
		if tok == "" {
			continue
		}
		if isNumeric(tok) || len(tok) >= 3 {
			tokens[tok] = true
		}
	}
	return tokens
}

func normalizeToken(s string) string {
	return strings.Trim(strings.ToUpper(strings.TrimSpace(s)), ".")
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' {
			return false
		}
	}
	return len(s) > 0
}
