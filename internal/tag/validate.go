package tag

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// titlePattern accepts CJK ideographs, ASCII word characters, ASCII whitespace and & + - .
var titlePattern = regexp.MustCompile(`^[\x{4e00}-\x{9fa5}\w\s&+\-.]+$`)

func MatchesTitlePattern(title string) bool {
	return titlePattern.MatchString(title)
}

func WithinLengthLimit(title string, maxLen int) bool {
	return utf8.RuneCountInString(title) <= maxLen
}

// Rules holds the process-wide reserved words and whitelist. It is read-only after construction.
type Rules struct {
	reserved     []string
	reservedKeys []string
	whitelist    []string
	whitelistSet map[string]struct{}
}

func NewRules(reserved, whitelist []string) *Rules {
	r := &Rules{whitelistSet: make(map[string]struct{}, len(whitelist))}
	for _, w := range reserved {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		r.reserved = append(r.reserved, w)
		r.reservedKeys = append(r.reservedKeys, lowerKey(w))
	}
	for _, w := range whitelist {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		key := lowerKey(w)
		if _, ok := r.whitelistSet[key]; !ok {
			r.whitelistSet[key] = struct{}{}
			r.whitelist = append(r.whitelist, w)
		}
	}
	return r
}

// ContainsReserved reports whether text contains any reserved word, ignoring case.
// It is meant for the whole raw submission, not for single candidates.
func (r *Rules) ContainsReserved(text string) bool {
	if r == nil || len(r.reservedKeys) == 0 {
		return false
	}
	key := lowerKey(text)
	for _, w := range r.reservedKeys {
		if strings.Contains(key, w) {
			return true
		}
	}
	return false
}

// IsWhitelisted reports whether title equals a whitelist entry, ignoring case.
func (r *Rules) IsWhitelisted(title string) bool {
	if r == nil {
		return false
	}
	_, ok := r.whitelistSet[lowerKey(title)]
	return ok
}

// Reserved returns the reserved words as configured.
func (r *Rules) Reserved() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.reserved...)
}

// Whitelist returns the whitelisted titles in configuration order, first spelling kept.
func (r *Rules) Whitelist() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.whitelist...)
}

// lowerKey is the comparison key for every case-insensitive check. It applies
// simple lower-case mapping only, so ß and ss stay distinct.
// A Caser is stateful, so one is built per call.
func lowerKey(s string) string {
	return cases.Lower(language.Und, cases.HandleFinalSigma(false)).String(s)
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(lowerKey(s), lowerKey(substr))
}
