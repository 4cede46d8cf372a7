// Package tag turns raw user tag input into a canonical, bounded list of tag titles.
//
// A raw string such as "Go， js;  java、Go" is split on ASCII and CJK separators,
// deduplicated case-insensitively, validated, canonicalized against the icon tag
// dictionary and the synonym table, and capped at MaxTagCount titles.
package tag

import (
	"context"
	"strings"
	"unicode"
)

const (
	// MaxTagCount caps the number of titles a formatted string may carry.
	MaxTagCount = 4
	// DefaultMaxTitleLength applies when no length is configured.
	DefaultMaxTitleLength = 9
)

type RejectReason string

const (
	RejectTooLong    RejectReason = "too_long"
	RejectBadPattern RejectReason = "bad_pattern"
	RejectOverLimit  RejectReason = "over_limit"
	RejectDuplicate  RejectReason = "duplicate"
)

type Rejection struct {
	Title  string       `json:"title"`
	Reason RejectReason `json:"reason"`
}

// Result is the outcome of one formatting run. Tags never exceeds MaxTagCount.
type Result struct {
	Tags     []string
	Rejected []Rejection
}

func (r Result) String() string {
	return strings.Join(r.Tags, ",")
}

var separators = strings.NewReplacer("，", ",", "；", ",", "、", ",", ";", ",")

type Formatter struct {
	rules          *Rules
	normalizer     *Normalizer
	maxTitleLength int
}

func NewFormatter(rules *Rules, normalizer *Normalizer, maxTitleLength int) (*Formatter, error) {
	if normalizer == nil {
		return nil, ErrNoDictionary
	}
	if maxTitleLength <= 0 {
		return nil, ErrInvalidMaxTitleLength
	}
	if rules == nil {
		rules = NewRules(nil, nil)
	}
	return &Formatter{rules: rules, normalizer: normalizer, maxTitleLength: maxTitleLength}, nil
}

func (f *Formatter) MaxTitleLength() int {
	return f.maxTitleLength
}

// Format returns up to MaxTagCount canonical titles joined by ",".
func (f *Formatter) Format(ctx context.Context, raw string) (string, error) {
	res, err := f.FormatDetailed(ctx, raw)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

func (f *Formatter) FormatDetailed(ctx context.Context, raw string) (Result, error) {
	var res Result
	candidates := Dedupe(splitCandidates(raw))
	accepted := make(map[string]struct{}, MaxTagCount)

	for i, candidate := range candidates {
		title := strings.TrimSpace(candidate)
		if title == "" {
			continue
		}
		if len(res.Tags) >= MaxTagCount {
			res.Rejected = append(res.Rejected, overLimit(candidates[i:])...)
			break
		}

		// whitelisted titles skip validation and normalization entirely
		if f.rules.IsWhitelisted(title) {
			if !res.accept(accepted, title) {
				res.Rejected = append(res.Rejected, Rejection{Title: title, Reason: RejectDuplicate})
			}
			continue
		}

		if !WithinLengthLimit(title, f.maxTitleLength) {
			res.Rejected = append(res.Rejected, Rejection{Title: title, Reason: RejectTooLong})
			continue
		}
		if !MatchesTitlePattern(title) {
			res.Rejected = append(res.Rejected, Rejection{Title: title, Reason: RejectBadPattern})
			continue
		}
		normalized, err := f.normalizer.Normalize(ctx, title)
		if err != nil {
			return Result{}, err
		}
		// two spellings can share a canonical form, e.g. "go" and "golang"
		if !res.accept(accepted, normalized) {
			res.Rejected = append(res.Rejected, Rejection{Title: title, Reason: RejectDuplicate})
		}
	}
	return res, nil
}

func (r *Result) accept(seen map[string]struct{}, title string) bool {
	key := lowerKey(title)
	if _, ok := seen[key]; ok {
		return false
	}
	seen[key] = struct{}{}
	r.Tags = append(r.Tags, title)
	return true
}

// ContainsReservedTags reports whether the raw submission mentions a reserved word.
// Format never calls it; callers use it to refuse a whole submission.
func (f *Formatter) ContainsReservedTags(raw string) bool {
	return f.rules.ContainsReserved(raw)
}

func (f *Formatter) ContainsWhiteListTags(title string) bool {
	return f.rules.IsWhitelisted(title)
}

// UseHead keeps the first n titles of an already formatted string.
// Trailing empty fields do not count, so "a,b," with n=2 comes back unchanged.
func UseHead(formatted string, n int) string {
	tags := strings.Split(formatted, ",")
	for len(tags) > 1 && tags[len(tags)-1] == "" {
		tags = tags[:len(tags)-1]
	}
	if len(tags) <= n {
		return formatted
	}
	if n <= 0 {
		return ""
	}
	return strings.Join(tags[:n], ",")
}

func splitCandidates(raw string) []string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	parts := strings.Split(separators.Replace(stripped), ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func overLimit(rest []string) []Rejection {
	var out []Rejection
	for _, t := range rest {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, Rejection{Title: t, Reason: RejectOverLimit})
		}
	}
	return out
}
