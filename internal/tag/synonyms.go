package tag

import (
	"fmt"
	"sort"
	"strings"
)

// Synonyms maps alias spellings to a canonical title. Aliases match whole titles only.
type Synonyms struct {
	byAlias map[string]string
	table   map[string][]string
}

func DefaultSynonyms() *Synonyms {
	s, err := NewSynonyms(map[string][]string{
		"JavaScript":    {"JS"},
		"Elasticsearch": {"ES搜索引擎", "ES搜索"},
	})
	if err != nil {
		panic(err)
	}
	return s
}

// NewSynonyms builds the lookup table. An alias claimed by two canonical titles is an error.
func NewSynonyms(table map[string][]string) (*Synonyms, error) {
	s := &Synonyms{
		byAlias: make(map[string]string),
		table:   make(map[string][]string, len(table)),
	}
	canonicals := make([]string, 0, len(table))
	for c := range table {
		canonicals = append(canonicals, c)
	}
	sort.Strings(canonicals)

	for _, c := range canonicals {
		canonical := strings.TrimSpace(c)
		if canonical == "" {
			return nil, fmt.Errorf("synonym table has an empty canonical title")
		}
		for _, a := range table[c] {
			alias := strings.TrimSpace(a)
			if alias == "" {
				continue
			}
			key := lowerKey(alias)
			if prev, ok := s.byAlias[key]; ok && prev != canonical {
				return nil, fmt.Errorf("alias %q maps to both %q and %q", alias, prev, canonical)
			}
			s.byAlias[key] = canonical
			s.table[canonical] = append(s.table[canonical], alias)
		}
	}
	return s, nil
}

// Lookup returns the canonical title for an alias, ignoring case.
func (s *Synonyms) Lookup(title string) (string, bool) {
	if s == nil {
		return "", false
	}
	c, ok := s.byAlias[lowerKey(title)]
	return c, ok
}

// Table returns a copy of canonical title -> aliases.
func (s *Synonyms) Table() map[string][]string {
	out := make(map[string][]string)
	if s == nil {
		return out
	}
	for c, aliases := range s.table {
		out[c] = append([]string(nil), aliases...)
	}
	return out
}
