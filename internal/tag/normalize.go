package tag

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"
)

var (
	ErrNoDictionary          = errors.New("tag: icon tag dictionary is not configured")
	ErrDictionaryUnavailable = errors.New("tag: icon tag dictionary unavailable")
	ErrInvalidMaxTitleLength = errors.New("tag: max title length must be positive")
)

// minIconTitleLength keeps one-character icon tags from matching inside everything.
const minIconTitleLength = 2

// IconTag is a dictionary entry used for canonicalization.
type IconTag struct {
	Title          string
	TitleLowerCase string
}

// Dictionary supplies icon tags. Implementations must accept math.MaxInt as limit
// and tolerate being called once per normalized candidate.
type Dictionary interface {
	FetchTopTags(ctx context.Context, limit int) ([]IconTag, error)
}

// StaticDictionary is a fixed in-memory Dictionary.
type StaticDictionary []IconTag

func NewStaticDictionary(titles ...string) StaticDictionary {
	d := make(StaticDictionary, 0, len(titles))
	for _, t := range titles {
		d = append(d, IconTag{Title: t, TitleLowerCase: strings.ToLower(t)})
	}
	return d
}

func (d StaticDictionary) FetchTopTags(_ context.Context, limit int) ([]IconTag, error) {
	if limit < 0 {
		limit = 0
	}
	if limit > len(d) {
		limit = len(d)
	}
	return append([]IconTag(nil), d[:limit]...), nil
}

type Normalizer struct {
	dict     Dictionary
	synonyms *Synonyms
}

func NewNormalizer(dict Dictionary, synonyms *Synonyms) (*Normalizer, error) {
	if dict == nil {
		return nil, ErrNoDictionary
	}
	if synonyms == nil {
		synonyms = DefaultSynonyms()
	}
	return &Normalizer{dict: dict, synonyms: synonyms}, nil
}

// Normalize maps title to its canonical form. The shortest icon tag contained in
// title wins; otherwise an exact alias match; otherwise title itself.
func (n *Normalizer) Normalize(ctx context.Context, title string) (string, error) {
	icons, err := n.dict.FetchTopTags(ctx, math.MaxInt)
	if err != nil {
		if errors.Is(err, ErrDictionaryUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrDictionaryUnavailable, err)
	}
	slices.SortStableFunc(icons, func(a, b IconTag) int {
		return utf8.RuneCountInString(a.TitleLowerCase) - utf8.RuneCountInString(b.TitleLowerCase)
	})

	for _, icon := range icons {
		if utf8.RuneCountInString(icon.Title) < minIconTitleLength {
			continue
		}
		if containsIgnoreCase(title, icon.Title) {
			return icon.Title, nil
		}
	}

	if canonical, ok := n.synonyms.Lookup(title); ok {
		return canonical, nil
	}
	return title, nil
}
