package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/arawak/tagsmith/internal/tag"
)

// TagRules is the YAML shape of the rules file.
type TagRules struct {
	Reserved  []string            `yaml:"reserved"`
	Whitelist []string            `yaml:"whitelist"`
	Synonyms  map[string][]string `yaml:"synonyms"`
}

func LoadTagRules(path string) (*TagRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tag rules file: %w", err)
	}
	var rules TagRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse tag rules file: %w", err)
	}
	return &rules, nil
}

// Build turns the file contents into the read-only values the formatter uses.
// A nil receiver or missing synonyms section yields the built-in synonym table.
func (r *TagRules) Build() (*tag.Rules, *tag.Synonyms, error) {
	if r == nil {
		return tag.NewRules(nil, nil), tag.DefaultSynonyms(), nil
	}
	synonyms := tag.DefaultSynonyms()
	if len(r.Synonyms) > 0 {
		var err error
		synonyms, err = tag.NewSynonyms(r.Synonyms)
		if err != nil {
			return nil, nil, fmt.Errorf("tag rules synonyms: %w", err)
		}
	}
	return tag.NewRules(r.Reserved, r.Whitelist), synonyms, nil
}

// LoadFormatterRules reads path when set, otherwise returns the built-in rules.
func LoadFormatterRules(path string) (*tag.Rules, *tag.Synonyms, error) {
	if path == "" {
		var none *TagRules
		return none.Build()
	}
	r, err := LoadTagRules(path)
	if err != nil {
		return nil, nil, err
	}
	return r.Build()
}
