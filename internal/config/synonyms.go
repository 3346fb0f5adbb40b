package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

// LoadSynonyms reads a YAML list of synonym rules:
//
//	- triggers: [revenue, sales]
//	  synonyms: [net sales, total income]
//
// An empty path returns nil so callers fall back to the built-in table.
func LoadSynonyms(path string) ([]domain.SynonymRule, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read synonyms file: %w", err)
	}

	var rules []domain.SynonymRule
	if err := yaml.Unmarshal(raw, &rules); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "parse synonyms file", err)
	}
	for i, rule := range rules {
		if len(rule.Triggers) == 0 || len(rule.Synonyms) == 0 {
			return nil, domain.WrapError(domain.ErrInvalidInput, "parse synonyms file",
				fmt.Errorf("rule %d needs at least one trigger and one synonym", i+1))
		}
	}
	return rules, nil
}
