package usecase

import (
	"strings"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

// DefaultSynonyms is the built-in annual-report vocabulary.
func DefaultSynonyms() []domain.SynonymRule {
	return []domain.SynonymRule{
		{Triggers: []string{"revenue", "sales"}, Synonyms: []string{"net sales", "income from operations", "total income"}},
		{Triggers: []string{"loss", "profit"}, Synonyms: []string{"net loss", "profit after tax", "PAT", "loss after tax"}},
		{Triggers: []string{"instamart"}, Synonyms: []string{"quick commerce", "dark stores", "Instamart business"}},
		{Triggers: []string{"food delivery"}, Synonyms: []string{"restaurant partners", "orders", "AOV"}},
		{Triggers: []string{"users"}, Synonyms: []string{"monthly transacting users", "MTU"}},
		{Triggers: []string{"board", "director"}, Synonyms: []string{"board of directors", "independent directors", "nominee directors"}},
		{Triggers: []string{"subsidiary"}, Synonyms: []string{"Scootsy", "Supr Infotech", "Lynks Logistics"}},
		{Triggers: []string{"financial"}, Synonyms: []string{"standalone financial", "consolidated financial"}},
	}
}

type QueryExpander struct {
	rules []domain.SynonymRule
}

func NewQueryExpander(rules []domain.SynonymRule) *QueryExpander {
	normalized := make([]domain.SynonymRule, 0, len(rules))
	for _, rule := range rules {
		triggers := make([]string, 0, len(rule.Triggers))
		for _, trigger := range rule.Triggers {
			if t := strings.ToLower(strings.TrimSpace(trigger)); t != "" {
				triggers = append(triggers, t)
			}
		}
		if len(triggers) == 0 || len(rule.Synonyms) == 0 {
			continue
		}
		normalized = append(normalized, domain.SynonymRule{Triggers: triggers, Synonyms: rule.Synonyms})
	}
	return &QueryExpander{rules: normalized}
}

// Expand returns the query variants used for semantic search. The query itself is
// always the first element; duplicates collapse.
func (e *QueryExpander) Expand(query string) []string {
	out := make([]string, 0, 8)
	seen := make(map[string]struct{}, 8)
	add := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	add(query)

	lowered := strings.ToLower(query)
	for _, rule := range e.rules {
		if !containsAny(lowered, rule.Triggers) {
			continue
		}
		for _, synonym := range rule.Synonyms {
			add(synonym)
		}
	}

	for _, token := range ExtractIdentifiers(query) {
		add(token)
		add("figure " + token)
		add("table " + token)
		add(strings.ReplaceAll(token, ".", ""))
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}
