package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractIdentifiers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"marker roman dotted", "Figure III.5", []string{"iii.5"}},
		{"bare roman dotted", "iii.5", []string{"iii.5"}},
		{"question with marker", "What is shown in Figure III.5?", []string{"iii.5"}},
		{"short marker with dash", "fig 3-2 shows the split", []string{"3-2"}},
		{"dotted short marker", "Fig. 4.1 and Figure 7", []string{"4.1", "7"}},
		{"upper case spaced separators", "FIGURE II . 3", []string{"ii.3"}},
		{"table marker", "What does Table 1 show?", []string{"1"}},
		{"bare decimal", "revenue grew 3.2 percent", []string{"3.2"}},
		{"marker stops at words", "Figure 3 compares segments", []string{"3"}},
		{"duplicates collapse", "Figure 2.1 and again 2.1", []string{"2.1"}},
		{"suffix after section", "Figure III.5a", []string{"iii.5"}},
		{"sentence end", "See Figure 3.", []string{"3"}},
		{"multi letter roman", "Table II lists segments", []string{"ii"}},
		{"pronoun after table", "the table I saw", nil},
		{"word after table", "the table civil works", nil},
		{"no references", "no references here", nil},
		{"empty", "", nil},
		{"blank", "   ", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractIdentifiers(tt.input))
		})
	}
}

func TestExtractIdentifiersIsCaseInsensitive(t *testing.T) {
	assert.Equal(t, ExtractIdentifiers("FIGURE III.5"), ExtractIdentifiers("figure iii.5"))
	assert.Contains(t, ExtractIdentifiers("Figure III.5"), "iii.5")
	assert.Contains(t, ExtractIdentifiers("iii.5"), "iii.5")
}

func TestPlausibleIdentifier(t *testing.T) {
	assert.True(t, plausibleIdentifier("iii.5"))
	assert.True(t, plausibleIdentifier("12"))
	assert.True(t, plausibleIdentifier("ii"))
	assert.True(t, plausibleIdentifier("i.2"))
	assert.False(t, plausibleIdentifier("i"))
	assert.False(t, plausibleIdentifier("civil"))
	assert.False(t, plausibleIdentifier("iiii.3"))
}

func TestNormalizeIdentifier(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Figure III . 5", "figureiii.5"},
		{"figure iii.5", "figureiii.5"},
		{"Fig 3-2", "fig3-2"},
		{"tbl_1 (a)", "tbl_1a"},
		{"", ""},
		{"§!?", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := NormalizeIdentifier(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, NormalizeIdentifier(got), "normalize must be idempotent")
		})
	}
	assert.Equal(t, NormalizeIdentifier("Figure III . 5"), NormalizeIdentifier("figure iii.5"))
}
