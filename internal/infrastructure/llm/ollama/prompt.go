package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/hybrid-retriever/internal/core/domain"
)

const maxContextChars = 1200

func buildAnswerPrompt(question string, hits []domain.Hit) string {
	parts := make([]string, 0, len(hits))
	for _, hit := range hits {
		text := hit.Text
		if len(text) > maxContextChars {
			text = text[:maxContextChars] + " ... "
		}
		parts = append(parts, fmt.Sprintf("[page %d] %s", hit.Meta.Page, text))
	}

	return fmt.Sprintf(`You are a strict document-reading assistant. Use ONLY the provided context to answer.

Rules:
- NEVER use outside knowledge.
- Provide a detailed, well-structured explanation.
- Include all relevant details from the context.
- Cite page numbers in parentheses, e.g. (page 4).
- If the answer is not in the context, reply exactly: "I don't know".

Context:
%s

Question:
%s

Answer (with citations and full detail):
`, strings.Join(parts, "\n\n"), question)
}
