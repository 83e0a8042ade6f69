package search

import (
	"strings"

	"github.com/poiesic/ragline/core"
)

// NoAnswer is what the model is told to reply when the context lacks the answer.
const NoAnswer = "I don't have that information in the report."

const promptTemplate = `You are a Senior Financial Analyst.
Answer the user's question based ONLY on the following context.
If the answer is not in the context, say "` + NoAnswer + `"

CONTEXT:
{context}

USER QUESTION:
{question}
`

// BuildPrompt renders the grounded-answer prompt. Passages are joined with
// a blank line, in retrieval order.
func BuildPrompt(question string, results []*core.SearchResult) string {
	passages := make([]string, 0, len(results))
	for _, r := range results {
		passages = append(passages, r.Record.Text)
	}
	return strings.NewReplacer(
		"{context}", strings.Join(passages, "\n\n"),
		"{question}", question,
	).Replace(promptTemplate)
}
