package ollama

import (
	"fmt"
	"strings"
)

const maxPassageChars = 2000

func buildRelevancePrompt(query, passage string) string {
	passage = strings.TrimSpace(passage)
	if len(passage) > maxPassageChars {
		passage = passage[:maxPassageChars]
	}

	var b strings.Builder
	b.WriteString("You are a relevance judge. Rate how well the passage answers the query.\n")
	b.WriteString("Respond with JSON only, in the form {\"score\": <number between 0.0 and 1.0>}.\n")
	b.WriteString("0.0 means completely irrelevant, 1.0 means a direct answer.\n\n")
	fmt.Fprintf(&b, "Query: %s\n\n", strings.TrimSpace(query))
	fmt.Fprintf(&b, "Passage: %s\n", passage)
	return b.String()
}
