package generator

import (
	"fmt"
	"strings"

	"docrag/types"
)

const qaTemplate = `Answer the following question using only the provided context.

Question: %s

Context:
%s

Instructions:
1. Use only information from the context
2. If the context is insufficient, say so clearly
3. Cite your sources
4. Be concise but precise

Answer:`

const summaryTemplate = `Summarize the following text:

%s

Instructions:
1. The summary must be concise but informative
2. Keep the essential information
3. Structure the summary logically

Summary:`

// BuildQAPrompt renders the plain question answering template. Sources are
// separated by blank-line framed rules.
func BuildQAPrompt(question string, docs []types.QueryResult) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		source := d.Metadata[types.MetaSource]
		if source == nil {
			source = "Unknown"
		}
		parts = append(parts, fmt.Sprintf("Source: %v\n%s", source, d.Content))
	}
	return fmt.Sprintf(qaTemplate, question, strings.Join(parts, "\n\n---\n\n"))
}

func BuildSummaryPrompt(text string) string {
	return fmt.Sprintf(summaryTemplate, text)
}
