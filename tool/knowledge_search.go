package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/parleyhq/parley/knowledge"
)

// KnowledgeSearch exposes the document base as the search_knowledge_base
// built-in.
type KnowledgeSearch struct {
	base *knowledge.Base
}

// NewKnowledgeSearch creates the search_knowledge_base built-in.
func NewKnowledgeSearch(base *knowledge.Base) *KnowledgeSearch {
	return &KnowledgeSearch{base: base}
}

// Name implements Tool.
func (t *KnowledgeSearch) Name() string { return "search_knowledge_base" }

// Description implements Tool.
func (t *KnowledgeSearch) Description() string {
	return "Search the user's uploaded documents (Knowledge Base) for relevant information. " +
		"Use this tool when the user asks questions about their uploaded files, data, or general reference documents."
}

// Parameters implements Tool.
func (t *KnowledgeSearch) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query to find relevant information in the knowledge base.",
			},
			"n_results": map[string]any{
				"type":        "integer",
				"description": "The number of text chunks to retrieve. Default is 3.",
			},
		},
		"required": []string{"query"},
	}
}

// Execute implements Tool.
func (t *KnowledgeSearch) Execute(_ context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	nResults := 3
	if n, ok := args["n_results"].(float64); ok && n > 0 {
		nResults = int(n)
	}

	results := t.base.Search(query, nResults)
	if len(results) == 0 {
		return "No relevant information found in the knowledge base.", nil
	}

	var out []string
	for i, res := range results {
		out = append(out, fmt.Sprintf("--- Document: %s (Result %d) ---\n%s\n", res.Filename, i+1, res.Text))
	}
	return strings.Join(out, "\n"), nil
}
