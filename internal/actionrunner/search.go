package actionrunner

import (
	"context"
	"encoding/json"
	"fmt"
)

var searchParameterSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"query": {"type": "string", "minLength": 1}
	},
	"required": ["query"],
	"additionalProperties": false
}`)

// SearchFunc looks up results for a free-text query, e.g. a web search or
// retrieval backend. It is the only external dependency of NewSearchAction.
type SearchFunc func(ctx context.Context, query string) (string, error)

// NewSearchAction wraps search as a schema-validated Action named "search",
// the reference action every reactor deployment in SPEC_FULL.md wires in by
// default.
func NewSearchAction(search SearchFunc) Action {
	return ActionFunc{
		ActionName: "search",
		Schema:     searchParameterSchema,
		Fn: func(ctx context.Context, parameter json.RawMessage) (string, error) {
			var p struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(parameter, &p); err != nil {
				return "", fmt.Errorf("search: decode parameter: %w", err)
			}
			return search(ctx, p.Query)
		},
	}
}
