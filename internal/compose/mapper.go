package compose

import (
	"encoding/json"
	"fmt"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/draftforge/composerd/internal/domain/model"
)

// extractContent lifts artifact fields out of a generated document using the
// profile's selectors. The document has already passed schema validation, so
// a selector miss here means the profile itself is wrong.
func extractContent(document json.RawMessage, selectors FieldSelectors) (model.ArtifactContent, error) {
	var content model.ArtifactContent

	var doc any
	if err := json.Unmarshal(document, &doc); err != nil {
		return content, fmt.Errorf("decode document: %w", err)
	}

	title, err := extractString(doc, selectors.Title)
	if err != nil {
		return content, fmt.Errorf("select title: %w", err)
	}
	body, err := extractString(doc, selectors.Body)
	if err != nil {
		return content, fmt.Errorf("select body: %w", err)
	}
	tags, err := extractStringSlice(doc, selectors.Tags)
	if err != nil {
		return content, fmt.Errorf("select tags: %w", err)
	}

	content.Title = title
	content.Body = body
	content.Tags = tags
	if err := content.Validate(); err != nil {
		return model.ArtifactContent{}, err
	}
	return content, nil
}

func extractString(doc any, expr string) (string, error) {
	result, err := jmespath.Search(expr, doc)
	if err != nil {
		return "", fmt.Errorf("evaluate %q: %w", expr, err)
	}
	s, ok := result.(string)
	if !ok {
		return "", fmt.Errorf("%q selected %T, want string", expr, result)
	}
	return s, nil
}

func extractStringSlice(doc any, expr string) ([]string, error) {
	if expr == "" {
		return nil, nil
	}
	result, err := jmespath.Search(expr, doc)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", expr, err)
	}
	if result == nil {
		return nil, nil
	}
	items, ok := result.([]any)
	if !ok {
		return nil, fmt.Errorf("%q selected %T, want array", expr, result)
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%q element %d is %T, want string", expr, i, item)
		}
		out = append(out, s)
	}
	return out, nil
}
