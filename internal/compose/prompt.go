package compose

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/draftforge/composerd/internal/domain/model"
)

// renderUserContext flattens a source into the prompt text the generator
// receives. Attributes are emitted in sorted key order so the same source
// always renders the same prompt.
func renderUserContext(src *model.Source, slot string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Slot: %s\n", slot)
	fmt.Fprintf(&b, "Name: %s\n", src.Name)
	if src.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", src.Summary)
	}

	if len(src.Attributes) == 0 {
		return b.String(), nil
	}

	var attrs map[string]any
	if err := json.Unmarshal(src.Attributes, &attrs); err != nil {
		return "", fmt.Errorf("decode source attributes: %w", err)
	}
	if len(attrs) == 0 {
		return b.String(), nil
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteString("Attributes:\n")
	for _, k := range keys {
		line, err := renderAttribute(attrs[k])
		if err != nil {
			return "", fmt.Errorf("render attribute %q: %w", k, err)
		}
		fmt.Fprintf(&b, "- %s: %s\n", k, line)
	}
	return b.String(), nil
}

func renderAttribute(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case nil:
		return "null", nil
	case bool, float64:
		return fmt.Sprintf("%v", val), nil
	default:
		// Arrays and objects keep their JSON shape, compacted to one line.
		raw, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
}
