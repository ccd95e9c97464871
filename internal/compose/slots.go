// Package compose implements the handlers behind the compose and
// source_refresh job types: slot profiles, prompt rendering, field
// extraction, and artifact assembly.
package compose

import (
	"encoding/json"
	"fmt"
)

// Profile bundles everything slot-specific about a compose job: the system
// instructions sent to the model, the JSON Schema its reply must satisfy,
// and the JMESPath selectors that lift artifact fields out of the document.
type Profile struct {
	Slot               string
	SystemInstructions string
	OutputSchema       json.RawMessage
	Selectors          FieldSelectors
}

// FieldSelectors are JMESPath expressions addressing artifact fields inside
// a generated document.
type FieldSelectors struct {
	Title string
	Body  string
	Tags  string
}

const summarySchema = `{
	"type": "object",
	"required": ["title", "summary", "tags"],
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"summary": {"type": "string", "minLength": 1},
		"tags": {"type": "array", "items": {"type": "string"}}
	},
	"additionalProperties": false
}`

const multiSchema = `{
	"type": "object",
	"required": ["headline", "sections", "tags"],
	"properties": {
		"headline": {"type": "string", "minLength": 1},
		"sections": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["heading", "text"],
				"properties": {
					"heading": {"type": "string"},
					"text": {"type": "string", "minLength": 1}
				},
				"additionalProperties": false
			}
		},
		"tags": {"type": "array", "items": {"type": "string"}}
	},
	"additionalProperties": false
}`

// builtinProfiles holds the slots composerd knows how to fill. Adding a slot
// means adding a profile here; no other code changes.
var builtinProfiles = map[string]Profile{
	"summary": {
		Slot: "summary",
		SystemInstructions: "You write concise marketing copy for catalog listings. " +
			"Produce a short, factual summary of the source you are given. " +
			"Reply with JSON only.",
		OutputSchema: json.RawMessage(summarySchema),
		Selectors: FieldSelectors{
			Title: "title",
			Body:  "summary",
			Tags:  "tags",
		},
	},
	"multi": {
		Slot: "multi",
		SystemInstructions: "You write long-form marketing copy for catalog listings. " +
			"Produce a headline and several titled sections covering the source's " +
			"strengths, use cases, and specifications. Reply with JSON only.",
		OutputSchema: json.RawMessage(multiSchema),
		Selectors: FieldSelectors{
			Title: "headline",
			Body:  "join(`\"\\n\\n\"`, sections[].text)",
			Tags:  "tags",
		},
	},
}

// profileFor resolves a slot name to its profile. Unknown slots are handler
// failures, subject to the job's retry budget like any other.
func profileFor(slot string) (Profile, error) {
	profile, ok := builtinProfiles[slot]
	if !ok {
		return Profile{}, fmt.Errorf("unknown slot %q", slot)
	}
	return profile, nil
}
