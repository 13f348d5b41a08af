package enhance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildArtistJSONSchema describes the reply we accept. Every value may be
// null, but at least one of the identity fields must be a non-empty string.
func BuildArtistJSONSchema() map[string]any {
	nullableString := map[string]any{"type": []string{"string", "null"}}
	nonEmpty := map[string]any{"type": "string", "minLength": 1}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"artistName":  nullableString,
			"guruName":    nullableString,
			"gharana":     nullableString,
			"biography":   nullableString,
			"description": nullableString,
			"contact": map[string]any{
				"type": []string{"object", "null"},
				"properties": map[string]any{
					"phone":   nullableString,
					"email":   nullableString,
					"address": nullableString,
				},
			},
		},
		"anyOf": []any{
			map[string]any{"required": []string{"artistName"}, "properties": map[string]any{"artistName": nonEmpty}},
			map[string]any{"required": []string{"guruName"}, "properties": map[string]any{"guruName": nonEmpty}},
			map[string]any{"required": []string{"gharana"}, "properties": map[string]any{"gharana": nonEmpty}},
		},
	}
}

// artistSchema is compiled once; the schema is static.
var artistSchema = mustCompile(BuildArtistJSONSchema())

func mustCompile(schemaMap map[string]any) *jsonschema.Schema {
	s, err := compileSchema(schemaMap)
	if err != nil {
		panic(err)
	}
	return s
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("artist.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	s, err := compiler.Compile("artist.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return s, nil
}

// ValidateJSON checks data against the artist schema.
func ValidateJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := artistSchema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

var reFence = regexp.MustCompile("```(?:json)?\\s*\\n?|\\n?```")

// Unfence strips markdown code fences and any prose around the outermost
// JSON object.
func Unfence(reply string) string {
	s := strings.TrimSpace(reFence.ReplaceAllString(reply, ""))
	if i, j := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}'); i >= 0 && j > i {
		s = s[i : j+1]
	}
	return s
}

// parseReply unfences, validates and decodes one model reply.
func parseReply(reply string) (aiFields, error) {
	doc := []byte(Unfence(reply))
	if err := ValidateJSON(doc); err != nil {
		return aiFields{}, err
	}
	var out aiFields
	if err := json.Unmarshal(doc, &out); err != nil {
		return aiFields{}, fmt.Errorf("decode reply: %w", err)
	}
	return out, nil
}
