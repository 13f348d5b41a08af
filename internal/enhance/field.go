package enhance

import (
	"context"
	"errors"
	"strings"

	"github.com/joseph-ayodele/artists-registry/internal/common"
	"github.com/joseph-ayodele/artists-registry/internal/normalize"
)

// Field names accepted by EnhanceField, matching the JSON field names.
const (
	FieldArtistName  = "artistName"
	FieldGuruName    = "guruName"
	FieldGharana     = "gharana"
	FieldBiography   = "biography"
	FieldDescription = "description"
	FieldPhone       = "phone"
	FieldEmail       = "email"
	FieldAddress     = "address"
)

const (
	fieldMaxTokens    = 200
	maxNameReplyChars = 120
)

// FieldResult is one enhanced value and who produced it.
type FieldResult struct {
	Field    string `json:"field"`
	Value    string `json:"enhancedValue"`
	Provider string `json:"provider"`
}

// FormatField is the deterministic per-field cleanup.
func FormatField(field, value string) string {
	switch field {
	case FieldArtistName:
		return normalize.FormatName(value)
	case FieldGuruName:
		return normalize.FormatGuruName(value)
	case FieldGharana:
		return normalize.FormatGharana(value)
	case FieldBiography:
		return FormatBiography(value)
	case FieldPhone:
		return normalize.FormatPhone(value)
	case FieldEmail:
		if v := formatEmail(value); v != "" {
			return v
		}
	}
	return collapse(value)
}

// EnhanceField cleans a single value. Contact fields never go to a model;
// they are only reformatted. Like Enhance, the only error besides a blank
// value is a done context.
func (e *Enhancer) EnhanceField(ctx context.Context, field, value string, hints map[string]string) (FieldResult, error) {
	field = strings.TrimSpace(field)
	if field == "" || strings.TrimSpace(value) == "" {
		return FieldResult{}, common.InvalidArgumentError("field name and value are required")
	}
	fallback := FieldResult{Field: field, Value: FormatField(field, value), Provider: ProviderDeterministic}
	switch field {
	case FieldPhone, FieldEmail, FieldAddress:
		return fallback, nil
	}

	var got string
	prompt := BuildFieldPrompt(field, value, hints)
	opts := CallOptions{Temperature: e.temperature, MaxTokens: fieldMaxTokens}
	p, err := e.firstReply(ctx, "field", prompt, opts, func(reply string) error {
		v, perr := parseFieldReply(field, reply)
		got = v
		return perr
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fallback, ctxErr
		}
		return fallback, nil
	}
	return FieldResult{Field: field, Value: got, Provider: p.Name()}, nil
}

var errBadFieldReply = errors.New("unusable field reply")

// parseFieldReply trims quotes and fences. Name-like fields must come back as
// a single short line, which is then run through the deterministic format.
func parseFieldReply(field, reply string) (string, error) {
	v := strings.TrimSpace(reFence.ReplaceAllString(reply, ""))
	v = strings.Trim(v, "\"'` ")
	if v == "" {
		return "", errBadFieldReply
	}
	switch field {
	case FieldArtistName, FieldGuruName, FieldGharana:
		if strings.ContainsAny(v, "\n{") || len(v) > maxNameReplyChars {
			return "", errBadFieldReply
		}
		return FormatField(field, v), nil
	}
	return collapse(v), nil
}
