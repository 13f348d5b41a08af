package enhance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/joseph-ayodele/artists-registry/internal/common"
	"github.com/joseph-ayodele/artists-registry/internal/normalize"
)

const (
	summaryTemperature = 0.3
	summaryMaxTokens   = 1024

	plainDescriptionChars = 300
	plainSummaryChars     = 150
)

// SummaryInput is what the narrative is written from.
type SummaryInput struct {
	ArtistName *string `json:"artistName"`
	GuruName   *string `json:"guruName"`
	Gharana    *string `json:"gharana"`
	Biography  *string `json:"biography"`
	RawText    string  `json:"rawText"`
}

// Summary holds the profile-page texts.
type Summary struct {
	Biography   string `json:"biography"`
	Description string `json:"description"`
	Summary     string `json:"summary"`
	Provider    string `json:"provider"`
	Model       string `json:"model,omitempty"`
}

// Profile is the combined structured and narrative view of one artist.
type Profile struct {
	Fields      normalize.Fields `json:"fields"`
	Description *string          `json:"description"`
	Summary     Summary          `json:"summary"`
	Provider    string           `json:"provider"`
}

func BuildSummaryJSONSchema() map[string]any {
	nullableString := map[string]any{"type": []string{"string", "null"}}
	nonEmpty := map[string]any{"type": "string", "minLength": 1}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"biography":   nullableString,
			"description": nullableString,
			"summary":     nullableString,
		},
		"anyOf": []any{
			map[string]any{"required": []string{"biography"}, "properties": map[string]any{"biography": nonEmpty}},
			map[string]any{"required": []string{"description"}, "properties": map[string]any{"description": nonEmpty}},
			map[string]any{"required": []string{"summary"}, "properties": map[string]any{"summary": nonEmpty}},
		},
	}
}

var summarySchema = mustCompile(BuildSummaryJSONSchema())

// Summarize writes the narrative texts with a warmer temperature than the
// structured pass. Without a usable reply it builds them from the known fields.
func (e *Enhancer) Summarize(ctx context.Context, in SummaryInput) (Summary, error) {
	if in.ArtistName == nil || strings.TrimSpace(*in.ArtistName) == "" {
		return Summary{}, common.InvalidArgumentError("artist name is required for a summary")
	}
	fallback := BasicSummary(in)

	var got Summary
	opts := CallOptions{Temperature: summaryTemperature, MaxTokens: summaryMaxTokens}
	p, err := e.firstReply(ctx, "summary", BuildSummaryPrompt(in), opts, func(reply string) error {
		s, perr := parseSummaryReply(reply)
		got = s
		return perr
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fallback, ctxErr
		}
		return fallback, nil
	}
	// a partial reply keeps the basic text for what it left out
	if got.Biography == "" {
		got.Biography = fallback.Biography
	}
	if got.Description == "" {
		got.Description = fallback.Description
	}
	if got.Summary == "" {
		got.Summary = fallback.Summary
	}
	got.Provider, got.Model = p.Name(), p.Model()
	return got, nil
}

// Comprehensive runs the structured pass and then writes the narrative from
// its result.
func (e *Enhancer) Comprehensive(ctx context.Context, raw string, fields normalize.Fields) (Profile, error) {
	enh, err := e.Enhance(ctx, raw, fields)
	if err != nil {
		return Profile{}, err
	}
	bio := enh.Fields.Biography
	s, err := e.Summarize(ctx, SummaryInput{
		ArtistName: enh.Fields.ArtistName,
		GuruName:   enh.Fields.GuruName,
		Gharana:    enh.Fields.Gharana,
		Biography:  bio,
		RawText:    raw,
	})
	if err != nil {
		return Profile{}, err
	}
	return Profile{Fields: enh.Fields, Description: enh.Description, Summary: s, Provider: enh.Provider}, nil
}

// BasicSummary is the deterministic narrative: one sentence from name,
// gharana and guru, with any known biography kept as is.
func BasicSummary(in SummaryInput) Summary {
	f := Deterministic(normalize.Fields{ArtistName: in.ArtistName, GuruName: in.GuruName, Gharana: in.Gharana}).Fields
	line := ""
	if d := describe(f); d != nil {
		line = *d
	}
	bio := line
	if in.Biography != nil {
		if b := FormatBiography(*in.Biography); b != "" {
			bio = b
		}
	}
	return Summary{Biography: bio, Description: line, Summary: line, Provider: ProviderDeterministic}
}

// parseSummaryReply accepts the JSON shape, or plain prose, which becomes the
// biography with shortened copies for the other two texts.
func parseSummaryReply(reply string) (Summary, error) {
	doc := Unfence(reply)
	if !strings.HasPrefix(doc, "{") {
		text := collapse(doc)
		if text == "" {
			return Summary{}, fmt.Errorf("empty summary reply")
		}
		return Summary{Biography: text, Description: clip(text, plainDescriptionChars), Summary: clip(text, plainSummaryChars)}, nil
	}
	var v any
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		return Summary{}, fmt.Errorf("unmarshal summary: %w", err)
	}
	if err := summarySchema.Validate(v); err != nil {
		return Summary{}, fmt.Errorf("summary does not match schema: %w", err)
	}
	var raw struct {
		Biography   *string `json:"biography"`
		Description *string `json:"description"`
		Summary     *string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(doc), &raw); err != nil {
		return Summary{}, fmt.Errorf("decode summary: %w", err)
	}
	var out Summary
	if raw.Biography != nil {
		out.Biography = FormatBiography(*raw.Biography)
	}
	if raw.Description != nil {
		out.Description = collapse(*raw.Description)
	}
	if raw.Summary != nil {
		out.Summary = collapse(*raw.Summary)
	}
	return out, nil
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n])) + "..."
}
