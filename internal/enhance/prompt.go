package enhance

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/joseph-ayodele/artists-registry/internal/normalize"
)

const maxPromptRawChars = 2000

// BuildStructuredPrompt asks for cleaned, structured fields. The regex
// output is included so the model corrects instead of guessing.
func BuildStructuredPrompt(raw string, fields normalize.Fields) string {
	current, _ := json.MarshalIndent(fields, "", "  ")

	raw = strings.TrimSpace(raw)
	if r := []rune(raw); len(r) > maxPromptRawChars {
		raw = string(r[:maxPromptRawChars]) + "\n...(truncated)"
	}

	parts := []string{
		"Extract and enhance the following Indian classical music artist information into clean, structured JSON.",
		"",
		"INPUT DATA:",
		string(current),
		"",
		"RAW TEXT:",
		raw,
		"",
		"INSTRUCTIONS:",
		`1. Format names with proper capitalization and titles such as "Ustad" or "Pandit".`,
		"2. Standardize the phone number and lowercase the email address.",
		"3. Write a concise professional biography of 2-3 sentences and a one-sentence description.",
		"4. Use null for anything not present in the text. Never invent contact details.",
		"5. Return ONLY JSON in this exact shape:",
		`{"artistName": "...", "guruName": "...", "gharana": "name without the word gharana", "biography": "...", "description": "...", "contact": {"phone": "...", "email": "...", "address": "..."}}`,
	}
	return strings.Join(parts, "\n")
}

var fieldInstructions = map[string]string{
	FieldArtistName:  `Rules: proper capitalization, add a title such as "Ustad" or "Pandit" only if the text implies one.`,
	FieldGuruName:    `Rules: proper capitalization, add "Pandit" or "Ustad" when no title is present.`,
	FieldGharana:     `Rules: proper capitalization, drop the word "gharana".`,
	FieldBiography:   "Rules: fix grammar and structure, keep exactly the same facts.",
	FieldDescription: "Rules: fix grammar and structure, keep exactly the same facts.",
}

// BuildFieldPrompt asks for one cleaned value. hints carry the other known
// fields of the same artist.
func BuildFieldPrompt(field, value string, hints map[string]string) string {
	parts := []string{fmt.Sprintf("Clean and format this %s of an Indian classical music artist: %q", fieldLabel(field), value)}
	if rule, ok := fieldInstructions[field]; ok {
		parts = append(parts, rule)
	}
	if len(hints) > 0 {
		keys := make([]string, 0, len(hints))
		for k := range hints {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts = append(parts, "Known details:")
		for _, k := range keys {
			if v := strings.TrimSpace(hints[k]); v != "" {
				parts = append(parts, fmt.Sprintf("- %s: %s", k, v))
			}
		}
	}
	parts = append(parts, "Return only the cleaned value, no quotes or extra text.")
	return strings.Join(parts, "\n")
}

func fieldLabel(field string) string {
	switch field {
	case FieldArtistName:
		return "artist name"
	case FieldGuruName:
		return "guru name"
	}
	return field
}

const maxSummaryRawChars = 1500

// BuildSummaryPrompt asks for the narrative profile texts.
func BuildSummaryPrompt(in SummaryInput) string {
	orUnknown := func(v *string) string {
		if v == nil || strings.TrimSpace(*v) == "" {
			return "Not specified"
		}
		return strings.TrimSpace(*v)
	}
	raw := strings.TrimSpace(in.RawText)
	if raw == "" && in.Biography != nil {
		raw = strings.TrimSpace(*in.Biography)
	}
	if r := []rune(raw); len(r) > maxSummaryRawChars {
		raw = string(r[:maxSummaryRawChars]) + "\n...(truncated)"
	}

	parts := []string{
		"Write a professional profile for this Indian classical music artist.",
		"",
		"ARTIST DETAILS:",
		"- Name: " + orUnknown(in.ArtistName),
		"- Guru: " + orUnknown(in.GuruName),
		"- Gharana: " + orUnknown(in.Gharana),
		"",
		"RAW INFORMATION:",
		raw,
		"",
		"Use only facts present above. Return ONLY JSON in this exact shape:",
		`{"biography": "2-3 paragraphs on background, training and achievements", "description": "one paragraph on style and contributions", "summary": "2-3 sentence overview"}`,
	}
	return strings.Join(parts, "\n")
}
