package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Honorifics recognized at the start of a guru or artist name.
const (
	TitleUstad  = "Ustad"
	TitlePandit = "Pandit"
	TitleGuru   = "Guru"
)

var titleAliases = map[string]string{
	"ustd":   TitleUstad,
	"ust":    TitleUstad,
	"ustad":  TitleUstad,
	"pt":     TitlePandit,
	"pdt":    TitlePandit,
	"pandit": TitlePandit,
	"guru":   TitleGuru,
}

// FormatName title-cases a person's name and expands abbreviated
// honorifics, e.g. "ustd zakir hussain" -> "Ustad Zakir Hussain".
func FormatName(name string) string {
	words := strings.Fields(name)
	for i, w := range words {
		key := strings.ToLower(strings.TrimRight(w, "."))
		if t, ok := titleAliases[key]; ok {
			words[i] = t
			continue
		}
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

// FormatGuruName normalizes a guru's name and prefixes "Pandit" when no
// recognized honorific is present.
func FormatGuruName(name string) string {
	formatted := FormatName(name)
	if formatted == "" {
		return ""
	}
	first, _, _ := strings.Cut(formatted, " ")
	switch first {
	case TitleUstad, TitlePandit, TitleGuru:
		return formatted
	}
	return TitlePandit + " " + formatted
}

// FormatGharana strips the word "gharana" and title-cases what remains,
// hyphenated parts included: "jaipur-atrauli gharana" -> "Jaipur-Atrauli".
func FormatGharana(g string) string {
	words := strings.Fields(g)
	kept := words[:0]
	for _, w := range words {
		if strings.EqualFold(strings.Trim(w, ".,;:"), "gharana") {
			continue
		}
		parts := strings.Split(w, "-")
		for i, p := range parts {
			parts[i] = capitalize(p)
		}
		kept = append(kept, strings.Join(parts, "-"))
	}
	return strings.Join(kept, " ")
}

// FormatPhone normalizes a phone-like match by its digit count:
// 10 digits and 12 digits starting with 91 become "+91 NNNNNNNNNN",
// 11 digits starting with 1 become "+1 NNNNNNNNNN", anything else is
// returned trimmed.
func FormatPhone(match string) string {
	digits := onlyDigits(match)
	switch {
	case len(digits) == 10:
		return "+91 " + digits
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		return "+91 " + digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		return "+1 " + digits[1:]
	}
	return strings.Trim(strings.TrimSpace(match), "-")
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func capitalize(w string) string {
	if w == "" {
		return w
	}
	r, size := utf8.DecodeRuneInString(w)
	return string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
}
