package normalize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Fields is the best-effort structured parse of an artist document.
// Every value is nil or a non-empty, whitespace-collapsed string.
type Fields struct {
	ArtistName *string `json:"artistName"`
	GuruName   *string `json:"guruName"`
	Gharana    *string `json:"gharana"`
	Biography  *string `json:"biography"`
	Contact    Contact `json:"contact"`
}

type Contact struct {
	Phone   *string `json:"phone"`
	Email   *string `json:"email"`
	Address *string `json:"address"`
}

// Empty reports whether no field was extracted.
func (f Fields) Empty() bool {
	return f.ArtistName == nil && f.GuruName == nil && f.Gharana == nil && f.Biography == nil &&
		f.Contact.Phone == nil && f.Contact.Email == nil && f.Contact.Address == nil
}

// Length thresholds for free-text fields.
const (
	MinAddressChars      = 10
	MinLabeledBioChars   = 100
	MinParagraphBioChars = 150
	maxNameWords         = 5
	minPhoneDigits       = 10
	maxPhoneDigits       = 12
)

var (
	rePhone       = regexp.MustCompile(`\+?\d[\d \t-]{7,}`)
	reEmail       = regexp.MustCompile(`(?i)[\w.+-]+@[\w.-]+\.[a-z]{2,}`)
	reProperName  = regexp.MustCompile(`^[A-Z][a-z]+(\s+[A-Z][a-z]+)+$`)
	reNameWord    = regexp.MustCompile(`^[A-Za-z][A-Za-z.']*$`)
	reGharanaWord = regexp.MustCompile(`^[A-Z][a-z]+(-[A-Z][a-z]+)*$`)
	reSentenceEnd = regexp.MustCompile(`[.!?]`)
	reNumericOnly = regexp.MustCompile(`^[\d\s+().,:/#-]+$`)
	reValueCut    = regexp.MustCompile(`\s+[-–]\s+|[,;(|/]`)
)

// rule is one candidate pattern for a field. Candidates are cleaned, then
// accepted only when valid; the first accepted candidate wins and is
// formatted after acceptance.
type rule struct {
	re       *regexp.Regexp
	clean    func(string) string
	validate func(string) bool
	format   func(string) string
}

type rules []rule

func (rs rules) first(text string) *string {
	for _, r := range rs {
		for _, m := range r.re.FindAllStringSubmatch(text, -1) {
			if len(m) < 2 {
				continue
			}
			v := collapse(m[1])
			if r.clean != nil {
				v = collapse(r.clean(v))
			}
			if v == "" {
				continue
			}
			if r.validate != nil && !r.validate(v) {
				continue
			}
			if r.format != nil {
				v = collapse(r.format(v))
			}
			return &v
		}
	}
	return nil
}

var labelWords = map[string]struct{}{
	"artist": {}, "name": {}, "performer": {}, "musician": {}, "guru": {}, "teacher": {},
	"gharana": {}, "school": {}, "tradition": {}, "contact": {}, "phone": {}, "mobile": {},
	"email": {}, "address": {}, "location": {}, "biography": {}, "bio": {}, "about": {},
	"description": {}, "profile": {}, "details": {}, "the": {}, "this": {}, "of": {},
}

// stopWords end a free-running name capture ("trained under X since 1990").
var stopWords = map[string]struct{}{
	"and": {}, "since": {}, "for": {}, "at": {}, "in": {}, "who": {}, "from": {}, "of": {},
	"the": {}, "with": {}, "is": {}, "was": {}, "on": {}, "to": {}, "under": {}, "by": {},
	"ji": {}, "sahab": {}, "saheb": {}, "during": {}, "till": {}, "until": {}, "he": {}, "she": {},
	"his": {}, "her": {}, "late": {}, "father": {}, "mother": {}, "uncle": {}, "grandfather": {},
}

var gharanaStop = map[string]struct{}{
	"The": {}, "This": {}, "That": {}, "His": {}, "Her": {}, "Their": {}, "Our": {}, "Same": {},
	"Famous": {}, "Renowned": {}, "Celebrated": {}, "Old": {}, "A": {}, "Which": {},
}

var (
	artistRules = rules{
		{re: regexp.MustCompile(`(?im)\b(?:artist(?:'s)?\s+name|name\s+of\s+(?:the\s+)?artist|performer(?:'s)?\s+name)\s*[:\-]\s*([^\n]+)`), clean: cutName, validate: validName, format: FormatName},
		{re: regexp.MustCompile(`(?im)^\s*(?:performer|artist|musician|vocalist|instrumentalist)\s*[:\-]\s*([^\n]+)`), clean: cutName, validate: validName, format: FormatName},
		{re: regexp.MustCompile(`(?im)^\s*(?:full\s+)?name\s*[:\-]\s*([^\n]+)`), clean: cutName, validate: validName, format: FormatName},
		{re: regexp.MustCompile(`(?m)^([A-Z][a-z]+(?:[ \t]+[A-Z][a-z]+)+)`), clean: trimLabelTail, validate: validName},
	}

	guruRules = rules{
		{re: regexp.MustCompile(`(?im)\b(?:guru(?:ji)?|teacher|mentor)\s*[:\-]\s*([^\n]+)`), clean: leadingName, validate: validGuru},
		{re: regexp.MustCompile(`(?i)\b(?:trained|training|studied|learnt|learned|learning)\s+(?:music\s+)?(?:under|by|from|with)\s+(?:the\s+guidance\s+of\s+)?([^\n,;()]+)`), clean: leadingName, validate: validGuru},
		{re: regexp.MustCompile(`(?i)\b(?:disciple|student|shishya)\s+of\s+([^\n,;()]+)`), clean: leadingName, validate: validGuru},
	}

	gharanaRules = rules{
		{re: regexp.MustCompile(`(?im)\b(?:gharana|school|tradition)\s*:\s*([^\n]+)`), clean: cutGharana, validate: validGharana},
		{re: regexp.MustCompile(`\b([A-Z][a-z]+(?:-[A-Z][a-z]+)*)\s+(?i:gharana)\b`), clean: FormatGharana, validate: validGharana},
		{re: regexp.MustCompile(`(?i)\btradition\s+of\s+(?:the\s+)?([A-Za-z]+(?:-[A-Za-z]+)*)`), clean: cutGharana, validate: validGharana},
	}

	addressRules = rules{
		{re: regexp.MustCompile(`(?im)\b(?:address|location|residence)\s*:\s*([^\n]+)`), validate: minChars(MinAddressChars)},
		{re: regexp.MustCompile(`(?i)\b(?:lives|living|resides|based)\s+(?:at|in)\s+([^\n;]+)`), clean: trimSentence, validate: minChars(MinAddressChars)},
	}

	bioRules = rules{
		{re: regexp.MustCompile(`(?is)\b(?:biography|bio|about|description)\s*:\s*(.+?)(?:\n[ \t]*\n|\z)`), validate: minChars(MinLabeledBioChars)},
	}
)

// Normalize runs the field rules over raw extracted text. It never fails;
// a field with no accepted candidate stays nil.
func Normalize(raw string) Fields {
	text := SanitizeLines(raw)
	return Fields{
		ArtistName: artistRules.first(text),
		GuruName:   guruRules.first(text),
		Gharana:    gharanaRules.first(text),
		Biography:  biography(text),
		Contact: Contact{
			Phone:   phone(text),
			Email:   email(text),
			Address: addressRules.first(text),
		},
	}
}

func phone(text string) *string {
	for _, m := range rePhone.FindAllString(text, -1) {
		m = trimPhoneRun(m)
		if len(onlyDigits(m)) >= minPhoneDigits {
			v := FormatPhone(m)
			return &v
		}
	}
	return nil
}

// trimPhoneRun drops trailing digit groups a greedy match picked up
// ("98765 43210 2020") until the run holds at most maxPhoneDigits digits.
func trimPhoneRun(m string) string {
	groups := strings.Fields(m)
	for len(groups) > 1 && len(onlyDigits(strings.Join(groups, " "))) > maxPhoneDigits {
		groups = groups[:len(groups)-1]
	}
	return strings.Join(groups, " ")
}

func email(text string) *string {
	m := reEmail.FindString(text)
	if m == "" {
		return nil
	}
	v := strings.ToLower(m)
	return &v
}

func biography(text string) *string {
	if v := bioRules.first(text); v != nil {
		return v
	}
	for _, p := range paragraphs(text) {
		if utf8.RuneCountInString(p) > MinParagraphBioChars && reSentenceEnd.MatchString(p) && !reNumericOnly.MatchString(p) {
			return &p
		}
	}
	return nil
}

// cutName keeps the part of a labeled value before separators. Casing is
// left alone so validName sees the text as written.
func cutName(v string) string {
	if loc := reValueCut.FindStringIndex(v); loc != nil {
		v = v[:loc[0]]
	}
	return strings.TrimRight(strings.TrimSpace(v), ".:")
}

// trimLabelTail drops a trailing label word picked up by the bare
// line-start pattern ("Ravi Shankar Biography").
func trimLabelTail(v string) string {
	words := strings.Fields(v)
	for len(words) > 0 {
		if _, ok := labelWords[strings.ToLower(words[len(words)-1])]; !ok {
			break
		}
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

// leadingName takes name-shaped words up to the first stop word.
func leadingName(v string) string {
	var out []string
	for _, w := range strings.Fields(v) {
		if _, stop := stopWords[strings.ToLower(w)]; stop {
			if len(out) > 0 {
				break
			}
			continue
		}
		if !reNameWord.MatchString(w) {
			break
		}
		bare := strings.TrimRight(w, ".")
		if _, title := titleAliases[strings.ToLower(bare)]; !title && bare != w {
			// a period after a plain word ends the sentence
			out = append(out, bare)
			break
		}
		out = append(out, w)
		if len(out) == maxNameWords {
			break
		}
	}
	return FormatGuruName(strings.Join(out, " "))
}

func cutGharana(v string) string {
	if loc := reValueCut.FindStringIndex(v); loc != nil {
		v = v[:loc[0]]
	}
	return FormatGharana(strings.TrimRight(strings.TrimSpace(v), "."))
}

func trimSentence(v string) string {
	if i := strings.Index(v, ". "); i >= 0 {
		v = v[:i]
	}
	return strings.TrimRight(v, ".")
}

// validName checks the proper-name shape on the name as written. A leading
// honorific ("Pt.", "ustd") is exempt from the shape and expanded later.
func validName(v string) bool {
	words := strings.Fields(v)
	if len(words) > 2 {
		if _, title := titleAliases[strings.ToLower(strings.TrimRight(words[0], "."))]; title {
			words = words[1:]
		}
	}
	if !reProperName.MatchString(strings.Join(words, " ")) {
		return false
	}
	if len(words) > maxNameWords {
		return false
	}
	for _, w := range words {
		if _, ok := labelWords[strings.ToLower(w)]; ok {
			return false
		}
	}
	return true
}

// validGuru needs a honorific plus at least one name word.
func validGuru(v string) bool {
	words := strings.Fields(v)
	if len(words) < 2 || len(words) > maxNameWords+1 {
		return false
	}
	for _, w := range words[1:] {
		if !reNameWord.MatchString(w) {
			return false
		}
		if _, ok := labelWords[strings.ToLower(w)]; ok {
			return false
		}
	}
	return true
}

func validGharana(v string) bool {
	words := strings.Fields(v)
	if len(words) == 0 || len(words) > 3 {
		return false
	}
	for _, w := range words {
		if !reGharanaWord.MatchString(w) {
			return false
		}
		if _, ok := gharanaStop[w]; ok {
			return false
		}
		if _, ok := labelWords[strings.ToLower(w)]; ok {
			return false
		}
	}
	return true
}

func minChars(n int) func(string) bool {
	return func(v string) bool { return utf8.RuneCountInString(v) >= n }
}
