// Package confidence grades extracted text into coarse advisory tiers.
// Tiers are surfaced to operators only and never gate extraction.
package confidence

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Tier string

const (
	Low    Tier = "low"
	Medium Tier = "medium"
	High   Tier = "high"
)

// Thresholds of the point system.
const (
	MinScorableChars   = 10
	HighPoints         = 6
	MediumPoints       = 3
	MaxSpecialDensity  = 0.1
	OCRHighThreshold   = 80
	OCRMediumThreshold = 60
)

var wordBuckets = []struct {
	over   int
	points int
}{
	{100, 3},
	{50, 2},
	{20, 1},
}

var (
	reKeywords  = regexp.MustCompile(`(?i)\b(?:name|guru|gharana|phone|email|artist|performer)\b`)
	rePhoneRun  = regexp.MustCompile(`(?:\d[ \t-]?){10,}`)
	reProperTwo = regexp.MustCompile(`\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`)
)

const plainPunct = `.,;:'"!?()-/&@+#%`

// Score grades text; any internal failure yields Low.
func Score(text string) (tier Tier) {
	defer func() {
		if r := recover(); r != nil {
			tier = Low
		}
	}()
	return fromPoints(Points(text))
}

// Points returns the raw heuristic total for text.
func Points(text string) int {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinScorableChars {
		return 0
	}
	points := 0
	words := len(strings.Fields(text))
	for _, b := range wordBuckets {
		if words > b.over {
			points += b.points
			break
		}
	}
	if reKeywords.MatchString(text) {
		points += 2
	}
	if strings.Contains(text, "@") || rePhoneRun.MatchString(text) {
		points++
	}
	if reProperTwo.MatchString(text) {
		points++
	}
	if specialDensity(text) < MaxSpecialDensity {
		points++
	}
	return points
}

func fromPoints(p int) Tier {
	switch {
	case p >= HighPoints:
		return High
	case p >= MediumPoints:
		return Medium
	}
	return Low
}

// FromOCR maps an engine's mean confidence (0..100) onto a tier.
func FromOCR(conf float64) Tier {
	switch {
	case conf > OCRHighThreshold:
		return High
	case conf > OCRMediumThreshold:
		return Medium
	}
	return Low
}

func specialDensity(text string) float64 {
	var total, special int
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || strings.ContainsRune(plainPunct, r) {
			continue
		}
		special++
	}
	if total == 0 {
		return 1
	}
	return float64(special) / float64(total)
}
