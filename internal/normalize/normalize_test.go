package normalize

import (
	"strings"
	"testing"
)

const profileDoc = `Artist Name: Ustd. Zakir Hussain
Guru: Alla Rakha
Gharana: Punjab gharana
Phone: +91-999 888 7777
Email: Zakir.Hussain@Example.COM
Address: 12 Marine Drive, Mumbai

Biography: Zakir Hussain is an Indian tabla player, composer and percussionist. He has performed across the world with
many celebrated artists and continues to teach young musicians.
`

func TestNormalizeLabeledProfile(t *testing.T) {
	f := Normalize(profileDoc)

	assertField(t, "artistName", f.ArtistName, "Ustad Zakir Hussain")
	assertField(t, "guruName", f.GuruName, "Pandit Alla Rakha")
	assertField(t, "gharana", f.Gharana, "Punjab")
	assertField(t, "phone", f.Contact.Phone, "+91 9998887777")
	assertField(t, "email", f.Contact.Email, "zakir.hussain@example.com")
	assertField(t, "address", f.Contact.Address, "12 Marine Drive, Mumbai")
	if f.Biography == nil || !strings.HasPrefix(*f.Biography, "Zakir Hussain is an Indian tabla player") {
		t.Fatalf("biography = %v", f.Biography)
	}
	if strings.Contains(*f.Biography, "\n") {
		t.Fatalf("biography should be collapsed, got %q", *f.Biography)
	}
}

func TestNormalizeEmptyText(t *testing.T) {
	for _, in := range []string{"", "   \n\t ", "12 34 !!"} {
		f := Normalize(in)
		if !f.Empty() {
			t.Errorf("Normalize(%q) = %+v, want all nil", in, f)
		}
	}
}

func TestNormalizeFieldsAreTrimmedAndCollapsed(t *testing.T) {
	in := "Performer:   Ravi    Shankar  \nlives in   Varanasi,   Uttar Pradesh\n"
	f := Normalize(in)
	for name, v := range map[string]*string{"artistName": f.ArtistName, "address": f.Contact.Address} {
		if v == nil {
			t.Fatalf("%s missing", name)
		}
		if *v != strings.TrimSpace(*v) || strings.Contains(*v, "  ") {
			t.Errorf("%s not collapsed: %q", name, *v)
		}
	}
	assertField(t, "artistName", f.ArtistName, "Ravi Shankar")
}

func TestArtistNameShapeValidation(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"labeled", "Artist Name: Kishori Amonkar", "Kishori Amonkar"},
		{"lowercase label", "artist name: Bhimsen Joshi, vocalist", "Bhimsen Joshi"},
		{"honorific expanded after acceptance", "Artist Name: pt. Ravi Shankar", "Pandit Ravi Shankar"},
		{"uncased value falls through", "Artist Name: ravi shankar\nHariprasad Chaurasia plays flute", "Hariprasad Chaurasia"},
		{"placeholder lowercase", "Name: not available", ""},
		{"placeholder phrase", "Artist Name: to be confirmed", ""},
		{"placeholder uppercase", "Performer: SEE ATTACHED", ""},
		{"bare line start", "Zakir Hussain is a renowned tabla player.", "Zakir Hussain"},
		{"rejects digits then falls through", "Artist Name: 12345\nShiv Kumar Sharma plays santoor", "Shiv Kumar Sharma"},
		{"rejects label words", "Artist Name: 12345", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assertField(t, "artistName", Normalize(tc.in).ArtistName, tc.want)
		})
	}
}

func TestGuruExtraction(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"He trained under Guru Kelucharan Mohapatra since 1990.", "Guru Kelucharan Mohapatra"},
		{"She is a disciple of Pt. Jasraj. She sings khayal.", "Pandit Jasraj"},
		{"He learned from his father ustd allarakha khan", "Ustad Allarakha Khan"},
		{"Teacher: Ram Narayan", "Pandit Ram Narayan"},
		{"No teacher mentioned here", ""},
	}
	for _, tc := range cases {
		assertField(t, "guruName("+tc.in+")", Normalize(tc.in).GuruName, tc.want)
	}
}

func TestGharanaExtraction(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"...belongs to Jaipur gharana...", "Jaipur"},
		{"Gharana: jaipur-atrauli gharana", "Jaipur-Atrauli"},
		{"School: Kirana", "Kirana"},
		{"She sings in the tradition of the Gwalior style", "Gwalior"},
		{"The Gharana system is old", ""},
	}
	for _, tc := range cases {
		assertField(t, "gharana("+tc.in+")", Normalize(tc.in).Gharana, tc.want)
	}
}

func TestPhoneExtraction(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Call +91-999 888 7777 today", "+91 9998887777"},
		{"Mobile 9998887777", "+91 9998887777"},
		{"US office 1-415-555-0100", "+1 4155550100"},
		{"Year 2019-2020 only", ""},
		{"Landline 044 2345 6789 10", "044 2345 6789"},
		{"phone 98765 43210 2020", "+91 9876543210"},
	}
	for _, tc := range cases {
		assertField(t, "phone("+tc.in+")", Normalize(tc.in).Contact.Phone, tc.want)
	}
}

func TestFormatPhone(t *testing.T) {
	cases := map[string]string{
		"+91-999 888 7777": "+91 9998887777",
		"9998887777":       "+91 9998887777",
		"919998887777":     "+91 9998887777",
		"14155550100":      "+1 4155550100",
		" 0091 99988 877 ": "0091 99988 877",
	}
	for in, want := range cases {
		if got := FormatPhone(in); got != want {
			t.Errorf("FormatPhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatNames(t *testing.T) {
	if got := FormatName("ustd zakir hussain"); got != "Ustad Zakir Hussain" {
		t.Fatalf("FormatName = %q", got)
	}
	if got := FormatName("pt. RAVI shankar"); got != "Pandit Ravi Shankar" {
		t.Fatalf("FormatName = %q", got)
	}
	if got := FormatGuruName("Ustad Vilayat Khan"); got != "Ustad Vilayat Khan" {
		t.Fatalf("FormatGuruName kept title = %q", got)
	}
	if got := FormatGuruName("bhimsen joshi"); got != "Pandit Bhimsen Joshi" {
		t.Fatalf("FormatGuruName default title = %q", got)
	}
	if got := FormatGharana("Kirana Gharana"); got != "Kirana" {
		t.Fatalf("FormatGharana = %q", got)
	}
}

func TestBiographyParagraphFallback(t *testing.T) {
	para := strings.Repeat("She has performed at major festivals across India and abroad for three decades. ", 3)
	in := "Short line\n\n+91 99988 87777 / 044 2345 6789 / 080 1234 5678 / 011 2222 3333 / 022 4444 5555 / 033 6666 7777 / 040 8888 9999\n\n" + para
	f := Normalize(in)
	if f.Biography == nil || *f.Biography != strings.TrimSpace(para) {
		t.Fatalf("biography = %v", f.Biography)
	}

	short := Normalize("Bio: too short to count.")
	if short.Biography != nil {
		t.Fatalf("short labeled bio should be rejected, got %q", *short.Biography)
	}
}

func TestSanitize(t *testing.T) {
	in := "  Ravi\x00 \x1b Shankar\r\n{sitar} <b>maestro</b> |  e\u0301 \u200b\n\n\tend "
	got := Sanitize(in)
	want := "Ravi Shankar sitar b maestro /b \u00e9 end"
	if got != want {
		t.Fatalf("Sanitize() = %q, want %q", got, want)
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	inputs := []string{
		profileDoc,
		"ae\u0301\u0000b [x] {y}\t\t<z>",
		"\u0085line two three",
		"",
	}
	for _, in := range inputs {
		once := Sanitize(in)
		if twice := Sanitize(once); twice != once {
			t.Errorf("Sanitize not idempotent for %q: %q != %q", in, twice, once)
		}
	}
}

func TestSanitizeLinesKeepsParagraphs(t *testing.T) {
	got := SanitizeLines("one  two\r\n\r\n\r\n\r\nthree\x07\n")
	if got != "one two\n\nthree" {
		t.Fatalf("SanitizeLines() = %q", got)
	}
}

func assertField(t *testing.T, name string, got *string, want string) {
	t.Helper()
	if want == "" {
		if got != nil {
			t.Fatalf("%s = %q, want nil", name, *got)
		}
		return
	}
	if got == nil {
		t.Fatalf("%s = nil, want %q", name, want)
	}
	if *got != want {
		t.Fatalf("%s = %q, want %q", name, *got, want)
	}
}
