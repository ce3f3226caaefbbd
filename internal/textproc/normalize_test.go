package textproc

import (
	"strings"
	"testing"
)

func TestParseISO8601Duration(t *testing.T) {
	cases := map[string]int{
		"PT3M20S":   200,
		"PT1H2M3S":  3723,
		"PT45S":     45,
		"PT2H":      7200,
		"P1DT1H":    90000,
		"PT0S":      0,
		"":          0,
		"garbage":   0,
		"P0D":       0,
	}
	for in, want := range cases {
		if got := ParseISO8601Duration(in); got != want {
			t.Errorf("ParseISO8601Duration(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[int]string{
		0:     "0:00",
		59:    "0:59",
		61:    "1:01",
		3599:  "59:59",
		3600:  "1:00:00",
		3723:  "1:02:03",
		-5:    "0:00",
		86400: "24:00:00",
	}
	for in, want := range cases {
		if got := FormatDuration(in); got != want {
			t.Errorf("FormatDuration(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := FormatTimestamp(70); got != "00:01:10" {
		t.Errorf("FormatTimestamp(70) = %q", got)
	}
	if got := FormatTimestamp(3661); got != "01:01:01" {
		t.Errorf("FormatTimestamp(3661) = %q", got)
	}
}

func TestCleanTitle(t *testing.T) {
	cases := map[string]string{
		"  Go  Tutorial ":                       "Go Tutorial",
		"Go Tutorial #golang #coding":           "Go Tutorial",
		"Go Tutorial | TechChannel":             "Go Tutorial",
		`"Quoted Title"`:                        "Quoted Title",
		"“Smart Quotes”":                        "Smart Quotes",
		"Zero\u200bWidth":                       "ZeroWidth",
		"A\u200bB\u200cC\u200dD\u2060E\ufeffF": "ABCDEF",
		"Tabs\tbecome\tspaces":                  "Tabs become spaces",
		"Pipes | stay | only last goes":         "Pipes | stay",
	}
	for in, want := range cases {
		if got := CleanTitle(in); got != want {
			t.Errorf("CleanTitle(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanDescriptionDropsPromoLines(t *testing.T) {
	raw := strings.Join([]string{
		"A deep dive into goroutines.",
		"",
		"Don't forget to like and subscribe!",
		"Follow me on Twitter for updates",
		"Twitter: @gopher",
		"Use code GOPHER10 at checkout",
		"",
		"Chapter list below.",
	}, "\n")

	got := CleanDescription(raw)
	if strings.Contains(got, "subscribe") || strings.Contains(got, "Twitter") || strings.Contains(got, "GOPHER10") {
		t.Fatalf("promo lines survived: %q", got)
	}
	if !strings.Contains(got, "A deep dive into goroutines.") || !strings.Contains(got, "Chapter list below.") {
		t.Fatalf("content lines lost: %q", got)
	}
}

func TestCleanDescriptionPreservesURLs(t *testing.T) {
	raw := "Source code at https://github.com/example/repo for reference."
	if got := CleanDescription(raw); got != raw {
		t.Fatalf("URL line altered: %q", got)
	}
}

func TestCleanDescriptionRemovesEmojiRunLines(t *testing.T) {
	raw := "Great talk about Go 🎉\n🎉🎉🎉\nSee you next week"
	got := CleanDescription(raw)
	if strings.Contains(got, "🎉🎉🎉") {
		t.Fatalf("emoji run line survived: %q", got)
	}
	if !strings.Contains(got, "Great talk about Go 🎉") {
		t.Fatalf("in-line emoji should be kept: %q", got)
	}
}

func TestCleanDescriptionCollapsesBlankRuns(t *testing.T) {
	raw := "first\n\n\n\nsecond"
	got := CleanDescription(raw)
	if got != "first\n\nsecond" {
		t.Fatalf("blank runs not collapsed: %q", got)
	}
}

func TestCleanDescriptionStripsControlChars(t *testing.T) {
	raw := "bell\x07 and\x00 null kept\ttab"
	got := CleanDescription(raw)
	if strings.ContainsAny(got, "\x07\x00") {
		t.Fatalf("control chars survived: %q", got)
	}
	if !strings.Contains(got, "kept tab") {
		t.Fatalf("tab should collapse to space: %q", got)
	}
}

func TestCollapseSpaces(t *testing.T) {
	if got := CollapseSpaces(" a \n b\t\tc "); got != "a b c" {
		t.Fatalf("CollapseSpaces = %q", got)
	}
}
