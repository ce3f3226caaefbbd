package textproc

import (
	"regexp"
	"strings"

	"github.com/forPelevin/gomoji"
)

// Promotional trailer lines commonly appended to descriptions. A match
// drops the line and, for the section markers, everything after it.
var promoLineRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(please\s+)?(like\s*(,|and)?\s*)?subscribe\b.*$`),
	regexp.MustCompile(`(?i)^\s*(don't|do not)\s+forget\s+to\s+(like|subscribe)\b.*$`),
	regexp.MustCompile(`(?i)^\s*(smash|hit)\s+(that\s+)?(like|bell|subscribe)\b.*$`),
	regexp.MustCompile(`(?i)^\s*follow\s+(me|us)\s+on\s+(twitter|x|instagram|tiktok|facebook|twitch|discord)\b.*$`),
	regexp.MustCompile(`(?i)^\s*(twitter|instagram|tiktok|facebook|twitch|discord|patreon)\s*[:\-]\s*\S+.*$`),
	regexp.MustCompile(`(?i)^\s*(affiliate|sponsored)\s+links?\b.*$`),
	regexp.MustCompile(`(?i)^\s*use\s+(code|coupon)\s+\S+\b.*$`),
	regexp.MustCompile(`(?i)^\s*#{1,}\s*(links|socials|follow\s+me)\s*#{0,}\s*$`),
}

var (
	zeroWidthRe    = regexp.MustCompile(`[\x{200B}\x{200C}\x{200D}\x{2060}\x{FEFF}]`)
	spaceRunRe     = regexp.MustCompile(`[ \t]+`)
	trailingHashRe = regexp.MustCompile(`(?:\s*#\S+)+\s*$`)
	pipeSuffixRe   = regexp.MustCompile(`\s*\|\s*[^|]{1,60}$`)
)

// stripControl removes control characters except tab and newline, and
// zero-width characters.
func stripControl(s string) string {
	s = zeroWidthRe.ReplaceAllString(s, "")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\t' || r == '\n' {
			b.WriteRune(r)
			continue
		}
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// isEmojiRun reports whether a line consists entirely of emoji and
// decoration.
func isEmojiRun(line string) bool {
	if !gomoji.ContainsEmoji(line) {
		return false
	}
	stripped := gomoji.RemoveEmojis(line)
	stripped = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '.', '!', '~', '-', '_', '*', '・', '☆', '★':
			return -1
		}
		return r
	}, stripped)
	return strings.TrimSpace(stripped) == ""
}

// CleanDescription applies the description normalization rules:
// control stripping, promo-trailer removal, emoji-run line removal,
// whitespace collapsing. URLs inside sentences are preserved.
func CleanDescription(raw string) string {
	if raw == "" {
		return ""
	}
	raw = stripControl(raw)
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	blankPending := false
	for _, line := range lines {
		if matchesPromo(line) || isEmojiRun(line) {
			continue
		}
		line = strings.TrimSpace(spaceRunRe.ReplaceAllString(line, " "))
		if line == "" {
			blankPending = len(out) > 0
			continue
		}
		if blankPending {
			out = append(out, "")
			blankPending = false
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func matchesPromo(line string) bool {
	for _, re := range promoLineRes {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// CleanTitle normalizes a title: control stripping, whitespace
// collapsing, trailing hashtags, a trailing "| Channel Name" segment,
// and one enclosing quote pair.
func CleanTitle(raw string) string {
	title := stripControl(raw)
	title = strings.TrimSpace(spaceRunRe.ReplaceAllString(title, " "))
	title = trailingHashRe.ReplaceAllString(title, "")
	title = pipeSuffixRe.ReplaceAllString(title, "")
	title = strings.TrimSpace(title)
	title = trimEnclosingQuotes(title)
	return strings.TrimSpace(title)
}

var quotePairs = map[rune]rune{
	'"': '"', '\'': '\'', '“': '”', '‘': '’', '«': '»', '「': '」',
}

func trimEnclosingQuotes(s string) string {
	runes := []rune(s)
	if len(runes) < 2 {
		return s
	}
	if close, ok := quotePairs[runes[0]]; ok && runes[len(runes)-1] == close {
		return string(runes[1 : len(runes)-1])
	}
	return s
}

// CollapseSpaces flattens any whitespace runs, including newlines, to
// single spaces. Used for the interval=0 transcript rendering.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
