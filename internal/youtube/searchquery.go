package youtube

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// SearchQuery is a free-text query with its inline operators stripped
// into structured filters.
type SearchQuery struct {
	Terms           string
	Order           string
	ChannelName     string
	Duration        string
	PublishedAfter  *time.Time
	PublishedBefore *time.Time
	FilterCount     int
}

var (
	quotedOpRe = regexp.MustCompile(`(\w+):"([^"]*)"`)
	plainOpRe  = regexp.MustCompile(`(\w+):(\S+)`)
)

var validOrders = map[string]bool{
	"date": true, "rating": true, "relevance": true, "title": true, "viewCount": true,
}

var validDurations = map[string]bool{"short": true, "medium": true, "long": true}

// ParseSearchQuery extracts the supported operators (before:, after:,
// channel:, duration:, order:) and returns the remaining text as the
// query terms. Unknown operators are left in the terms untouched.
func ParseSearchQuery(raw string) SearchQuery {
	q := SearchQuery{}
	rest := raw

	consume := func(re *regexp.Regexp) {
		rest = re.ReplaceAllStringFunc(rest, func(match string) string {
			m := re.FindStringSubmatch(match)
			if q.applyOperator(strings.ToLower(m[1]), m[2]) {
				return ""
			}
			return match
		})
	}
	consume(quotedOpRe)
	consume(plainOpRe)

	q.Terms = strings.Join(strings.Fields(rest), " ")
	return q
}

// applyOperator records one operator, reporting whether it was
// recognized and therefore consumed.
func (q *SearchQuery) applyOperator(name, value string) bool {
	switch name {
	case "before":
		if d, err := time.Parse("2006-01-02", value); err == nil {
			d = d.UTC()
			q.PublishedBefore = &d
			q.FilterCount++
			return true
		}
	case "after":
		if d, err := time.Parse("2006-01-02", value); err == nil {
			d = d.UTC()
			q.PublishedAfter = &d
			q.FilterCount++
			return true
		}
	case "channel":
		if value != "" {
			q.ChannelName = value
			q.FilterCount++
			return true
		}
	case "duration":
		if validDurations[value] {
			q.Duration = value
			q.FilterCount++
			return true
		}
	case "order":
		if validOrders[value] {
			q.Order = value
			q.FilterCount++
			return true
		}
	}
	return false
}

// DisplayName renders the query for the digest header, annotated with
// the number of active filters.
func (q SearchQuery) DisplayName() string {
	if q.FilterCount == 0 {
		return q.Terms
	}
	return fmt.Sprintf("%s (%d filters)", q.Terms, q.FilterCount)
}
