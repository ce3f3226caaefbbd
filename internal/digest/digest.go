// Package digest renders the final LLM-oriented text document from an
// ordered set of video records.
package digest

import (
	"fmt"
	"strings"
	"time"

	"github.com/youtubingest/youtubingest-go/internal/domain"
	"github.com/youtubingest/youtubingest-go/internal/textproc"
)

// Options are the request flags the rendering depends on.
type Options struct {
	IncludeDescription bool
	IncludeTranscript  bool
}

// Build renders the digest. It is a pure function of its inputs: the
// same source name, records, and flags always produce identical bytes.
func Build(sourceName string, videos []*domain.VideoRecord, opts Options) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Source: %s\n", sourceName)
	fmt.Fprintf(&b, "# Videos: %d\n", len(videos))

	for i, v := range videos {
		b.WriteString("\n")
		fmt.Fprintf(&b, "=== [%d] %s (%s) ===\n", i+1, v.Title, v.ID)
		fmt.Fprintf(&b, "URL: %s\n", v.URL())
		fmt.Fprintf(&b, "Channel: %s\n", v.ChannelTitle)
		fmt.Fprintf(&b, "Published: %s\n", v.PublishedAt.UTC().Format(time.RFC3339))
		fmt.Fprintf(&b, "Duration: %s\n", textproc.FormatDuration(v.Duration))
		fmt.Fprintf(&b, "Tags: %s\n", formatTags(v.Tags))

		if opts.IncludeDescription && v.DescriptionClean != "" {
			b.WriteString("\nDescription:\n")
			b.WriteString(v.DescriptionClean)
			b.WriteString("\n")
		}
		if opts.IncludeTranscript && v.Transcript != nil && v.Transcript.FormattedText != "" {
			fmt.Fprintf(&b, "\nTranscript (%s):\n", v.Transcript.Language)
			b.WriteString(v.Transcript.FormattedText)
			b.WriteString("\n")
		}
	}

	return b.String()
}

func formatTags(tags []string) string {
	if len(tags) == 0 {
		return "None"
	}
	return strings.Join(tags, ", ")
}
