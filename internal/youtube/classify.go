// Package youtube wraps the YouTube Data API v3 surface the ingestion
// pipeline uses, adding quota accounting, response caching, retries,
// and a circuit breaker.
package youtube

import (
	"regexp"
	"strings"

	"github.com/youtubingest/youtubingest-go/pkg/errors"
)

// InputKind is the outcome of classifying a raw input string.
type InputKind string

const (
	InputVideo     InputKind = "video"
	InputPlaylist  InputKind = "playlist"
	InputChannelID InputKind = "channel_id"
	InputHandle    InputKind = "handle"
	InputCustom    InputKind = "custom"
	InputUser      InputKind = "user"
	InputSearch    InputKind = "search"
)

// Classification pairs the detected kind with the extracted identifier
// (video ID, playlist ID, channel reference, or the query itself).
type Classification struct {
	Kind  InputKind
	Value string
}

var (
	videoRe     = regexp.MustCompile(`(?:youtube\.com/watch\?(?:[^#\s]*&)?v=|youtu\.be/|youtube\.com/shorts/|youtube\.com/embed/|youtube\.com/live/)([0-9A-Za-z_-]{11})`)
	playlistRe  = regexp.MustCompile(`[?&]list=([0-9A-Za-z_-]+)`)
	channelIDRe = regexp.MustCompile(`youtube\.com/channel/(UC[0-9A-Za-z_-]{22})`)
	handleRe    = regexp.MustCompile(`youtube\.com/(@[A-Za-z0-9._\-]+)`)
	customRe    = regexp.MustCompile(`youtube\.com/c/([^/?&#\s]+)`)
	userRe      = regexp.MustCompile(`youtube\.com/user/([^/?&#\s]+)`)
	bareIDRe    = regexp.MustCompile(`^UC[0-9A-Za-z_-]{22}$`)
	urlLikeRe   = regexp.MustCompile(`(?i)^(?:https?://|www\.)|\.[a-z]{2,}/`)
)

// Classify applies the ordered pattern probes to an input string. URL
// shapes that match no known pattern are invalid; everything else is a
// search query.
func Classify(input string) (Classification, error) {
	input = strings.TrimSpace(input)

	if m := videoRe.FindStringSubmatch(input); m != nil {
		return Classification{Kind: InputVideo, Value: m[1]}, nil
	}
	if m := playlistRe.FindStringSubmatch(input); m != nil {
		return Classification{Kind: InputPlaylist, Value: m[1]}, nil
	}
	if m := channelIDRe.FindStringSubmatch(input); m != nil {
		return Classification{Kind: InputChannelID, Value: m[1]}, nil
	}
	if m := handleRe.FindStringSubmatch(input); m != nil {
		return Classification{Kind: InputHandle, Value: m[1]}, nil
	}
	if m := customRe.FindStringSubmatch(input); m != nil {
		return Classification{Kind: InputCustom, Value: m[1]}, nil
	}
	if m := userRe.FindStringSubmatch(input); m != nil {
		return Classification{Kind: InputUser, Value: m[1]}, nil
	}
	if strings.HasPrefix(input, "@") && !strings.ContainsAny(input, " /") {
		return Classification{Kind: InputHandle, Value: input}, nil
	}
	if bareIDRe.MatchString(input) {
		return Classification{Kind: InputChannelID, Value: input}, nil
	}
	if urlLikeRe.MatchString(input) {
		return Classification{}, errors.NewInvalidInput("URL not recognized as a video, playlist, or channel").
			WithContext("input", input)
	}
	return Classification{Kind: InputSearch, Value: input}, nil
}
