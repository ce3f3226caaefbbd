package domain

import "time"

// Transcript is a selected and formatted caption track.
type Transcript struct {
	Language      string `json:"language"`
	FormattedText string `json:"formatted_text"`
}

// VideoRecord is one video's contribution to an ingest result.
type VideoRecord struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	DescriptionRaw   string      `json:"-"`
	DescriptionClean string      `json:"description"`
	ChannelID        string      `json:"channel_id"`
	ChannelTitle     string      `json:"channel_title"`
	PublishedAt      time.Time   `json:"published_at"`
	Duration         int         `json:"duration_seconds"`
	Tags             []string    `json:"tags,omitempty"`
	Transcript       *Transcript `json:"transcript,omitempty"`
	OriginIndex      int         `json:"-"`
}

// URL returns the short watch URL for the video.
func (v *VideoRecord) URL() string {
	return "https://youtu.be/" + v.ID
}
