package transcript

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
)

const playerResponseMarker = "ytInitialPlayerResponse = "

// captionTrack is one entry of the track list advertised on the watch
// page. Kind "asr" marks auto-generated tracks.
type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"`
	Name         struct {
		SimpleText string `json:"simpleText"`
	} `json:"name"`
}

func (t captionTrack) generated() bool {
	return t.Kind == "asr"
}

type playerResponse struct {
	Captions struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

// cue is one timed caption line.
type cue struct {
	Start float64
	Dur   float64
	Text  string
}

// fetchTrackList scrapes the watch page for the player response and
// returns the advertised caption tracks.
func (s *Source) fetchTrackList(ctx context.Context, videoID string) ([]captionTrack, error) {
	pageURL := fmt.Sprintf("%s/watch?v=%s", s.watchBase, videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("watch page returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}

	raw, err := extractPlayerResponse(string(body))
	if err != nil {
		return nil, err
	}

	var pr playerResponse
	if err := json.Unmarshal([]byte(raw), &pr); err != nil {
		return nil, fmt.Errorf("parsing player response: %w", err)
	}
	if status := pr.PlayabilityStatus.Status; status != "" && status != "OK" {
		return nil, &unavailableError{status: status, reason: pr.PlayabilityStatus.Reason}
	}
	return pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks, nil
}

// unavailableError marks a video the watch page refuses to play
// (region block, age gate, removal).
type unavailableError struct {
	status string
	reason string
}

func (e *unavailableError) Error() string {
	return fmt.Sprintf("video unavailable: %s (%s)", e.status, e.reason)
}

// extractPlayerResponse locates the embedded player response JSON by
// marker and returns the balanced object literal that follows it.
func extractPlayerResponse(page string) (string, error) {
	idx := strings.Index(page, playerResponseMarker)
	if idx < 0 {
		return "", fmt.Errorf("player response marker not found")
	}
	rest := page[idx+len(playerResponseMarker):]
	start := strings.IndexByte(rest, '{')
	if start < 0 {
		return "", fmt.Errorf("player response object not found")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(rest); i++ {
		ch := rest[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return rest[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("player response object truncated")
}

// timedText mirrors the caption XML document.
type timedText struct {
	XMLName xml.Name `xml:"transcript"`
	Texts   []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Body  string  `xml:",chardata"`
	} `xml:"text"`
}

// fetchCues downloads and parses a track's timed-text document.
func (s *Source) fetchCues(ctx context.Context, track captionTrack) ([]cue, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, track.BaseURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timedtext returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}

	var doc timedText
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("parsing timedtext: %w", err)
	}

	cues := make([]cue, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Body))
		if text == "" {
			continue
		}
		cues = append(cues, cue{Start: t.Start, Dur: t.Dur, Text: text})
	}
	return cues, nil
}
