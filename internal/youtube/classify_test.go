package youtube

import (
	"testing"

	"github.com/youtubingest/youtubingest-go/pkg/errors"
)

func TestClassifyVideoForms(t *testing.T) {
	inputs := []string{
		"https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		"https://www.youtube.com/watch?feature=share&v=dQw4w9WgXcQ",
		"https://youtu.be/dQw4w9WgXcQ",
		"https://youtube.com/shorts/dQw4w9WgXcQ",
		"https://www.youtube.com/embed/dQw4w9WgXcQ",
	}
	for _, in := range inputs {
		got, err := Classify(in)
		if err != nil {
			t.Fatalf("Classify(%q): %v", in, err)
		}
		if got.Kind != InputVideo || got.Value != "dQw4w9WgXcQ" {
			t.Errorf("Classify(%q) = %+v", in, got)
		}
	}
}

func TestClassifyPlaylist(t *testing.T) {
	got, err := Classify("https://www.youtube.com/playlist?list=PLabc123_-xyz")
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != InputPlaylist || got.Value != "PLabc123_-xyz" {
		t.Fatalf("got %+v", got)
	}
}

func TestClassifyWatchURLWithListIsVideo(t *testing.T) {
	got, err := Classify("https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PLabc123")
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != InputVideo {
		t.Fatalf("watch URL with list= should classify as video, got %+v", got)
	}
}

func TestClassifyChannelForms(t *testing.T) {
	cases := []struct {
		in    string
		kind  InputKind
		value string
	}{
		{"https://www.youtube.com/channel/UC1234567890abcdefghijkl", InputChannelID, "UC1234567890abcdefghijkl"},
		{"https://www.youtube.com/@NeuralNine", InputHandle, "@NeuralNine"},
		{"@NeuralNine", InputHandle, "@NeuralNine"},
		{"https://www.youtube.com/c/SomeCustomName", InputCustom, "SomeCustomName"},
		{"https://www.youtube.com/user/legacyname", InputUser, "legacyname"},
		{"UC1234567890abcdefghijkl", InputChannelID, "UC1234567890abcdefghijkl"},
	}
	for _, tc := range cases {
		got, err := Classify(tc.in)
		if err != nil {
			t.Fatalf("Classify(%q): %v", tc.in, err)
		}
		if got.Kind != tc.kind || got.Value != tc.value {
			t.Errorf("Classify(%q) = %+v, want %s %s", tc.in, got, tc.kind, tc.value)
		}
	}
}

func TestClassifyURLLikeButUnrecognized(t *testing.T) {
	for _, in := range []string{
		"https://example.com/video",
		"www.vimeo.com/12345",
		"example.org/watch",
	} {
		_, err := Classify(in)
		if errors.CodeOf(err) != errors.CodeInvalidInput {
			t.Errorf("Classify(%q) should be InvalidInput, got %v", in, err)
		}
	}
}

func TestClassifyFreeTextIsSearch(t *testing.T) {
	got, err := Classify("LLM Explained")
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != InputSearch || got.Value != "LLM Explained" {
		t.Fatalf("got %+v", got)
	}
}
