package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/sunomix/sunomix/pkg/music"
	"github.com/sunomix/sunomix/pkg/suno"
)

type fake struct {
	calls       []string
	downloadErr error
	polishErr   error
	generateErr error
	gotLyrics   string
	gotRef      string
}

func (f *fake) Download(ctx context.Context, shareURL, outputDir string) (*suno.Audio, error) {
	f.calls = append(f.calls, StageDownload)
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return &suno.Audio{SongID: "abc123", Path: outputDir + "/suno_abc123.mp3"}, nil
}

func (f *fake) Polish(ctx context.Context, raw string) (string, error) {
	f.calls = append(f.calls, StagePolish)
	if f.polishErr != nil {
		return "", f.polishErr
	}
	return "##" + raw + "##", nil
}

func (f *fake) Generate(ctx context.Context, lyrics, referencePath string) (*music.Track, error) {
	f.calls = append(f.calls, StageGeneration)
	f.gotLyrics = lyrics
	f.gotRef = referencePath
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	return &music.Track{Name: "generated_music_20240517_093005_abcdef.mp3", Size: 3}, nil
}

func TestRun(t *testing.T) {
	f := &fake{}
	p := New(f, f, f, &Config{DownloadDir: "dl"})
	res, err := p.Run(context.Background(), Request{SunoURL: "https://suno.com/song/abc123", Lyrics: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if res.AudioURL != "/audio/generated_music_20240517_093005_abcdef.mp3" {
		t.Errorf("audio url = %q", res.AudioURL)
	}
	if res.PolishedLyrics != "##hello##" {
		t.Errorf("polished = %q", res.PolishedLyrics)
	}
	if f.gotLyrics != "##hello##" {
		t.Errorf("generator lyrics = %q", f.gotLyrics)
	}
	if f.gotRef != "dl/suno_abc123.mp3" {
		t.Errorf("generator reference = %q", f.gotRef)
	}
	if res.Source.SongID != "abc123" {
		t.Errorf("source = %+v", res.Source)
	}
}

func TestRunStops(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name      string
		fake      *fake
		stage     string
		msg       string
		wantCalls int
	}{
		{name: "download", fake: &fake{downloadErr: cause}, stage: StageDownload, msg: "download failed", wantCalls: 1},
		{name: "polish", fake: &fake{polishErr: cause}, stage: StagePolish, msg: "polish failed", wantCalls: 2},
		{name: "generation", fake: &fake{generateErr: cause}, stage: StageGeneration, msg: "generation failed", wantCalls: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.fake, tt.fake, tt.fake, &Config{})
			res, err := p.Run(context.Background(), Request{SunoURL: "u", Lyrics: "l"})
			if res != nil {
				t.Errorf("result = %+v; want nil", res)
			}
			var serr *StageError
			if !errors.As(err, &serr) {
				t.Fatalf("err = %v; want StageError", err)
			}
			if serr.Stage != tt.stage {
				t.Errorf("stage = %q; want %q", serr.Stage, tt.stage)
			}
			if err.Error() != tt.msg {
				t.Errorf("message = %q; want %q", err.Error(), tt.msg)
			}
			if !errors.Is(err, cause) {
				t.Errorf("cause lost: %v", err)
			}
			if len(tt.fake.calls) != tt.wantCalls {
				t.Errorf("calls = %v; want %d", tt.fake.calls, tt.wantCalls)
			}
		})
	}
}

func TestRunWithoutLyrics(t *testing.T) {
	f := &fake{}
	p := New(f, f, f, &Config{DownloadDir: "dl"})
	res, err := p.Run(context.Background(), Request{SunoURL: "https://suno.com/song/abc123"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{StageDownload, StageGeneration}
	if len(f.calls) != len(want) || f.calls[0] != want[0] || f.calls[1] != want[1] {
		t.Errorf("calls = %v; want %v", f.calls, want)
	}
	if f.gotLyrics != "" || res.PolishedLyrics != "" {
		t.Errorf("lyrics = %q polished = %q; want empty", f.gotLyrics, res.PolishedLyrics)
	}
	if f.gotRef != "dl/suno_abc123.mp3" {
		t.Errorf("generator reference = %q", f.gotRef)
	}
}
