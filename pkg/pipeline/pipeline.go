package pipeline

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sunomix/sunomix/pkg/music"
	"github.com/sunomix/sunomix/pkg/suno"
)

// Stage names.
const (
	StageDownload   = "download"
	StagePolish     = "polish"
	StageGeneration = "generation"
)

type Fetcher interface {
	Download(ctx context.Context, shareURL, outputDir string) (*suno.Audio, error)
}

type Polisher interface {
	Polish(ctx context.Context, raw string) (string, error)
}

type Generator interface {
	Generate(ctx context.Context, lyrics, referencePath string) (*music.Track, error)
}

// StageError reports the stage where a run stopped. Its message is short
// enough to be shown to end users, the cause is kept for logs and errors.Is.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed", e.Stage)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

type Request struct {
	SunoURL string
	Lyrics  string
}

type Result struct {
	AudioURL       string
	PolishedLyrics string
	Track          *music.Track
	Source         *suno.Audio
}

type Pipeline struct {
	fetcher     Fetcher
	polisher    Polisher
	generator   Generator
	downloadDir string
	debug       bool
}

type Config struct {
	Debug bool
	// DownloadDir receives the reference tracks.
	DownloadDir string
}

func New(fetcher Fetcher, polisher Polisher, generator Generator, cfg *Config) *Pipeline {
	dir := cfg.DownloadDir
	if dir == "" {
		dir = "downloads"
	}
	return &Pipeline{
		fetcher:     fetcher,
		polisher:    polisher,
		generator:   generator,
		downloadDir: dir,
		debug:       cfg.Debug,
	}
}

func (p *Pipeline) log(format string, args ...interface{}) {
	if p.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

// Run downloads the reference song, polishes the lyrics and generates a new
// song from both. It stops at the first failing stage. Empty lyrics skip the
// polish stage.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	source, err := p.fetcher.Download(ctx, req.SunoURL, p.downloadDir)
	if err != nil {
		return nil, p.fail(StageDownload, err)
	}
	p.log("pipeline: downloaded %s to %s", req.SunoURL, source.Path)

	// Without lyrics the new song only follows the reference track
	var polished string
	if strings.TrimSpace(req.Lyrics) != "" {
		polished, err = p.polisher.Polish(ctx, req.Lyrics)
		if err != nil {
			return nil, p.fail(StagePolish, err)
		}
		p.log("pipeline: polished lyrics %q", polished)
	}

	track, err := p.generator.Generate(ctx, polished, source.Path)
	if err != nil {
		return nil, p.fail(StageGeneration, err)
	}

	log.Printf("pipeline: generated %s from %s in %s\n", track.Name, req.SunoURL, time.Since(start).Round(time.Millisecond))
	return &Result{
		AudioURL:       "/audio/" + track.Name,
		PolishedLyrics: polished,
		Track:          track,
		Source:         source,
	}, nil
}

func (p *Pipeline) fail(stage string, err error) error {
	log.Printf("pipeline: %s failed: %v\n", stage, err)
	return &StageError{Stage: stage, Err: err}
}
