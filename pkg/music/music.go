package music

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sunomix/sunomix/pkg/filestore"
	"github.com/sunomix/sunomix/pkg/lyrics"
	"github.com/sunomix/sunomix/pkg/minimax"
)

// ErrUploadFailed is returned when the reference track couldn't be uploaded.
var ErrUploadFailed = errors.New("music: reference upload failed")

// Client is the subset of the minimax client used to generate music.
type Client interface {
	Upload(ctx context.Context, path string, timeout time.Duration, maxRetries int) (*minimax.UploadResult, error)
	GenerateMusic(ctx context.Context, r *minimax.MusicRequest) ([]byte, error)
}

// Track is a generated song stored on disk.
type Track struct {
	Name string
	Path string
	Size int
}

type Generator struct {
	client        Client
	store         *filestore.Store
	debug         bool
	model         string
	setting       minimax.AudioSetting
	uploadTimeout time.Duration
	uploadRetries int
	now           func() time.Time
}

type Config struct {
	Debug        bool
	Model        string
	AudioSetting minimax.AudioSetting
	// UploadTimeout bounds each upload attempt, the client default if zero.
	UploadTimeout time.Duration
	// UploadRetries is the total number of upload attempts.
	UploadRetries int
	Now           func() time.Time
}

func New(client Client, store *filestore.Store, cfg *Config) *Generator {
	model := cfg.Model
	if model == "" {
		model = minimax.DefaultMusicModel
	}
	setting := cfg.AudioSetting
	if setting == (minimax.AudioSetting{}) {
		setting = minimax.DefaultAudioSetting
	}
	retries := cfg.UploadRetries
	if retries <= 0 {
		retries = 3
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Generator{
		client:        client,
		store:         store,
		debug:         cfg.Debug,
		model:         model,
		setting:       setting,
		uploadTimeout: cfg.UploadTimeout,
		uploadRetries: retries,
		now:           now,
	}
}

func (g *Generator) log(format string, args ...interface{}) {
	if g.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

// Generate creates a new song from lyrics using the track at referencePath
// as voice and instrumental reference. Both inputs are optional.
func (g *Generator) Generate(ctx context.Context, text, referencePath string) (*Track, error) {
	req := &minimax.MusicRequest{
		Model:        g.model,
		AudioSetting: g.setting,
	}
	if referencePath != "" {
		up, err := g.client.Upload(ctx, referencePath, g.uploadTimeout, g.uploadRetries)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
		}
		req.ReferVoice = up.VoiceID
		req.ReferInstrumental = up.InstrumentalID
	}
	if text != "" {
		req.Lyrics = lyrics.WrapBlock(text)
	}
	g.log("music: generating with voice=%q instrumental=%q", req.ReferVoice, req.ReferInstrumental)

	audio, err := g.client.GenerateMusic(ctx, req)
	if err != nil {
		return nil, err
	}

	name := filestore.GeneratedMP3(g.now())
	path, err := g.store.Write(name, audio)
	if err != nil {
		return nil, fmt.Errorf("music: couldn't save track: %w", err)
	}
	log.Printf("music: generated %s (%d bytes)\n", name, len(audio))
	return &Track{
		Name: name,
		Path: path,
		Size: len(audio),
	}, nil
}
