package sunomix

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sunomix/sunomix/pkg/cmd/web"
	"github.com/sunomix/sunomix/pkg/fhttp"
	"github.com/sunomix/sunomix/pkg/filestore"
	"github.com/sunomix/sunomix/pkg/lyrics"
	"github.com/sunomix/sunomix/pkg/minimax"
	"github.com/sunomix/sunomix/pkg/music"
	"github.com/sunomix/sunomix/pkg/pipeline"
	"github.com/sunomix/sunomix/pkg/retry"
	"github.com/sunomix/sunomix/pkg/suno"
)

type Config struct {
	Debug bool
	Proxy string
	// Impersonate sends CDN requests with a browser TLS fingerprint.
	Impersonate bool

	Addr          string
	ServerTimeout time.Duration
	Output        string
	Downloads     string

	MinimaxKey   string
	MinimaxGroup string
	MinimaxURL   string
	ChatModel    string
	MusicModel   string

	Timeout         time.Duration
	DownloadTimeout time.Duration
	Retries         int
	RetryWait       time.Duration
	RetryTransient  bool

	CDN     string
	Resolve bool
}

// App holds the wired components.
type App struct {
	Client    *minimax.Client
	Store     *filestore.Store
	Fetcher   *suno.Fetcher
	Polisher  *lyrics.Polisher
	Generator *music.Generator
	Pipeline  *pipeline.Pipeline
}

// Credentials returns the MiniMax key and group id, falling back to the
// MINIMAX_API_KEY and MINIMAX_GROUP_ID environment variables.
func (c *Config) Credentials() (string, string, error) {
	key := c.MinimaxKey
	if key == "" {
		key = os.Getenv("MINIMAX_API_KEY")
	}
	group := c.MinimaxGroup
	if group == "" {
		group = os.Getenv("MINIMAX_GROUP_ID")
	}
	if key == "" || group == "" {
		return "", "", errors.New("sunomix: minimax key and group id are required")
	}
	return key, group, nil
}

// RetryPolicy returns the policy shared by every upstream call.
func (c *Config) RetryPolicy() retry.Policy {
	p := retry.Policy{
		Attempts: c.Retries,
		Debug:    c.Debug,
	}
	if p.Attempts <= 0 {
		p.Attempts = retry.Default().Attempts
	}
	if c.RetryWait > 0 {
		p.Backoff = []time.Duration{c.RetryWait, 2 * c.RetryWait, 4 * c.RetryWait}
	}
	if c.RetryTransient {
		p.Retryable = retry.IsTransient
	}
	return p
}

// DownloadRetryPolicy is RetryPolicy without transient status retries, CDN
// answers other than 200 are final.
func (c *Config) DownloadRetryPolicy() retry.Policy {
	p := c.RetryPolicy()
	p.Retryable = nil
	return p
}

func newHTTPClient(proxy string) (*http.Client, error) {
	client := &http.Client{}
	if proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("sunomix: invalid proxy URL: %w", err)
		}
		client.Transport = &http.Transport{
			Proxy: http.ProxyURL(u),
		}
	}
	return client, nil
}

// New wires all the components from cfg.
func New(cfg *Config) (*App, error) {
	key, group, err := cfg.Credentials()
	if err != nil {
		return nil, err
	}
	output := cfg.Output
	if output == "" {
		output = "generated"
	}
	store, err := filestore.New(output)
	if err != nil {
		return nil, err
	}

	httpClient, err := newHTTPClient(cfg.Proxy)
	if err != nil {
		return nil, err
	}
	cdnClient := httpClient
	if cfg.Impersonate {
		cdnClient, err = fhttp.NewClient(cfg.DownloadTimeout, cfg.Proxy)
		if err != nil {
			return nil, err
		}
	}

	policy := cfg.RetryPolicy()
	client, err := minimax.New(&minimax.Config{
		Debug:   cfg.Debug,
		Client:  httpClient,
		Key:     key,
		GroupID: group,
		BaseURL: cfg.MinimaxURL,
		Timeout: cfg.Timeout,
		Retry:   policy,
	})
	if err != nil {
		return nil, err
	}

	fetcher := suno.New(&suno.Config{
		Debug:   cfg.Debug,
		Client:  cdnClient,
		CDN:     cfg.CDN,
		Timeout: cfg.DownloadTimeout,
		Retry:   cfg.DownloadRetryPolicy(),
		Resolve: cfg.Resolve,
	})
	polisher := lyrics.New(client, &lyrics.Config{
		Debug: cfg.Debug,
		Model: cfg.ChatModel,
	})
	generator := music.New(client, store, &music.Config{
		Debug:         cfg.Debug,
		Model:         cfg.MusicModel,
		UploadTimeout: cfg.Timeout,
		UploadRetries: policy.Attempts,
	})
	p := pipeline.New(fetcher, polisher, generator, &pipeline.Config{
		Debug:       cfg.Debug,
		DownloadDir: cfg.Downloads,
	})
	return &App{
		Client:    client,
		Store:     store,
		Fetcher:   fetcher,
		Polisher:  polisher,
		Generator: generator,
		Pipeline:  p,
	}, nil
}

// Serve runs the web service until the context is done.
func Serve(ctx context.Context, cfg *Config) error {
	app, err := New(cfg)
	if err != nil {
		return err
	}
	return web.Serve(ctx, app.Pipeline, app.Store, &web.Config{
		Debug:   cfg.Debug,
		Addr:    cfg.Addr,
		Timeout: cfg.ServerTimeout,
	})
}

// Download fetches a shared song into the downloads directory.
func Download(ctx context.Context, cfg *Config, shareURL string) error {
	app, err := New(cfg)
	if err != nil {
		return err
	}
	downloads := cfg.Downloads
	if downloads == "" {
		downloads = "downloads"
	}
	audio, err := app.Fetcher.Download(ctx, shareURL, downloads)
	if err != nil {
		return fmt.Errorf("sunomix: couldn't download %s: %w", shareURL, err)
	}
	fmt.Println(audio.Path)
	return nil
}

// Polish prints the polished version of the given lyrics.
func Polish(ctx context.Context, cfg *Config, text string) error {
	app, err := New(cfg)
	if err != nil {
		return err
	}
	polished, err := app.Polisher.Polish(ctx, text)
	if err != nil {
		return fmt.Errorf("sunomix: couldn't polish lyrics: %w", err)
	}
	fmt.Println(polished)
	return nil
}

// Generate runs the whole pipeline and prints the generated file path. With
// empty lyrics the song is generated from the reference track alone.
func Generate(ctx context.Context, cfg *Config, shareURL, text string) error {
	app, err := New(cfg)
	if err != nil {
		return err
	}
	res, err := app.Pipeline.Run(ctx, pipeline.Request{
		SunoURL: shareURL,
		Lyrics:  text,
	})
	if err != nil {
		return fmt.Errorf("sunomix: %w", err)
	}
	if res.PolishedLyrics != "" {
		log.Printf("polished lyrics:\n%s\n", res.PolishedLyrics)
	}
	fmt.Println(res.Track.Path)
	return nil
}

// Separate splits an uploaded MiniMax file into voice and instrumental ids.
func Separate(ctx context.Context, cfg *Config, fileID string) error {
	app, err := New(cfg)
	if err != nil {
		return err
	}
	res, err := app.Client.Separate(ctx, fileID)
	if err != nil {
		return fmt.Errorf("sunomix: couldn't separate %s: %w", fileID, err)
	}
	fmt.Printf("voice_id: %s\ninstrumental_id: %s\n", res.VoiceID, res.InstrumentalID)
	return nil
}
