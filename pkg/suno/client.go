package suno

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/sunomix/sunomix/pkg/retry"
)

const (
	// DefaultCDN hosts the mp3 files of shared songs.
	DefaultCDN = "https://cdn1.suno.ai"
	// DefaultTimeout bounds each download attempt.
	DefaultTimeout = 2 * time.Minute

	chunkSize = 8 * 1024
	userAgent = `Mozilla/5.0 (Linux; Android) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/88.0.4324.109 Safari/537.36 CrKey/1.54.248666`
)

// Fetcher downloads shared songs from the Suno CDN.
type Fetcher struct {
	client  *http.Client
	debug   bool
	cdn     string
	timeout time.Duration
	retry   retry.Policy
	resolve bool
}

type Config struct {
	Debug  bool
	Client *http.Client
	// CDN base url, DefaultCDN if empty.
	CDN     string
	Timeout time.Duration
	Retry   retry.Policy
	// Resolve share links whose last segment isn't a song id by reading the
	// share page.
	Resolve bool
}

func New(cfg *Config) *Fetcher {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	cdn := cfg.CDN
	if cdn == "" {
		cdn = DefaultCDN
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		client:  client,
		debug:   cfg.Debug,
		cdn:     cdn,
		timeout: timeout,
		retry:   cfg.Retry,
		resolve: cfg.Resolve,
	}
}

func (f *Fetcher) log(format string, args ...interface{}) {
	if f.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

// StatusError is returned when the CDN answers with something other than 200.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("suno: GET %s returned %d", e.URL, e.Code)
}

// HTTPStatus returns the response status code.
func (e *StatusError) HTTPStatus() int {
	return e.Code
}

// addHeaders makes the request look like a browser, the CDN rejects the
// default client headers.
func addHeaders(req *http.Request) {
	req.Header.Set("accept", "*/*")
	req.Header.Set("accept-encoding", "identity;q=1, *;q=0")
	req.Header.Set("referer", "https://suno.com/")
	req.Header.Set("user-agent", userAgent)
}
