package suno

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sunomix/sunomix/pkg/sound"
)

// ErrInvalidURL is returned when no song id can be derived from a share link.
var ErrInvalidURL = errors.New("suno: invalid share url")

var songIDRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// Audio is a downloaded song.
type Audio struct {
	SongID   string
	Path     string
	Size     int64
	Duration time.Duration
}

// FileName returns the local file name for a song id.
func FileName(songID string) string {
	return fmt.Sprintf("suno_%s.mp3", songID)
}

// SongID returns the last path segment of a share link.
func SongID(shareURL string) (string, error) {
	p := shareURL
	if u, err := url.Parse(shareURL); err == nil {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	id := p
	if i := strings.LastIndex(p, "/"); i >= 0 {
		id = p[i+1:]
	}
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `\?#%`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, shareURL)
	}
	return id, nil
}

// URL returns the CDN url of a song.
func (f *Fetcher) URL(songID string) string {
	return fmt.Sprintf("%s/%s.mp3", strings.TrimRight(f.cdn, "/"), url.PathEscape(songID))
}

// Download fetches the song behind a share link and stores it as
// outputDir/suno_<id>.mp3, creating outputDir if needed.
func (f *Fetcher) Download(ctx context.Context, shareURL, outputDir string) (*Audio, error) {
	songID, err := SongID(shareURL)
	if err != nil {
		return nil, err
	}
	if f.resolve && !songIDRegex.MatchString(songID) {
		resolved, err := f.Resolve(ctx, shareURL)
		if err != nil {
			log.Printf("suno: couldn't resolve %s, using %s: %v\n", shareURL, songID, err)
		} else {
			songID = resolved
		}
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("suno: couldn't create output directory: %w", err)
	}
	output := filepath.Join(outputDir, FileName(songID))
	u := f.URL(songID)
	log.Printf("suno: downloading %s\n", u)

	var size int64
	if err := f.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		if attempt > 1 {
			log.Printf("suno: download attempt %d/%d\n", attempt, f.retry.Attempts)
		}
		ctx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		n, err := f.download(ctx, u, output)
		if err != nil {
			return err
		}
		size = n
		return nil
	}); err != nil {
		log.Printf("suno: download failed: %v\n", err)
		return nil, err
	}

	audio := &Audio{
		SongID: songID,
		Path:   output,
		Size:   size,
	}
	if d, err := sound.Duration(output); err != nil {
		log.Printf("suno: couldn't probe %s: %v\n", output, err)
	} else {
		audio.Duration = d
	}
	log.Printf("suno: downloaded %s (%d bytes, %s)\n", output, size, audio.Duration)
	return audio, nil
}

func (f *Fetcher) download(ctx context.Context, u, output string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("suno: couldn't create request: %w", err)
	}
	addHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("suno: couldn't GET %s: %w", u, err)
	}
	defer resp.Body.Close()
	f.log("suno: response GET %s %d", u, resp.StatusCode)
	if resp.StatusCode != http.StatusOK {
		return 0, &StatusError{Code: resp.StatusCode, URL: u}
	}

	out, err := os.Create(output)
	if err != nil {
		return 0, fmt.Errorf("suno: couldn't create %s: %w", output, err)
	}
	n, err := copyChunks(out, resp.Body)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(output)
		return 0, fmt.Errorf("suno: couldn't write %s: %w", output, err)
	}
	return n, nil
}

// copyChunks copies src into dst in fixed size chunks.
func copyChunks(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, chunkSize)
	var written int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			w, werr := dst.Write(buf[:n])
			written += int64(w)
			if werr != nil {
				return written, werr
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

// Resolve reads the song id from a share page. The og:audio meta tag is
// preferred, then the last segment of the final url after redirects.
func (f *Fetcher) Resolve(ctx context.Context, shareURL string) (string, error) {
	var id string
	err := f.retry.Do(ctx, func(ctx context.Context, _ int) error {
		ctx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, shareURL, nil)
		if err != nil {
			return fmt.Errorf("suno: couldn't create request: %w", err)
		}
		addHeaders(req)
		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("suno: couldn't GET %s: %w", shareURL, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return &StatusError{Code: resp.StatusCode, URL: shareURL}
		}
		doc, err := goquery.NewDocumentFromReader(resp.Body)
		if err != nil {
			return fmt.Errorf("suno: couldn't parse share page: %w", err)
		}
		if audio, ok := doc.Find(`meta[property="og:audio"]`).Attr("content"); ok {
			if candidate := audioID(audio); candidate != "" {
				id = candidate
				return nil
			}
		}
		candidate, err := SongID(resp.Request.URL.String())
		if err != nil {
			return err
		}
		id = candidate
		return nil
	})
	if err != nil {
		return "", err
	}
	f.log("suno: resolved %s to %s", shareURL, id)
	return id, nil
}

func audioID(audioURL string) string {
	u, err := url.Parse(audioURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	id := strings.TrimSuffix(base, path.Ext(base))
	if !songIDRegex.MatchString(id) {
		return ""
	}
	return id
}
