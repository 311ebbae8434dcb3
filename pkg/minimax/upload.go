package minimax

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"
)

// UploadResult holds the ids assigned to an uploaded reference track.
type UploadResult struct {
	VoiceID        string
	InstrumentalID string
	StatusCode     int
	StatusMsg      string
}

type uploadResponse struct {
	VoiceID        string    `json:"voice_id"`
	InstrumentalID string    `json:"instrumental_id"`
	BaseResp       *baseResp `json:"base_resp"`
}

// Upload sends a local audio file to the music upload endpoint as multipart
// form data. Each attempt is bounded by timeout (the client default if zero)
// and maxRetries is the total number of attempts. A missing file fails before
// any attempt.
func (c *Client) Upload(ctx context.Context, path string, timeout time.Duration, maxRetries int) (*UploadResult, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("minimax: couldn't stat %s: %w", path, err)
	}

	policy := c.retry
	if maxRetries > 0 {
		policy.Attempts = maxRetries
	}

	var body []byte
	if err := c.attempt(ctx, policy, timeout, func(ctx context.Context) error {
		log.Printf("minimax: uploading %s\n", filepath.Base(path))
		b, err := c.uploadAttempt(ctx, path)
		if err != nil {
			return err
		}
		body = b
		return nil
	}); err != nil {
		return nil, err
	}

	var resp uploadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: couldn't unmarshal upload response: %w", ErrMalformedResponse, err)
	}
	if err := resp.BaseResp.err(); err != nil {
		log.Printf("minimax: upload rejected: %v\n", err)
		return nil, err
	}
	c.log("minimax: uploaded %s voice=%s instrumental=%s", path, resp.VoiceID, resp.InstrumentalID)
	return &UploadResult{
		VoiceID:        resp.VoiceID,
		InstrumentalID: resp.InstrumentalID,
		StatusCode:     resp.BaseResp.StatusCode,
		StatusMsg:      resp.BaseResp.StatusMsg,
	}, nil
}

func (c *Client) uploadAttempt(ctx context.Context, path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("minimax: couldn't open %s: %w", path, err)
	}
	defer f.Close()

	// Stream the form through a pipe so the file is never fully in memory
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)
	done := make(chan error, 1)
	go func() {
		err := writeUploadForm(writer, f, filepath.Base(path))
		_ = pw.CloseWithError(err)
		done <- err
	}()
	defer func() {
		// Unblock the writer if the transport stopped reading
		_ = pr.Close()
		<-done
	}()

	u := fmt.Sprintf("%s/v1/music_upload", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, pr)
	if err != nil {
		return nil, fmt.Errorf("minimax: couldn't create request: %w", err)
	}
	req.Header.Set("content-type", writer.FormDataContentType())
	return c.send(req)
}

func writeUploadForm(w *multipart.Writer, r io.Reader, name string) error {
	if err := w.WriteField("purpose", "song"); err != nil {
		return fmt.Errorf("minimax: couldn't write purpose field: %w", err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(name)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("minimax: couldn't create file part: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("minimax: couldn't copy file: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("minimax: couldn't close form: %w", err)
	}
	return nil
}

func escapeQuotes(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '"' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
