package minimax

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
)

// ErrSeparationFailed is returned when the separation endpoint doesn't report
// success.
var ErrSeparationFailed = errors.New("minimax: separation failed")

type separateResponse struct {
	Status         string `json:"status"`
	Message        string `json:"message"`
	VoiceID        string `json:"voice_id"`
	InstrumentalID string `json:"instrumental_id"`
}

// Separate splits an uploaded file into its voice and instrumental tracks.
func (c *Client) Separate(ctx context.Context, fileID string) (*UploadResult, error) {
	if fileID == "" {
		return nil, errors.New("minimax: missing file id")
	}
	js, err := json.Marshal(map[string]string{"file_id": fileID})
	if err != nil {
		return nil, fmt.Errorf("minimax: couldn't marshal separate request: %w", err)
	}

	var body []byte
	if err := c.attempt(ctx, c.retry, 0, func(ctx context.Context) error {
		u := fmt.Sprintf("%s/v1/music_upload/separate", c.baseURL)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(js))
		if err != nil {
			return fmt.Errorf("minimax: couldn't create request: %w", err)
		}
		req.Header.Set("content-type", "application/json")
		b, err := c.send(req)
		if err != nil {
			return err
		}
		body = b
		return nil
	}); err != nil {
		return nil, err
	}

	var resp separateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: couldn't unmarshal separate response: %w", ErrMalformedResponse, err)
	}
	if resp.Status != "success" {
		msg := resp.Message
		if msg == "" {
			msg = "unknown error"
		}
		log.Printf("minimax: separation of %s failed: %s\n", fileID, msg)
		return nil, fmt.Errorf("%w: %s", ErrSeparationFailed, msg)
	}
	c.log("minimax: separated %s voice=%s instrumental=%s", fileID, resp.VoiceID, resp.InstrumentalID)
	return &UploadResult{
		VoiceID:        resp.VoiceID,
		InstrumentalID: resp.InstrumentalID,
	}, nil
}
