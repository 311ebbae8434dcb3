package minimax

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
)

// DefaultMusicModel is the model used when none is given.
const DefaultMusicModel = "music-01"

// AudioSetting is sent as a JSON string inside the generation form.
type AudioSetting struct {
	SampleRate int    `json:"sample_rate"`
	Bitrate    int    `json:"bitrate"`
	Format     string `json:"format"`
}

// DefaultAudioSetting is 44.1 kHz, 256 kbps mp3.
var DefaultAudioSetting = AudioSetting{
	SampleRate: 44100,
	Bitrate:    256000,
	Format:     "mp3",
}

// MusicRequest is forwarded as is, empty fields are sent as empty strings.
type MusicRequest struct {
	ReferVoice        string
	ReferInstrumental string
	Lyrics            string
	Model             string
	AudioSetting      AudioSetting
}

// Form returns the url encoded form sent to the generation endpoint.
func (r *MusicRequest) Form() (url.Values, error) {
	model := r.Model
	if model == "" {
		model = DefaultMusicModel
	}
	setting := r.AudioSetting
	if setting == (AudioSetting{}) {
		setting = DefaultAudioSetting
	}
	js, err := json.Marshal(setting)
	if err != nil {
		return nil, fmt.Errorf("minimax: couldn't marshal audio setting: %w", err)
	}
	return url.Values{
		"refer_voice":        {r.ReferVoice},
		"refer_instrumental": {r.ReferInstrumental},
		"lyrics":             {r.Lyrics},
		"model":              {model},
		"audio_setting":      {string(js)},
	}, nil
}

type musicResponse struct {
	Data *struct {
		Audio  string `json:"audio"`
		Status int    `json:"status"`
	} `json:"data"`
	BaseResp *baseResp `json:"base_resp"`
}

// GenerateMusic calls the generation endpoint and returns the decoded audio.
func (c *Client) GenerateMusic(ctx context.Context, r *MusicRequest) ([]byte, error) {
	form, err := r.Form()
	if err != nil {
		return nil, err
	}
	encoded := form.Encode()
	c.log("minimax: generation request %s", truncate(encoded, 500))

	var body []byte
	if err := c.attempt(ctx, c.retry, 0, func(ctx context.Context) error {
		u := fmt.Sprintf("%s/v1/music_generation", c.baseURL)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(encoded))
		if err != nil {
			return fmt.Errorf("minimax: couldn't create request: %w", err)
		}
		req.Header.Set("content-type", "application/x-www-form-urlencoded")
		b, err := c.send(req)
		if err != nil {
			return err
		}
		body = b
		return nil
	}); err != nil {
		return nil, err
	}

	var resp musicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: couldn't unmarshal generation response: %w", ErrMalformedResponse, err)
	}
	if resp.Data == nil || resp.Data.Audio == "" {
		msg := "unknown error"
		if resp.BaseResp != nil && resp.BaseResp.StatusMsg != "" {
			msg = resp.BaseResp.StatusMsg
		}
		if resp.BaseResp != nil && resp.BaseResp.StatusCode != 0 {
			err := &APIError{StatusCode: resp.BaseResp.StatusCode, StatusMsg: msg}
			log.Printf("minimax: generation rejected: %v\n", err)
			return nil, err
		}
		log.Printf("minimax: generation returned no audio: %s\n", msg)
		return nil, fmt.Errorf("%w: %s", ErrMissingAudio, msg)
	}
	audio, err := decodeHexAudio(resp.Data.Audio)
	if err != nil {
		return nil, fmt.Errorf("%w: couldn't decode audio: %w", ErrMalformedResponse, err)
	}
	return audio, nil
}

func decodeHexAudio(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	return hex.DecodeString(s)
}
