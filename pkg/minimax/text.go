package minimax

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// chatResponse is an OpenAI style completion with MiniMax's status envelope.
type chatResponse struct {
	openai.ChatCompletionResponse
	BaseResp *baseResp `json:"base_resp"`
}

// ChatCompletion sends a non streaming chat completion request. The response
// must carry a successful base_resp envelope.
func (c *Client) ChatCompletion(ctx context.Context, in openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	in.Stream = false
	js, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("minimax: couldn't marshal chat request: %w", err)
	}
	c.log("minimax: chat request %s", truncate(string(js), 500))

	var body []byte
	if err := c.attempt(ctx, c.retry, 0, func(ctx context.Context) error {
		u := fmt.Sprintf("%s/v1/text/chatcompletion_v2", c.baseURL)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(js))
		if err != nil {
			return fmt.Errorf("minimax: couldn't create request: %w", err)
		}
		req.Header.Set("content-type", "application/json")
		req.Header.Set("mm-group-id", c.group)
		b, err := c.send(req)
		if err != nil {
			return err
		}
		body = b
		return nil
	}); err != nil {
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: couldn't unmarshal chat response: %w", ErrMalformedResponse, err)
	}
	if err := resp.BaseResp.err(); err != nil {
		log.Printf("minimax: chat completion rejected: %v\n", err)
		return nil, err
	}
	return &resp.ChatCompletionResponse, nil
}
