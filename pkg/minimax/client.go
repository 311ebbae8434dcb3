package minimax

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/sunomix/sunomix/pkg/retry"
)

const (
	// DefaultBaseURL is the MiniMax API base URL.
	DefaultBaseURL = "https://api.minimax.chat"
	// DefaultTimeout is the per attempt timeout.
	DefaultTimeout = 60 * time.Second
)

// Client talks to the MiniMax upload, music generation and chat completion
// endpoints.
type Client struct {
	client  *http.Client
	debug   bool
	key     string
	group   string
	baseURL string
	timeout time.Duration
	retry   retry.Policy
}

type Config struct {
	Debug   bool
	Client  *http.Client
	Key     string
	GroupID string
	BaseURL string
	Timeout time.Duration
	Retry   retry.Policy
}

// New returns a client. Both the API key and the group id are required.
func New(cfg *Config) (*Client, error) {
	if cfg.Key == "" {
		return nil, errors.New("minimax: missing api key")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("minimax: missing group id")
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	policy := cfg.Retry
	if policy.Attempts == 0 {
		policy.Attempts = retry.Default().Attempts
	}
	return &Client{
		client:  client,
		debug:   cfg.Debug,
		key:     cfg.Key,
		group:   cfg.GroupID,
		baseURL: baseURL,
		timeout: timeout,
		retry:   policy,
	}, nil
}

func (c *Client) log(format string, args ...interface{}) {
	if c.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

// attempt runs fn under the retry policy giving each attempt its own timeout.
func (c *Client) attempt(ctx context.Context, policy retry.Policy, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		timeout = c.timeout
	}
	return policy.Do(ctx, func(ctx context.Context, n int) error {
		if n > 1 {
			log.Printf("minimax: attempt %d/%d\n", n, policy.Attempts)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(ctx)
	})
}

// send performs a single request and returns the body of a 200 response.
func (c *Client) send(req *http.Request) ([]byte, error) {
	req.Header.Set("authorization", fmt.Sprintf("Bearer %s", c.key))
	req.Header.Set("accept", "application/json")

	c.log("minimax: do %s %s", req.Method, req.URL.Path)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("minimax: couldn't %s %s: %w", req.Method, req.URL.Path, classify(err))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("minimax: couldn't read response body: %w", classify(err))
	}
	c.log("minimax: response %s %s %d %s", req.Method, req.URL.Path, resp.StatusCode, truncate(string(body), 500))
	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp.StatusCode, body)
	}
	return body, nil
}

// classify wraps a transport error with ErrTimeout or ErrTransport.
func classify(err error) error {
	if retry.IsTimeout(err) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
