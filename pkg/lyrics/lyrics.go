package lyrics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// DefaultModel is the chat model used for polishing.
const DefaultModel = "abab5.5-chat"

// Delimiter marks the start and end of a lyrics block.
const Delimiter = "##"

// ErrEmptyChoices is returned when the completion has no choices.
var ErrEmptyChoices = errors.New("lyrics: no choices in completion")

const systemPrompt = `You are a master of lyrical rhythm. Your task:
1. Read the meaning of the lyrics you are given.
2. Add rhythm and pauses only by inserting line breaks:
   - a single line break marks a short pause
   - an empty line marks a long pause
3. Never change, add or remove any word of the original lyrics.
4. Never add punctuation or any other symbol.
5. Never add explanations or comments.`

// ChatCompleter sends chat completion requests.
type ChatCompleter interface {
	ChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error)
}

type Config struct {
	Debug bool
	Model string
}

// Polisher inserts paragraph breaks in lyrics through a language model
// without altering the words.
type Polisher struct {
	client ChatCompleter
	model  string
	debug  bool
}

func New(client ChatCompleter, cfg *Config) *Polisher {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Polisher{
		client: client,
		model:  model,
		debug:  cfg.Debug,
	}
}

func (p *Polisher) log(format string, args ...interface{}) {
	if p.debug {
		format += "\n"
		log.Printf(format, args...)
	}
}

// Polish returns the polished lyrics wrapped as ##<lyrics>##.
func (p *Polisher) Polish(ctx context.Context, raw string) (string, error) {
	p.log("lyrics: polishing %q", raw)
	resp, err := p.client.ChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: raw},
		},
		Temperature: 0.7,
		TopP:        0.9,
		MaxTokens:   2000,
	})
	if err != nil {
		return "", fmt.Errorf("lyrics: couldn't polish: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyChoices
	}
	polished := Wrap(resp.Choices[0].Message.Content)
	p.log("lyrics: polished %q", polished)
	return polished, nil
}

// Wrap trims s and surrounds it with the delimiter, without extra whitespace.
func Wrap(s string) string {
	return Delimiter + strings.TrimSpace(s) + Delimiter
}

// WrapBlock surrounds s with the delimiter on its own lines, the form the
// music generation endpoint expects. Text already wrapped is unwrapped first.
func WrapBlock(s string) string {
	return Delimiter + "\n" + Unwrap(s) + "\n" + Delimiter
}

// Unwrap removes a surrounding delimiter pair and the whitespace next to it.
func Unwrap(s string) string {
	t := strings.TrimSpace(s)
	if len(t) >= 2*len(Delimiter) && strings.HasPrefix(t, Delimiter) && strings.HasSuffix(t, Delimiter) {
		return strings.TrimSpace(t[len(Delimiter) : len(t)-len(Delimiter)])
	}
	return s
}
