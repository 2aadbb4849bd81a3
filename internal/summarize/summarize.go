package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

// ErrDisabled is returned by every operation when no API key is configured.
var ErrDisabled = errors.New("summarization is not configured")

const (
	defaultModel = "gpt-4o-mini"

	summarySystemPrompt = "You summarize meeting and lecture transcripts. " +
		"Produce a concise summary in plain prose, keeping concrete facts, " +
		"names, and decisions. Do not invent content that is not in the transcript."

	qaSystemPrompt = "You answer questions strictly from the provided transcript. " +
		"If the transcript does not contain the answer, say so."
)

// Summarizer produces summaries and answers over a finished transcript.
type Summarizer struct {
	client  oai.Client
	model   string
	enabled bool
}

// Option configures the Summarizer.
type Option func(*Summarizer, *[]option.RequestOption)

// WithModel overrides the default chat model.
func WithModel(model string) Option {
	return func(s *Summarizer, _ *[]option.RequestOption) {
		if model != "" {
			s.model = model
		}
	}
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(_ *Summarizer, reqOpts *[]option.RequestOption) {
		if url != "" {
			*reqOpts = append(*reqOpts, option.WithBaseURL(url))
		}
	}
}

// New constructs a Summarizer. An empty apiKey yields a disabled instance
// whose operations return ErrDisabled, so callers need no nil checks.
func New(apiKey string, opts ...Option) *Summarizer {
	s := &Summarizer{model: defaultModel}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, opt := range opts {
		opt(s, &reqOpts)
	}
	if apiKey == "" {
		return s
	}
	s.client = oai.NewClient(reqOpts...)
	s.enabled = true
	return s
}

// Enabled reports whether an API key was configured.
func (s *Summarizer) Enabled() bool {
	return s.enabled
}

// Summarize returns a concise summary of the transcript.
func (s *Summarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", fmt.Errorf("transcript must not be empty")
	}
	return s.complete(ctx, summarySystemPrompt,
		fmt.Sprintf("Summarize this transcript:\n\n%s", transcript))
}

// Answer responds to a question using only the transcript as context.
func (s *Summarizer) Answer(ctx context.Context, transcript, question string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", fmt.Errorf("transcript must not be empty")
	}
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("question must not be empty")
	}
	return s.complete(ctx, qaSystemPrompt,
		fmt.Sprintf("Transcript:\n\n%s\n\nQuestion: %s", transcript, question))
}

func (s *Summarizer) complete(ctx context.Context, system, user string) (string, error) {
	if !s.enabled {
		return "", ErrDisabled
	}

	params := oai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(user),
		},
		Temperature: param.NewOpt(0.2),
	}
	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
