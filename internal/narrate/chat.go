package narrate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/roach88/climq/internal/aggregate"
	"github.com/roach88/climq/internal/dataset"
)

// SystemPrompt instructs the model to restate figures verbatim.
const SystemPrompt = "You are a climate data assistant. Answer the question using only the data provided. " +
	"Never change, round, convert or recompute any figure, and keep every unit as given. " +
	"Use a table or bullet points for comparisons. If data is missing, say so clearly."

// ErrEmptyCompletion is returned for a reply without content.
var ErrEmptyCompletion = errors.New("empty completion")

// ChatOptions configure a ChatClient.
type ChatOptions struct {
	// BaseURL is the API root, e.g. https://api.openai.com/v1.
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`

	// User selects basic auth with User and APIKey. Without it the key is
	// sent as a bearer token.
	User   string `mapstructure:"user"`
	APIKey string `mapstructure:"api_key"`

	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature *float64      `mapstructure:"temperature"`
}

func (o *ChatOptions) defaults() {
	if o.BaseURL == "" {
		o.BaseURL = "https://api.openai.com/v1"
	}
	if o.Model == "" {
		o.Model = "gpt-4.1-mini"
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
}

// ChatClient renders answers through an OpenAI-compatible chat completion
// endpoint. On any failure it logs and returns the plain rendering.
type ChatClient struct {
	url    string
	opts   ChatOptions
	logger *slog.Logger
	do     func(*http.Request) (*http.Response, error)
}

// NewChatClient creates a ChatClient. A nil logger discards.
func NewChatClient(opts ChatOptions, logger *slog.Logger) *ChatClient {
	opts.defaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	hc := &http.Client{Timeout: opts.Timeout}
	return &ChatClient{
		url:    strings.TrimRight(opts.BaseURL, "/") + "/chat/completions",
		opts:   opts,
		logger: logger,
		do:     hc.Do,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Prompt is the user message sent for a question.
func Prompt(question string, answer aggregate.Answer) string {
	facts := Facts(answer)
	if facts == dataset.NoDataText {
		return fmt.Sprintf("No data was found for the question: %q. Say so plainly.", question)
	}
	return "Question: " + question + "\nData:\n" + facts
}

// Render implements Renderer.
func (c *ChatClient) Render(ctx context.Context, question string, answer aggregate.Answer) (string, error) {
	text, err := c.complete(ctx, Prompt(question, answer))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.Warn("narrative service failed, using plain rendering", slog.String("error", err.Error()))
		return Facts(answer), nil
	}
	return text, nil
}

func (c *ChatClient) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.opts.Model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	switch {
	case c.opts.User != "":
		req.SetBasicAuth(c.opts.User, c.opts.APIKey)
	case c.opts.APIKey != "":
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return "", fmt.Errorf("chat upstream %d: %s", resp.StatusCode, strings.TrimSpace(string(slurp)))
	}
	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}
	return out.Choices[0].Message.Content, nil
}
