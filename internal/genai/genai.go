// Package genai provides the LLM-backed collaborators for the loan status
// agent using the OpenAI API: intent routing, fallback redirects, and
// goodbye generation.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/ruthvika-mohan/loan-status-agent/internal/models"
)

// ErrNoChoicesReturned indicates the API responded without any completion choices.
var ErrNoChoicesReturned = errors.New("no choices returned")

// ClientInterface defines the LLM operations the flow engine depends on.
// Implementations other than Client are used in tests.
type ClientInterface interface {
	Route(ctx context.Context, utterance string, labels []string) (string, error)
	Redirect(ctx context.Context, utterance string, sess models.Session) (string, error)
	Goodbye(ctx context.Context, sess models.Session) (string, error)
	GoodbyeAfterSMS(ctx context.Context, sess models.Session) (string, error)
}

// chatService defines the minimal chat-completion surface, as a seam for
// test mocks.
type chatService interface {
	Create(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// openAIChatService adapts the OpenAI SDK to chatService.
type openAIChatService struct {
	client openai.Client
}

func (s *openAIChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return s.client.Chat.Completions.New(ctx, params)
}

// Opts holds configuration options for the GenAI client.
type Opts struct {
	APIKey string
	Model  openai.ChatModel
}

// Option defines a configuration option for the GenAI client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key (overrides $OPENAI_API_KEY).
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model used for all operations.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = openai.ChatModel(model) }
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat  chatService
	model openai.ChatModel
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable; a missing key is a configuration
// error and the process should refuse to start.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = openai.ChatModelGPT4oMini
	}

	cli := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	slog.Debug("genai.NewClient: client initialized", "model", cfg.Model)
	return &Client{chat: &openAIChatService{client: cli}, model: cfg.Model}, nil
}

const routeSystemPrompt = `You are a banking assistant routing user intent. ` +
	`Map the user's input to ONE allowed action. Be flexible with variations.

Examples:
- 'give another number' → retry
- 'try again' → retry
- 'different number' → retry
- 'talk to agent' → agent
- 'speak to human' → agent
- 'connect me to someone' → agent
- 'yeah' → yes
- 'sure' → yes
- 'ok' → yes
- 'nah' → no
- 'no thanks' → no
- 'I don't know' → none (unclear intent)
- 'not sure' → none (unclear intent)

Respond ONLY with the action name (lowercase) or 'none'.`

// Route maps free-text input to one of the allowed labels. It returns an
// empty string when the input is unclassifiable; any model output outside
// the label set is treated the same way.
func (c *Client) Route(ctx context.Context, utterance string, labels []string) (string, error) {
	slog.Debug("Client.Route: classifying utterance", "labels", labels)

	userPrompt := fmt.Sprintf("User input: %s\nAllowed actions: %s", utterance, strings.Join(labels, ", "))
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(routeSystemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(0),
	}

	content, err := c.complete(ctx, params)
	if err != nil {
		return "", fmt.Errorf("intent routing failed: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(content))
	for _, label := range labels {
		if answer == label {
			slog.Debug("Client.Route: matched label", "label", label)
			return label, nil
		}
	}
	slog.Debug("Client.Route: no label matched", "answer", answer)
	return "", nil
}

const redirectSystemPrompt = `You are a helpful banking assistant for loan status inquiries. ` +
	`The user has said something that doesn't match what you asked for. Your job is to:
1. Politely acknowledge what they said (if it makes sense)
2. Redirect them back to providing their phone number
3. Keep it brief (1-2 sentences max)
4. Be warm and helpful

Examples:
User: 'What's the weather?'
Response: 'I can't help with weather information, but I can check your loan status if you share your registered phone number.'

User: 'abc123'
Response: 'That doesn't look like a valid phone number. Please enter your registered phone number (digits only).'`

// Redirect generates a brief redirect back to phone number collection when
// the caller's input failed numeric validation.
func (c *Client) Redirect(ctx context.Context, utterance string, sess models.Session) (string, error) {
	slog.Debug("Client.Redirect: generating redirect", "state", sess.State)

	userPrompt := fmt.Sprintf("User said: %s\nCurrent context: Asking for phone number to check loan status\n\nGenerate a brief, helpful redirect message.", utterance)
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(redirectSystemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature:         openai.Float(0.7),
		MaxCompletionTokens: openai.Int(100),
	}

	content, err := c.complete(ctx, params)
	if err != nil {
		return "", fmt.Errorf("fallback redirect failed: %w", err)
	}
	return content, nil
}

const goodbyeSystemPrompt = `You are a helpful banking assistant. ` +
	`The user just checked their loan status and declined an SMS update. ` +
	`Generate a brief, warm goodbye message (1-2 sentences). Be professional but friendly.`

// Goodbye generates a personalized goodbye after the caller declined an SMS.
func (c *Client) Goodbye(ctx context.Context, sess models.Session) (string, error) {
	slog.Debug("Client.Goodbye: generating goodbye", "loan_status", sess.LoanStatus)

	userPrompt := fmt.Sprintf("Context: User's loan is %s. They declined SMS.\n\nGenerate a brief goodbye message.", sess.LoanStatus)
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(goodbyeSystemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature:         openai.Float(0.8),
		MaxCompletionTokens: openai.Int(80),
	}

	content, err := c.complete(ctx, params)
	if err != nil {
		return "", fmt.Errorf("goodbye generation failed: %w", err)
	}
	return content, nil
}

const goodbyeAfterSMSSystemPrompt = `You are a helpful banking assistant. ` +
	`You just sent an SMS with the user's loan status. ` +
	`Generate a brief, friendly closing message (1-2 sentences). Thank them and wish them well.`

// GoodbyeAfterSMS generates a closing message after the status SMS was sent.
func (c *Client) GoodbyeAfterSMS(ctx context.Context, sess models.Session) (string, error) {
	slog.Debug("Client.GoodbyeAfterSMS: generating goodbye", "loan_status", sess.LoanStatus)

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(goodbyeAfterSMSSystemPrompt),
			openai.UserMessage("Generate a brief goodbye after sending SMS."),
		},
		Temperature:         openai.Float(0.8),
		MaxCompletionTokens: openai.Int(80),
	}

	content, err := c.complete(ctx, params)
	if err != nil {
		return "", fmt.Errorf("goodbye generation failed: %w", err)
	}
	return content, nil
}

func (c *Client) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	resp, err := c.chat.Create(ctx, params)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoChoicesReturned
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
