package genai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/openai/openai-go"

	"github.com/ruthvika-mohan/loan-status-agent/internal/models"
)

// mockChatService implements chatService for testing.
type mockChatService struct {
	resp       *openai.ChatCompletion
	err        error
	lastParams openai.ChatCompletionNewParams
}

func (m *mockChatService) Create(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	m.lastParams = params
	return m.resp, m.err
}

func completionWith(content string) *openai.ChatCompletion {
	return &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestRoute_MatchesLabel(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: completionWith("retry")}}
	got, err := client.Route(context.Background(), "let me try another number", []string{"retry", "agent"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "retry" {
		t.Errorf("expected 'retry', got '%s'", got)
	}
}

func TestRoute_NormalizesModelOutput(t *testing.T) {
	// Model output with case and whitespace noise still matches.
	client := &Client{chat: &mockChatService{resp: completionWith("  YES \n")}}
	got, err := client.Route(context.Background(), "yeah sure", []string{"yes", "no"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "yes" {
		t.Errorf("expected 'yes', got '%s'", got)
	}
}

func TestRoute_UnclassifiableReturnsEmpty(t *testing.T) {
	for _, answer := range []string{"none", "banana", ""} {
		client := &Client{chat: &mockChatService{resp: completionWith(answer)}}
		got, err := client.Route(context.Background(), "I don't know", []string{"yes", "no"})
		if err != nil {
			t.Fatalf("answer %q: expected no error, got %v", answer, err)
		}
		if got != "" {
			t.Errorf("answer %q: expected empty label, got '%s'", answer, got)
		}
	}
}

func TestRoute_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("service failure")}}
	_, err := client.Route(context.Background(), "yes", []string{"yes", "no"})
	if err == nil || !strings.Contains(err.Error(), "service failure") {
		t.Errorf("expected service failure error, got %v", err)
	}
}

func TestRoute_NoChoices(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: &openai.ChatCompletion{}}}
	_, err := client.Route(context.Background(), "yes", []string{"yes"})
	if !errors.Is(err, ErrNoChoicesReturned) {
		t.Errorf("expected no choices returned error, got %v", err)
	}
}

func TestRedirect_ReturnsGeneratedText(t *testing.T) {
	mock := &mockChatService{resp: completionWith("Please share your registered phone number.")}
	client := &Client{chat: mock}
	got, err := client.Redirect(context.Background(), "what's the weather", models.Session{State: "collect_phone"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "Please share your registered phone number." {
		t.Errorf("unexpected redirect text: %q", got)
	}
}

func TestGoodbye_ReturnsGeneratedText(t *testing.T) {
	client := &Client{chat: &mockChatService{resp: completionWith("Thanks for calling!")}}
	got, err := client.Goodbye(context.Background(), models.Session{LoanStatus: models.StatusApproved})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != "Thanks for calling!" {
		t.Errorf("unexpected goodbye text: %q", got)
	}
}

func TestGoodbyeAfterSMS_ServiceError(t *testing.T) {
	client := &Client{chat: &mockChatService{err: errors.New("rate limited")}}
	_, err := client.GoodbyeAfterSMS(context.Background(), models.Session{})
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Errorf("expected rate limited error, got %v", err)
	}
}

func TestNewClient_NoKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewClient()
	if err == nil {
		t.Error("expected error when API key not provided, got nil")
	}
}

func TestNewClient_WithOptions(t *testing.T) {
	client, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if client.model != openai.ChatModel("gpt-4o") {
		t.Errorf("model = %q, want gpt-4o", client.model)
	}
}

func TestNewClient_DefaultModel(t *testing.T) {
	client, err := NewClient(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if client.model != openai.ChatModelGPT4oMini {
		t.Errorf("model = %q, want default %q", client.model, openai.ChatModelGPT4oMini)
	}
}
