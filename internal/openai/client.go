// Package openai wraps the OpenAI API behind a small interface so that
// services and the job engine never touch the SDK types directly, and so
// that a client can be constructed per request with whichever API key the
// credential policy selected.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"

	goopenai "github.com/sashabaranov/go-openai"
)

// ErrRunGone reports that a thread or run no longer exists on the provider
// side. Pollers treat it as a permanent failure rather than a transient one.
var ErrRunGone = errors.New("openai: thread or run no longer exists")

// RunState is the reduced view of a provider run that the poller cares about.
type RunState struct {
	ID        string
	Status    string
	LastError string
}

// Terminal reports whether the run has reached a final provider state.
func (s RunState) Terminal() bool {
	switch goopenai.RunStatus(s.Status) {
	case goopenai.RunStatusCompleted, goopenai.RunStatusFailed,
		goopenai.RunStatusCancelled, goopenai.RunStatusExpired,
		goopenai.RunStatusIncomplete:
		return true
	}
	return false
}

// Succeeded reports whether a terminal run finished with output.
func (s RunState) Succeeded() bool {
	return goopenai.RunStatus(s.Status) == goopenai.RunStatusCompleted
}

// RequiresAction reports runs stuck waiting for a tool-call handler. No
// handler exists here, so callers fail such runs immediately.
func (s RunState) RequiresAction() bool {
	return goopenai.RunStatus(s.Status) == goopenai.RunStatusRequiresAction
}

// RunOptions carries per-run sampling parameters.
type RunOptions struct {
	Temperature         *float32
	TopP                *float32
	MaxCompletionTokens int
}

// AssistantSpec is the provider-side definition of an assistant.
type AssistantSpec struct {
	Name          string
	Description   string
	Instructions  string
	Model         string
	VectorStoreID string
}

// Client is the surface of the OpenAI API this application uses.
type Client interface {
	// Transcribe converts an audio stream into text using the given model.
	Transcribe(ctx context.Context, model, fileName string, audio io.Reader) (string, error)

	// Complete runs a single-turn chat completion and returns the reply text.
	Complete(ctx context.Context, model, prompt string) (string, error)

	// CreateThread opens a fresh conversation thread.
	CreateThread(ctx context.Context) (string, error)

	// AddMessage appends a user message to a thread.
	AddMessage(ctx context.Context, threadID, text string) error

	// StartRun launches an assistant run on a thread.
	StartRun(ctx context.Context, threadID, assistantID string, opts RunOptions) (string, error)

	// GetRun fetches the current state of a run.
	GetRun(ctx context.Context, threadID, runID string) (RunState, error)

	// LatestAssistantMessage returns the newest assistant reply produced by a run.
	LatestAssistantMessage(ctx context.Context, threadID, runID string) (string, error)

	// CreateAssistant registers an assistant and returns its provider ID.
	CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error)

	// ModifyAssistant updates an existing assistant in place.
	ModifyAssistant(ctx context.Context, assistantID string, spec AssistantSpec) error

	// DeleteAssistant removes an assistant.
	DeleteAssistant(ctx context.Context, assistantID string) error

	// UploadFile uploads a knowledge base document and returns its file ID.
	UploadFile(ctx context.Context, fileName string, content []byte) (string, error)

	// DeleteFile removes an uploaded file.
	DeleteFile(ctx context.Context, fileID string) error

	// CreateVectorStore builds a vector store over the given files.
	CreateVectorStore(ctx context.Context, name string, fileIDs []string) (string, error)

	// DeleteVectorStore removes a vector store.
	DeleteVectorStore(ctx context.Context, vectorStoreID string) error
}

// Factory builds a Client for a specific API key. The credential selector
// decides whose key is used; the factory keeps that decision out of the
// transport layer.
type Factory func(apiKey string) Client

// NewClient returns the production Client backed by the OpenAI SDK.
func NewClient(apiKey string) Client {
	return &apiClient{client: goopenai.NewClient(apiKey)}
}

type apiClient struct {
	client *goopenai.Client
}

func (c *apiClient) Transcribe(ctx context.Context, model, fileName string, audio io.Reader) (string, error) {
	resp, err := c.client.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    model,
		Reader:   audio,
		FilePath: fileName,
	})
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	return resp.Text, nil
}

func (c *apiClient) Complete(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *apiClient) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.client.CreateThread(ctx, goopenai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("failed to create thread: %w", err)
	}
	return thread.ID, nil
}

func (c *apiClient) AddMessage(ctx context.Context, threadID, text string) error {
	_, err := c.client.CreateMessage(ctx, threadID, goopenai.MessageRequest{
		Role:    string(goopenai.ThreadMessageRoleUser),
		Content: text,
	})
	if err != nil {
		return fmt.Errorf("failed to add message to thread: %w", translateNotFound(err))
	}
	return nil
}

func (c *apiClient) StartRun(ctx context.Context, threadID, assistantID string, opts RunOptions) (string, error) {
	req := goopenai.RunRequest{
		AssistantID: assistantID,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
	}
	if opts.MaxCompletionTokens > 0 {
		req.MaxCompletionTokens = opts.MaxCompletionTokens
	}

	run, err := c.client.CreateRun(ctx, threadID, req)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", translateNotFound(err))
	}
	return run.ID, nil
}

func (c *apiClient) GetRun(ctx context.Context, threadID, runID string) (RunState, error) {
	run, err := c.client.RetrieveRun(ctx, threadID, runID)
	if err != nil {
		return RunState{}, translateNotFound(err)
	}

	state := RunState{ID: run.ID, Status: string(run.Status)}
	if run.LastError != nil {
		state.LastError = run.LastError.Message
	}
	return state, nil
}

func (c *apiClient) LatestAssistantMessage(ctx context.Context, threadID, runID string) (string, error) {
	limit := 1
	order := "desc"
	list, err := c.client.ListMessage(ctx, threadID, &limit, &order, nil, nil, &runID)
	if err != nil {
		return "", fmt.Errorf("failed to list thread messages: %w", translateNotFound(err))
	}

	for _, msg := range list.Messages {
		if msg.Role != string(goopenai.ThreadMessageRoleAssistant) {
			continue
		}
		for _, part := range msg.Content {
			if part.Text != nil {
				return part.Text.Value, nil
			}
		}
	}
	return "", errors.New("run produced no assistant message")
}

func (c *apiClient) CreateAssistant(ctx context.Context, spec AssistantSpec) (string, error) {
	req := assistantRequest(spec)
	assistant, err := c.client.CreateAssistant(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create assistant: %w", err)
	}
	return assistant.ID, nil
}

func (c *apiClient) ModifyAssistant(ctx context.Context, assistantID string, spec AssistantSpec) error {
	if _, err := c.client.ModifyAssistant(ctx, assistantID, assistantRequest(spec)); err != nil {
		return fmt.Errorf("failed to update assistant: %w", translateNotFound(err))
	}
	return nil
}

func (c *apiClient) DeleteAssistant(ctx context.Context, assistantID string) error {
	if _, err := c.client.DeleteAssistant(ctx, assistantID); err != nil {
		return fmt.Errorf("failed to delete assistant: %w", translateNotFound(err))
	}
	return nil
}

func (c *apiClient) UploadFile(ctx context.Context, fileName string, content []byte) (string, error) {
	file, err := c.client.CreateFileBytes(ctx, goopenai.FileBytesRequest{
		Name:    fileName,
		Bytes:   content,
		Purpose: goopenai.PurposeAssistants,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	return file.ID, nil
}

func (c *apiClient) DeleteFile(ctx context.Context, fileID string) error {
	if err := c.client.DeleteFile(ctx, fileID); err != nil {
		return fmt.Errorf("failed to delete file: %w", translateNotFound(err))
	}
	return nil
}

func (c *apiClient) CreateVectorStore(ctx context.Context, name string, fileIDs []string) (string, error) {
	store, err := c.client.CreateVectorStore(ctx, goopenai.VectorStoreRequest{
		Name:    name,
		FileIDs: fileIDs,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create vector store: %w", err)
	}
	return store.ID, nil
}

func (c *apiClient) DeleteVectorStore(ctx context.Context, vectorStoreID string) error {
	if _, err := c.client.DeleteVectorStore(ctx, vectorStoreID); err != nil {
		return fmt.Errorf("failed to delete vector store: %w", translateNotFound(err))
	}
	return nil
}

func assistantRequest(spec AssistantSpec) goopenai.AssistantRequest {
	req := goopenai.AssistantRequest{
		Model:        spec.Model,
		Name:         &spec.Name,
		Description:  &spec.Description,
		Instructions: &spec.Instructions,
	}
	if spec.VectorStoreID != "" {
		req.Tools = []goopenai.AssistantTool{{Type: goopenai.AssistantToolTypeFileSearch}}
		req.ToolResources = &goopenai.AssistantToolResource{
			FileSearch: &goopenai.AssistantToolFileSearch{
				VectorStoreIDs: []string{spec.VectorStoreID},
			},
		}
	}
	return req
}

// translateNotFound maps provider 404s onto ErrRunGone so callers can
// distinguish "the resource vanished" from transient API trouble.
func translateNotFound(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 404 {
		return fmt.Errorf("%w: %s", ErrRunGone, apiErr.Message)
	}
	return err
}
