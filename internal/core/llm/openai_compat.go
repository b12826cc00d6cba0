package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/markdave123-py/ragline/internal/core"
	"github.com/markdave123-py/ragline/internal/core/retry"
)

// OpenAIConfig configures a client for any server speaking the OpenAI REST
// dialect: Ollama, LiteLLM, vLLM or OpenAI itself.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

type openAIClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

func newOpenAIClient(cfg OpenAIConfig, defaultTimeout time.Duration) openAIClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return openAIClient{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
	}
}

// post sends body as JSON. Non-2xx answers are returned as errors, permanent
// for client errors other than throttling and timeouts.
func (c openAIClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("encode request: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("%s: %s: %s", path, resp.Status, strings.TrimSpace(string(snippet)))
		return nil, retry.ClassifyHTTPStatus(resp.StatusCode, err)
	}
	return resp, nil
}

// OpenAIEmbedder calls POST {base}/embeddings.
type OpenAIEmbedder struct {
	client openAIClient
	model  string
}

func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("openai embedder: base url not set")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai embedder: model not set")
	}
	return &OpenAIEmbedder{client: newOpenAIClient(cfg, 30*time.Second), model: cfg.Model}, nil
}

func (e *OpenAIEmbedder) ModelName() string { return e.model }

type embeddingRequest struct {
	Model  string `json:"model"`
	Input  string `json:"input"`
	Prompt string `json:"prompt,omitempty"`
}

// embeddingResponse accepts both the OpenAI shape and Ollama's native one.
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Embedding []float32 `json:"embedding"`
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.post(ctx, "/embeddings", embeddingRequest{Model: e.model, Input: text, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("openai embed: %w", err)
	}
	defer resp.Body.Close()

	var out embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("openai embed: decode response: %w", err)
	}
	if len(out.Data) > 0 {
		return out.Data[0].Embedding, nil
	}
	return out.Embedding, nil
}

// OpenAIChat calls POST {base}/chat/completions.
type OpenAIChat struct {
	client      openAIClient
	model       string
	temperature float64
}

func NewOpenAIChat(cfg OpenAIConfig) (*OpenAIChat, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("openai chat: base url not set")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai chat: model not set")
	}
	return &OpenAIChat{
		client:      newOpenAIClient(cfg, 120*time.Second),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
		Delta   chatMessage `json:"delta"`
	} `json:"choices"`
}

func (c *OpenAIChat) request(systemPrompt, userPrompt string, stream bool) chatRequest {
	var msgs []chatMessage
	if systemPrompt != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: systemPrompt})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: userPrompt})
	return chatRequest{Model: c.model, Messages: msgs, Temperature: c.temperature, Stream: stream}
}

func (c *OpenAIChat) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := c.client.post(ctx, "/chat/completions", c.request(systemPrompt, userPrompt, false))
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	defer resp.Body.Close()

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("openai chat: decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", nil
	}
	return out.Choices[0].Message.Content, nil
}

// Stream reads the server-sent event stream until the [DONE] marker.
func (c *OpenAIChat) Stream(ctx context.Context, systemPrompt, userPrompt string, emit func(string) error) error {
	resp, err := c.client.post(ctx, "/chat/completions", c.request(systemPrompt, userPrompt, true))
	if err != nil {
		return fmt.Errorf("openai chat: %w", err)
	}
	defer resp.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		data = strings.TrimSpace(data)
		if data == "[DONE]" {
			return nil
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("openai chat: decode stream event: %w", err)
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content == "" {
				continue
			}
			if err := emit(choice.Delta.Content); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("openai chat: read stream: %w", err)
	}
	return nil
}

var (
	_ core.EmbeddingProvider = (*OpenAIEmbedder)(nil)
	_ core.LLMProvider       = (*OpenAIChat)(nil)
)
