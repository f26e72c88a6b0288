// Package ollama adapts a local Ollama server's HTTP API to the
// provider.Provider interface. The /api/chat endpoint streams one JSON
// object per line; the terminal object carries done=true.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/parleyhq/parley/chat"
)

// Provider talks to an Ollama server at a base URL. Tools are not supported;
// the tools argument is ignored and model infos report SupportsTools=false.
type Provider struct {
	baseURL string
	client  *http.Client
	probe   *http.Client
}

// New creates an Ollama provider for the given base URL
// (default http://localhost:11434).
func New(baseURL string) *Provider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 120 * time.Second},
		probe:   &http.Client{Timeout: 2 * time.Second},
	}
}

// Name implements provider.Provider.
func (p *Provider) Name() string { return "ollama" }

// IsAvailable probes the local server; a failed probe means not configured.
func (p *Provider) IsAvailable() bool {
	resp, err := p.probe.Get(p.baseURL + "/api/tags")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []wireMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options"`
}

type chatResponse struct {
	Message wireMessage `json:"message"`
	Done    bool        `json:"done"`
}

func formatMessages(msgs []chat.ChatMessage) []wireMessage {
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, wireMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

func (p *Provider) post(ctx context.Context, payload chatRequest) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("provider ollama: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("provider ollama: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider ollama: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("provider ollama: unexpected status %s", resp.Status)
	}
	return resp, nil
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, msgs []chat.ChatMessage, model string, _ []chat.ToolSchema, temperature float64) (chat.ChatMessage, error) {
	resp, err := p.post(ctx, chatRequest{
		Model:    model,
		Messages: formatMessages(msgs),
		Stream:   false,
		Options:  map[string]any{"temperature": temperature},
	})
	if err != nil {
		return chat.ChatMessage{}, err
	}
	defer resp.Body.Close()

	var data chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		// Malformed response degrades to an empty assistant message.
		return chat.AssistantMessage(""), nil
	}
	return chat.AssistantMessage(data.Message.Content), nil
}

// Stream implements provider.Provider.
func (p *Provider) Stream(ctx context.Context, msgs []chat.ChatMessage, model string, _ []chat.ToolSchema, temperature float64) (<-chan chat.StreamChunk, <-chan error) {
	out := make(chan chat.StreamChunk, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		resp, err := p.post(ctx, chatRequest{
			Model:    model,
			Messages: formatMessages(msgs),
			Stream:   true,
			Options:  map[string]any{"temperature": temperature},
		})
		if err != nil {
			errCh <- err
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var data chatResponse
			if err := json.Unmarshal([]byte(line), &data); err != nil {
				continue
			}
			chunk := chat.StreamChunk{Delta: data.Message.Content}
			if data.Done {
				chunk.FinishReason = chat.FinishStop
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
			if data.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- fmt.Errorf("provider ollama: %w", err)
		}
	}()

	return out, errCh
}

type tagsResponse struct {
	Models []struct {
		Name    string `json:"name"`
		Details struct {
			ContextLength int `json:"context_length"`
		} `json:"details"`
	} `json:"models"`
}

// ListModels queries the local server's installed models.
func (p *Provider) ListModels(ctx context.Context) ([]chat.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("provider ollama: %w", err)
	}
	resp, err := p.probe.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider ollama: %w", err)
	}
	defer resp.Body.Close()

	var data tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("provider ollama: %w", err)
	}

	models := make([]chat.ModelInfo, 0, len(data.Models))
	for _, m := range data.Models {
		ctxWindow := m.Details.ContextLength
		if ctxWindow == 0 {
			ctxWindow = 4096
		}
		models = append(models, chat.ModelInfo{
			ID:                m.Name,
			Name:              m.Name,
			Provider:          "ollama",
			SupportsStreaming: true,
			SupportsTools:     false,
			ContextWindow:     ctxWindow,
		})
	}
	return models, nil
}
