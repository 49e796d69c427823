package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/starpal/starpal/internal/provider"
)

func (p *Provider) buildChatRequest(req provider.CompletionRequest, stream bool) chatRequest {
	out := chatRequest{
		Model:    p.cfg.Model,
		Messages: toWireMessages(req.Messages),
		Stop:     req.Stop,
		Stream:   stream,
	}

	out.MaxTokens = p.cfg.MaxTokens
	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}

	out.Temperature = p.cfg.Temperature
	if req.Temperature != nil {
		out.Temperature = *req.Temperature
	}

	out.TopP = p.cfg.TopP
	if req.TopP != nil {
		out.TopP = *req.TopP
	}

	return out
}

func (p *Provider) newHTTPRequest(ctx context.Context, body chatRequest) (*http.Request, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := strings.TrimRight(p.cfg.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	if body.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	return httpReq, nil
}

func (p *Provider) doPost(ctx context.Context, client *http.Client, body chatRequest) (*http.Response, error) {
	httpReq, err := p.newHTTPRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, mapConnectionError(err)
	}

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		return nil, mapHTTPError(resp.StatusCode, data)
	}
	return resp, nil
}

// Complete implements provider.Provider.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (provider.CompletionResponse, error) {
	resp, err := p.doPost(ctx, p.client, p.buildChatRequest(req, false))
	if err != nil {
		return provider.CompletionResponse{}, err
	}
	defer resp.Body.Close()

	var wire chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return provider.CompletionResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return provider.CompletionResponse{}, fmt.Errorf("response contained no choices")
	}

	choice := wire.Choices[0]
	return provider.CompletionResponse{
		Content:      choice.Message.Content,
		FinishReason: mapFinishReason(choice.FinishReason),
		Usage:        mapUsage(wire.Usage),
	}, nil
}

// Stream implements provider.Provider. The returned channel is closed
// when the stream ends; mid-stream failures arrive as a final chunk
// with Err set.
func (p *Provider) Stream(ctx context.Context, req provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	resp, err := p.doPost(ctx, p.streamClient, p.buildChatRequest(req, true))
	if err != nil {
		return nil, err
	}

	ch := make(chan provider.StreamChunk, 16)
	go readStream(ctx, resp.Body, ch)
	return ch, nil
}
