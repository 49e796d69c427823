package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/starpal/starpal/internal/provider"
)

// scannerBufferSize is the max token size for the SSE line scanner.
// Long replies can overflow the default ~64 KiB bufio.Scanner limit.
const scannerBufferSize = 1 * 1024 * 1024 // 1 MB

// sendChunk sends a StreamChunk on ch, respecting context cancellation.
// Returns false if the context was cancelled (caller should return).
func sendChunk(ctx context.Context, ch chan<- provider.StreamChunk, chunk provider.StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// readStream reads an SSE stream from body and sends parsed chunks on ch.
// The channel is closed when the stream ends, either normally ([DONE]),
// on error, or when ctx is cancelled. body is always closed.
func readStream(ctx context.Context, body io.ReadCloser, ch chan<- provider.StreamChunk) {
	defer close(ch)
	defer func() { _ = body.Close() }()

	// Close body on context cancellation to unblock the scanner.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = body.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, scannerBufferSize), scannerBufferSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			sendChunk(ctx, ch, provider.StreamChunk{Err: ctx.Err()})
			return
		}

		line := scanner.Text()

		// SSE spec: lines starting with ":" are comments.
		if strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			return
		}

		var chunk chatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			sendChunk(ctx, ch, provider.StreamChunk{Err: err})
			return
		}

		var usage *provider.TokenUsage
		if chunk.Usage != nil {
			u := mapUsage(chunk.Usage)
			usage = &u
		}

		if len(chunk.Choices) == 0 {
			// Usage-only chunk (sent with stream_options.include_usage).
			if usage != nil {
				sendChunk(ctx, ch, provider.StreamChunk{Usage: usage})
			}
			continue
		}

		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			if !sendChunk(ctx, ch, provider.StreamChunk{
				Content: choice.Delta.Content,
				Usage:   usage,
			}) {
				return
			}
			continue
		}

		if choice.FinishReason != nil && *choice.FinishReason != "" {
			if !sendChunk(ctx, ch, provider.StreamChunk{
				FinishReason: mapFinishReason(*choice.FinishReason),
				Usage:        usage,
			}) {
				return
			}
			continue
		}

		if usage != nil {
			sendChunk(ctx, ch, provider.StreamChunk{Usage: usage})
		}
	}

	// If the scanner stopped because the body was closed on cancellation,
	// report the context error rather than the read failure.
	if ctx.Err() != nil {
		sendChunk(ctx, ch, provider.StreamChunk{Err: ctx.Err()})
		return
	}

	if err := scanner.Err(); err != nil {
		sendChunk(ctx, ch, provider.StreamChunk{Err: mapConnectionError(err)})
	}
}
