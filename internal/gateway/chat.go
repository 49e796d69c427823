package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/starpal/starpal/internal/chat"
)

type chatRequest struct {
	Message  string `json:"message"`
	Username string `json:"username"`
	ChatID   string `json:"chat_id"`

	// SystemPrompt, when present, replaces the conversation's prompt
	// override before this turn.
	SystemPrompt *string `json:"system_prompt"`
}

// sseEvent is one SSE data payload. Exactly one field is set.
type sseEvent struct {
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

// writeEvent writes one SSE data line and flushes it to the client.
func writeEvent(w http.ResponseWriter, flusher http.Flusher, ev sseEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}

// sseError writes a single SSE-formatted error body with the given status.
func sseError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(code)
	payload, _ := json.Marshal(sseEvent{Error: msg})
	_, _ = w.Write([]byte("data: " + string(payload) + "\n\n"))
}

// handleChat streams one model turn as Server-Sent Events.
func (g *Gateway) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := decodeJSON(r, &req); err != nil {
			sseError(w, http.StatusBadRequest, err.Error())
			return
		}

		username := strings.TrimSpace(req.Username)
		chatID := strings.TrimSpace(req.ChatID)
		if username == "" || chatID == "" {
			sseError(w, http.StatusBadRequest, "username and chat_id are required")
			return
		}

		flusher, _ := w.(http.Flusher)
		streamed := false

		turn := chat.TurnRequest{
			Key:      chat.ConversationKey{User: username, Chat: chatID},
			Message:  req.Message,
			Override: req.SystemPrompt,
		}

		err := g.chat.StreamTurn(r.Context(), turn, func(delta string) error {
			if !streamed {
				w.Header().Set("Content-Type", "text/event-stream")
				w.Header().Set("Cache-Control", "no-cache")
				w.WriteHeader(http.StatusOK)
				streamed = true
			}
			return writeEvent(w, flusher, sseEvent{Reply: delta})
		})

		g.metrics.ChatTurns.Inc()
		if err == nil {
			if !streamed {
				// Empty reply: still a valid, empty event stream.
				w.Header().Set("Content-Type", "text/event-stream")
				w.WriteHeader(http.StatusOK)
			}
			return
		}

		g.metrics.StreamErrors.Inc()

		msg := "model service temporarily unavailable, try again later"
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, chat.ErrEmptyMessage):
			msg, code = "message must not be empty", http.StatusBadRequest
		case errors.Is(err, chat.ErrMessageTooLong):
			msg, code = "message must not exceed 1000 characters", http.StatusBadRequest
		}

		if !streamed {
			g.logger.Warn("chat turn failed", "user", username, "error", err)
			sseError(w, code, msg)
			return
		}

		// Headers are gone; deliver the failure as a terminal event.
		g.logger.Warn("chat stream interrupted", "user", username, "error", err)
		_ = writeEvent(w, flusher, sseEvent{Error: msg})
	}
}

type conversationRequest struct {
	Username string `json:"username"`
	ChatID   string `json:"chat_id"`
}

// conversationKey validates and extracts the conversation key from a
// request body. Reports the validation problem via the response and
// returns ok=false when the request is unusable.
func conversationKey(w http.ResponseWriter, r *http.Request) (chat.ConversationKey, bool) {
	var req conversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: err.Error()})
		return chat.ConversationKey{}, false
	}

	username := strings.TrimSpace(req.Username)
	chatID := strings.TrimSpace(req.ChatID)
	if username == "" || chatID == "" {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "username and chat_id are required"})
		return chat.ConversationKey{}, false
	}

	return chat.ConversationKey{User: username, Chat: chatID}, true
}

func (g *Gateway) handleClearMemory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := conversationKey(w, r)
		if !ok {
			return
		}
		g.chat.Clear(key)
		writeJSON(w, http.StatusOK, messageResponse{Message: "conversation memory cleared"})
	}
}

func (g *Gateway) handleMemoryStats() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"active_conversations": g.chat.Count(),
			"status":               "healthy",
		})
	}
}

type systemPromptRequest struct {
	Username     string  `json:"username"`
	ChatID       string  `json:"chat_id"`
	SystemPrompt *string `json:"system_prompt"`
}

func (g *Gateway) handleSetSystemPrompt() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req systemPromptRequest
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error(), "success": false})
			return
		}

		username := strings.TrimSpace(req.Username)
		chatID := strings.TrimSpace(req.ChatID)
		if username == "" || chatID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "username and chat_id are required", "success": false})
			return
		}

		// A null prompt clears the override, restoring the default.
		g.chat.SetOverride(chat.ConversationKey{User: username, Chat: chatID}, req.SystemPrompt)
		writeJSON(w, http.StatusOK, map[string]any{"message": "system prompt set", "success": true})
	}
}

func (g *Gateway) handleGetSystemPrompt() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := conversationKey(w, r)
		if !ok {
			return
		}

		var prompt any
		if override, set := g.chat.Override(key); set {
			prompt = override
		}
		writeJSON(w, http.StatusOK, map[string]any{"system_prompt": prompt, "success": true})
	}
}
