package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/starpal/starpal/internal/longterm"
	"github.com/starpal/starpal/internal/provider"
)

// Validation errors reported synchronously, before any side effect.
var (
	ErrEmptyMessage   = errors.New("chat: message must not be empty")
	ErrMessageTooLong = errors.New("chat: message exceeds maximum length")
)

// defaultMaxMessageLen is the per-turn user message bound, in runes.
const defaultMaxMessageLen = 1000

// defaultRecordTimeout bounds the detached long-term memory write.
const defaultRecordTimeout = 30 * time.Second

// TurnRequest describes one user turn.
type TurnRequest struct {
	Key     ConversationKey
	Message string

	// Override, when non-nil, replaces the conversation's stored prompt
	// override before the turn is composed.
	Override *string
}

// Service orchestrates chat turns: it validates input, serializes turns per
// conversation, composes the layered prompt, streams model output, and
// persists completed exchanges to both the conversation store and the
// long-term memory gateway.
type Service struct {
	store    *Store
	lanes    *LaneLock
	composer *Composer
	logger   *slog.Logger

	// Bound at module Start via the service registry.
	provider provider.Provider
	memory   *longterm.Gateway

	maxMessageLen int
	recordTimeout time.Duration

	// recorded is called after the detached memory write completes.
	// Injectable for test synchronization; nil in production.
	recorded func()
}

// NewService creates a Service over the given store and composer.
// The provider and memory gateway are bound later via Bind.
func NewService(store *Store, composer *Composer, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:         store,
		lanes:         NewLaneLock(),
		composer:      composer,
		logger:        logger,
		maxMessageLen: defaultMaxMessageLen,
		recordTimeout: defaultRecordTimeout,
	}
}

// Bind attaches the model provider and long-term memory gateway.
// Must be called before the first StreamTurn.
func (s *Service) Bind(p provider.Provider, memory *longterm.Gateway) {
	s.provider = p
	s.memory = memory
}

// Store returns the underlying conversation store.
func (s *Service) Store() *Store { return s.store }

// Memory returns the long-term memory gateway.
func (s *Service) Memory() *longterm.Gateway { return s.memory }

// Lanes returns the per-conversation lock, for maintenance jobs that prune
// stale lane entries alongside pruned conversations.
func (s *Service) Lanes() *LaneLock { return s.lanes }

// StreamTurn runs one chat turn. Model output is delivered incrementally
// through emit while the full reply is accumulated. On success the exchange
// is appended to the conversation store and recorded to long-term memory in
// a detached, best-effort goroutine.
//
// Validation failures are returned before any side effect. A mid-stream
// model error is returned after partial output has been emitted; partial
// output is never retracted and the assistant turn is not persisted. If the
// caller disconnects (ctx cancelled or emit fails), generation stops at the
// next chunk boundary, nothing is persisted, and the memory write is
// skipped.
func (s *Service) StreamTurn(ctx context.Context, req TurnRequest, emit func(delta string) error) error {
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(msg) > s.maxMessageLen {
		return ErrMessageTooLong
	}

	// Serialize turns per conversation: a second turn for the same key
	// must not compose its prompt until the prior turn's user+assistant
	// pair has been appended. Turns on other keys proceed in parallel.
	s.lanes.Acquire(req.Key)
	defer s.lanes.Release(req.Key)

	if req.Override != nil {
		v := *req.Override
		s.store.SetOverride(req.Key, &v)
	}

	s.store.AppendUser(req.Key, msg)

	// Best-effort: a failed search degrades to an empty digest.
	digest := s.memory.SearchDigest(ctx, req.Key.User, msg)

	override, overrideSet := s.store.Override(req.Key)
	history := s.store.History(req.Key)
	prompt := s.composer.Compose(override, overrideSet, digest, history)

	ch, err := s.provider.Stream(ctx, provider.CompletionRequest{Messages: prompt})
	if err != nil {
		return fmt.Errorf("chat: starting model stream: %w", err)
	}

	var reply strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			return fmt.Errorf("chat: model stream: %w", chunk.Err)
		}
		if chunk.Content == "" {
			continue
		}
		reply.WriteString(chunk.Content)
		if err := emit(chunk.Content); err != nil {
			// Caller gone. Stop at the chunk boundary; the partial
			// reply is not persisted.
			return fmt.Errorf("chat: delivering chunk: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	full := reply.String()
	if full == "" {
		return nil
	}

	s.store.AppendAssistant(req.Key, full)

	// Detached from the response lifecycle; failure is logged only.
	go s.record(req.Key, msg, full)

	return nil
}

// record runs the best-effort long-term memory write with its own timeout,
// independent of the (possibly already finished) request context.
func (s *Service) record(key ConversationKey, userText, assistantText string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.recordTimeout)
	defer cancel()

	s.memory.Record(ctx, key.User, key.Chat, userText, assistantText)

	if s.recorded != nil {
		s.recorded()
	}
}

// Clear removes the conversation's history and prompt override.
func (s *Service) Clear(key ConversationKey) {
	s.store.Clear(key)
}

// Count returns the number of active conversations.
func (s *Service) Count() int {
	return s.store.Count()
}

// SetOverride stores (or clears, when nil) the conversation's prompt override.
func (s *Service) SetOverride(key ConversationKey, override *string) {
	s.store.SetOverride(key, override)
}

// Override returns the conversation's prompt override, if set.
func (s *Service) Override(key ConversationKey) (string, bool) {
	return s.store.Override(key)
}
