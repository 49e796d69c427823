package chat

import (
	"sync"
	"time"

	"github.com/starpal/starpal/internal/provider"
)

// conversation holds the history and prompt override for a single key.
type conversation struct {
	messages     []provider.LLMMessage
	override     *string
	lastActiveAt time.Time
}

// Store is a concurrency-safe, in-memory conversation store. It uses a map
// with a read-write mutex for O(1) lookups. State is volatile: a process
// restart loses all conversations. The `now` function is injectable for
// deterministic testing.
type Store struct {
	mu            sync.RWMutex
	conversations map[ConversationKey]*conversation

	// maxMessages bounds each conversation's history. When a conversation
	// exceeds the bound, the oldest messages are dropped first.
	// Zero means unbounded.
	maxMessages int

	// now is injectable for testing. Defaults to time.Now.
	now func() time.Time
}

// NewStore creates a ready-to-use in-memory conversation store.
func NewStore() *Store {
	return &Store{
		conversations: make(map[ConversationKey]*conversation),
		now:           time.Now,
	}
}

// SetMaxMessages configures the per-conversation history bound.
// Zero means unbounded.
func (s *Store) SetMaxMessages(limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxMessages = limit
}

func (s *Store) getOrCreate(key ConversationKey) *conversation {
	conv, ok := s.conversations[key]
	if !ok {
		conv = &conversation{}
		s.conversations[key] = conv
	}
	return conv
}

// AppendUser appends a user utterance to the conversation's history,
// creating the conversation if it does not exist.
func (s *Store) AppendUser(key ConversationKey, text string) {
	s.append(key, provider.LLMMessage{Role: provider.MessageRoleUser, Content: text})
}

// AppendAssistant appends an assistant utterance to the conversation's
// history, creating the conversation if it does not exist.
func (s *Store) AppendAssistant(key ConversationKey, text string) {
	s.append(key, provider.LLMMessage{Role: provider.MessageRoleAssistant, Content: text})
}

func (s *Store) append(key ConversationKey, msg provider.LLMMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.getOrCreate(key)
	conv.messages = append(conv.messages, msg)
	conv.lastActiveAt = s.now()

	if s.maxMessages > 0 && len(conv.messages) > s.maxMessages {
		drop := len(conv.messages) - s.maxMessages
		// Never split an exchange: if the cut would leave an assistant
		// reply at the head, drop it too.
		for drop < len(conv.messages) && conv.messages[drop].Role == provider.MessageRoleAssistant {
			drop++
		}
		conv.messages = append(conv.messages[:0:0], conv.messages[drop:]...)
	}
}

// History returns a copy of the conversation's messages, oldest first.
// Returns nil if the conversation does not exist.
func (s *Store) History(key ConversationKey) []provider.LLMMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[key]
	if !ok {
		return nil
	}
	result := make([]provider.LLMMessage, len(conv.messages))
	copy(result, conv.messages)
	return result
}

// SetOverride stores the user-supplied system instruction for the key.
// A nil value records that no user-level instruction applies.
func (s *Store) SetOverride(key ConversationKey, override *string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.getOrCreate(key)
	conv.override = override
	conv.lastActiveAt = s.now()
}

// Override returns the user-supplied system instruction for the key.
// The bool is false when no override is set (or it was set to nil).
func (s *Store) Override(key ConversationKey) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[key]
	if !ok || conv.override == nil {
		return "", false
	}
	return *conv.override, true
}

// Clear removes the conversation's history and prompt override.
// Clearing a nonexistent key is a no-op.
func (s *Store) Clear(key ConversationKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, key)
}

// Count returns the number of distinct active conversations.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

// Prune removes conversations idle longer than maxIdle and returns the
// number pruned. Intended to be called periodically by a background job.
func (s *Store) Prune(maxIdle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	pruned := 0
	for key, conv := range s.conversations {
		if conv.lastActiveAt.Before(cutoff) {
			delete(s.conversations, key)
			pruned++
		}
	}
	return pruned
}

// ActiveKeys returns the set of keys with live conversations.
// Used by the lane lock to drop per-key mutexes for pruned conversations.
func (s *Store) ActiveKeys() map[ConversationKey]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make(map[ConversationKey]struct{}, len(s.conversations))
	for key := range s.conversations {
		keys[key] = struct{}{}
	}
	return keys
}
