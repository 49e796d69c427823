// Package chat implements multi-tenant conversation state: per-conversation
// history, prompt overrides, layered prompt composition, and the turn
// orchestrator that streams model output and persists completed exchanges.
package chat

// ConversationKey is the composite key for O(1) conversation lookups.
// It uniquely identifies a conversation by user and chat ID. A structured
// key avoids the delimiter-collision bugs of concatenated string keys when
// usernames or chat IDs contain the separator.
type ConversationKey struct {
	User string
	Chat string
}
