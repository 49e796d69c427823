package chat

import "github.com/starpal/starpal/internal/provider"

// memoryFraming prefixes the long-term memory digest so the model treats it
// as background context rather than part of the conversation.
const memoryFraming = "The following is historical information about this user. Take it into account when answering:\n"

// Composer builds the ordered message list sent to the model.
//
// Layer order is fixed and never varies:
//  1. system-level instruction (always present, not user-overridable)
//  2. per-conversation override, or the default system prompt when no
//     override is set (skipped when both are empty)
//  3. long-term memory digest, wrapped in a fixed framing sentence
//     (skipped when the digest is empty)
//  4. the conversation history, oldest first
//
// Omitting an empty layer never shifts the relative order of the rest.
type Composer struct {
	// SystemLevel is the fixed platform instruction. Always first.
	SystemLevel string

	// DefaultPrompt is applied as layer 2 only when a conversation has
	// no override set. Empty means no default.
	DefaultPrompt string
}

// Compose assembles the prompt for one turn. The history must already
// contain the current user message as its last element. overrideSet
// distinguishes "override explicitly set" from "no override".
func (c *Composer) Compose(override string, overrideSet bool, digest string, history []provider.LLMMessage) []provider.LLMMessage {
	messages := make([]provider.LLMMessage, 0, len(history)+3)

	if c.SystemLevel != "" {
		messages = append(messages, provider.LLMMessage{
			Role:    provider.MessageRoleSystem,
			Content: c.SystemLevel,
		})
	}

	userLevel := c.DefaultPrompt
	if overrideSet {
		userLevel = override
	}
	if userLevel != "" {
		messages = append(messages, provider.LLMMessage{
			Role:    provider.MessageRoleSystem,
			Content: userLevel,
		})
	}

	if digest != "" {
		messages = append(messages, provider.LLMMessage{
			Role:    provider.MessageRoleSystem,
			Content: memoryFraming + digest,
		})
	}

	return append(messages, history...)
}
