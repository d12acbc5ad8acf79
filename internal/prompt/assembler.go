package prompt

import (
	"fmt"

	"github.com/danielfernandez00/mi-webhook/internal/conversation"
	"github.com/danielfernandez00/mi-webhook/internal/provider"
)

// Assembler turns an intent label and a user's stored history into the
// ordered message list for a completion request. It performs no network I/O.
type Assembler struct {
	base    string
	intents IntentTable
	store   conversation.Store
}

// NewAssembler creates an Assembler over store.
func NewAssembler(base string, intents IntentTable, store conversation.Store) *Assembler {
	return &Assembler{base: base, intents: intents, store: store}
}

// SystemPrompt returns the instruction for intent followed by a blank line
// and the base prompt, or the base prompt alone when the intent has no
// instruction.
func (a *Assembler) SystemPrompt(intent string) string {
	if instr, ok := a.intents.Instruction(intent); ok {
		return instr + "\n\n" + a.base
	}
	return a.base
}

// Assemble returns the system message followed by every stored turn for
// userID, oldest first.
func (a *Assembler) Assemble(intent, userID string) ([]provider.LLMMessage, error) {
	turns, err := a.store.Get(userID)
	if err != nil {
		return nil, fmt.Errorf("prompt: loading history for %s: %w", userID, err)
	}

	msgs := make([]provider.LLMMessage, 0, len(turns)+1)
	msgs = append(msgs, provider.LLMMessage{
		Role:    provider.MessageRoleSystem,
		Content: a.SystemPrompt(intent),
	})
	for _, t := range turns {
		msgs = append(msgs, provider.LLMMessage{
			Role:    roleFor(t.Role),
			Content: t.Text,
		})
	}
	return msgs, nil
}

func roleFor(r conversation.Role) provider.MessageRole {
	if r == conversation.RoleAssistant {
		return provider.MessageRoleAssistant
	}
	return provider.MessageRoleUser
}
