// Package prompt builds the message list sent to the model: a system prompt
// chosen by the detected intent, followed by the user's stored history.
package prompt

import "maps"

// IntentTable maps an intent label to the instruction prepended to the
// base prompt. It is read-only once built.
type IntentTable struct {
	instructions map[string]string
}

// NewIntentTable copies m into a new table. Entries with an empty label or
// empty instruction are ignored.
func NewIntentTable(m map[string]string) IntentTable {
	cp := make(map[string]string, len(m))
	for label, instr := range m {
		if label == "" || instr == "" {
			continue
		}
		cp[label] = instr
	}
	return IntentTable{instructions: cp}
}

// Instruction returns the instruction for label. Labels match exactly.
func (t IntentTable) Instruction(label string) (string, bool) {
	instr, ok := t.instructions[label]
	return instr, ok
}

// Entries returns a copy of the table's entries.
func (t IntentTable) Entries() map[string]string {
	return maps.Clone(t.instructions)
}

// Len returns the number of intents with an instruction.
func (t IntentTable) Len() int { return len(t.instructions) }
