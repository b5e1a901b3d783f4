package chat

import "github.com/kunskapsportal-search-api/internal/models"

// EntryKind types one transcript entry
type EntryKind string

const (
	EntryUser       EntryKind = "user"
	EntryAssistant  EntryKind = "assistant"
	EntryToolCall   EntryKind = "tool-call"
	EntryToolResult EntryKind = "tool-result"
	EntryToolError  EntryKind = "tool-error"
)

// Entry is one message of the conversation sent to the model.
// ToolName and Query are set on tool-call, tool-result and tool-error entries.
type Entry struct {
	Kind     EntryKind
	Content  string
	ToolName string
	Query    string
}

// Transcript is the append-only message list of one chat request
type Transcript struct {
	entries []Entry
}

// NewTranscript seeds a transcript with prior turns
func NewTranscript(history []models.ChatMessage) *Transcript {
	t := &Transcript{entries: make([]Entry, 0, len(history)+8)}
	for _, m := range history {
		switch m.Role {
		case models.RoleUser:
			t.Append(Entry{Kind: EntryUser, Content: m.Content})
		case models.RoleAssistant:
			t.Append(Entry{Kind: EntryAssistant, Content: m.Content})
		}
	}
	return t
}

// Append adds an entry at the end
func (t *Transcript) Append(e Entry) {
	t.entries = append(t.entries, e)
}

// Entries returns a copy of the entries in order
func (t *Transcript) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries
func (t *Transcript) Len() int {
	return len(t.entries)
}

// Count returns how many entries have the given kind
func (t *Transcript) Count(kind EntryKind) int {
	n := 0
	for _, e := range t.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}
