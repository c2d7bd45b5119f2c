package chat

import "time"

// PartType identifies the kind of a message part.
type PartType string

const (
	PartTypeText      PartType = "text"
	PartTypeReasoning PartType = "reasoning"
	PartTypeTool      PartType = "tool"
	PartTypePatch     PartType = "patch"
	PartTypeAgent     PartType = "agent"
)

// Part is one typed segment of a message, individually addressable by ID
// and independently updatable. Only text-kind parts accept delta appends.
type Part struct {
	ID   string   `json:"id"`
	Type PartType `json:"type"`
	Text string   `json:"text,omitempty"`
}

// Message is a chat message: either a committed record from the store or
// the in-flight accumulator being assembled from domain events.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionID"`
	Role      string    `json:"role"`
	Parts     []Part    `json:"parts"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUserMessage builds a committed single-text-part user message.
func NewUserMessage(id, sessionID, content string) *Message {
	return &Message{
		ID:        id,
		SessionID: sessionID,
		Role:      "user",
		Parts: []Part{
			{ID: id + "-text", Type: PartTypeText, Text: content},
		},
		CreatedAt: time.Now().UTC(),
	}
}

// Text returns the concatenated text content of all text-kind parts.
func (m *Message) Text() string {
	var out string
	for _, part := range m.Parts {
		if part.Type == PartTypeText {
			out += part.Text
		}
	}
	return out
}

// Clone returns a deep copy. Snapshots handed to callers are clones so the
// live accumulator is never aliased outside the assembler.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}

	cp := *m
	cp.Parts = make([]Part, len(m.Parts))
	copy(cp.Parts, m.Parts)
	return &cp
}

// part returns the part with the given ID, or nil if unknown.
func (m *Message) part(id string) *Part {
	for i := range m.Parts {
		if m.Parts[i].ID == id {
			return &m.Parts[i]
		}
	}
	return nil
}
