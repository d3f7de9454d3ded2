package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleError     = "error"
)

// Message types. Thinking, streaming and executing are transient
// placeholders; the rest are terminal and govern rendering.
const (
	TypeText            = "text"
	TypeThinking        = "thinking"
	TypeStreaming       = "streaming"
	TypeExecuting       = "executing"
	TypeChat            = "chat"
	TypePlan            = "plan"
	TypeExecutionResult = "execution_result"
	TypeMarkdown        = "markdown"
)

const (
	ModeChat = "chat"
	ModeTool = "tool"
)

// PlaceholderTypes lists the transient message types. A chat holds at most
// one placeholder at a time and it is always the last appended message.
var PlaceholderTypes = []string{TypeThinking, TypeStreaming, TypeExecuting}

// Action is a single proposed tool invocation inside a plan.
type Action struct {
	Tool       string         `json:"tool"`
	Reasoning  string         `json:"reasoning"`
	Parameters map[string]any `json:"parameters"`
}

// ActionResult is the backend's outcome for one executed action. The
// backend echoes only the tool name, not the full action.
type ActionResult struct {
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ExecutionData carries the raw execution outcome attached to an
// execution_result message, kept verbatim for structured rendering.
type ExecutionData struct {
	Results []ActionResult `json:"results,omitempty"`
	Error   string         `json:"error,omitempty"`
}

type Message struct {
	ID            string
	Role          string
	Type          string
	Content       string
	Mode          string
	Actions       []Action
	Plan          string
	Confidence    float64
	ExecutionData *ExecutionData
	Timestamp     time.Time
}

// IsPlaceholder reports whether the message is transient.
func (m Message) IsPlaceholder() bool {
	switch m.Type {
	case TypeThinking, TypeStreaming, TypeExecuting:
		return true
	default:
		return false
	}
}

// NewMessage mints a message with a fresh UUID. Wall-clock derived ids
// collide under fast successive calls, so ids are random.
func NewMessage(role, msgType, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Type:      msgType,
		Content:   content,
		Timestamp: time.Now(),
	}
}

type Chat struct {
	ID             string
	Title          string
	Messages       []Message
	ConversationID string
	IsTemporary    bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Clone returns a deep copy so callers never alias live store state.
func (c Chat) Clone() Chat {
	out := c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	for i := range out.Messages {
		if ed := out.Messages[i].ExecutionData; ed != nil {
			cp := *ed
			cp.Results = append([]ActionResult(nil), ed.Results...)
			out.Messages[i].ExecutionData = &cp
		}
		if acts := out.Messages[i].Actions; acts != nil {
			out.Messages[i].Actions = append([]Action(nil), acts...)
		}
	}
	return out
}

// ChatListItem is a row in the archived chat browser.
type ChatListItem struct {
	ID            string
	Title         string
	UpdatedAtUnix int64
}
