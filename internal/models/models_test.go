package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	t.Parallel()

	m := NewMessage(RoleUser, TypeText, "hello")
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, RoleUser, m.Role)
	assert.Equal(t, TypeText, m.Type)
	assert.Equal(t, "hello", m.Content)
	assert.False(t, m.Timestamp.IsZero())

	other := NewMessage(RoleUser, TypeText, "hello")
	assert.NotEqual(t, m.ID, other.ID)
}

func TestIsPlaceholder(t *testing.T) {
	t.Parallel()

	for _, typ := range PlaceholderTypes {
		assert.True(t, NewMessage(RoleAssistant, typ, "").IsPlaceholder(), typ)
	}
	for _, typ := range []string{TypeText, TypeChat, TypePlan, TypeExecutionResult, TypeMarkdown} {
		assert.False(t, NewMessage(RoleAssistant, typ, "").IsPlaceholder(), typ)
	}
}

func TestChatClone_IsDeep(t *testing.T) {
	t.Parallel()

	c := Chat{
		ID:    "c1",
		Title: "Original",
		Messages: []Message{
			{ID: "m1", Content: "one", Actions: []Action{{Tool: "t", Parameters: map[string]any{"k": "v"}}}},
		},
	}

	clone := c.Clone()
	clone.Messages[0].Content = "mutated"
	clone.Messages[0].Actions[0].Tool = "other"

	assert.Equal(t, "one", c.Messages[0].Content)
	assert.Equal(t, "t", c.Messages[0].Actions[0].Tool)

	require.Len(t, clone.Messages, 1)
	assert.Equal(t, "mutated", clone.Messages[0].Content)
}
