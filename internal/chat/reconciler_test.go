package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakshmanmandapati/tensora/internal/config"
	"github.com/lakshmanmandapati/tensora/internal/models"
	"github.com/lakshmanmandapati/tensora/internal/transport"
)

// fakeTransport scripts backend behavior per test.
type fakeTransport struct {
	analyzeResp *transport.Response
	analyzeErr  error
	analyzeReqs []transport.AnalyzeRequest

	streamEvents []transport.StreamEvent
	streamErr    error
	streamReqs   []transport.StreamRequest

	executeResp *transport.ExecuteResponse
	executeErr  error
	executeReqs []transport.ExecuteRequest

	conversation    *transport.Conversation
	conversationErr error
	createCalls     int
}

func (f *fakeTransport) Analyze(_ context.Context, req transport.AnalyzeRequest) (*transport.Response, error) {
	f.analyzeReqs = append(f.analyzeReqs, req)
	return f.analyzeResp, f.analyzeErr
}

func (f *fakeTransport) Stream(_ context.Context, req transport.StreamRequest) (<-chan transport.StreamEvent, error) {
	f.streamReqs = append(f.streamReqs, req)
	if f.streamErr != nil {
		return nil, f.streamErr
	}
	out := make(chan transport.StreamEvent, len(f.streamEvents))
	for _, ev := range f.streamEvents {
		out <- ev
	}
	close(out)
	return out, nil
}

func (f *fakeTransport) Execute(_ context.Context, req transport.ExecuteRequest) (*transport.ExecuteResponse, error) {
	f.executeReqs = append(f.executeReqs, req)
	return f.executeResp, f.executeErr
}

func (f *fakeTransport) CreateConversation(context.Context, string) (*transport.Conversation, error) {
	f.createCalls++
	return f.conversation, f.conversationErr
}

func settingsWith(fn func(*config.Settings)) func() config.Settings {
	return func() config.Settings {
		s := config.Default()
		s.MCPURL = "https://mcp.example.com/webhook"
		if fn != nil {
			fn(&s)
		}
		return s
	}
}

func newTestReconciler(client *fakeTransport, settings func() config.Settings) (*Reconciler, *Store) {
	store := NewStore()
	exec := NewExecutor(store, client, settings, nil)
	return NewReconciler(store, client, settings, exec, nil), store
}

func TestSubmit_EmptyPromptIsNoOp(t *testing.T) {
	t.Parallel()

	client := &fakeTransport{}
	r, store := newTestReconciler(client, settingsWith(nil))
	id := store.ActiveID()

	r.Submit(context.Background(), id, "   \n\t  ")

	c, _ := store.Chat(id)
	assert.Empty(t, c.Messages)
	assert.True(t, c.IsTemporary)
	assert.Zero(t, client.createCalls)
}

func TestSubmit_MissingMCPURL(t *testing.T) {
	t.Parallel()

	client := &fakeTransport{}
	settings := settingsWith(func(s *config.Settings) { s.MCPURL = "" })
	r, store := newTestReconciler(client, settings)
	id := store.ActiveID()

	var msgs []any
	r.SetNotify(func(msg any) { msgs = append(msgs, msg) })

	r.Submit(context.Background(), id, "list my tasks")

	c, _ := store.Chat(id)
	require.Len(t, c.Messages, 1)
	assert.Equal(t, models.RoleError, c.Messages[0].Role)
	assert.Contains(t, c.Messages[0].Content, "MCP Webhook URL")

	// no prompt was sent, and the settings form was requested
	assert.Empty(t, client.analyzeReqs)
	assert.Zero(t, client.createCalls)
	assert.Contains(t, msgs, OpenSettingsMsg{})
}

func TestSubmit_ChatMode(t *testing.T) {
	t.Parallel()

	client := &fakeTransport{
		conversation: &transport.Conversation{ID: "conv-9"},
		analyzeResp: &transport.Response{
			Mode:     models.ModeChat,
			Response: "The capital of France is Paris.",
		},
	}
	settings := settingsWith(func(s *config.Settings) { s.UseStreaming = false })
	r, store := newTestReconciler(client, settings)
	id := store.ActiveID()

	r.Submit(context.Background(), id, "What is the capital of France?")

	c, _ := store.Chat(id)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, models.RoleUser, c.Messages[0].Role)
	assert.Equal(t, models.TypeChat, c.Messages[1].Type)
	assert.Equal(t, "The capital of France is Paris.", c.Messages[1].Content)
	assert.False(t, c.Messages[1].IsPlaceholder())

	// first prompt promotes and titles the chat
	assert.False(t, c.IsTemporary)
	assert.Equal(t, "What is the capital of France?", c.Title)

	assert.Equal(t, "conv-9", store.ConversationID(id))
	require.Len(t, client.analyzeReqs, 1)
	assert.Equal(t, "conv-9", client.analyzeReqs[0].ConversationID)
}

func TestSubmit_PlanMode(t *testing.T) {
	t.Parallel()

	actions := []models.Action{{Tool: "create_task", Reasoning: "user asked for a task"}}
	client := &fakeTransport{
		conversation: &transport.Conversation{ID: "conv-1"},
		analyzeResp: &transport.Response{
			Mode:       models.ModeTool,
			Plan:       "Create a task called demo",
			Actions:    actions,
			Confidence: 0.9,
		},
	}
	settings := settingsWith(func(s *config.Settings) { s.UseStreaming = false })
	r, store := newTestReconciler(client, settings)
	id := store.ActiveID()

	r.Submit(context.Background(), id, "create a task called demo")

	c, _ := store.Chat(id)
	require.Len(t, c.Messages, 2)
	plan := c.Messages[1]
	assert.Equal(t, models.TypePlan, plan.Type)
	assert.Equal(t, models.ModeTool, plan.Mode)
	assert.Equal(t, actions, plan.Actions)
	assert.Contains(t, plan.Content, "Shall I proceed with execution?")
	assert.Contains(t, plan.Content, "create_task")

	// a proposed plan must not execute on its own
	assert.Empty(t, client.executeReqs)
}

func TestSubmit_AutoExecuteSkipsProposal(t *testing.T) {
	t.Parallel()

	actions := []models.Action{{Tool: "create_task"}}
	client := &fakeTransport{
		conversation: &transport.Conversation{ID: "conv-1"},
		analyzeResp: &transport.Response{
			Mode:    models.ModeTool,
			Plan:    "Create it",
			Actions: actions,
		},
		executeResp: &transport.ExecuteResponse{
			Results: []models.ActionResult{
				{Action: "create_task", Success: true, Result: "created"},
			},
		},
	}
	settings := settingsWith(func(s *config.Settings) {
		s.UseStreaming = false
		s.AutoExecute = true
	})
	r, store := newTestReconciler(client, settings)
	id := store.ActiveID()

	r.Submit(context.Background(), id, "create a task")

	c, _ := store.Chat(id)
	require.Len(t, c.Messages, 2)
	result := c.Messages[1]
	assert.Equal(t, models.TypeExecutionResult, result.Type)
	assert.Contains(t, result.Content, "Execution Results")
	require.NotNil(t, result.ExecutionData)
	assert.Len(t, result.ExecutionData.Results, 1)

	require.Len(t, client.executeReqs, 1)
	assert.Equal(t, actions, client.executeReqs[0].Actions)
}

func TestSubmit_AnalyzeFailureResolvesToError(t *testing.T) {
	t.Parallel()

	client := &fakeTransport{
		conversation: &transport.Conversation{ID: "conv-1"},
		analyzeErr:   errors.New("connection refused"),
	}
	settings := settingsWith(func(s *config.Settings) { s.UseStreaming = false })
	r, store := newTestReconciler(client, settings)
	id := store.ActiveID()

	r.Submit(context.Background(), id, "hello")

	c, _ := store.Chat(id)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, models.RoleError, c.Messages[1].Role)
	assert.Contains(t, c.Messages[1].Content, "Failed to analyze prompt")
	assert.Contains(t, c.Messages[1].Content, "connection refused")
	for _, m := range c.Messages {
		assert.False(t, m.IsPlaceholder())
	}
}

func TestSubmit_BackendErrorField(t *testing.T) {
	t.Parallel()

	client := &fakeTransport{
		conversation: &transport.Conversation{ID: "conv-1"},
		analyzeResp:  &transport.Response{Error: "provider quota exceeded"},
	}
	settings := settingsWith(func(s *config.Settings) { s.UseStreaming = false })
	r, store := newTestReconciler(client, settings)
	id := store.ActiveID()

	r.Submit(context.Background(), id, "hello")

	c, _ := store.Chat(id)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, models.RoleError, c.Messages[1].Role)
	assert.Equal(t, "provider quota exceeded", c.Messages[1].Content)
}

func TestSubmit_ConversationBindingDegradedMode(t *testing.T) {
	t.Parallel()

	client := &fakeTransport{
		conversationErr: errors.New("conversation service down"),
		analyzeResp: &transport.Response{
			Mode:     models.ModeChat,
			Response: "hi there",
		},
	}
	settings := settingsWith(func(s *config.Settings) { s.UseStreaming = false })
	r, store := newTestReconciler(client, settings)
	id := store.ActiveID()

	r.Submit(context.Background(), id, "hello")

	// binding failure never blocks the prompt
	c, _ := store.Chat(id)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, "hi there", c.Messages[1].Content)

	require.Len(t, client.analyzeReqs, 1)
	assert.Empty(t, client.analyzeReqs[0].ConversationID)
	assert.Empty(t, store.ConversationID(id))
}

func TestSubmit_ExistingConversationReused(t *testing.T) {
	t.Parallel()

	client := &fakeTransport{
		analyzeResp: &transport.Response{Mode: models.ModeChat, Response: "ok"},
	}
	settings := settingsWith(func(s *config.Settings) { s.UseStreaming = false })
	r, store := newTestReconciler(client, settings)
	id := store.ActiveID()
	store.SetConversationID(id, "conv-existing")

	r.Submit(context.Background(), id, "hello")

	assert.Zero(t, client.createCalls)
	require.Len(t, client.analyzeReqs, 1)
	assert.Equal(t, "conv-existing", client.analyzeReqs[0].ConversationID)
}

func TestSubmit_StreamingChunksAccumulate(t *testing.T) {
	t.Parallel()

	client := &fakeTransport{
		conversation: &transport.Conversation{ID: "conv-1"},
		streamEvents: []transport.StreamEvent{
			{Type: transport.EventStatus, Status: "analyzing"},
			{Type: transport.EventChunk, Content: "He"},
			{Type: transport.EventChunk, Content: "llo"},
			{Type: transport.EventComplete, Payload: &transport.Response{
				Mode:     models.ModeChat,
				Response: "Hello",
			}},
		},
	}
	settings := settingsWith(func(s *config.Settings) { s.UseStreaming = true })
	r, store := newTestReconciler(client, settings)
	id := store.ActiveID()

	var streamingID string
	r.SetNotify(func(msg any) {
		// capture the streaming message id mid-flight
		if _, ok := msg.(UpdatedMsg); !ok {
			return
		}
		c, _ := store.Chat(id)
		for _, m := range c.Messages {
			if m.Type == models.TypeStreaming {
				streamingID = m.ID
			}
		}
	})

	r.Submit(context.Background(), id, "say hello")

	c, _ := store.Chat(id)
	require.Len(t, c.Messages, 2)
	final := c.Messages[1]
	assert.Equal(t, models.TypeChat, final.Type)
	assert.Equal(t, "Hello", final.Content)

	// the finalized message keeps the streaming placeholder's identity
	require.NotEmpty(t, streamingID)
	assert.Equal(t, streamingID, final.ID)

	require.Len(t, client.streamReqs, 1)
	assert.Equal(t, "ai_analyze", client.streamReqs[0].Action)
}

func TestSubmit_StreamingCompleteWithPlan(t *testing.T) {
	t.Parallel()

	actions := []models.Action{{Tool: "send_email"}}
	client := &fakeTransport{
		conversation: &transport.Conversation{ID: "conv-1"},
		streamEvents: []transport.StreamEvent{
			{Type: transport.EventChunk, Content: "Planning..."},
			{Type: transport.EventComplete, Payload: &transport.Response{
				Mode:    models.ModeTool,
				Plan:    "Send the email",
				Actions: actions,
			}},
		},
	}
	settings := settingsWith(func(s *config.Settings) { s.UseStreaming = true })
	r, store := newTestReconciler(client, settings)
	id := store.ActiveID()

	r.Submit(context.Background(), id, "email bob")

	c, _ := store.Chat(id)
	require.Len(t, c.Messages, 2)
	plan := c.Messages[1]
	assert.Equal(t, models.TypePlan, plan.Type)
	assert.Equal(t, actions, plan.Actions)
	assert.Empty(t, client.executeReqs)
}

func TestSubmit_StreamingErrorEvent(t *testing.T) {
	t.Parallel()

	client := &fakeTransport{
		conversation: &transport.Conversation{ID: "conv-1"},
		streamEvents: []transport.StreamEvent{
			{Type: transport.EventChunk, Content: "partial"},
			{Type: transport.EventError, Err: "model overloaded"},
		},
	}
	settings := settingsWith(func(s *config.Settings) { s.UseStreaming = true })
	r, store := newTestReconciler(client, settings)
	id := store.ActiveID()

	r.Submit(context.Background(), id, "hello")

	c, _ := store.Chat(id)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, models.RoleError, c.Messages[1].Role)
	assert.Equal(t, models.TypeText, c.Messages[1].Type)
	assert.Equal(t, "model overloaded", c.Messages[1].Content)
}

func TestSubmit_StreamEndsWithoutTerminalEvent(t *testing.T) {
	t.Parallel()

	client := &fakeTransport{
		conversation: &transport.Conversation{ID: "conv-1"},
		streamEvents: []transport.StreamEvent{
			{Type: transport.EventChunk, Content: "some text"},
		},
	}
	settings := settingsWith(func(s *config.Settings) { s.UseStreaming = true })
	r, store := newTestReconciler(client, settings)
	id := store.ActiveID()

	r.Submit(context.Background(), id, "hello")

	c, _ := store.Chat(id)
	require.Len(t, c.Messages, 2)
	// accumulated text is kept, just no longer a placeholder
	assert.Equal(t, models.TypeText, c.Messages[1].Type)
	assert.Equal(t, "some text", c.Messages[1].Content)
	assert.Equal(t, models.RoleAssistant, c.Messages[1].Role)
}

func TestSubmit_StreamOpenFailure(t *testing.T) {
	t.Parallel()

	client := &fakeTransport{
		conversation: &transport.Conversation{ID: "conv-1"},
		streamErr:    errors.New("bad gateway"),
	}
	settings := settingsWith(func(s *config.Settings) { s.UseStreaming = true })
	r, store := newTestReconciler(client, settings)
	id := store.ActiveID()

	r.Submit(context.Background(), id, "hello")

	c, _ := store.Chat(id)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, models.RoleError, c.Messages[1].Role)
	assert.Contains(t, c.Messages[1].Content, "bad gateway")
}

func TestSubmit_TargetsSubmissionChatNotActive(t *testing.T) {
	t.Parallel()

	client := &fakeTransport{
		conversation: &transport.Conversation{ID: "conv-1"},
		analyzeResp:  &transport.Response{Mode: models.ModeChat, Response: "answer"},
	}
	settings := settingsWith(func(s *config.Settings) { s.UseStreaming = false })
	r, store := newTestReconciler(client, settings)
	submitted := store.ActiveID()

	// user switches away mid-flight; the response still lands in the
	// chat that was active at submission time
	other := store.CreateChat()
	require.NoError(t, store.AppendMessages(other, models.NewMessage(models.RoleUser, models.TypeText, "seed")))
	require.NoError(t, store.SetActive(other))

	r.Submit(context.Background(), submitted, "question")

	c, _ := store.Chat(submitted)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, "answer", c.Messages[1].Content)

	o, _ := store.Chat(other)
	assert.Len(t, o.Messages, 1)
}
