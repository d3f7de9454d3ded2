package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lakshmanmandapati/tensora/internal/config"
	"github.com/lakshmanmandapati/tensora/internal/models"
	"github.com/lakshmanmandapati/tensora/internal/transport"
)

// Transport is the slice of the backend client the chat flow depends on.
type Transport interface {
	Analyze(ctx context.Context, req transport.AnalyzeRequest) (*transport.Response, error)
	Stream(ctx context.Context, req transport.StreamRequest) (<-chan transport.StreamEvent, error)
	Execute(ctx context.Context, req transport.ExecuteRequest) (*transport.ExecuteResponse, error)
	CreateConversation(ctx context.Context, title string) (*transport.Conversation, error)
}

// UpdatedMsg tells the render layer a chat's transcript changed.
type UpdatedMsg struct {
	ChatID string
}

// OpenSettingsMsg asks the render layer to surface the settings form,
// sent when a prompt is rejected for a missing MCP URL.
type OpenSettingsMsg struct{}

// Reconciler orchestrates a prompt submission end to end: conversation
// binding, dispatch, placeholder lifecycle and error substitution. Every
// mutation targets the chat id captured at submission time, never the
// active chat at completion time.
type Reconciler struct {
	store    *Store
	client   Transport
	settings func() config.Settings
	executor *Executor
	logger   *slog.Logger
	notify   func(msg any)
}

func NewReconciler(store *Store, client Transport, settings func() config.Settings, executor *Executor, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:    store,
		client:   client,
		settings: settings,
		executor: executor,
		logger:   logger,
		notify:   func(any) {},
	}
}

// SetNotify installs the UI refresh hook. In the TUI this wraps
// Program.Send so streaming chunks repaint as they arrive.
func (r *Reconciler) SetNotify(fn func(msg any)) {
	if fn == nil {
		fn = func(any) {}
	}
	r.notify = fn
	r.executor.SetNotify(fn)
}

// Submit runs one prompt through the full state machine. It blocks until
// the terminal message is in place, so callers run it off the UI goroutine
// and gate their submit control while it is in flight.
func (r *Reconciler) Submit(ctx context.Context, chatID, prompt string) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return
	}

	st := r.settings()
	if st.MCPURL == "" {
		r.store.AppendMessages(chatID, models.NewMessage(models.RoleError, models.TypeText,
			"Please set the MCP Webhook URL in settings."))
		r.notify(UpdatedMsg{ChatID: chatID})
		r.notify(OpenSettingsMsg{})
		return
	}

	// Promote and title a brand-new chat before the placeholder goes in,
	// so the title reflects this prompt even if the call fails later.
	if r.store.MessageCount(chatID) == 0 {
		r.store.PromoteTemporary(chatID, DeriveTitle(prompt))
	}

	userMsg := models.NewMessage(models.RoleUser, models.TypeText, prompt)
	thinking := models.NewMessage(models.RoleAssistant, models.TypeThinking, "Analyzing...")
	r.store.AppendMessages(chatID, userMsg, thinking)
	r.notify(UpdatedMsg{ChatID: chatID})

	if st.UseStreaming {
		r.streamingResponse(ctx, st, chatID, prompt)
	} else {
		r.regularResponse(ctx, st, chatID, prompt)
	}
}

// bindConversation acquires a conversation id for the chat if it has none.
// Failure is degraded mode, not an error: the prompt proceeds untracked.
func (r *Reconciler) bindConversation(ctx context.Context, chatID string) string {
	if id := r.store.ConversationID(chatID); id != "" {
		return id
	}
	conv, err := r.client.CreateConversation(ctx, "")
	if err != nil {
		r.logger.Warn("conversation create failed, continuing without tracking", "chat", chatID, "error", err)
		return ""
	}
	r.store.SetConversationID(chatID, conv.ID)
	return conv.ID
}

func (r *Reconciler) regularResponse(ctx context.Context, st config.Settings, chatID, prompt string) {
	conversationID := r.bindConversation(ctx, chatID)

	resp, err := r.client.Analyze(ctx, transport.AnalyzeRequest{
		Provider:       st.Provider,
		Prompt:         prompt,
		MCPURL:         st.MCPURL,
		ServerName:     st.ServerName,
		ConversationID: conversationID,
	})
	if err != nil {
		r.fail(chatID, "Failed to analyze prompt: "+err.Error())
		return
	}

	// the backend may rebind the conversation
	if resp.ConversationID != "" && resp.ConversationID != conversationID {
		r.store.SetConversationID(chatID, resp.ConversationID)
	}

	switch {
	case resp.Error != "":
		r.fail(chatID, resp.Error)
	case resp.Mode == models.ModeChat:
		msg := models.NewMessage(models.RoleAssistant, models.TypeChat, resp.Content())
		msg.Mode = models.ModeChat
		r.store.Resolve(chatID, msg)
		r.notify(UpdatedMsg{ChatID: chatID})
	default:
		r.finishToolMode(ctx, st, chatID, resp)
	}
}

// finishToolMode either hands off to the executor (auto-execute, which
// owns the placeholder's fate from here) or resolves to a confirmable
// plan message.
func (r *Reconciler) finishToolMode(ctx context.Context, st config.Settings, chatID string, resp *transport.Response) {
	if st.AutoExecute && len(resp.Actions) > 0 {
		r.executor.Run(ctx, chatID, resp.Actions, resp.Plan)
		return
	}
	msg := models.NewMessage(models.RoleAssistant, models.TypePlan, FormatPlanMessage(resp))
	msg.Mode = models.ModeTool
	msg.Actions = resp.Actions
	msg.Plan = resp.Plan
	msg.Confidence = resp.Confidence
	r.store.Resolve(chatID, msg)
	r.notify(UpdatedMsg{ChatID: chatID})
}

func (r *Reconciler) streamingResponse(ctx context.Context, st config.Settings, chatID, prompt string) {
	conversationID := r.bindConversation(ctx, chatID)

	events, err := r.client.Stream(ctx, transport.StreamRequest{
		Action:         "ai_analyze",
		Provider:       st.Provider,
		Prompt:         prompt,
		URL:            st.MCPURL,
		ServerName:     st.ServerName,
		ConversationID: conversationID,
	})
	if err != nil {
		r.fail(chatID, "Failed to analyze prompt: "+err.Error())
		return
	}

	// Swap the thinking placeholder for a streaming one the moment the
	// stream opens; its id survives through finalization.
	streaming := models.NewMessage(models.RoleAssistant, models.TypeStreaming, "")
	r.store.Resolve(chatID, streaming)
	r.notify(UpdatedMsg{ChatID: chatID})

	terminal := false
	for ev := range events {
		switch ev.Type {
		case transport.EventChunk:
			// Concatenate onto the latest accumulated content: the update
			// closure reads the live message, not a snapshot.
			r.store.ReplaceMessage(chatID, streaming.ID, func(m *models.Message) {
				m.Content += ev.Content
				m.Type = models.TypeStreaming
			})
			r.notify(UpdatedMsg{ChatID: chatID})
		case transport.EventComplete:
			terminal = true
			r.completeStream(ctx, st, chatID, streaming.ID, ev.Payload)
		case transport.EventError:
			terminal = true
			r.store.ReplaceMessage(chatID, streaming.ID, func(m *models.Message) {
				m.Role = models.RoleError
				m.Type = models.TypeText
				m.Content = ev.Err
			})
			r.notify(UpdatedMsg{ChatID: chatID})
		case transport.EventStatus:
			r.logger.Debug("stream status", "chat", chatID, "message", ev.Status)
		}
	}

	if !terminal {
		// stream ended without a complete/error event
		r.store.ReplaceMessage(chatID, streaming.ID, func(m *models.Message) {
			if m.Content == "" {
				m.Role = models.RoleError
				m.Content = "Stream ended unexpectedly."
			}
			m.Type = models.TypeText
		})
		r.notify(UpdatedMsg{ChatID: chatID})
	}
}

func (r *Reconciler) completeStream(ctx context.Context, st config.Settings, chatID, messageID string, resp *transport.Response) {
	if resp.ConversationID != "" {
		r.store.SetConversationID(chatID, resp.ConversationID)
	}

	if resp.Mode == models.ModeChat {
		r.store.ReplaceMessage(chatID, messageID, func(m *models.Message) {
			m.Type = models.TypeChat
			m.Mode = models.ModeChat
			m.Content = resp.Content()
		})
		r.notify(UpdatedMsg{ChatID: chatID})
		return
	}

	if st.AutoExecute && len(resp.Actions) > 0 {
		// executor replaces the streaming placeholder with its own marker
		r.executor.Run(ctx, chatID, resp.Actions, resp.Plan)
		return
	}

	r.store.ReplaceMessage(chatID, messageID, func(m *models.Message) {
		m.Type = models.TypePlan
		m.Mode = models.ModeTool
		m.Content = FormatPlanMessage(resp)
		m.Actions = resp.Actions
		m.Plan = resp.Plan
		m.Confidence = resp.Confidence
	})
	r.notify(UpdatedMsg{ChatID: chatID})
}

// fail substitutes whatever placeholder is pending with an error message.
func (r *Reconciler) fail(chatID, text string) {
	r.store.Resolve(chatID, models.NewMessage(models.RoleError, models.TypeText, text))
	r.notify(UpdatedMsg{ChatID: chatID})
}
