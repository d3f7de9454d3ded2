package chat

import (
	"context"
	"log/slog"

	"github.com/lakshmanmandapati/tensora/internal/config"
	"github.com/lakshmanmandapati/tensora/internal/models"
	"github.com/lakshmanmandapati/tensora/internal/transport"
)

// Executor drives a plan message through its lifecycle:
// Proposed -> Confirmed/Cancelled -> Executing -> Completed/Failed.
type Executor struct {
	store    *Store
	client   Transport
	settings func() config.Settings
	logger   *slog.Logger
	notify   func(msg any)
}

func NewExecutor(store *Store, client Transport, settings func() config.Settings, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{store: store, client: client, settings: settings, logger: logger, notify: func(any) {}}
}

// SetNotify installs the UI refresh hook.
func (e *Executor) SetNotify(fn func(msg any)) {
	if fn == nil {
		fn = func(any) {}
	}
	e.notify = fn
}

// Confirm removes the plan message and executes its actions.
func (e *Executor) Confirm(ctx context.Context, chatID, messageID string, actions []models.Action, plan string) {
	e.store.RemoveMessage(chatID, messageID)
	e.notify(UpdatedMsg{ChatID: chatID})
	e.Run(ctx, chatID, actions, plan)
}

// Cancel removes the plan message and appends a neutral assistant note.
// No network call is made.
func (e *Executor) Cancel(chatID, messageID string) {
	e.store.RemoveMessage(chatID, messageID)
	e.store.AppendMessages(chatID, models.NewMessage(models.RoleAssistant, models.TypeText,
		"Execution cancelled. How else can I help you?"))
	e.notify(UpdatedMsg{ChatID: chatID})
}

// Run executes a plan's actions against the MCP endpoint. Any placeholder
// already in the chat (the auto-execute hand-off keeps the prompt flow's
// thinking/streaming message alive) is replaced by the executing marker.
func (e *Executor) Run(ctx context.Context, chatID string, actions []models.Action, plan string) {
	if len(actions) == 0 {
		e.store.AppendMessages(chatID, models.NewMessage(models.RoleError, models.TypeText, "No actions to execute."))
		e.notify(UpdatedMsg{ChatID: chatID})
		return
	}

	executing := models.NewMessage(models.RoleAssistant, models.TypeExecuting, "Executing plan...")
	e.store.Resolve(chatID, executing)
	e.notify(UpdatedMsg{ChatID: chatID})

	st := e.settings()
	resp, err := e.client.Execute(ctx, transport.ExecuteRequest{
		Actions:        actions,
		MCPURL:         st.MCPURL,
		ServerName:     st.ServerName,
		ConversationID: e.store.ConversationID(chatID),
	})

	result := models.NewMessage(models.RoleAssistant, models.TypeExecutionResult, "")
	result.Mode = models.ModeTool
	switch {
	case err != nil:
		e.logger.Warn("plan execution failed", "chat", chatID, "error", err)
		result.Content = "**Execution Failed:**\n\n" + err.Error()
		result.ExecutionData = &models.ExecutionData{Error: err.Error()}
	case resp.Error != "":
		result.Content = "**Execution Failed:**\n\n" + resp.Error
		result.ExecutionData = &models.ExecutionData{Error: resp.Error}
	case len(resp.Results) > 0:
		result.Content = FormatExecutionResults(resp.Results, plan)
		result.ExecutionData = &models.ExecutionData{Results: resp.Results}
	default:
		result.Content = "**Execution completed** but no detailed results were returned."
		result.ExecutionData = &models.ExecutionData{}
	}

	e.store.Resolve(chatID, result)
	e.notify(UpdatedMsg{ChatID: chatID})
}
