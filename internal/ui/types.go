package ui

import (
	"database/sql"
	"log/slog"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/lakshmanmandapati/tensora/internal/chat"
	"github.com/lakshmanmandapati/tensora/internal/config"
	"github.com/lakshmanmandapati/tensora/internal/models"
	"github.com/lakshmanmandapati/tensora/internal/transport"
)

const (
	MaxChatWidth    = 100
	HistoryPageSize = 10
)

var ModalWidth = 60

// Starter prompts shown on the welcome screen.
var PromptSuggestions = []string{
	"What are you working on?",
	"What's on your mind today?",
	"Where should we begin?",
	"What's on the agenda today?",
}

type ErrMsg error

// SubmitDoneMsg signals that a prompt submission or plan execution for a
// chat has fully settled; it clears the loading gate.
type SubmitDoneMsg struct {
	ChatID string
}

// HealthMsg carries the backend health probe result.
type HealthMsg bool

// SettingsChangedMsg is sent when the settings file is edited on disk.
type SettingsChangedMsg struct {
	Settings config.Settings
}

// Settings modal rows.
const (
	SettingMCPURL = iota
	SettingProvider
	SettingAutoExecute
	SettingStreaming
	SettingFieldCount
)

type Model struct {
	Viewport  viewport.Model
	TextInput textarea.Model
	Spinner   spinner.Model
	Renderer  *glamour.TermRenderer

	Store      *chat.Store
	Reconciler *chat.Reconciler
	Executor   *chat.Executor
	Config     *config.Manager
	Client     *transport.Client
	Logger     *slog.Logger

	DB    *sql.DB
	DBErr error

	Program *tea.Program

	Loading        bool
	Err            error
	WindowWidth    int
	WindowHeight   int
	Suggestion     string
	BackendHealthy bool

	// Settings modal
	SettingsOpen    bool
	SettingsCursor  int
	SettingsEditing bool
	SettingsInput   textinput.Model

	// Archived-chat browser
	HistoryOpen        bool
	HistorySelectedIdx int
	HistoryChatCount   int
	HistoryChats       []models.ChatListItem
	HistoryErr         error
	HistoryPage        int

	// Live chat switcher
	SwitcherOpen        bool
	SwitcherSelectedIdx int
	SwitcherChats       []models.Chat
}
