package ui

import (
	"context"
	"log/slog"
	"math/rand"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lakshmanmandapati/tensora/internal/chat"
	"github.com/lakshmanmandapati/tensora/internal/config"
	"github.com/lakshmanmandapati/tensora/internal/db"
	"github.com/lakshmanmandapati/tensora/internal/styles"
	"github.com/lakshmanmandapati/tensora/internal/transport"
)

func InitialModel(cfg *config.Manager, logger *slog.Logger) Model {
	styles.InitTheme()

	client := transport.New(cfg.Get().BackendURL, transport.WithLogger(logger))

	store := chat.NewStore()
	executor := chat.NewExecutor(store, client, cfg.Get, logger)
	reconciler := chat.NewReconciler(store, client, cfg.Get, executor, logger)

	ti := textarea.New()
	ti.Placeholder = "Ask Tensora AI..."
	ti.Prompt = "❯ "
	ti.ShowLineNumbers = false
	ti.CharLimit = 0
	ti.MaxHeight = 6
	ti.SetHeight(2)
	ti.SetWidth(80)
	ti.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(lipgloss.Color("#80CBC4")).Bold(true)
	ti.BlurredStyle.Prompt = lipgloss.NewStyle().Foreground(lipgloss.Color("#80CBC4")).Bold(true)
	ti.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color("#545454"))
	ti.BlurredStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color("#545454"))
	ti.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ti.BlurredStyle.CursorLine = lipgloss.NewStyle()
	ti.Focus()

	si := textinput.New()
	si.Prompt = ""
	si.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#80CBC4"))

	vp := viewport.New(60, 15)

	conn, dbErr := db.OpenDefault()
	if dbErr != nil {
		logger.Warn("chat archive unavailable", "error", dbErr)
	}

	return Model{
		TextInput:     ti,
		SettingsInput: si,
		Viewport:      vp,
		Spinner:       sp,
		Store:         store,
		Reconciler:    reconciler,
		Executor:      executor,
		Config:        cfg,
		Client:        client,
		Logger:        logger,
		DB:            conn,
		DBErr:         dbErr,
		Suggestion:    PromptSuggestions[rand.Intn(len(PromptSuggestions))],
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.TextInput.Cursor.BlinkCmd(),
		m.Spinner.Tick,
		m.healthCheckCmd(),
	)
}

func (m *Model) healthCheckCmd() tea.Cmd {
	return func() tea.Msg {
		return HealthMsg(m.Client.Healthy(context.Background()))
	}
}

// NewProgram wires the model, the bubbletea program and the store
// notification hook together. Store updates from network goroutines
// arrive as messages via Program.Send.
func NewProgram(cfg *config.Manager, logger *slog.Logger) *tea.Program {
	m := InitialModel(cfg, logger)
	p := tea.NewProgram(&m, tea.WithAltScreen())
	m.Program = p
	m.Reconciler.SetNotify(func(msg any) {
		p.Send(msg)
	})
	return p
}
