package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/lakshmanmandapati/tensora/internal/chat"
	"github.com/lakshmanmandapati/tensora/internal/config"
	"github.com/lakshmanmandapati/tensora/internal/db"
	"github.com/lakshmanmandapati/tensora/internal/models"
	"github.com/lakshmanmandapati/tensora/internal/styles"
)

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case spinner.TickMsg:
		m.Spinner, spCmd = m.Spinner.Update(msg)
		if m.Loading {
			m.UpdateViewport()
		}
		return m, spCmd

	case chat.UpdatedMsg:
		if msg.ChatID == m.Store.ActiveID() {
			m.UpdateViewport()
			m.Viewport.GotoBottom()
		}
		return m, nil

	case chat.OpenSettingsMsg:
		m.OpenSettings()
		return m, nil

	case SubmitDoneMsg:
		m.Loading = false
		m.PersistChat(msg.ChatID)
		m.UpdateViewport()
		return m, nil

	case HealthMsg:
		m.BackendHealthy = bool(msg)
		return m, nil

	case SettingsChangedMsg:
		// Settings file edited outside the app; the manager already holds
		// the new values, the bottom bar just needs a repaint.
		m.UpdateViewport()
		return m, nil

	case ErrMsg:
		m.Loading = false
		m.Err = msg
		m.UpdateViewport()
		return m, nil

	case tea.KeyMsg:
		if m.SettingsOpen {
			return m.updateSettingsModal(msg)
		}
		if m.HistoryOpen {
			return m.updateHistoryModal(msg)
		}
		if m.SwitcherOpen {
			return m.updateSwitcherModal(msg)
		}

		if isNewlineShortcut(msg) {
			m.TextInput.InsertString("\n")
			m.updateInputLayout()
			return m, nil
		}

		// A proposed plan waits on y/n while the input is empty.
		if plan, ok := m.PendingPlan(); ok && strings.TrimSpace(m.TextInput.Value()) == "" {
			chatID := m.Store.ActiveID()
			switch msg.String() {
			case "y", "Y":
				m.Loading = true
				m.UpdateViewport()
				return m, tea.Batch(m.confirmPlanCmd(chatID, plan), m.Spinner.Tick)
			case "n", "N":
				m.Executor.Cancel(chatID, plan.ID)
				m.UpdateViewport()
				return m, nil
			}
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit

		case tea.KeyCtrlN:
			m.Store.StartNewChat()
			m.TextInput.Reset()
			m.updateInputLayout()
			m.UpdateViewport()
			m.Viewport.GotoTop()
			return m, nil

		case tea.KeyCtrlS:
			m.OpenSettings()
			return m, nil

		case tea.KeyCtrlH:
			m.SettingsOpen = false
			m.SwitcherOpen = false
			m.HistoryOpen = true
			m.HistoryPage = 0
			m.RefreshHistoryFromDB()
			return m, nil

		case tea.KeyCtrlT:
			m.SettingsOpen = false
			m.HistoryOpen = false
			m.SwitcherOpen = true
			m.SwitcherChats = m.Store.Chats()
			m.SwitcherSelectedIdx = 0
			active := m.Store.ActiveID()
			for i, c := range m.SwitcherChats {
				if c.ID == active {
					m.SwitcherSelectedIdx = i
				}
			}
			return m, nil

		case tea.KeyEnter:
			if m.Loading {
				return m, nil
			}
			input := strings.TrimSpace(m.TextInput.Value())
			if input == "" {
				return m, nil
			}

			chatID := m.Store.ActiveID()
			m.TextInput.Reset()
			m.updateInputLayout()
			m.Loading = true
			m.Err = nil
			m.UpdateViewport()

			return m, tea.Batch(m.submitCmd(chatID, input), m.Spinner.Tick)
		}

	case tea.WindowSizeMsg:
		m.WindowWidth = msg.Width
		m.WindowHeight = msg.Height

		ModalWidth = msg.Width - 10
		if ModalWidth > 60 {
			ModalWidth = 60
		}
		if ModalWidth < 30 {
			ModalWidth = 30
		}
		styles.ContentWidth = ModalWidth - 6

		chatWidth := msg.Width - 2
		if chatWidth > MaxChatWidth {
			chatWidth = MaxChatWidth
		}
		m.Viewport.Width = chatWidth - 2

		m.updateInputLayout()
		glamourStyle := "dark"
		if !lipgloss.HasDarkBackground() {
			glamourStyle = "light"
		}
		m.Renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath(glamourStyle),
			glamour.WithWordWrap(chatWidth-6),
		)
		m.UpdateViewport()
		return m, tea.Batch(tiCmd, vpCmd)
	}

	m.TextInput, tiCmd = m.TextInput.Update(msg)
	m.updateInputLayout()

	// Filter out terminal background color queries and cursor reference codes that leak into the input
	val := m.TextInput.Value()
	if strings.Contains(val, "]11;rgb:") || strings.Contains(val, "1;rgb:") || strings.Contains(val, "[1;1R") {
		m.TextInput.Reset()
	}

	m.Viewport, vpCmd = m.Viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd)
}

func isNewlineShortcut(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "shift+enter", "shift+return", "ctrl+j", "ctrl+enter", "alt+enter":
		return true
	default:
		return false
	}
}

func (m *Model) updateInputLayout() {
	if m.WindowWidth == 0 || m.WindowHeight == 0 {
		return
	}

	inputWidth := m.WindowWidth - 6
	if inputWidth < 20 {
		inputWidth = 20
	}
	contentWidth := inputWidth - 2
	if contentWidth < 1 {
		contentWidth = 1
	}

	maxInputHeight := 6
	lineCount := WrappedLineCount(m.TextInput.Value(), contentWidth)
	if lineCount < 1 {
		lineCount = 1
	}
	if lineCount > maxInputHeight {
		lineCount = maxInputHeight
	}

	m.TextInput.MaxHeight = maxInputHeight
	m.TextInput.SetWidth(inputWidth)
	m.TextInput.SetHeight(lineCount)

	inputBoxHeight := m.TextInput.Height() + 2
	reserved := inputBoxHeight + 5
	viewportHeight := m.WindowHeight - reserved
	if viewportHeight < 5 {
		viewportHeight = 5
	}
	m.Viewport.Height = viewportHeight
}

// PendingPlan reports the trailing plan message of the active chat, if one
// is still awaiting confirmation.
func (m *Model) PendingPlan() (models.Message, bool) {
	c, ok := m.Store.Chat(m.Store.ActiveID())
	if !ok || len(c.Messages) == 0 {
		return models.Message{}, false
	}
	last := c.Messages[len(c.Messages)-1]
	if last.Type == models.TypePlan && len(last.Actions) > 0 {
		return last, true
	}
	return models.Message{}, false
}

func (m *Model) submitCmd(chatID, prompt string) tea.Cmd {
	return func() tea.Msg {
		m.Reconciler.Submit(context.Background(), chatID, prompt)
		return SubmitDoneMsg{ChatID: chatID}
	}
}

func (m *Model) confirmPlanCmd(chatID string, plan models.Message) tea.Cmd {
	return func() tea.Msg {
		m.Executor.Confirm(context.Background(), chatID, plan.ID, plan.Actions, plan.Plan)
		return SubmitDoneMsg{ChatID: chatID}
	}
}

// PersistChat writes a settled chat to the local archive. Temporary chats
// never touch disk.
func (m *Model) PersistChat(chatID string) {
	if m.DB == nil || m.DBErr != nil {
		return
	}
	c, ok := m.Store.Chat(chatID)
	if !ok || c.IsTemporary {
		return
	}
	if err := db.SaveChat(m.DB, c); err != nil {
		m.Logger.Warn("failed to archive chat", "chat_id", chatID, "error", err)
	}
}

func (m *Model) OpenSettings() {
	m.HistoryOpen = false
	m.SwitcherOpen = false
	m.SettingsOpen = true
	m.SettingsCursor = 0
	m.SettingsEditing = false
}

func (m *Model) updateSettingsModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.SettingsEditing {
		switch msg.String() {
		case "enter":
			value := strings.TrimSpace(m.SettingsInput.Value())
			if err := m.Config.Update(func(s *config.Settings) {
				s.MCPURL = value
			}); err != nil {
				m.Err = err
			}
			m.SettingsEditing = false
			m.SettingsInput.Blur()
			return m, nil
		case "esc":
			m.SettingsEditing = false
			m.SettingsInput.Blur()
			return m, nil
		case "ctrl+c":
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.SettingsInput, cmd = m.SettingsInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "ctrl+s":
		m.SettingsOpen = false
		return m, nil
	case "up", "k":
		m.SettingsCursor--
		if m.SettingsCursor < 0 {
			m.SettingsCursor = SettingFieldCount - 1
		}
		return m, nil
	case "down", "j", "tab":
		m.SettingsCursor++
		if m.SettingsCursor >= SettingFieldCount {
			m.SettingsCursor = 0
		}
		return m, nil
	case "enter", " ":
		switch m.SettingsCursor {
		case SettingMCPURL:
			m.SettingsEditing = true
			m.SettingsInput.SetValue(m.Config.Get().MCPURL)
			m.SettingsInput.CursorEnd()
			m.SettingsInput.Focus()
		case SettingProvider:
			m.cycleProvider(1)
		case SettingAutoExecute:
			if err := m.Config.Update(func(s *config.Settings) {
				s.AutoExecute = !s.AutoExecute
			}); err != nil {
				m.Err = err
			}
		case SettingStreaming:
			if err := m.Config.Update(func(s *config.Settings) {
				s.UseStreaming = !s.UseStreaming
			}); err != nil {
				m.Err = err
			}
		}
		return m, nil
	case "left", "h":
		if m.SettingsCursor == SettingProvider {
			m.cycleProvider(-1)
		}
		return m, nil
	case "right", "l":
		if m.SettingsCursor == SettingProvider {
			m.cycleProvider(1)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) cycleProvider(dir int) {
	if err := m.Config.Update(func(s *config.Settings) {
		idx := 0
		for i, p := range config.Providers {
			if p == s.Provider {
				idx = i
			}
		}
		idx = (idx + dir + len(config.Providers)) % len(config.Providers)
		s.Provider = config.Providers[idx]
	}); err != nil {
		m.Err = err
	}
}

func (m *Model) updateHistoryModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "ctrl+h":
		m.HistoryOpen = false
		m.HistoryErr = nil
		return m, nil
	case "up", "k":
		if len(m.HistoryChats) == 0 {
			return m, nil
		}
		m.HistorySelectedIdx--
		if m.HistorySelectedIdx < 0 {
			m.HistorySelectedIdx = len(m.HistoryChats) - 1
		}
		return m, nil
	case "down", "j":
		if len(m.HistoryChats) == 0 {
			return m, nil
		}
		m.HistorySelectedIdx++
		if m.HistorySelectedIdx >= len(m.HistoryChats) {
			m.HistorySelectedIdx = 0
		}
		return m, nil
	case "enter":
		if len(m.HistoryChats) == 0 {
			return m, nil
		}
		item := m.HistoryChats[m.HistorySelectedIdx]
		if err := m.LoadChatFromArchive(item.ID); err != nil {
			m.HistoryErr = err
			return m, nil
		}
		m.HistoryOpen = false
		m.HistoryErr = nil
		return m, nil
	case "d":
		if len(m.HistoryChats) == 0 || m.DB == nil {
			return m, nil
		}
		item := m.HistoryChats[m.HistorySelectedIdx]
		if err := db.DeleteChat(m.DB, item.ID); err != nil {
			m.HistoryErr = err
			return m, nil
		}
		m.RefreshHistoryFromDB()
		return m, nil
	case "left", "h":
		if m.HistoryPage > 0 {
			m.HistoryPage--
			m.RefreshHistoryFromDB()
		}
		return m, nil
	case "right", "l":
		totalPages := (m.HistoryChatCount + HistoryPageSize - 1) / HistoryPageSize
		if m.HistoryPage < totalPages-1 {
			m.HistoryPage++
			m.RefreshHistoryFromDB()
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) updateSwitcherModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "ctrl+t":
		m.SwitcherOpen = false
		return m, nil
	case "up", "k":
		if len(m.SwitcherChats) == 0 {
			return m, nil
		}
		m.SwitcherSelectedIdx--
		if m.SwitcherSelectedIdx < 0 {
			m.SwitcherSelectedIdx = len(m.SwitcherChats) - 1
		}
		return m, nil
	case "down", "j":
		if len(m.SwitcherChats) == 0 {
			return m, nil
		}
		m.SwitcherSelectedIdx++
		if m.SwitcherSelectedIdx >= len(m.SwitcherChats) {
			m.SwitcherSelectedIdx = 0
		}
		return m, nil
	case "enter":
		if len(m.SwitcherChats) == 0 {
			return m, nil
		}
		if err := m.Store.SetActive(m.SwitcherChats[m.SwitcherSelectedIdx].ID); err != nil {
			m.Err = err
			return m, nil
		}
		m.SwitcherOpen = false
		m.UpdateViewport()
		m.Viewport.GotoBottom()
		return m, nil
	}
	return m, nil
}

func (m *Model) RefreshHistoryFromDB() {
	m.HistoryErr = nil
	m.HistoryChats = nil
	m.HistorySelectedIdx = 0

	if m.DBErr != nil {
		m.HistoryErr = m.DBErr
		return
	}
	if m.DB == nil {
		m.HistoryErr = fmt.Errorf("chat archive not initialized")
		return
	}

	offset := m.HistoryPage * HistoryPageSize
	count, chats, err := db.RecentChats(m.DB, HistoryPageSize, offset)
	if err != nil {
		m.HistoryErr = err
		return
	}
	m.HistoryChatCount = count
	m.HistoryChats = chats
}

// LoadChatFromArchive pulls an archived chat back into the live store and
// makes it active.
func (m *Model) LoadChatFromArchive(chatID string) error {
	if m.DBErr != nil {
		return m.DBErr
	}
	if m.DB == nil {
		return fmt.Errorf("chat archive not initialized")
	}

	c, err := db.LoadChat(m.DB, chatID)
	if err != nil {
		return err
	}

	m.Store.ImportChat(c)
	if err := m.Store.SetActive(c.ID); err != nil {
		return err
	}
	m.Loading = false
	m.UpdateViewport()
	m.Viewport.GotoBottom()
	return nil
}
