package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/lakshmanmandapati/tensora/internal/models"
	"github.com/lakshmanmandapati/tensora/internal/styles"
)

func GetWelcomeScreen(width, height int, suggestion string) string {
	art := `
 ╭─────────────────────────────────────────────────────────╮
 │                                                         │
 │   ▄▄▄█████▓▓█████  ███▄    █   ██████  ▒█████  ██▀███   │
 │   ▓  ██▒ ▓▒▓█   ▀  ██ ▀█   █ ▒██    ▒ ▒██▒  ██▒▓██ ▒ ██▒│
 │   ▒ ▓██░ ▒░▒███   ▓██  ▀█ ██▒░ ▓██▄   ▒██░  ██▒▓██ ░▄█ ▒│
 │   ░ ▓██▓ ░ ▒▓█  ▄ ▓██▒  ▐▌██▒  ▒   ██▒▒██   ██░▒██▀▀█▄  │
 │     ▒██▒ ░ ░▒████▒▒██░   ▓██░▒██████▒▒░ ████▓▒░░██▓ ▒██▒│
 │     ▒ ░░   ░░ ▒░ ░░ ▒░   ▒ ▒ ▒ ▒▓▒ ▒ ░░ ▒░▒░▒░ ░ ▒▓ ░▒▓░│
 │       ░     ░ ░  ░░ ░░   ░ ▒░░ ░▒  ░ ░  ░ ▒ ▒░   ░▒ ░ ▒░│
 │     ░         ░      ░   ░ ░ ░  ░  ░  ░ ░ ░ ▒    ░░   ░  │
 │               ░  ░         ░       ░      ░ ░     ░      │
 │                                                         │
 ╰─────────────────────────────────────────────────────────╯
`
	styledArt := styles.WelcomeArtStyle.Render(art)
	styledSubtitle := styles.WelcomeSubtitleStyle.Render("Your MCP-powered AI assistant")
	styledSuggestion := styles.WelcomeSubtitleStyle.Italic(true).Render(suggestion)

	content := lipgloss.JoinVertical(lipgloss.Center, styledArt, "", styledSubtitle, "", styledSuggestion)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, content)
}

// UpdateViewport rebuilds the transcript from the active chat snapshot.
func (m *Model) UpdateViewport() {
	c, ok := m.Store.Chat(m.Store.ActiveID())
	if !ok || (len(c.Messages) == 0 && !m.Loading) {
		m.Viewport.SetContent(GetWelcomeScreen(m.Viewport.Width, m.Viewport.Height, m.Suggestion))
		return
	}

	var blocks []string
	for _, msg := range c.Messages {
		blocks = append(blocks, m.renderMessage(msg))
	}
	if m.Err != nil {
		blocks = append(blocks, styles.ErrorStyle.Render(fmt.Sprintf("Error: %v", m.Err)))
	}

	m.Viewport.SetContent(strings.Join(blocks, "\n\n"))
	m.Viewport.GotoBottom()
}

func (m *Model) renderMessage(msg models.Message) string {
	switch {
	case msg.Role == models.RoleUser:
		return styles.UserLabelStyle.Render("YOU") + "\n" + styles.UserMsgStyle.Render(msg.Content)

	case msg.Role == models.RoleError:
		return styles.AiLabelStyle.Render("TENSORA") + "\n" + styles.ErrorStyle.Render(msg.Content)

	case msg.IsPlaceholder():
		label := styles.AiLabelStyle.Render("TENSORA")
		status := msg.Content
		if msg.Type == models.TypeStreaming && msg.Content != "" {
			// Raw text while chunks are arriving; markdown renders on completion.
			body := styles.AiMsgStyle.Render(msg.Content)
			return label + "\n" + body + "\n" + m.Spinner.View()
		}
		return label + "\n" + fmt.Sprintf("%s %s", m.Spinner.View(), styles.PlaceholderStyle.Render(status))

	case msg.Type == models.TypePlan:
		label := styles.PlanLabelStyle.Render("PLAN")
		body := styles.PlanMsgStyle.Render(m.renderMarkdown(msg.Content))
		hint := styles.PlanHintStyle.Render("y: execute • n: cancel")
		return label + "\n" + body + "\n" + hint

	case msg.Type == models.TypeExecutionResult:
		label := styles.PlanLabelStyle.Render("RESULT")
		return label + "\n" + styles.AiMsgStyle.Render(m.renderMarkdown(msg.Content))

	default:
		label := styles.AiLabelStyle.Render("TENSORA")
		return label + "\n" + styles.AiMsgStyle.Render(m.renderMarkdown(msg.Content))
	}
}

func (m *Model) renderMarkdown(content string) string {
	if m.Renderer == nil {
		return content
	}
	rendered, err := m.Renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(rendered)
}

func (m *Model) RenderBottomBar() string {
	st := m.Config.Get()

	provider := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(styles.GetProviderColor(st.Provider)).
		Padding(0, 1).
		Render(strings.ToUpper(st.Provider))

	healthText := "● online"
	healthColor := styles.CurrentTheme.Success
	if !m.BackendHealthy {
		healthText = "● offline"
		healthColor = styles.CurrentTheme.Error
	}
	health := lipgloss.NewStyle().Foreground(healthColor).Render(healthText)

	mcpText := "mcp: not set"
	mcpColor := styles.CurrentTheme.Warning
	if st.MCPURL != "" {
		mcpText = "mcp: " + TruncateRunes(st.MCPURL, 30)
		mcpColor = styles.CurrentTheme.TextSecondary
	}
	mcp := lipgloss.NewStyle().Foreground(mcpColor).Render(mcpText)

	var flags []string
	if st.UseStreaming {
		flags = append(flags, "stream")
	}
	if st.AutoExecute {
		flags = append(flags, "auto-exec")
	}
	flagText := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#666666")).
		Render(strings.Join(flags, " "))

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#555555")).
		Render("^S settings  ^N new  ^T chats  ^H history")

	leftSide := lipgloss.JoinHorizontal(lipgloss.Center, provider, "  ", health, "  ", mcp)
	rightSide := lipgloss.JoinHorizontal(lipgloss.Center, flagText, "  ", help)

	availableWidth := m.WindowWidth - lipgloss.Width(leftSide) - lipgloss.Width(rightSide) - 2
	if availableWidth < 0 {
		availableWidth = 0
	}
	spacer := strings.Repeat(" ", availableWidth)

	bar := lipgloss.JoinHorizontal(lipgloss.Center, leftSide, spacer, rightSide)

	return lipgloss.NewStyle().
		Width(m.WindowWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#333333")).
		Padding(0, 1).
		Render(bar)
}

func (m *Model) RenderSettingsModal() string {
	st := m.Config.Get()
	title := styles.ModalTitleStyle.Render("Settings")

	onOff := func(v bool) string {
		if v {
			return "on"
		}
		return "off"
	}

	rows := []struct {
		name  string
		value string
	}{
		{"MCP Webhook URL", st.MCPURL},
		{"Provider", st.Provider},
		{"Auto-execute plans", onOff(st.AutoExecute)},
		{"Streaming responses", onOff(st.UseStreaming)},
	}

	var items []string
	for i, row := range rows {
		value := row.value
		if i == SettingMCPURL {
			if m.SettingsEditing {
				value = m.SettingsInput.View()
			} else if value == "" {
				value = "(not set)"
			}
		}
		if i == SettingProvider && !m.SettingsEditing {
			value = lipgloss.NewStyle().Foreground(styles.GetProviderColor(st.Provider)).Render(value)
		} else {
			value = styles.ModalValueStyle.Render(value)
		}

		line := fmt.Sprintf("%-20s %s", row.name, value)
		if i == m.SettingsCursor {
			items = append(items, styles.ModalSelectedStyle.Render(line))
		} else {
			items = append(items, styles.ModalItemStyle.Render(line))
		}
	}

	body := lipgloss.JoinVertical(lipgloss.Left, items...)
	content := lipgloss.JoinVertical(lipgloss.Left, title, body)

	hintText := "↑/↓: navigate • Enter: edit/toggle • Esc: close"
	if m.SettingsEditing {
		hintText = "Enter: save • Esc: discard"
	}
	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render(hintText)

	return lipgloss.JoinVertical(lipgloss.Left, content, hint)
}

func (m *Model) RenderHistorySelector() string {
	totalPages := (m.HistoryChatCount + HistoryPageSize - 1) / HistoryPageSize
	if totalPages < 1 {
		totalPages = 1
	}
	title := styles.ModalTitleStyle.Render(fmt.Sprintf("Archived Chats (%d) - Page %d/%d", m.HistoryChatCount, m.HistoryPage+1, totalPages))

	var body string
	if m.HistoryErr != nil {
		body = lipgloss.NewStyle().Width(styles.ContentWidth).Render(styles.ErrorStyle.Render(fmt.Sprintf("Error: %v", m.HistoryErr)))
	} else if len(m.HistoryChats) == 0 {
		body = styles.ModalItemStyle.Render(lipgloss.NewStyle().Foreground(styles.HintColor).Render("No archived chats yet"))
	} else {
		items := make([]string, 0, len(m.HistoryChats))
		for i, item := range m.HistoryChats {
			cursor := "  "
			if i == m.HistorySelectedIdx {
				cursor = "> "
			}
			timeStr := RelativeTime(time.Unix(item.UpdatedAtUnix, 0))
			title := item.Title
			if title == "" {
				title = "(untitled)"
			}
			availableWidth := styles.ContentWidth - 2 - len(cursor) - 1 - len(timeStr)
			title = TruncateRunes(title, availableWidth)

			line := fmt.Sprintf("%s%s %s", cursor, title, lipgloss.NewStyle().Foreground(styles.HintColor).Render(timeStr))
			if i == m.HistorySelectedIdx {
				items = append(items, styles.ModalSelectedStyle.Render(line))
			} else {
				items = append(items, styles.ModalItemStyle.Render(line))
			}
		}
		body = lipgloss.JoinVertical(lipgloss.Left, items...)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, body)
	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("↑/↓: navigate • ←/→: page • Enter: open • d: delete • Esc: close")

	return lipgloss.JoinVertical(lipgloss.Left, content, hint)
}

func (m *Model) RenderSwitcherModal() string {
	title := styles.ModalTitleStyle.Render("Open Chats")

	var body string
	if len(m.SwitcherChats) == 0 {
		body = styles.ModalItemStyle.Render(lipgloss.NewStyle().Foreground(styles.HintColor).Render("No open chats"))
	} else {
		active := m.Store.ActiveID()
		items := make([]string, 0, len(m.SwitcherChats))
		for i, c := range m.SwitcherChats {
			marker := "  "
			if c.ID == active {
				marker = "● "
			}
			label := c.Title
			if c.IsTemporary {
				label = lipgloss.NewStyle().Italic(true).Render(label)
			}
			count := lipgloss.NewStyle().
				Foreground(styles.HintColor).
				Render(fmt.Sprintf("%d msgs", len(c.Messages)))

			line := fmt.Sprintf("%s%s %s", marker, TruncateRunes(label, styles.ContentWidth-14), count)
			if i == m.SwitcherSelectedIdx {
				items = append(items, styles.ModalSelectedStyle.Render(line))
			} else {
				items = append(items, styles.ModalItemStyle.Render(line))
			}
		}
		body = lipgloss.JoinVertical(lipgloss.Left, items...)
	}

	content := lipgloss.JoinVertical(lipgloss.Left, title, body)
	hint := lipgloss.NewStyle().
		Foreground(styles.HintColor).
		Width(styles.ContentWidth).
		PaddingTop(1).
		Render("↑/↓: navigate • Enter: switch • Esc: close")

	return lipgloss.JoinVertical(lipgloss.Left, content, hint)
}

func (m *Model) View() string {
	inputWidth := m.WindowWidth - 4
	inputBox := styles.InputBoxStyle.Width(inputWidth).Render(m.TextInput.View())

	chatContent := lipgloss.JoinVertical(lipgloss.Center,
		styles.TitleStyle.Render("TENSORA AI"),
		"",
		m.Viewport.View(),
		"",
		inputBox,
	)
	chatArea := lipgloss.PlaceHorizontal(m.WindowWidth, lipgloss.Center, chatContent)
	bottomBar := m.RenderBottomBar()

	content := lipgloss.JoinVertical(lipgloss.Left, chatArea, bottomBar)

	var modal string
	switch {
	case m.SettingsOpen:
		modal = m.RenderSettingsModal()
	case m.HistoryOpen:
		modal = m.RenderHistorySelector()
	case m.SwitcherOpen:
		modal = m.RenderSwitcherModal()
	default:
		return content
	}

	modal = styles.ModalStyle.Width(ModalWidth).Render(modal)
	return lipgloss.Place(
		m.WindowWidth,
		m.WindowHeight,
		lipgloss.Center,
		lipgloss.Center,
		modal,
	)
}
