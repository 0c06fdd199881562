package cli

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"gavel.live/cli/internal/application/services"
	"gavel.live/cli/internal/core/auction"
	"gavel.live/cli/internal/infrastructure/sse"
	"gavel.live/cli/internal/interfaces/di"
)

// WatchFlags holds command-line flags for the watch command
type WatchFlags struct {
	RefreshRate time.Duration
	NoConnect   bool
}

// newWatchCommand creates the watch subcommand
func newWatchCommand(container *di.Container) *cobra.Command {
	flags := &WatchFlags{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live auction dashboard",
		Long: `Launch an interactive terminal dashboard showing the auction list with
live updates from the event stream. Rows flash when a bid lands, the
connection status line tracks stream health, and targeted notifications
appear when you win an auction.`,
		Example: `  gavel watch
  gavel watch --refresh 250ms
  gavel watch --no-connect`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(container, flags)
		},
	}

	cmd.Flags().DurationVar(&flags.RefreshRate, "refresh", 500*time.Millisecond, "Refresh rate for live updates")
	cmd.Flags().BoolVar(&flags.NoConnect, "no-connect", false, "Start the dashboard without opening the stream")

	return cmd
}

// runWatch starts the terminal dashboard
func runWatch(container *di.Container, flags *WatchFlags) error {
	cfg := container.Config
	if flags.NoConnect {
		cfg.AutoConnect = false
	}

	service, err := services.NewWatchService(cfg, container.Identity, container.Gateway, container.Logger)
	if err != nil {
		return fmt.Errorf("failed to start watch session: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := service.Start(ctx); err != nil {
		return fmt.Errorf("failed to start stream: %w", err)
	}
	defer service.Stop()

	model := newWatchModel(service, flags)
	program := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("dashboard failed: %w", err)
	}

	return nil
}

var (
	watchTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	watchHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("86"))

	watchHighlightStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("57"))

	watchClosedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))

	watchNoticeStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("229")).
				Background(lipgloss.Color("28")).
				Padding(0, 1)

	watchDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

// watchModel holds the state for the Bubble Tea dashboard
type watchModel struct {
	service      *services.WatchService
	flags        *WatchFlags
	auctions     []auction.Auction
	conn         sse.Snapshot
	notice       *auction.WinnerNotice
	noticeAt     time.Time
	lastUpdate   time.Time
	windowWidth  int
	windowHeight int
	err          error
}

// newWatchModel creates a new dashboard model
func newWatchModel(service *services.WatchService, flags *WatchFlags) watchModel {
	return watchModel{
		service:    service,
		flags:      flags,
		auctions:   service.Store().Snapshot(),
		conn:       service.Connection(),
		lastUpdate: time.Now(),
	}
}

// Init implements the Bubble Tea init method
func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.tickCmd(), m.waitForNoticeCmd())
}

// Update implements the Bubble Tea update method
func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "c":
			m.service.Connect()
			return m, nil

		case "d":
			m.service.Disconnect()
			return m, nil

		case "r":
			m.service.Reconnect()
			return m, nil

		case "f":
			return m, m.refetchCmd()
		}

	case watchTickMsg:
		m.auctions = m.service.Store().Snapshot()
		m.conn = m.service.Connection()
		m.lastUpdate = time.Time(msg)
		if m.notice != nil && time.Since(m.noticeAt) > 10*time.Second {
			m.notice = nil
		}
		return m, m.tickCmd()

	case winnerNoticeMsg:
		notice := auction.WinnerNotice(msg)
		m.notice = &notice
		m.noticeAt = time.Now()
		return m, m.waitForNoticeCmd()

	case watchErrMsg:
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

// View implements the Bubble Tea view method
func (m watchModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress 'q' to quit", m.err)
	}

	sections := []string{m.renderHeader()}
	if m.notice != nil {
		sections = append(sections, m.renderNotice())
	}
	sections = append(sections, m.renderTable(), m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the title and connection status line
func (m watchModel) renderHeader() string {
	title := watchTitleStyle.Render("🔨 Gavel Live")

	info := fmt.Sprintf("Auctions: %d | Updated: %s",
		len(m.auctions),
		m.lastUpdate.Format("15:04:05"),
	)

	line1 := lipgloss.JoinHorizontal(lipgloss.Left, title, "  ", info)
	line2 := m.renderConnectionLine()

	divider := watchClosedStyle.Render("────────────────────────────────────────────────")

	return lipgloss.JoinVertical(lipgloss.Left, line1, line2, divider)
}

// renderConnectionLine renders the stream status with a state-specific color
func (m watchModel) renderConnectionLine() string {
	var color lipgloss.Color
	label := string(m.conn.State)

	switch m.conn.State {
	case sse.StateConnected:
		color = lipgloss.Color("46")
	case sse.StateConnecting, sse.StateRetrying:
		color = lipgloss.Color("226")
	case sse.StateFailed:
		color = lipgloss.Color("196")
	default:
		color = lipgloss.Color("240")
	}

	status := lipgloss.NewStyle().Bold(true).Foreground(color).Render(label)

	detail := m.conn.Status
	if m.conn.State == sse.StateFailed {
		detail = m.conn.Status + " (press 'r' to reconnect)"
	}
	if m.conn.LastError != "" && m.conn.State != sse.StateConnected {
		detail = fmt.Sprintf("%s | last error: %s", detail, m.conn.LastError)
	}

	return fmt.Sprintf("Stream: %s  %s", status, watchDimStyle.Render(detail))
}

// renderNotice renders the winner notification banner
func (m watchModel) renderNotice() string {
	text := fmt.Sprintf("🎉 You won %q for $%.2f!", m.notice.Title, m.notice.Amount)
	if m.notice.PaymentDeadline != "" {
		text += fmt.Sprintf(" Pay before %s.", m.notice.PaymentDeadline)
	}
	text += fmt.Sprintf(" Run 'gavel pay %s' to complete payment.", m.notice.AuctionID)
	return watchNoticeStyle.Render(text)
}

// renderTable renders the auction list
func (m watchModel) renderTable() string {
	if len(m.auctions) == 0 {
		return watchClosedStyle.Render("\n  No auctions cached. Press 'f' to refresh.\n")
	}

	header := watchHeaderStyle.Render(fmt.Sprintf("%-12s │ %-28s │ %-8s │ %10s │ %5s",
		"ID", "ITEM", "STATUS", "BID", "BIDS"))

	rows := []string{header}

	maxRows := len(m.auctions)
	if m.windowHeight > 0 {
		visible := m.windowHeight - 8
		if m.notice != nil {
			visible--
		}
		if visible > 0 && maxRows > visible {
			maxRows = visible
		}
	}

	highlights := m.service.Highlights()
	for _, a := range m.auctions[:maxRows] {
		row := fmt.Sprintf("%-12s │ %-28s │ %-8s │ %10s │ %5d",
			truncate(a.ID, 12),
			truncate(a.Title, 28),
			a.Status,
			fmt.Sprintf("$%.2f", a.CurrentBid),
			a.TotalBids,
		)

		switch {
		case highlights.Contains(a.ID):
			row = watchHighlightStyle.Render(row)
		case !a.IsOpen():
			row = watchClosedStyle.Render(row)
		}

		rows = append(rows, row)
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

// renderFooter renders the control instructions footer
func (m watchModel) renderFooter() string {
	divider := watchClosedStyle.Render("────────────────────────────────────────────────")
	controls := watchDimStyle.Render("Controls: [c] Connect | [d] Disconnect | [r] Reconnect | [f] Refresh | [q] Quit")
	return lipgloss.JoinVertical(lipgloss.Left, divider, controls)
}

// watchTickMsg is sent every refresh interval
type watchTickMsg time.Time

// winnerNoticeMsg is sent when a targeted winner notification arrives
type winnerNoticeMsg auction.WinnerNotice

// watchErrMsg is sent when a background command fails
type watchErrMsg struct {
	err error
}

// tickCmd creates a tick command
func (m watchModel) tickCmd() tea.Cmd {
	return tea.Tick(m.flags.RefreshRate, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

// waitForNoticeCmd blocks on the winner notice channel
func (m watchModel) waitForNoticeCmd() tea.Cmd {
	return func() tea.Msg {
		notice, ok := <-m.service.Notices()
		if !ok {
			return nil
		}
		return winnerNoticeMsg(notice)
	}
}

// refetchCmd reloads the auction list from the gateway
func (m watchModel) refetchCmd() tea.Cmd {
	return func() tea.Msg {
		if err := m.service.Refetch(); err != nil {
			return watchErrMsg{err: fmt.Errorf("failed to refresh auctions: %w", err)}
		}
		return nil
	}
}

// truncate shortens a string to the given display width
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
