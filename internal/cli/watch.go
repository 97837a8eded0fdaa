package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dmitrymomot/stocksync"
	"github.com/dmitrymomot/stocksync/pkg/items"
)

const watchRefresh = 250 * time.Millisecond

var (
	watchTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	watchHelpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newItemsWatchCmd(app *App) *cobra.Command {
	var flags listFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the item list and show it as it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.authed()
			if err != nil {
				return err
			}
			filter, err := compileWhere(flags.where)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd.Context(), c); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c.Items.StartPolling(ctx)
			defer c.Items.StopPolling()

			load := watchSource(c, filter)
			if f, ok := cmd.OutOrStdout().(*os.File); ok && app.Output == formatTable && term.IsTerminal(int(f.Fd())) {
				return runWatchUI(ctx, cmd, load)
			}
			return runWatchPlain(ctx, cmd, app.Output, load)
		},
	}

	flags.register(cmd)
	return cmd
}

// watchSource reads the cached list. It fails once the session is gone.
func watchSource(c *stocksync.Client, filter *itemFilter) func() ([]items.Item, error) {
	return func() ([]items.Item, error) {
		if !c.Session.IsAuthenticated() {
			return nil, ErrNotLoggedIn
		}
		return filter.Apply(c.Items.Items()), nil
	}
}

// runWatchPlain prints the list whenever its rendering changes.
func runWatchPlain(ctx context.Context, cmd *cobra.Command, format string, load func() ([]items.Item, error)) error {
	ticker := time.NewTicker(watchRefresh)
	defer ticker.Stop()

	var last string
	for {
		list, err := load()
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := write(&buf, format, itemsView(list)); err != nil {
			return err
		}
		if out := buf.String(); out != last {
			last = out
			if _, err := fmt.Fprint(cmd.OutOrStdout(), out); err != nil {
				return err
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func runWatchUI(ctx context.Context, cmd *cobra.Command, load func() ([]items.Item, error)) error {
	p := tea.NewProgram(newWatchModel(load),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if m, ok := final.(watchModel); ok {
		return m.err
	}
	return nil
}

type watchTickMsg struct{}

type watchModel struct {
	load    func() ([]items.Item, error)
	list    []items.Item
	updated time.Time
	err     error
}

func newWatchModel(load func() ([]items.Item, error)) watchModel {
	m := watchModel{load: load}
	m.refresh()
	return m
}

func (m watchModel) Init() tea.Cmd {
	if m.err != nil {
		return tea.Quit
	}
	return tickWatch()
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case watchTickMsg:
		m.refresh()
		if m.err != nil {
			return m, tea.Quit
		}
		return m, tickWatch()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "r":
			m.refresh()
			return m, nil
		}
	}
	return m, nil
}

func (m watchModel) View() string {
	var b strings.Builder
	b.WriteString(watchTitleStyle.Render(fmt.Sprintf("Items (%d)", len(m.list))))
	b.WriteString("\n")
	_ = write(&b, formatTable, itemsView(m.list))
	help := "q quit • r redraw"
	if !m.updated.IsZero() {
		help = "updated " + m.updated.Format(time.TimeOnly) + " • " + help
	}
	b.WriteString(watchHelpStyle.Render(help))
	b.WriteString("\n")
	return b.String()
}

func (m *watchModel) refresh() {
	list, err := m.load()
	if err != nil {
		m.err = err
		return
	}
	m.list = list
	m.updated = time.Now()
}

func tickWatch() tea.Cmd {
	return tea.Tick(watchRefresh, func(time.Time) tea.Msg { return watchTickMsg{} })
}
