package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pickflow/models"
	"pickflow/picking"
	"pickflow/scan"
	"pickflow/token"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)
)

// pushTimeout bounds the synchronous confirm and finalize pushes so a dead
// network stalls the UI for a bounded time instead of forever.
const pushTimeout = 5 * time.Second

type snapshotMsg []models.Order

type scanResultMsg struct {
	tok token.Token
	err error
}

type model struct {
	cfg     Config
	session *picking.Session
	snaps   chan []models.Order
	haptics scan.Haptics

	input      textinput.Model
	cursor     int
	status     string
	scanCancel context.CancelFunc
	quitting   bool
}

func newModel(cfg Config, session *picking.Session, snaps chan []models.Order) model {
	input := textinput.New()
	input.Placeholder = "serial number"
	input.CharLimit = 64
	input.Width = 32

	haptics := scan.Haptics(nopHaptics{})
	if cfg.Haptics.Enabled {
		haptics = bellHaptics{w: termBell{}}
	}

	return model{
		cfg:     cfg,
		session: session,
		snaps:   snaps,
		haptics: haptics,
		input:   input,
	}
}

func (m model) Init() tea.Cmd {
	return waitForSnapshot(m.snaps)
}

// waitForSnapshot blocks on the order feed and turns each broadcast into a
// message. It re-arms itself from Update after every delivery.
func waitForSnapshot(snaps chan []models.Order) tea.Cmd {
	return func() tea.Msg {
		orders, ok := <-snaps
		if !ok {
			return tea.Quit()
		}
		return snapshotMsg(orders)
	}
}

// startScan arms the camera decode loop as a command. The returned cancel
// stops the loop when the operator backs out of scanning mode.
func startScan(cfg Config, haptics scan.Haptics) (tea.Cmd, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := func() tea.Msg {
		src, err := scan.NewDirSource(cfg.Camera.SpoolDir, time.Second/time.Duration(cfg.Camera.FPS))
		if err != nil {
			return scanResultMsg{err: err}
		}
		tok, err := scan.Run(ctx, src, scan.Options{
			Interval: time.Second / time.Duration(cfg.Camera.FPS),
			Haptics:  haptics,
		})
		return scanResultMsg{tok: tok, err: err}
	}
	return cmd, cancel
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.session.ApplySnapshot(msg)
		if n := m.session.Notice(); n != "" {
			m.status = n
		}
		m.clampCursor()
		return m, waitForSnapshot(m.snaps)

	case scanResultMsg:
		return m.handleScanResult(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.session.Mode() == picking.ModeItemDetail {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) handleScanResult(msg scanResultMsg) (tea.Model, tea.Cmd) {
	m.scanCancel = nil
	if m.session.Mode() != picking.ModeScanning {
		// operator already backed out, drop the late result
		return m, nil
	}
	if msg.err != nil {
		m.session.CancelScan()
		if errors.Is(msg.err, context.Canceled) {
			return m, nil
		}
		m.status = "scan failed: " + msg.err.Error()
		return m, nil
	}
	if err := m.session.ResolveToken(msg.tok); err != nil {
		switch {
		case errors.Is(err, picking.ErrOrderNotFound):
			m.status = fmt.Sprintf("order %s not on this device yet, wait a moment and rescan", msg.tok.OrderNumber)
		case errors.Is(err, picking.ErrOrderCompleted):
			m.status = fmt.Sprintf("order %s is already finalized", msg.tok.OrderNumber)
		default:
			m.status = err.Error()
		}
		return m, nil
	}
	m.cursor = 0
	m.status = ""
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		if m.scanCancel != nil {
			m.scanCancel()
		}
		m.quitting = true
		return m, tea.Quit
	}

	switch m.session.Mode() {
	case picking.ModeBrowsing:
		return m.handleBrowsingKey(msg)
	case picking.ModeOrderDetail:
		return m.handleOrderKey(msg)
	case picking.ModeItemDetail:
		return m.handleItemKey(msg)
	case picking.ModeScanning:
		return m.handleScanningKey(msg)
	}
	return m, nil
}

func (m model) handleBrowsingKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	list := m.session.BrowseList()
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(list)-1 {
			m.cursor++
		}
	case "s":
		if err := m.session.StartScan(); err != nil {
			m.status = err.Error()
			return m, nil
		}
		cmd, cancel := startScan(m.cfg, m.haptics)
		m.scanCancel = cancel
		m.status = ""
		return m, cmd
	case "enter":
		if m.cursor >= len(list) {
			return m, nil
		}
		if err := m.session.SelectOrder(list[m.cursor].ID); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.cursor = 0
		m.status = ""
	}
	return m, nil
}

func (m model) handleOrderKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	order, ok := m.session.ActiveOrder()
	if !ok {
		return m, nil
	}
	switch msg.String() {
	case "esc", "q":
		m.session.CloseOrder()
		m.cursor = 0
		m.status = ""
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(order.Items)-1 {
			m.cursor++
		}
	case "enter":
		if m.cursor >= len(order.Items) {
			return m, nil
		}
		if err := m.session.OpenItem(order.Items[m.cursor].ItemID); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.input.SetValue("")
		m.input.Focus()
		m.status = ""
	case "f":
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		if err := m.session.Finalize(ctx); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.cursor = 0
		m.status = fmt.Sprintf("order %s finalized", order.OrderNumber)
	}
	return m, nil
}

func (m model) handleItemKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.session.DiscardItem()
		m.input.Blur()
		m.status = ""
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		if value == "" {
			// blank entry confirms the draft and pushes it
			ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
			defer cancel()
			if err := m.session.ConfirmItem(ctx); err != nil {
				m.status = err.Error()
				return m, nil
			}
			m.input.Blur()
			m.status = ""
			return m, nil
		}
		if err := m.session.AppendSerial(value); err != nil {
			m.status = err.Error()
			return m, nil
		}
		m.haptics.Pulse(50 * time.Millisecond)
		m.input.SetValue("")
		return m, nil
	case "ctrl+z":
		if n := len(m.session.Draft()); n > 0 {
			if err := m.session.RemoveSerial(n - 1); err != nil {
				m.status = err.Error()
			}
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) handleScanningKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		if m.scanCancel != nil {
			m.scanCancel()
			m.scanCancel = nil
		}
		m.session.CancelScan()
		m.status = ""
	}
	return m, nil
}

// clampCursor keeps the cursor inside the list for the active screen after a
// snapshot shrinks it.
func (m *model) clampCursor() {
	var n int
	switch m.session.Mode() {
	case picking.ModeBrowsing:
		n = len(m.session.BrowseList())
	case picking.ModeOrderDetail:
		if order, ok := m.session.ActiveOrder(); ok {
			n = len(order.Items)
		}
	default:
		return
	}
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	switch m.session.Mode() {
	case picking.ModeBrowsing:
		b.WriteString(m.renderBrowsing())
	case picking.ModeOrderDetail:
		b.WriteString(m.renderOrderDetail())
	case picking.ModeItemDetail:
		b.WriteString(m.renderItemDetail())
	case picking.ModeScanning:
		b.WriteString(m.renderScanning())
	}
	if m.status != "" {
		b.WriteString("\n" + noticeStyle.Render(m.status))
	}
	return b.String() + "\n"
}

func (m model) renderBrowsing() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Picking") + "\n")

	list := m.session.BrowseList()
	if len(list) == 0 {
		b.WriteString("No active orders. Scan a handoff code or wait for the feed.\n")
	}
	for i, order := range list {
		done := 0
		for _, item := range order.Items {
			if item.Done() {
				done++
			}
		}
		line := fmt.Sprintf("%s  pallet %s  %s  %d/%d lines",
			order.OrderNumber, order.PalletNumber, order.Status, done, len(order.Items))
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	b.WriteString(helpStyle.Render("up/down select · enter open · s scan · q quit"))
	return b.String()
}

func (m model) renderOrderDetail() string {
	order, ok := m.session.ActiveOrder()
	if !ok {
		return errorStyle.Render("order vanished")
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Order %s · pallet %s", order.OrderNumber, order.PalletNumber)) + "\n")

	for i, item := range order.Items {
		mark := " "
		if item.Done() {
			mark = doneStyle.Render("✓")
		}
		line := fmt.Sprintf("[%s] %-4s %-10s %-24s %d/%d %s",
			mark, item.Line, item.Location, truncate(item.Article, 24),
			item.ScannedCount, item.Quantity, item.Unit)
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	b.WriteString(helpStyle.Render("enter open line · f finalize · esc back"))
	return b.String()
}

func (m model) renderItemDetail() string {
	item, ok := m.session.ActiveItem()
	if !ok {
		return errorStyle.Render("line vanished")
	}

	var b strings.Builder
	head := fmt.Sprintf("Line %s · %s · %s", item.Line, item.Location, item.Article)
	b.WriteString(titleStyle.Render(head) + "\n")

	draft := m.session.Draft()
	var card strings.Builder
	card.WriteString(fmt.Sprintf("captured %d of %d %s\n", len(draft), item.Quantity, item.Unit))
	for i, serial := range draft {
		card.WriteString(fmt.Sprintf("%2d. %s\n", i+1, serial))
	}
	b.WriteString(cardStyle.Render(strings.TrimRight(card.String(), "\n")) + "\n\n")

	b.WriteString(m.input.View() + "\n")
	b.WriteString(helpStyle.Render("enter add serial · empty enter confirm · ctrl+z remove last · esc discard"))
	return b.String()
}

func (m model) renderScanning() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Scanning") + "\n")
	b.WriteString("Point the camera at the handoff code on the pick ticket.\n")
	b.WriteString(helpStyle.Render("esc cancel"))
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
