// Package tui renders the player in the terminal with bubbletea.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/austinkregel/local-media/vizplayer/internal/session"
	"github.com/austinkregel/local-media/vizplayer/internal/types"
	"github.com/austinkregel/local-media/vizplayer/internal/visual"
)

const (
	seekStep    = 5 * time.Second
	volumeStep  = 0.05
	vizHeight   = 10
	noticeTTL   = 5 * time.Second
	cmdTimeout  = 5 * time.Second
	minWidth    = 40
	defaultWide = 80
)

// Controller is the part of the session the TUI drives.
type Controller interface {
	TogglePause(ctx context.Context) error
	Stop(ctx context.Context) error
	Clear(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	SeekBy(ctx context.Context, delta time.Duration) error
	AdjustVolume(ctx context.Context, delta float64) error
	ToggleShuffle(ctx context.Context) error
	CycleRepeat(ctx context.Context) error
	Sort(ctx context.Context, key types.SortKey) error
	Status() session.Status
	CurrentFrame() *visual.Frame
}

type frameMsg time.Time

type eventMsg session.Event

type cmdResultMsg struct {
	name string
	err  error
}

// Model is the Bubbletea model for the player.
type Model struct {
	ctl      Controller
	events   <-chan session.Event
	interval time.Duration

	status session.Status
	frame  *visual.Frame
	width  int
	height int

	sortKey    types.SortKey
	notice     string
	noticeErr  bool
	noticeTime time.Time
	quitting   bool
}

// New creates a model redrawing every interval. events may be nil.
func New(ctl Controller, events <-chan session.Event, interval time.Duration) Model {
	if interval <= 0 {
		interval = time.Second / visual.DefaultFPS
	}
	return Model{
		ctl:      ctl,
		events:   events,
		interval: interval,
		status:   ctl.Status(),
		frame:    ctl.CurrentFrame(),
		sortKey:  types.SortName,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.waitForEvent(), tea.SetWindowTitle("vizplayer"))
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (m Model) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	events := m.events
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(e)
	}
}

// run executes a session command off the UI goroutine.
func (m Model) run(name string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
		defer cancel()
		return cmdResultMsg{name: name, err: fn(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case frameMsg:
		m.status = m.ctl.Status()
		m.frame = m.ctl.CurrentFrame()
		if m.notice != "" && time.Time(msg).Sub(m.noticeTime) > noticeTTL {
			m.notice = ""
		}
		return m, m.tick()

	case eventMsg:
		switch msg.Kind {
		case session.EventTrackError:
			m.setNotice("Skipped unplayable track: "+msg.Error, true)
		case session.EventPlaylistEnded:
			m.setNotice("End of playlist", false)
		case session.EventTrackChanged:
			m.status = m.ctl.Status()
		}
		return m, m.waitForEvent()

	case cmdResultMsg:
		m.status = m.ctl.Status()
		if msg.err != nil {
			m.setNotice(fmt.Sprintf("%s failed: %v", msg.name, msg.err), true)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
	m.noticeTime = time.Now()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit
	case " ":
		return m, m.run("play/pause", m.ctl.TogglePause)
	case "s":
		return m, m.run("stop", m.ctl.Stop)
	case "c":
		m.setNotice("Playlist cleared", false)
		return m, m.run("clear", m.ctl.Clear)
	case "n":
		return m, m.run("next", m.ctl.Next)
	case "p":
		return m, m.run("previous", m.ctl.Previous)
	case "left", "h":
		return m, m.run("seek", func(ctx context.Context) error { return m.ctl.SeekBy(ctx, -seekStep) })
	case "right", "l":
		return m, m.run("seek", func(ctx context.Context) error { return m.ctl.SeekBy(ctx, seekStep) })
	case "+", "=":
		return m, m.run("volume", func(ctx context.Context) error { return m.ctl.AdjustVolume(ctx, volumeStep) })
	case "-":
		return m, m.run("volume", func(ctx context.Context) error { return m.ctl.AdjustVolume(ctx, -volumeStep) })
	case "z":
		return m, m.run("shuffle", m.ctl.ToggleShuffle)
	case "r":
		return m, m.run("repeat", m.ctl.CycleRepeat)
	case "o":
		m.sortKey = nextSortKey(m.sortKey)
		key := m.sortKey
		m.setNotice("Sorted by "+string(key), false)
		return m, m.run("sort", func(ctx context.Context) error { return m.ctl.Sort(ctx, key) })
	}
	return m, nil
}

func nextSortKey(k types.SortKey) types.SortKey {
	switch k {
	case types.SortName:
		return types.SortArtist
	case types.SortArtist:
		return types.SortAlbum
	default:
		return types.SortName
	}
}

func (m Model) effectiveWidth() int {
	if m.width < minWidth {
		return defaultWide
	}
	return m.width
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	w := m.effectiveWidth()

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(m.header())
	sb.WriteString("\n\n")

	if bars := m.bars(w); bars != "" {
		sb.WriteString(indent(bars))
		sb.WriteString("\n\n")
	}

	sb.WriteString("  ")
	sb.WriteString(m.progress(w))
	sb.WriteString("\n  ")
	sb.WriteString(m.statusLine(w))
	sb.WriteString("\n")
	if next := m.status.UpNext; next != nil {
		sb.WriteString("  ")
		sb.WriteString(helpStyle.Render("up next: " + next.Name()))
		sb.WriteString("\n")
	}

	if m.notice != "" {
		style := statusStyle
		if m.noticeErr {
			style = errorStyle
		}
		sb.WriteString("  ")
		sb.WriteString(style.Render(m.notice))
		sb.WriteString("\n")
	}

	sb.WriteString("\n  ")
	sb.WriteString(helpStyle.Render("space play/pause · s stop · c clear · n/p next/prev · ←/→ seek · +/- volume · z shuffle · r repeat · o sort · q quit"))
	sb.WriteString("\n")
	return sb.String()
}

func (m Model) header() string {
	if m.status.Track == nil {
		return "  " + titleStyle.Render("Nothing playing") + "\n  " +
			artistStyle.Render(fmt.Sprintf("%d tracks in playlist", m.status.Length))
	}
	t := m.status.Track
	return "  " + titleStyle.Render(t.Name()) + "\n  " +
		artistStyle.Render(fmt.Sprintf("%s - %s", t.Metadata.Artist, t.Metadata.Album))
}

func (m Model) bars(width int) string {
	if m.frame == nil || len(m.frame.Heights) == 0 {
		return ""
	}
	return renderBars(m.frame, barWidthFor(width-4, len(m.frame.Heights)), vizHeight)
}

func (m Model) progress(width int) string {
	elapsed := types.FormatTime(m.status.PositionDuration())
	total := "-:--"
	if m.status.Duration > 0 {
		total = types.FormatTime(m.status.DurationDuration())
	}

	barWidth := max(10, width-len(elapsed)-len(total)-6)
	var ratio float64
	if m.status.Duration > 0 {
		ratio = float64(m.status.Position) / float64(m.status.Duration)
	}
	filled := int(ratio * float64(barWidth))
	filled = max(0, min(barWidth, filled))
	bar := progressFill.Render(strings.Repeat("━", filled)) +
		progressEmpty.Render(strings.Repeat("─", barWidth-filled))

	return fmt.Sprintf("%s %s %s", timeStyle.Render(elapsed), bar, timeStyle.Render(total))
}

func (m Model) statusLine(width int) string {
	icon, text := "■", "stopped"
	switch m.status.State {
	case types.StatePlaying:
		icon, text = "▶", "playing"
	case types.StatePaused:
		icon, text = "❚❚", "paused"
	}

	left := fmt.Sprintf("%s  %s", icon, text)
	if m.status.Shuffle {
		left += "  shuffle"
	}
	if m.status.Repeat != "" && m.status.Repeat != types.RepeatOff.String() {
		left += "  repeat:" + m.status.Repeat
	}
	if m.status.Index >= 0 {
		left += fmt.Sprintf("  %d/%d", m.status.Index+1, m.status.Length)
	}
	right := fmt.Sprintf("vol %d%%", int(m.status.Volume*100+0.5))

	gap := max(2, width-lipgloss.Width(left)-lipgloss.Width(right)-4)
	return statusStyle.Render(left) + strings.Repeat(" ", gap) + statusStyle.Render(right)
}

func indent(block string) string {
	lines := strings.Split(block, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}

// Run starts the program on the terminal and blocks until the user quits
// or ctx is done.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
