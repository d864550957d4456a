package display

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/taigrr/pedometer/pedometer"
)

const (
	refreshInterval = 100 * time.Millisecond
	defaultRadius   = 8
	sparkWidth      = 48
	alertBuffer     = 8
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(ActiveColor)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
	walkStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A"))
	alertStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#e53935")).
			Padding(0, 1)
)

type countMsg int

type alertMsg pedometer.Alert

type tickMsg time.Time

// RefreshMsg asks the dashboard to redraw now, e.g. when the notification
// line changed.
type RefreshMsg struct{}

// StatusFunc returns the notification line currently showing, or "".
type StatusFunc func() string

// Dashboard is the bubbletea model for the live step display. It re-renders
// on every counter change and refreshes the sensor trace on a timer.
type Dashboard struct {
	tracker *pedometer.Tracker
	status  StatusFunc

	counts chan int
	alerts chan pedometer.Alert
	done   chan struct{}
	cancel func()
	once   *sync.Once

	bar     progress.Model
	radius  int
	snap    pedometer.Snapshot
	pending []pedometer.Alert
	width   int
}

// NewDashboard subscribes to the tracker's counter. Call Close when the
// program exits. status may be nil.
func NewDashboard(tracker *pedometer.Tracker, status StatusFunc) Dashboard {
	d := Dashboard{
		tracker: tracker,
		status:  status,
		counts:  make(chan int, 1),
		alerts:  make(chan pedometer.Alert, alertBuffer),
		done:    make(chan struct{}),
		once:    &sync.Once{},
		bar:     progress.New(progress.WithSolidFill(string(ActiveColor)), progress.WithoutPercentage()),
		radius:  defaultRadius,
		snap:    tracker.Snapshot(),
	}
	d.bar.Width = 4*d.radius + 1
	d.cancel = tracker.Counter().Subscribe(d.publish)
	return d
}

// publish keeps only the newest count. It never blocks the counter.
func (d Dashboard) publish(n int) {
	select {
	case d.counts <- n:
		return
	default:
	}
	select {
	case <-d.counts:
	default:
	}
	select {
	case d.counts <- n:
	default:
	}
}

// Alert queues a banner. Banners stay up until dismissed with enter.
func (d Dashboard) Alert(al pedometer.Alert) {
	select {
	case d.alerts <- al:
	case <-d.done:
	}
}

// Close cancels the counter subscription and releases pending commands.
func (d Dashboard) Close() {
	d.once.Do(func() {
		d.cancel()
		close(d.done)
	})
}

func (d Dashboard) Init() tea.Cmd {
	return tea.Batch(d.waitForCount(), d.waitForAlert(), tick())
}

func (d Dashboard) waitForCount() tea.Cmd {
	return func() tea.Msg {
		select {
		case n := <-d.counts:
			return countMsg(n)
		case <-d.done:
			return nil
		}
	}
}

func (d Dashboard) waitForAlert() tea.Cmd {
	return func() tea.Msg {
		select {
		case al := <-d.alerts:
			return alertMsg(al)
		case <-d.done:
			return nil
		}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (d Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			d.Close()
			return d, tea.Quit
		case "enter", "esc":
			if len(d.pending) > 0 {
				d.pending = d.pending[1:]
			}
		}
		return d, nil

	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.radius = max(3, min(defaultRadius, (msg.Height-12)/2))
		d.bar.Width = 4*d.radius + 1
		return d, nil

	case countMsg:
		d.snap = d.tracker.Snapshot()
		d.snap.Steps = max(d.snap.Steps, int(msg))
		return d, d.waitForCount()

	case alertMsg:
		d.pending = append(d.pending, pedometer.Alert(msg))
		return d, d.waitForAlert()

	case tickMsg:
		d.snap = d.tracker.Snapshot()
		return d, tick()

	case RefreshMsg:
		d.snap = d.tracker.Snapshot()
		return d, nil
	}
	return d, nil
}

func (d Dashboard) View() string {
	var sections []string
	sections = append(sections,
		headerStyle.Render("Step Counter"),
		"",
		Ring(d.snap.Steps, pedometer.Goal, d.radius),
		"",
		fmt.Sprintf("Goal: %d steps", pedometer.Goal),
		d.bar.ViewAs(Fraction(d.snap.Steps, pedometer.Goal)),
		"",
	)

	state := mutedStyle.Render("○ idle")
	if d.snap.Walking {
		state = walkStyle.Render("● walking")
	}
	sections = append(sections,
		fmt.Sprintf("%s   |a| %.2fg   %d samples", state, d.snap.Magnitude, d.snap.Samples),
		Sparkline(d.snap.Magnitudes, sparkWidth, 2.5),
	)

	if d.status != nil {
		if line := d.status(); line != "" {
			sections = append(sections, "", line)
		}
	}

	if len(d.pending) > 0 {
		al := d.pending[0]
		msg := al.Message
		if al.Err != nil {
			msg += "\n" + mutedStyle.Render(al.Err.Error())
		}
		sections = append(sections, "", alertStyle.Render(msg+"\n"+mutedStyle.Render("enter to dismiss")))
	}

	sections = append(sections, "", mutedStyle.Render("q quit"))
	view := lipgloss.JoinVertical(lipgloss.Center, sections...)
	if d.width > 0 {
		view = lipgloss.PlaceHorizontal(d.width, lipgloss.Center, view)
	}
	return strings.TrimRight(view, "\n")
}
