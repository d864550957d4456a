package display

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taigrr/pedometer/pedometer"
	"github.com/taigrr/pedometer/sensor"
)

func step(tr *pedometer.Tracker, ts int64) {
	tr.Feed(sensor.Sample{Z: 2.0, TimestampMillis: ts}, pedometer.Foreground)
}

func update(t *testing.T, d Dashboard, msg tea.Msg) (Dashboard, tea.Cmd) {
	t.Helper()
	m, cmd := d.Update(msg)
	next, ok := m.(Dashboard)
	require.True(t, ok)
	return next, cmd
}

func TestDashboardRendersCountChanges(t *testing.T) {
	tr := pedometer.NewTracker()
	d := NewDashboard(tr, func() string { return "[Step Counter] You have taken 2 steps." })
	defer d.Close()

	assert.Contains(t, d.View(), "Goal: 7500 steps")

	step(tr, 0)
	step(tr, 400)

	msg := d.waitForCount()()
	assert.Equal(t, countMsg(2), msg, "only the newest count is kept")

	d, cmd := update(t, d, msg)
	assert.NotNil(t, cmd)
	view := d.View()
	assert.Contains(t, view, "2")
	assert.Contains(t, view, "walking")
	assert.Contains(t, view, "You have taken 2 steps.")
}

func TestDashboardAlertBanner(t *testing.T) {
	tr := pedometer.NewTracker()
	d := NewDashboard(tr, nil)
	defer d.Close()

	d.Alert(pedometer.Alert{
		Kind:    pedometer.AlertPermissionDenied,
		Message: "Notification permission not granted",
		Err:     errors.New("denied"),
	})
	msg := d.waitForAlert()()
	d, _ = update(t, d, msg)
	assert.Contains(t, d.View(), "Notification permission not granted")

	d, _ = update(t, d, tea.KeyMsg{Type: tea.KeyEnter})
	assert.NotContains(t, d.View(), "Notification permission not granted")
}

func TestDashboardQuit(t *testing.T) {
	tr := pedometer.NewTracker()
	d := NewDashboard(tr, nil)

	_, cmd := update(t, d, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	// Pending commands are released and later steps are not delivered.
	assert.Nil(t, d.waitForCount()())
	step(tr, 0)
	assert.NotPanics(t, d.Close)
}

func TestDashboardResize(t *testing.T) {
	d := NewDashboard(pedometer.NewTracker(), nil)
	defer d.Close()

	d, _ = update(t, d, tea.WindowSizeMsg{Width: 100, Height: 20})
	assert.Equal(t, 4, d.radius)
	assert.Equal(t, 17, d.bar.Width)
}

func TestDashboardRefreshRereadsStatus(t *testing.T) {
	tr := pedometer.NewTracker()
	line := ""
	d := NewDashboard(tr, func() string { return line })
	defer d.Close()

	assert.NotContains(t, d.View(), "You have taken")
	step(tr, 0)
	line = "[Step Counter] You have taken 1 steps."

	d, cmd := update(t, d, RefreshMsg{})
	assert.Nil(t, cmd)
	assert.Contains(t, d.View(), "You have taken 1 steps.")
	assert.Contains(t, d.View(), "walking")
}
