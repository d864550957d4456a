// Package display renders step progress in the terminal: a radial gauge
// toward the daily goal and a bubbletea dashboard around it.
package display

import (
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	ActiveColor   = lipgloss.Color("#2465FD")
	InactiveColor = lipgloss.Color("#23a3f3")

	// RingTitle is printed inside the ring above the value.
	RingTitle = "Steps"

	activeGlyph   = "█"
	inactiveGlyph = "░"
)

var (
	activeStyle   = lipgloss.NewStyle().Foreground(ActiveColor)
	inactiveStyle = lipgloss.NewStyle().Foreground(InactiveColor).Faint(true)
	titleStyle    = lipgloss.NewStyle().Bold(true)
)

type cell uint8

const (
	cellEmpty cell = iota
	cellActive
	cellInactive
)

// Fraction returns value/goal clamped to [0, 1].
func Fraction(value, goal int) float64 {
	if goal <= 0 || value <= 0 {
		return 0
	}
	return math.Min(1, float64(value)/float64(goal))
}

// ringCells lays out the gauge on a grid of 2r+1 rows by 4r+1 columns.
// Terminal cells are about twice as tall as wide, so columns are halved
// when measuring distance. The arc fills clockwise from 12 o'clock.
func ringCells(value, goal, radius int) [][]cell {
	radius = max(radius, 1)
	filled := Fraction(value, goal)
	rows, cols := 2*radius+1, 4*radius+1
	r := float64(radius)

	grid := make([][]cell, rows)
	for y := range rows {
		grid[y] = make([]cell, cols)
		dy := float64(y - radius)
		for x := range cols {
			dx := float64(x-2*radius) / 2
			if math.Abs(math.Hypot(dx, dy)-r) >= 0.5 {
				continue
			}
			theta := math.Atan2(dx, -dy)
			if theta < 0 {
				theta += 2 * math.Pi
			}
			if theta/(2*math.Pi) < filled {
				grid[y][x] = cellActive
			} else {
				grid[y][x] = cellInactive
			}
		}
	}
	return grid
}

// Ring renders a radial gauge of value toward goal with the title and value
// centered inside it.
func Ring(value, goal, radius int) string {
	grid := ringCells(value, goal, radius)
	center := len(grid) / 2

	lines := make([]string, len(grid))
	for y, row := range grid {
		segs := make([]string, len(row))
		for x, c := range row {
			switch c {
			case cellActive:
				segs[x] = activeStyle.Render(activeGlyph)
			case cellInactive:
				segs[x] = inactiveStyle.Render(inactiveGlyph)
			default:
				segs[x] = " "
			}
		}
		switch y {
		case center - 1:
			overlay(segs, RingTitle, titleStyle)
		case center:
			overlay(segs, strconv.Itoa(max(value, 0)), titleStyle)
		}
		lines[y] = strings.Join(segs, "")
	}
	return strings.Join(lines, "\n")
}

// overlay writes text centered over empty interior cells of a row.
func overlay(segs []string, text string, style lipgloss.Style) {
	runes := []rune(text)
	start := (len(segs) - len(runes)) / 2
	if start < 0 {
		return
	}
	for i := range runes {
		if segs[start+i] != " " {
			return
		}
	}
	for i, r := range runes {
		segs[start+i] = style.Render(string(r))
	}
}
