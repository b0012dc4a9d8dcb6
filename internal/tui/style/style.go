// Package style holds the lipgloss styles shared by the voicepost screens.
//
// Names drop the "Style" suffix since callers write style.Title.
package style

import "github.com/charmbracelet/lipgloss"

// Palette entries, ANSI 256 codes.
const (
	accent = lipgloss.Color("205")
	dim    = lipgloss.Color("241")
	faint  = lipgloss.Color("245")
	green  = lipgloss.Color("42")
	red    = lipgloss.Color("196")
	amber  = lipgloss.Color("214")
	indigo = lipgloss.Color("63")
	frame  = lipgloss.Color("62")
	bright = lipgloss.Color("255")
)

// Headings and status lines.
var (
	Title    = lipgloss.NewStyle().Bold(true).Foreground(accent)
	Subtitle = lipgloss.NewStyle().Foreground(dim)
	Success  = lipgloss.NewStyle().Foreground(green)
	Error    = lipgloss.NewStyle().Foreground(red)
	Warning  = lipgloss.NewStyle().Foreground(amber)
	Muted    = lipgloss.NewStyle().Foreground(faint)
)

// Recording and processing.
var (
	// Progress colors the live waveform.
	Progress = lipgloss.NewStyle().Foreground(indigo)
	Help     = lipgloss.NewStyle().Foreground(dim)
)

// Viewport frames the generated post.
var Viewport = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(frame).
	Padding(0, 1)

// Post body accents.
var (
	// Label marks the call to action.
	Label  = lipgloss.NewStyle().Bold(true).Foreground(bright)
	Bullet = lipgloss.NewStyle().Foreground(accent)
)
