// SPDX-License-Identifier: MPL-2.0

package report

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Palette shared by every report.
const (
	ColorSection = lipgloss.Color("#F59E0B")
	ColorKey     = lipgloss.Color("#10B981")
	ColorComment = lipgloss.Color("#06B6D4")
	ColorError   = lipgloss.Color("#EF4444")
	ColorMuted   = lipgloss.Color("#6B7280")
	ColorTitle   = lipgloss.Color("#7C3AED")
)

// styles binds the palette to one output. Without color every style renders
// its input unchanged.
type styles struct {
	section lipgloss.Style
	key     lipgloss.Style
	comment lipgloss.Style
	failure lipgloss.Style
	success lipgloss.Style
	muted   lipgloss.Style
	title   lipgloss.Style
}

func newStyles(w io.Writer, color bool) styles {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI256)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return styles{
		section: r.NewStyle().Foreground(ColorSection),
		key:     r.NewStyle().Foreground(ColorKey),
		comment: r.NewStyle().Foreground(ColorComment),
		failure: r.NewStyle().Bold(true).Foreground(ColorError),
		success: r.NewStyle().Foreground(ColorKey),
		muted:   r.NewStyle().Foreground(ColorMuted),
		title:   r.NewStyle().Bold(true).Foreground(ColorTitle),
	}
}
