// Package views renders conversation store snapshots for a terminal.
package views

import "github.com/fatih/color"

// Palette holds the colors shared by every view.
type Palette struct {
	Heading   *color.Color
	Active    *color.Color
	Muted     *color.Color
	User      *color.Color
	Assistant *color.Color
	Warn      *color.Color
}

// NewPalette builds the default palette. With enabled false every color
// prints plain text regardless of the terminal.
func NewPalette(enabled bool) *Palette {
	p := &Palette{
		Heading:   color.New(color.FgCyan, color.Bold),
		Active:    color.New(color.FgGreen, color.Bold),
		Muted:     color.New(color.FgHiBlack),
		User:      color.New(color.FgYellow),
		Assistant: color.New(color.FgCyan),
		Warn:      color.New(color.FgRed),
	}
	if !enabled {
		for _, c := range []*color.Color{p.Heading, p.Active, p.Muted, p.User, p.Assistant, p.Warn} {
			c.DisableColor()
		}
	}
	return p
}

func orDefault(p *Palette) *Palette {
	if p == nil {
		return NewPalette(!color.NoColor)
	}
	return p
}
