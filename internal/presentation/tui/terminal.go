package tui

import (
	"os"

	"github.com/aretw0/arbor/internal/presentation/graph"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// IsTerminal reports whether f is attached to an interactive terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// TreeStyle colours tree outlines for the given profile. The Ascii profile
// leaves text untouched.
func TreeStyle(p termenv.Profile) graph.Style {
	if p == termenv.Ascii {
		return graph.Style{}
	}
	color := func(hex string) func(string) string {
		return func(s string) string {
			return termenv.String(s).Foreground(p.Color(hex)).String()
		}
	}
	return graph.Style{
		Question:    color("#4ade80"),
		Conditional: color("#facc15"),
		Halt:        color("#f87171"),
		Muted: func(s string) string {
			return termenv.String(s).Faint().String()
		},
	}
}
