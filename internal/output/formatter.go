// Package output renders graph reports for the terminal and for scripts.
package output

import (
	"io"
	"os"

	"golang.org/x/term"
)

// Formatter renders a report.
type Formatter interface {
	Format(r *Report, w io.Writer) error
}

// VerbosityLevel determines output detail
type VerbosityLevel int

const (
	VerbosityQuiet    VerbosityLevel = iota // one-line summary
	VerbosityStandard                       // tables
	VerbosityJSON                           // machine-readable
)

// NewFormatter creates the formatter for level. color only affects the
// standard formatter.
func NewFormatter(level VerbosityLevel, color bool) Formatter {
	switch level {
	case VerbosityQuiet:
		return &QuietFormatter{}
	case VerbosityJSON:
		return &JSONFormatter{}
	default:
		return &StandardFormatter{Color: color}
	}
}

// GetDefaultVerbosity picks a level from the environment.
func GetDefaultVerbosity() VerbosityLevel {
	if os.Getenv("COLLABGRAPH_OUTPUT") == "json" {
		return VerbosityJSON
	}
	return VerbosityStandard
}

// IsTerminal reports whether w is an interactive terminal. Colors are only
// emitted there.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	if os.Getenv("NO_COLOR") != "" || os.Getenv("CI") == "true" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
