package output

import (
	"fmt"
	"io"
)

// QuietFormatter prints a one-line summary.
type QuietFormatter struct{}

func (f *QuietFormatter) Format(r *Report, w io.Writer) error {
	_, err := fmt.Fprintf(w, "%d nodes, %d links, %d groups\n", r.Nodes, r.Links, len(r.Groups))
	return err
}

// JSONFormatter prints the report as indented JSON.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(r *Report, w io.Writer) error {
	return writeJSON(w, r)
}
