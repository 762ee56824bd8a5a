package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// StandardFormatter prints the summary followed by contributor and link
// tables.
type StandardFormatter struct {
	Color bool
}

func (f *StandardFormatter) Format(r *Report, w io.Writer) error {
	bold := f.paint(color.Bold)
	cyan := f.paint(color.FgCyan)
	green := f.paint(color.FgGreen)

	title := "Collaboration graph"
	if r.Stage != "" {
		title += " (" + r.Stage + ")"
	}
	if _, err := fmt.Fprintln(w, bold(title)); err != nil {
		return err
	}
	fmt.Fprintf(w, "Nodes: %s  Links: %s  Density: %.4f  Total link weight: %.1f\n",
		cyan(r.Nodes), cyan(r.Links), r.Density, r.TotalWeight)
	if len(r.Groups) > 0 {
		fmt.Fprintf(w, "Groups: %s\n", formatCounts(r.Groups))
	}
	if len(r.Interactions) > 0 {
		fmt.Fprintf(w, "Interactions: %s\n", formatCounts(r.Interactions))
	}

	if len(r.Contributors) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Top contributors"))
		var rows [][]string
		for i, c := range r.Contributors {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				green(c.ID),
				c.Group,
				strconv.FormatFloat(c.Weight, 'f', 1, 64),
				strconv.Itoa(c.Degree),
				strconv.Itoa(c.Sources),
			})
		}
		if err := renderTable(w, []string{"Rank", "Contributor", "Group", "Weight", "Links", "Orgs"}, rows); err != nil {
			return err
		}
	}

	if len(r.Strongest) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold("Strongest links"))
		var rows [][]string
		for i, l := range r.Strongest {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				l.Source,
				l.Target,
				strconv.FormatFloat(l.Value, 'f', 1, 64),
				strconv.Itoa(l.SharedRepos),
				strconv.Itoa(l.Interactions),
			})
		}
		if err := renderTable(w, []string{"Rank", "Source", "Target", "Value", "Repos", "Interactions"}, rows); err != nil {
			return err
		}
	}
	return nil
}

func (f *StandardFormatter) paint(attrs ...color.Attribute) func(a ...interface{}) string {
	c := color.New(attrs...)
	if f.Color {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.SprintFunc()
}

func renderTable(w io.Writer, header []string, rows [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(header)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

// formatCounts renders a histogram as "a=3, b=1", largest first.
func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}

func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
