package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/chazu/rigkit/pkg/assembly"
	"github.com/chazu/rigkit/pkg/scene"
)

var (
	colorCyan   = lipgloss.Color("36")
	colorGreen  = lipgloss.Color("35")
	colorYellow = lipgloss.Color("220")
	colorRed    = lipgloss.Color("167")
	colorDim    = lipgloss.Color("240")
)

var (
	styleTitle   = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	styleLabel   = lipgloss.NewStyle().Foreground(colorDim).Width(13)
	styleNumber  = lipgloss.NewStyle().Foreground(colorCyan)
	styleDim     = lipgloss.NewStyle().Foreground(colorDim)
	styleSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleError   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
)

func printRow(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "  %s %s\n", styleLabel.Render(label), styleNumber.Render(fmt.Sprint(value)))
}

// printSummary writes a short overview of s.
func printSummary(w io.Writer, s *scene.Scene) {
	st := s.Stats()
	name := s.Meta.Name
	if name == "" {
		name = "(unnamed)"
	}
	fmt.Fprintf(w, "%s %s\n", styleTitle.Render(name), styleDim.Render(s.Meta.ID.String()))
	printRow(w, "nodes", st.Nodes)
	printRow(w, "members", st.Members)
	printRow(w, "joints", fmt.Sprintf("%d (%d free ends)", st.Joints, st.FreeEnds))
	printRow(w, "constraints", constraintCounts(st.Constraints))
	printRow(w, "schedules", st.Schedules)
	printRow(w, "loads", st.Loads)
	printRow(w, "mass", fmt.Sprintf("%.4g", st.Mass))
	printRow(w, "tolerance", fmt.Sprintf("%.3g", s.Meta.Tolerance))
}

func constraintCounts(counts map[assembly.ConstraintKind]int) string {
	kinds := make([]assembly.ConstraintKind, 0, len(counts))
	total := 0
	for k, n := range counts {
		kinds = append(kinds, k)
		total += n
	}
	if total == 0 {
		return "0"
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%d %s", counts[k], k)
	}
	return fmt.Sprintf("%d (%s)", total, strings.Join(parts, ", "))
}

// printValidation writes validation findings and reports whether s passed.
func printValidation(w io.Writer, res scene.ValidationResult) bool {
	for _, e := range res.Errors {
		fmt.Fprintf(w, "%s %s\n", styleError.Render(iconError), e.Error())
	}
	for _, warn := range res.Warnings {
		printWarning(w, warn.String())
	}
	if res.OK() {
		fmt.Fprintf(w, "%s %s\n", styleSuccess.Render(iconSuccess), "scene is valid")
	}
	return res.OK()
}

func printWarning(w io.Writer, msg string) {
	fmt.Fprintf(w, "%s %s\n", styleWarning.Render(iconWarning), msg)
}

func printWarnings(w io.Writer, msgs []string) {
	for _, m := range msgs {
		printWarning(w, m)
	}
}

// printMembers writes one line per member.
func printMembers(w io.Writer, s *scene.Scene) {
	fmt.Fprintln(w, styleTitle.Render("members"))
	for _, m := range s.Members {
		fmt.Fprintf(w, "  %-16s %-10s %-8s L=%-8.4g m=%-8.4g %s\n",
			m.ID, m.Section, m.Mobility, m.Length, m.Mass, styleDim.Render(m.Role.String()))
	}
}

// printJoints writes one line per joint with its incident member ends.
func printJoints(w io.Writer, s *scene.Scene) {
	fmt.Fprintln(w, styleTitle.Render("joints"))
	for _, j := range s.Joints {
		ends := make([]string, len(j.Ends))
		for i, e := range j.Ends {
			ends[i] = e.String()
		}
		fmt.Fprintf(w, "  %-8s %s %s\n", j.ID, j.Centroid, styleDim.Render(strings.Join(ends, " ")))
	}
}
