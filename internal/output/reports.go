package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/panbanda/pyprune/pkg/analyzer/imports"
	"github.com/panbanda/pyprune/pkg/fix"
)

// countLine renders the closing summary line of a report.
func countLine(verb string, imports, files int) string {
	if imports == 0 {
		return "No unused imports found"
	}
	return fmt.Sprintf("%s %d unused import(s) in %d file(s)", verb, imports, files)
}

// CheckReport renders the result of `pyprune check`.
type CheckReport struct {
	Analysis *imports.Analysis
	// Quiet drops the per-finding lines from text output.
	Quiet bool
	// Detailed adds the reason breakdown and unsupported-construct notes.
	Detailed bool
}

func (r *CheckReport) RenderData() any {
	return r.Analysis
}

// Summary returns the closing line of the text report.
func (r *CheckReport) Summary() string {
	s := r.Analysis.Summary
	return countLine("Found", s.UnusedImports, s.FilesWithUnused)
}

func (r *CheckReport) RenderText(w io.Writer, colored bool) error {
	bold := color.New(color.Bold)
	if !r.Quiet {
		for _, f := range r.Analysis.Files {
			for _, finding := range f.Findings {
				msg := finding.Message()
				if colored {
					loc := fmt.Sprintf("%s:%d:", finding.File, finding.Line)
					bold.Fprint(w, loc)
					fmt.Fprintln(w, strings.TrimPrefix(msg, loc))
				} else {
					fmt.Fprintln(w, msg)
				}
			}
		}
	}

	if r.Detailed {
		for _, f := range r.Analysis.Files {
			for _, n := range f.Notes {
				fmt.Fprintf(w, "%s:%d: note: %s (%s)\n", f.Path, n.Line, n.Kind, n.Detail)
			}
		}
		if rows := reasonRows(r.Analysis.Summary); len(rows) > 0 {
			fmt.Fprintln(w)
			if err := NewTable("", []string{"Reason", "Count"}, rows, nil, nil).RenderText(w, colored); err != nil {
				return err
			}
		}
	}

	line := r.Summary()
	if r.Analysis.Summary.UnusedImports > 0 && !r.Quiet {
		fmt.Fprintln(w)
	}
	switch {
	case !colored:
		fmt.Fprintln(w, line)
	case r.Analysis.Summary.UnusedImports == 0:
		color.New(color.FgGreen).Fprintln(w, line)
	default:
		color.New(color.FgYellow).Fprintln(w, line)
	}
	return nil
}

func (r *CheckReport) RenderMarkdown(w io.Writer) error {
	fmt.Fprintf(w, "# Unused Imports\n\n")

	var rows [][]string
	for _, f := range r.Analysis.Files {
		for _, finding := range f.Findings {
			name := finding.Imported
			if finding.Alias != "" {
				name += " as " + finding.Alias
			}
			rows = append(rows, []string{
				"`" + finding.File + "`",
				strconv.Itoa(finding.Line),
				"`" + name + "`",
				finding.Module,
				string(finding.Reason),
			})
		}
	}
	if len(rows) > 0 {
		table := NewTable("Findings", []string{"File", "Line", "Import", "From", "Reason"}, rows, nil, nil)
		if err := table.RenderMarkdown(w); err != nil {
			return err
		}
	}

	s := r.Analysis.Summary
	summary := NewTable("Summary", []string{"Metric", "Value"}, [][]string{
		{"Files analyzed", strconv.Itoa(s.TotalFiles)},
		{"Imports", strconv.Itoa(s.TotalImports)},
		{"Unused imports", strconv.Itoa(s.UnusedImports)},
		{"Files with unused imports", strconv.Itoa(s.FilesWithUnused)},
	}, nil, nil)
	if err := summary.RenderMarkdown(w); err != nil {
		return err
	}
	fmt.Fprintln(w, r.Summary())
	return nil
}

func reasonRows(s imports.Summary) [][]string {
	reasons := make([]string, 0, len(s.ByReason))
	for reason := range s.ByReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	rows := make([][]string, 0, len(reasons))
	for _, reason := range reasons {
		rows = append(rows, []string{reason, strconv.Itoa(s.ByReason[reason])})
	}
	return rows
}

// FixSummary totals a fix run.
type FixSummary struct {
	Files   int  `json:"files" toon:"files"`
	Removed int  `json:"removed" toon:"removed"`
	Skipped int  `json:"skipped" toon:"skipped"`
	DryRun  bool `json:"dry_run" toon:"dry_run"`
}

// FixData is the serialized form of a FixReport.
type FixData struct {
	Files   []fix.FileFix `json:"files" toon:"files"`
	Summary FixSummary    `json:"summary" toon:"summary"`
}

// FixReport renders the result of `pyprune fix`.
type FixReport struct {
	Files []fix.FileFix
	// DryRun reports what would change; files were not written.
	DryRun bool
	Quiet  bool
}

// Totals computes the summary over all files.
func (r *FixReport) Totals() FixSummary {
	s := FixSummary{DryRun: r.DryRun}
	for _, f := range r.Files {
		if len(f.Removed) > 0 {
			s.Files++
		}
		s.Removed += len(f.Removed)
		s.Skipped += len(f.Skipped)
	}
	return s
}

// Summary returns the closing line of the text report.
func (r *FixReport) Summary() string {
	s := r.Totals()
	verb := "Fixed"
	if r.DryRun {
		verb = "Found"
	}
	return countLine(verb, s.Removed, s.Files)
}

func (r *FixReport) RenderData() any {
	files := r.Files
	if files == nil {
		files = []fix.FileFix{}
	}
	return FixData{Files: files, Summary: r.Totals()}
}

func (r *FixReport) RenderText(w io.Writer, colored bool) error {
	for _, f := range r.Files {
		if !r.Quiet {
			switch {
			case r.DryRun && f.Diff != "":
				writeDiff(w, f.Diff, colored)
			case !r.DryRun && len(f.Removed) > 0:
				fmt.Fprintf(w, "Fixed %d unused import(s) in %s\n", len(f.Removed), f.Path)
			}
		}
		for _, s := range f.Skipped {
			line := fmt.Sprintf("%s:%d: left '%s' in place: %s", f.Path, s.Line, s.Name, s.Reason)
			if colored {
				color.New(color.FgYellow).Fprintln(w, line)
			} else {
				fmt.Fprintln(w, line)
			}
		}
	}

	line := r.Summary()
	if r.Totals().Removed > 0 && !r.Quiet {
		fmt.Fprintln(w)
	}
	if colored {
		color.New(color.FgGreen).Fprintln(w, line)
	} else {
		fmt.Fprintln(w, line)
	}
	return nil
}

func (r *FixReport) RenderMarkdown(w io.Writer) error {
	fmt.Fprintf(w, "# Unused Import Fixes\n\n")

	var rows [][]string
	for _, f := range r.Files {
		if len(f.Removed) == 0 && len(f.Skipped) == 0 {
			continue
		}
		rows = append(rows, []string{"`" + f.Path + "`", strconv.Itoa(len(f.Removed)), strconv.Itoa(len(f.Skipped))})
	}
	if len(rows) > 0 {
		if err := NewTable("Files", []string{"File", "Removed", "Skipped"}, rows, nil, nil).RenderMarkdown(w); err != nil {
			return err
		}
	}
	for _, f := range r.Files {
		if f.Diff != "" {
			fmt.Fprintf(w, "```diff\n%s```\n\n", f.Diff)
		}
	}
	fmt.Fprintln(w, r.Summary())
	return nil
}

// writeDiff prints a unified diff, colouring added and removed lines.
func writeDiff(w io.Writer, diff string, colored bool) {
	if !colored {
		fmt.Fprint(w, diff)
		return
	}
	red, green, cyan := color.New(color.FgRed), color.New(color.FgGreen), color.New(color.FgCyan)
	for _, line := range strings.SplitAfter(diff, "\n") {
		switch {
		case line == "":
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
			color.New(color.Bold).Fprint(w, line)
		case strings.HasPrefix(line, "@@"):
			cyan.Fprint(w, line)
		case strings.HasPrefix(line, "-"):
			red.Fprint(w, line)
		case strings.HasPrefix(line, "+"):
			green.Fprint(w, line)
		default:
			fmt.Fprint(w, line)
		}
	}
}
