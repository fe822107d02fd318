package verify

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
)

// VerificationReport represents a complete verification report of one
// compute cycle.
type VerificationReport struct {
	Title      string
	Comparison Comparison
	ShowLanes  bool
}

// Report wraps the comparison into a report.
func (c Comparison) Report() *VerificationReport {
	return &VerificationReport{
		Title:      "CIM OUTPUT VERIFICATION REPORT",
		Comparison: c,
	}
}

// WriteReport writes a formatted report to a writer.
func (r *VerificationReport) WriteReport(w io.Writer) {
	separator := strings.Repeat("=", 60)
	c := r.Comparison

	fmt.Fprintln(w, separator)
	fmt.Fprintln(w, r.Title)
	fmt.Fprintln(w, separator)

	fmt.Fprintf(w, "\nScale factor: %d\n", c.Factor)
	fmt.Fprintf(w, "Tolerance: ±%d (+%d per factor)\n",
		c.Tolerance.Absolute, c.Tolerance.PerFactor)
	fmt.Fprintf(w, "Max lane difference: %d\n", c.MaxDiff)

	if r.ShowLanes {
		fmt.Fprintln(w)
		fmt.Fprintln(w, laneTable(c))
	}

	if c.OK() {
		fmt.Fprintln(w, "\n✓ All lanes within tolerance")
	} else {
		fmt.Fprintf(w, "\n⚠ %d lanes out of tolerance:\n\n", len(c.Issues))
		fmt.Fprintln(w, issueTable(c.Issues))
	}

	fmt.Fprintln(w)
}

func laneTable(c Comparison) string {
	t := table.NewWriter()
	t.SetTitle("Lanes")
	t.AppendHeader(table.Row{"Lane", "Device", "Expected"})

	for i := range c.Expected {
		var dev interface{} = "-"
		if i < len(c.Device) {
			dev = c.Device[i]
		}

		t.AppendRow(table.Row{i, dev, c.Expected[i] * int32(c.Factor)})
	}

	return t.Render()
}

func issueTable(issues []LaneIssue) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Lane", "Device", "Expected", "Diff"})

	for _, issue := range issues {
		t.AppendRow(table.Row{issue.Lane, issue.Device, issue.Expected, issue.Diff})
	}

	return t.Render()
}

// SaveReportToFile saves the report to a file.
func (r *VerificationReport) SaveReportToFile(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	r.WriteReport(file)
	return nil
}
