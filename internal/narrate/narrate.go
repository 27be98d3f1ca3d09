// Package narrate turns an aggregated answer into prose for the user.
//
// Renderers never compute figures. Every value they print comes from a
// dataset-verified fact.
package narrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/climq/internal/aggregate"
	"github.com/roach88/climq/internal/dataset"
	"github.com/roach88/climq/internal/plan"
)

// Renderer renders the answer to a question.
type Renderer interface {
	Render(ctx context.Context, question string, answer aggregate.Answer) (string, error)
}

// Plain renders facts as one line each, and cells without rows as an
// explicit no-data line.
type Plain struct{}

// Render implements Renderer.
func (Plain) Render(_ context.Context, _ string, answer aggregate.Answer) (string, error) {
	return Facts(answer), nil
}

// Facts is the plain rendering of an answer.
func Facts(answer aggregate.Answer) string {
	if len(answer.Cells) == 0 || (answer.NoData() && len(answer.Cells) == 1) {
		return dataset.NoDataText
	}

	var lines []string
	for _, c := range answer.Cells {
		if c.NoData {
			lines = append(lines, "No data for "+describe(c.Triple)+".")
			continue
		}
		for _, f := range c.Facts {
			lines = append(lines, line(f))
		}
		if len(c.Facts) > 0 {
			continue
		}
		// A listing: rows without measures.
		for _, row := range c.Rows {
			parts := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				if !cell.Null {
					parts = append(parts, cell.Column+"="+cell.Text)
				}
			}
			lines = append(lines, strings.Join(parts, ", "))
		}
	}
	return strings.Join(lines, "\n")
}

func line(f aggregate.Fact) string {
	var head []string
	for _, s := range []string{f.Entity, f.Period} {
		if s != "" {
			head = append(head, s)
		}
	}

	name := f.Column
	switch {
	case f.Column == aggregate.TotalColumn:
		name = fmt.Sprintf("%s total (%s)", f.Metric, f.Member)
	case f.Column == f.Period:
		name = f.Metric
	}
	if f.Member != "" && f.Column != aggregate.TotalColumn {
		name = f.Member + " " + name
	}

	var b strings.Builder
	if len(head) > 0 {
		b.WriteString(strings.Join(head, " ") + ": ")
	}
	b.WriteString(name + " = " + f.Display)
	if len(f.Context) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(f.Context, ", "))
	}
	return b.String()
}

func describe(t plan.Triple) string {
	var parts []string
	for _, s := range []string{t.Entity, t.Metric, t.Period} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "the query"
	}
	return strings.Join(parts, " ")
}
