package report

import (
	"fmt"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Row is one file in a summary table.
type Row struct {
	Image  string
	Kind   Kind
	Detail string
}

// RenderSummary renders rows as a table followed by per-kind totals.
// It returns an empty string when there are no rows.
func RenderSummary(rows []Row) string {
	if len(rows) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Image", "Outcome", "Detail"})

	totals := make(map[Kind]int, 3)

	for _, r := range rows {
		totals[r.Kind]++
		tw.AppendRow(table.Row{filepath.Base(r.Image), r.Kind.String(), r.Detail})
	}

	tw.AppendFooter(table.Row{
		fmt.Sprintf("%d files", len(rows)),
		fmt.Sprintf("%d converted, %d skipped, %d failed",
			totals[KindConverted], totals[KindSkipped], totals[KindFailed]),
		"",
	})

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignLeft, AlignHeader: text.AlignLeft, WidthMax: 80},
	})

	return tw.Render()
}
