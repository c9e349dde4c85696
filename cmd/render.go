package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/JakeFAU/records-crawler/internal/crawler"
)

const maxCellWidth = 48

// renderSummary prints the session summary table followed by the final
// progress line.
func renderSummary(w io.Writer, s crawler.Summary) error {
	elapsed := s.Finished.Sub(s.Started)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Crawl Summary")
	t.AppendRows([]table.Row{
		{"Result", string(s.Result)},
		{"Iterations", s.Iterations},
		{"Visits", s.Visits},
		{"Records held", s.Records},
		{"Last request", s.LastID},
		{"Rows exported", s.Export.Rows},
		{"Archive", s.Export.Location},
		{"Checksum", s.Export.Checksum},
		{"Elapsed", elapsed.Round(time.Millisecond).String()},
	})
	t.Render()

	prog := crawler.Progress{Visits: s.Visits, Elapsed: elapsed, LastID: s.LastID}
	_, err := fmt.Fprintf(w, "\n%s\n", prog.Final())
	return err
}

// renderRecords prints up to limit records as a table. A non-positive limit
// prints every record.
func renderRecords(w io.Writer, records []crawler.Record, limit int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Description", WidthMax: maxCellWidth, WidthMaxEnforcer: text.Trim},
		{Name: "Departments", WidthMax: maxCellWidth / 2, WidthMaxEnforcer: text.Trim},
		{Name: "Docs", Align: text.AlignRight},
		{Name: "Messages", Align: text.AlignRight},
	})
	t.AppendHeader(table.Row{"#", "Request ID", "Status", "Date", "Departments", "Description", "Docs", "Messages"})

	shown := len(records)
	if limit > 0 && limit < shown {
		shown = limit
	}
	for i, rec := range records[:shown] {
		t.AppendRow(table.Row{
			i + 1,
			rec.ID,
			rec.Status,
			rec.Date,
			rec.Departments,
			rec.Description,
			len(rec.Documents),
			len(rec.Messages),
		})
	}
	footer := fmt.Sprintf("%d of %d", shown, len(records))
	t.AppendFooter(table.Row{"Total", footer})
	t.Render()
}
