package runner

import (
	"fmt"
	"io"
	"strconv"

	"github.com/alexeyco/simpletable"
	"github.com/olekukonko/tablewriter"

	"github.com/rudderlabs/bridge-exporter/exporter"
)

func printSummary(w io.Writer, summary *exporter.RunSummary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Table", "Table ID", "Lines", "Errors", "Uploaded", "Error"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	var lines, errors int64
	for _, t := range summary.Tables {
		errMsg := ""
		if t.Err != nil {
			errMsg = t.Err.Error()
			if t.ScratchPath != "" {
				errMsg += " (scratch file " + t.ScratchPath + ")"
			}
		}
		table.Append([]string{
			t.Table,
			t.TableID,
			strconv.FormatInt(t.Lines, 10),
			strconv.FormatInt(t.Errors, 10),
			strconv.FormatBool(t.Uploaded),
			errMsg,
		})
		lines += t.Lines
		errors += t.Errors
	}
	table.SetFooter([]string{
		fmt.Sprintf("%d tables", len(summary.Tables)),
		"",
		strconv.FormatInt(lines, 10),
		strconv.FormatInt(errors, 10),
		"",
		"",
	})
	table.Render()

	_, _ = fmt.Fprintf(w, "run %s: %d records, %d record errors\n", summary.RunID, summary.Records, summary.RecordErrors)
}

func printRows(w io.Writer, rows [][]*string) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	var width int
	for _, row := range rows {
		width = max(width, len(row))
	}
	header := make([]string, width)
	for i := range header {
		header[i] = "col" + strconv.Itoa(i+1)
	}
	table.SetHeader(header)

	for _, row := range rows {
		cells := make([]string, width)
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = *v
			}
		}
		table.Append(cells)
	}
	table.Render()
}

func printStatus(w io.Writer, url string, writable bool) {
	table := simpletable.New()
	table.Header = &simpletable.Header{
		Cells: []*simpletable.Cell{
			{Align: simpletable.AlignCenter, Text: "Store"},
			{Align: simpletable.AlignCenter, Text: "Writable"},
		},
	}
	table.Body.Cells = append(table.Body.Cells, []*simpletable.Cell{
		{Align: simpletable.AlignLeft, Text: url},
		{Align: simpletable.AlignLeft, Text: strconv.FormatBool(writable)},
	})
	table.SetStyle(simpletable.StyleCompactLite)
	_, _ = fmt.Fprintln(w, table.String())
}
