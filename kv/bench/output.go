package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/pingcap/errors"
)

// Output styles of Render.
const (
	OutputStylePlain = "plain"
	OutputStyleTable = "table"
	OutputStyleJSON  = "json"
)

// Render writes rows under headers in the given style. Every row has one cell per header and nothing is written
// for no rows.
func Render(w io.Writer, style string, headers []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	switch style {
	case OutputStylePlain:
		renderPlain(w, headers, rows)
		return nil
	case OutputStyleTable:
		renderTable(w, headers, rows)
		return nil
	case OutputStyleJSON:
		return renderJSON(w, headers, rows)
	}
	return errors.Errorf("unknown output style %q", style)
}

// renderPlain writes a line per row: the first cell padded as a label, then `header: cell` for the rest.
func renderPlain(w io.Writer, headers []string, rows [][]string) {
	for _, row := range rows {
		fields := make([]string, 0, len(headers)-1)
		for i := 1; i < len(headers); i++ {
			fields = append(fields, headers[i]+": "+row[i])
		}
		fmt.Fprintf(w, "%-10s- %s\n", row[0], strings.Join(fields, ", "))
	}
}

func renderTable(w io.Writer, headers []string, rows [][]string) {
	tb := tablewriter.NewWriter(w)
	tb.SetHeader(headers)
	tb.SetAlignment(tablewriter.ALIGN_RIGHT)
	tb.AppendBulk(rows)
	tb.Render()
}

// renderJSON writes the rows as one JSON array of header to cell objects.
func renderJSON(w io.Writer, headers []string, rows [][]string) error {
	objs := make([]map[string]string, len(rows))
	for i, row := range rows {
		obj := make(map[string]string, len(headers))
		for j, header := range headers {
			obj[header] = row[j]
		}
		objs[i] = obj
	}
	return errors.Trace(json.NewEncoder(w).Encode(objs))
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// formatMean keeps one decimal, enough for microsecond means and attempt averages.
func formatMean(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}
