package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

const (
	formatMD   = "md"
	formatCSV  = "csv"
	formatJSON = "json"
)

// table is a header plus string rows, printable as markdown or CSV.
type table struct {
	header []string
	rows   [][]string
}

func (t *table) add(fields ...string) {
	t.rows = append(t.rows, fields)
}

// checkFormat rejects anything but md, csv and json.
func checkFormat(format string) error {
	switch format {
	case formatMD, formatCSV, formatJSON:
		return nil
	default:
		return fmt.Errorf("unknown format %q: use md, csv or json", format)
	}
}

// render prints t in format. For json, raw is encoded instead so the output
// keeps the API field names.
func render(w io.Writer, format string, t table, raw any) error {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(raw, "", "  ")
		if err != nil {
			return fmt.Errorf("error encoding JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatCSV:
		printCSV(w, t)
	default:
		printMarkdown(w, t)
	}
	return nil
}

func printCSV(w io.Writer, t table) {
	fmt.Fprintln(w, strings.Join(t.header, ","))
	for _, row := range t.rows {
		escaped := make([]string, len(row))
		for i, f := range row {
			escaped[i] = csvEscape(f)
		}
		fmt.Fprintln(w, strings.Join(escaped, ","))
	}
}

func printMarkdown(w io.Writer, t table) {
	fmt.Fprintf(w, "| %s |\n", strings.Join(t.header, " | "))
	sep := make([]string, len(t.header))
	for i := range sep {
		sep[i] = "---"
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(sep, " | "))
	for _, row := range t.rows {
		cells := make([]string, len(row))
		for i, f := range row {
			cells[i] = mdEscape(f)
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(cells, " | "))
	}
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	// Escape internal double quotes by doubling them.
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// mdEscape keeps a value inside its table cell.
func mdEscape(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}
