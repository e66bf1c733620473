package sinks

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/conveyor/conveyor/internal/envelope"
)

// recordColumns returns the union of keys across records, in first-seen
// order, so table/CSV rendering has a stable column set even when records
// carry heterogeneous keys.
func recordColumns(records envelope.Records) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, row := range records {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

func writeTable(w io.Writer, records envelope.Records) error {
	cols := recordColumns(records)
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)

	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, c)
	}
	fmt.Fprintln(tw)

	for _, row := range records {
		for i, c := range cols {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprintf(tw, "%v", row[c])
		}
		fmt.Fprintln(tw)
	}

	return tw.Flush()
}

func writeCSV(w io.Writer, records envelope.Records, delimiter byte) error {
	cols := recordColumns(records)
	cw := csv.NewWriter(w)
	cw.Comma = rune(delimiter)

	if err := cw.Write(cols); err != nil {
		return err
	}
	for _, row := range records {
		fields := make([]string, len(cols))
		for i, c := range cols {
			fields[i] = fmt.Sprintf("%v", row[c])
		}
		if err := cw.Write(fields); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
