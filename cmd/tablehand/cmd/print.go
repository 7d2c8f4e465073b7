package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// table prints rows aligned under header.
func table(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func money(v float64) string { return fmt.Sprintf("%.2f", v) }

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
