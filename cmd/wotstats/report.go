package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/riskibarqy/wotstats/internal/usecase"
)

func printReport(w io.Writer, report usecase.Report) error {
	if report.Accounts == 0 {
		_, err := fmt.Fprintln(w, "no observations in the selected window")
		return err
	}

	fmt.Fprintf(w, "Updated: %s\n", report.Updated.UTC().Format(time.RFC3339))
	if !report.Since.IsZero() {
		fmt.Fprintf(w, "Since:   %s\n", report.Since.UTC().Format(time.RFC3339))
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, panel := range report.Panels {
		fmt.Fprintf(tw, "\n%s\n", panel.Plot.Name)
		fmt.Fprintln(tw, "ACCOUNT\tNICKNAME\tPOINTS\tCURRENT\tDELTA\tMAX\t")
		for _, series := range panel.Series {
			fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\t\n",
				series.AccountID,
				series.Nickname,
				len(series.Points),
				formatValue(series.Current),
				formatDelta(series),
				formatValue(series.Max),
			)
		}
	}
	return tw.Flush()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatDelta(series usecase.Series) string {
	if !series.HasDelta {
		return "-"
	}
	if series.Delta > 0 {
		return "+" + formatValue(series.Delta)
	}
	return formatValue(series.Delta)
}
