package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
)

var (
	Bold   = color.New(color.Bold)
	Green  = color.New(color.FgGreen)
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Cyan   = color.New(color.FgCyan)
)

func colorPrintLn(c *color.Color, a ...any) {
	_, _ = c.Println(a...)
}

func colorPrintf(c *color.Color, format string, a ...any) {
	_, _ = c.Printf(format, a...)
}

func printSectionHeader(title string, lines ...string) {
	fmt.Println()
	colorPrintLn(Bold, title)
	colorPrintLn(Cyan, strings.Repeat("─", len(title)))
	for _, l := range lines {
		fmt.Println(l)
	}
}

func makeProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionClearOnFinish(),
	)
}

// renderTable prints rows under header.
func renderTable(header []string, rows [][]string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header(toAny(header)...)
	for _, row := range rows {
		_ = table.Append(toAny(row)...)
	}
	if err := table.Render(); err != nil {
		colorPrintLn(Red, "Error in rendering table")
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

func formatCount[T ~int | ~int64 | ~uint64](n T) string {
	return humanize.Comma(int64(n))
}

func formatRate(n int, elapsed time.Duration) string {
	if elapsed <= 0 {
		return "-"
	}
	return humanize.CommafWithDigits(float64(n)/elapsed.Seconds(), 1) + "/s"
}
