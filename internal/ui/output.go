// Package ui prints progress and summaries to the terminal
package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// Out is where all output goes
var Out io.Writer = color.Output

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow, color.Bold)
	blue   = color.New(color.FgBlue)
	red    = color.New(color.FgRed)
)

const width = 60

// Header prints a formatted header
func Header(text string) {
	line := strings.Repeat("=", width)
	green.Fprintf(Out, "\n%s\n", line)
	green.Fprintf(Out, "%-60s\n", center(text, width))
	green.Fprintf(Out, "%s\n\n", line)
}

// Step prints a step indicator
func Step(stepNum, totalSteps int, text string) {
	yellow.Fprintf(Out, "[%d/%d] %s\n", stepNum, totalSteps, text)
}

// Success prints a success message
func Success(text string) {
	green.Fprintf(Out, "  → %s\n", text)
}

// Info prints an info message
func Info(text string) {
	fmt.Fprintf(Out, "  → %s\n", text)
}

// Warning prints a warning message
func Warning(text string) {
	yellow.Fprintf(Out, "  ⚠ %s\n", text)
}

// Error prints an error message
func Error(text string) {
	red.Fprintf(Out, "Error: %s\n", text)
}

// Resolved prints one resolved narrative. Failed extractions print in red.
func Resolved(source, format, payer, payee string, failed bool) {
	c := blue
	if failed {
		c = red
	}
	c.Fprintf(Out, "%-10s %-12s ", source, format)
	fmt.Fprintf(Out, "%s → %s\n", orDash(payer), orDash(payee))
}

// Summary prints per-format counts, largest first
func Summary(counts map[string]int) {
	formats := make([]string, 0, len(counts))
	total := 0
	for f, n := range counts {
		formats = append(formats, f)
		total += n
	}
	sort.Slice(formats, func(i, j int) bool {
		if counts[formats[i]] != counts[formats[j]] {
			return counts[formats[i]] > counts[formats[j]]
		}
		return formats[i] < formats[j]
	})
	for _, f := range formats {
		fmt.Fprintf(Out, "  %-14s %6d\n", f, counts[f])
	}
	green.Fprintf(Out, "  %-14s %6d\n", "total", total)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// center centers text within a given width
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return strings.Repeat(" ", padding) + text
}
