// Package report renders fetch results as the markdown body of a push
// message: successes ranked by change percent, failures listed after them.
package report

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"fundpush/internal/fetcher"
)

const (
	markerUp   = "📈"
	markerDown = "📉"
	markerFlat = "➖"

	failureHeader = "**获取失败**"

	// lineSeparator renders each line as its own markdown paragraph
	lineSeparator = "\n\n"
)

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"~", `\~`,
)

// Report is an ordered list of rendered lines.
type Report []string

// String joins the lines into the message body.
func (r Report) String() string {
	return strings.Join(r, lineSeparator)
}

// Empty reports whether there is nothing worth sending.
func (r Report) Empty() bool {
	return len(r) == 0
}

// Formatter renders results into a Report.
type Formatter struct {
	// ShowTime appends the source's estimate time to each success line
	ShowTime bool
}

// Format renders results with the default Formatter.
func Format(results []fetcher.Result) Report {
	return Formatter{}.Format(results)
}

// Format partitions results, ranks the successes by change percent
// (descending, ties keep their incoming order) and lists failures at the end.
func (f Formatter) Format(results []fetcher.Result) Report {
	var ok, failed []fetcher.Result
	for _, r := range results {
		if r.OK() {
			ok = append(ok, r)
		} else {
			failed = append(failed, r)
		}
	}

	slices.SortStableFunc(ok, func(a, b fetcher.Result) int {
		return b.ChangePercent.Cmp(a.ChangePercent)
	})

	lines := make(Report, 0, len(results)+1)
	for _, r := range ok {
		lines = append(lines, f.successLine(r))
	}

	if len(failed) > 0 {
		lines = append(lines, failureHeader)
		for _, r := range failed {
			lines = append(lines, failureLine(r))
		}
	}

	return lines
}

func (f Formatter) successLine(r fetcher.Result) string {
	line := fmt.Sprintf("- **%s** `%s` %s %s%%", EscapeMarkdown(r.Name), r.Code, marker(r.ChangePercent), FormatPercent(r.ChangePercent))
	if f.ShowTime && r.EstimatedAt != "" {
		line += fmt.Sprintf(" (%s)", r.EstimatedAt)
	}
	return line
}

func failureLine(r fetcher.Result) string {
	if r.Err.Detail == "" {
		return fmt.Sprintf("- `%s`: %s", r.Code, r.Err.Reason)
	}
	return fmt.Sprintf("- `%s`: %s: %s", r.Code, r.Err.Reason, r.Err.Detail)
}

// EscapeMarkdown backslash-escapes the characters that would open or close
// emphasis, code spans or links inside a rendered line.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

func marker(d decimal.Decimal) string {
	switch d.Sign() {
	case 1:
		return markerUp
	case -1:
		return markerDown
	default:
		return markerFlat
	}
}

// FormatPercent renders d with two decimals and an explicit plus sign when
// positive, e.g. "+1.50", "-0.30", "0.00".
func FormatPercent(d decimal.Decimal) string {
	s := d.StringFixed(2)
	if d.Sign() > 0 {
		return "+" + s
	}
	return s
}
