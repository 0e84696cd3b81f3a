package tui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sesh/internal/runner"
	"github.com/sesh/internal/worker"
	"github.com/sesh/pkg/session"
)

func statusStyle(status int) lipgloss.Style {
	switch {
	case status >= 500:
		return ErrorStyle
	case status >= 400:
		return WarningStyle
	default:
		return SuccessStyle
	}
}

// StatusLine formats "STATUS Reason (elapsed)".
func (t Theme) StatusLine(resp *session.Response) string {
	status := fmt.Sprintf("%d %s", resp.Status, resp.Reason())
	return t.Render(statusStyle(int(resp.Status)), status) + " " +
		t.Render(DimStyle, fmt.Sprintf("(%s)", resp.Elapsed.Round(time.Millisecond)))
}

// Response writes a response, optionally preceded by its status line and
// headers.
func (t Theme) Response(w io.Writer, resp *session.Response, includeHeaders bool) {
	if includeHeaders {
		fmt.Fprintln(w, t.StatusLine(resp))
		keys := make([]string, 0, len(resp.Headers))
		for k := range resp.Headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%s: %s\n", t.Render(LabelStyle, k), resp.Headers[k])
		}
		fmt.Fprintln(w)
	}

	body := resp.Text()
	fmt.Fprint(w, body)
	if body != "" && !strings.HasSuffix(body, "\n") {
		fmt.Fprintln(w)
	}
}

// Step writes a one line summary of a scenario step and its query output.
func (t Theme) Step(w io.Writer, res runner.Result) {
	if res.Err != nil {
		fmt.Fprintf(w, "%s %s %s\n",
			t.Render(ErrorStyle, CrossMark),
			t.Render(ValueStyle, res.Step),
			t.Render(ErrorStyle, res.Err.Error()))
		return
	}

	fmt.Fprintf(w, "%s %s %s %s\n",
		t.Render(SuccessStyle, CheckMark),
		t.Render(ValueStyle, res.Step),
		t.StatusLine(res.Response),
		t.Render(DimStyle, res.Response.URL))
	if len(res.Query) > 0 {
		fmt.Fprintf(w, "  %s %s\n", t.Render(HighlightStyle, ArrowRight), res.Query)
	}
}

// Report writes a load run summary with latency percentiles.
func (t Theme) Report(w io.Writer, r worker.Report) {
	var b strings.Builder

	b.WriteString(t.Render(SubtitleStyle, "Requests"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "  Total:     %s\n", t.Render(ValueStyle, fmt.Sprint(r.Total)))
	fmt.Fprintf(&b, "  Failed:    %s\n", t.Render(ErrorStyle, fmt.Sprint(r.Failed)))
	fmt.Fprintf(&b, "  Duration:  %s\n", t.Render(ValueStyle, r.Duration.Round(time.Millisecond).String()))
	fmt.Fprintf(&b, "  Rate:      %s\n", t.Render(ValueStyle, fmt.Sprintf("%.1f/s", r.RPS)))
	b.WriteString("\n")

	b.WriteString(t.Render(SubtitleStyle, "Latency"))
	b.WriteString("\n")
	for _, row := range []struct {
		label string
		value time.Duration
	}{
		{"mean", r.Mean},
		{"p50", r.P50},
		{"p90", r.P90},
		{"p99", r.P99},
		{"max", r.Max},
	} {
		fraction := 0.0
		if r.Max > 0 {
			fraction = float64(row.value) / float64(r.Max)
		}
		fmt.Fprintf(&b, "  %-5s %10s  %s\n",
			t.Render(LabelStyle, row.label),
			row.value.Round(time.Microsecond),
			t.Bar(fraction, 20))
	}

	if len(r.Statuses) > 0 {
		b.WriteString("\n")
		b.WriteString(t.Render(SubtitleStyle, "Status codes"))
		b.WriteString("\n")
		codes := make([]int, 0, len(r.Statuses))
		for code := range r.Statuses {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		for _, code := range codes {
			fmt.Fprintf(&b, "  %s  %d\n", t.Render(statusStyle(code), fmt.Sprint(code)), r.Statuses[code])
		}
	}

	if len(r.Errors) > 0 {
		b.WriteString("\n")
		b.WriteString(t.Render(SubtitleStyle, "Errors"))
		b.WriteString("\n")
		names := make([]string, 0, len(r.Errors))
		for name := range r.Errors {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "  %s  %d\n", t.Render(ErrorStyle, name), r.Errors[name])
		}
	}

	out := strings.TrimRight(b.String(), "\n")
	if t.Color {
		out = BorderStyle.Render(out)
	}
	fmt.Fprintln(w, out)
}
