package probe

import (
	"fmt"
	"io"
	"strings"
)

const (
	markPass = "✓"
	markFail = "✗"
	rule     = "============================================================"
)

// Reporter prints the human-readable pass/fail transcript.
type Reporter struct {
	w io.Writer
}

// NewReporter writes to w.
func NewReporter(w io.Writer) *Reporter { return &Reporter{w: w} }

// Section prints a boxed heading.
func (r *Reporter) Section(title string) {
	fmt.Fprintf(r.w, "\n%s\n  %s\n%s\n\n", rule, title, rule)
}

// Line prints an unindented line.
func (r *Reporter) Line(format string, a ...any) {
	fmt.Fprintf(r.w, format+"\n", a...)
}

// Step announces check n.
func (r *Reporter) Step(n int, intro string) {
	fmt.Fprintf(r.w, "%d. %s\n", n, intro)
}

// Pass prints a check's success line.
func (r *Reporter) Pass(format string, a ...any) {
	fmt.Fprintf(r.w, "   %s PASS - %s\n", markPass, fmt.Sprintf(format, a...))
}

// Fail prints a check's failure line; details follow via Detail.
func (r *Reporter) Fail(format string, a ...any) {
	fmt.Fprintf(r.w, "   %s FAIL - %s\n", markFail, fmt.Sprintf(format, a...))
}

// Detail prints a deeper-indented line, e.g. a model name or a reply.
// Multi-line text keeps the indentation on every line.
func (r *Reporter) Detail(format string, a ...any) {
	s := fmt.Sprintf(format, a...)
	for _, l := range strings.Split(s, "\n") {
		fmt.Fprintf(r.w, "      %s\n", l)
	}
}

// Fragment writes streamed text as-is, without a newline.
func (r *Reporter) Fragment(s string) { _, _ = io.WriteString(r.w, s) }

// Blank prints an empty line.
func (r *Reporter) Blank() { fmt.Fprintln(r.w) }

// preview keeps the first n runes of s followed by "...".
// n <= 0 returns s unchanged apart from surrounding whitespace.
func preview(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 {
		return s
	}
	rs := []rune(s)
	if len(rs) > n {
		rs = rs[:n]
	}
	return string(rs) + "..."
}
