package report

import (
	"fmt"
	"strings"

	"github.com/pkgreview/pkgreview/pkg/types"
)

// section headings per outcome kind, in presentation order.
var kindHeadings = map[types.OutcomeKind]string{
	types.OutcomeEvalFailure:  "failed to evaluate",
	types.OutcomeBuildFailure: "failed to build",
	types.OutcomeTimeout:      "timed out",
	types.OutcomeSkipped:      "skipped",
	types.OutcomeSuccess:      "built",
}

// Markdown renders the report as a pull-request comment: a header
// line followed by one collapsed section per non-empty outcome group.
// Output is byte-identical for identical reports.
func Markdown(r *types.Report) string {
	var b strings.Builder

	cmd := "pkgreview"
	if r.Meta.PullRequest > 0 {
		cmd += fmt.Sprintf(" pr %d", r.Meta.PullRequest)
	} else {
		cmd += fmt.Sprintf(" rev %s", shortRev(r.Meta.HeadRev))
	}
	fmt.Fprintf(&b, "Result of `%s` at %s run on %s\n", cmd, shortRev(r.Meta.HeadRev), r.Meta.System)

	if len(r.Removed) > 0 {
		writeSection(&b, fmt.Sprintf("%d %s removed by this change", len(r.Removed), plural("package", len(r.Removed))), r.Removed, nil)
	}

	for _, kind := range types.OutcomeKinds() {
		entries := r.Groups[kind]
		if len(entries) == 0 {
			continue
		}
		names := make([]string, 0, len(entries))
		notes := make(map[string]string, len(entries))
		for _, e := range entries {
			names = append(names, e.Name)
			if e.KnownFailure {
				notes[e.Name] = "already failing upstream"
			} else if kind == types.OutcomeSkipped && e.Diagnostics != "" {
				notes[e.Name] = e.Diagnostics
			}
		}
		heading := fmt.Sprintf("%d %s %s", len(entries), plural("package", len(entries)), kindHeadings[kind])
		writeSection(&b, heading, names, notes)
	}

	return b.String()
}

func writeSection(b *strings.Builder, heading string, names []string, notes map[string]string) {
	b.WriteString("<details>\n")
	fmt.Fprintf(b, "  <summary>%s:</summary>\n  <ul>\n", heading)
	for _, name := range names {
		if note := notes[name]; note != "" {
			fmt.Fprintf(b, "    <li>%s (%s)</li>\n", name, note)
		} else {
			fmt.Fprintf(b, "    <li>%s</li>\n", name)
		}
	}
	b.WriteString("  </ul>\n</details>\n")
}

func plural(word string, n int) string {
	if n == 1 {
		return word
	}
	return word + "s"
}

func shortRev(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}
