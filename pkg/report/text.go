package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/pkgreview/pkgreview/pkg/types"
)

// Text writes the report to w for console consumption. Failures are
// colored; diagnostics excerpts follow failed entries.
func Text(w io.Writer, r *types.Report) {
	fmt.Fprintf(w, "Review of %s..%s on %s\n", shortRev(r.Meta.BaseRev), shortRev(r.Meta.HeadRev), r.Meta.System)
	if r.Meta.Title != "" {
		fmt.Fprintf(w, "%s", r.Meta.Title)
		if r.Meta.Author != "" {
			fmt.Fprintf(w, " (by %s)", r.Meta.Author)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)

	if len(r.Removed) > 0 {
		color.New(color.FgYellow).Fprintf(w, "%d %s removed by this change:\n", len(r.Removed), plural("package", len(r.Removed)))
		fmt.Fprintf(w, "  %s\n\n", strings.Join(r.Removed, " "))
	}

	for _, kind := range types.OutcomeKinds() {
		entries := r.Groups[kind]
		if len(entries) == 0 {
			continue
		}

		heading := fmt.Sprintf("%d %s %s:", len(entries), plural("package", len(entries)), kindHeadings[kind])
		switch kind {
		case types.OutcomeSuccess:
			color.New(color.FgGreen).Fprintln(w, heading)
		case types.OutcomeSkipped:
			color.New(color.FgYellow).Fprintln(w, heading)
		default:
			color.New(color.FgRed, color.Bold).Fprintln(w, heading)
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			name := e.Name
			if e.KnownFailure {
				name += " (already failing upstream)"
			}
			names = append(names, name)
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(names, " "))

		if kind != types.OutcomeSuccess && kind != types.OutcomeSkipped {
			for _, e := range entries {
				if e.Diagnostics == "" {
					continue
				}
				fmt.Fprintf(w, "\n  --- %s ---\n", e.Name)
				for _, line := range strings.Split(strings.TrimRight(e.Diagnostics, "\n"), "\n") {
					fmt.Fprintf(w, "  %s\n", line)
				}
			}
		}
		fmt.Fprintln(w)
	}
}

// JSON writes the report as indented JSON, the machine-diffable form.
func JSON(w io.Writer, r *types.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
