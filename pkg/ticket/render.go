package ticket

import (
	"fmt"
	"sort"
	"strings"
)

// RenderMarkdown produces the human-readable ticket report.
func RenderMarkdown(t *Ticket) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t.Title)
	fmt.Fprintf(&b, "- **ID**: %s\n", t.ID)
	fmt.Fprintf(&b, "- **Kind**: %s\n", t.Kind)
	fmt.Fprintf(&b, "- **Status**: %s\n", t.Status)
	fmt.Fprintf(&b, "- **Session**: %s\n", t.SessionID)
	fmt.Fprintf(&b, "- **Created**: %s\n\n", t.CreatedAt.Format("2006-01-02 15:04:05 UTC"))

	fmt.Fprintf(&b, "## Summary\n\n%s\n\n", t.Summary)

	b.WriteString("## Reproduction Steps\n\n")
	if len(t.ReproSteps) == 0 {
		b.WriteString("No actions were executed before the failure.\n")
	}
	for _, step := range t.ReproSteps {
		fmt.Fprintf(&b, "%s\n", step)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Expected\n\n%s\n\n", t.Expected)
	fmt.Fprintf(&b, "## Actual\n\n%s\n\n", t.Actual)

	if t.RootCauseHypothesis != "" {
		fmt.Fprintf(&b, "## Root Cause Hypothesis\n\n_%s_\n\n", t.RootCauseHypothesis)
	}

	b.WriteString("## Environment\n\n")
	keys := make([]string, 0, len(t.Environment))
	for k := range t.Environment {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, t.Environment[k])
	}
	b.WriteString("\n")

	if len(t.EvidenceRefs) > 0 {
		b.WriteString("## Evidence\n\n")
		for _, ref := range t.EvidenceRefs {
			fmt.Fprintf(&b, "- [%s] `%s` (sha256 %s, %d bytes)\n", ref.Kind, ref.Path, short(ref.SHA256), ref.Size)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
