package markdownprd

import (
	"fmt"
	"strings"

	"github.com/Strob0t/RunForge/internal/domain/prd"
)

// Render converts a PRD document into the markdown layout Parse reads.
func Render(doc *prd.Document) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n", doc.Title)

	fmt.Fprintf(&b, "\n## %s\n\n", headingOverview)
	b.WriteString(doc.Description)
	b.WriteString("\n")

	fmt.Fprintf(&b, "\n## %s\n", headingStories)
	for i := range doc.UserStories {
		s := &doc.UserStories[i]
		fmt.Fprintf(&b, "\n### %s\n", s.Title)
		if s.Description != "" {
			b.WriteString("\n")
			b.WriteString(s.Description)
			b.WriteString("\n")
		}
		if len(s.AcceptanceCriteria) > 0 {
			fmt.Fprintf(&b, "\n%s\n\n", criteriaMarker)
			for _, c := range s.AcceptanceCriteria {
				fmt.Fprintf(&b, "- %s\n", c)
			}
		}
	}

	if len(doc.TechnicalRequirements) > 0 {
		fmt.Fprintf(&b, "\n## %s\n\n", headingTechnical)
		for _, r := range doc.TechnicalRequirements {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	if len(doc.Dependencies) > 0 {
		fmt.Fprintf(&b, "\n## %s\n\n", headingDependencies)
		for _, d := range doc.Dependencies {
			fmt.Fprintf(&b, "- %s\n", d)
		}
	}

	return []byte(b.String())
}
