// Package markdownprd converts PRD documents to and from a section-heading
// markdown layout. The writer and parser are inverses for the fields the
// layout carries: title, overview, user stories, technical requirements and
// dependencies.
package markdownprd

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/Strob0t/RunForge/internal/domain/prd"
)

// Section headings recognized by the parser.
const (
	headingOverview     = "Overview"
	headingStories      = "User Stories"
	headingTechnical    = "Technical Requirements"
	headingDependencies = "Dependencies"
	criteriaMarker      = "Acceptance Criteria:"
)

type section int

const (
	sectionNone section = iota
	sectionOverview
	sectionStories
	sectionTechnical
	sectionDependencies
)

// Parse extracts a PRD document from markdown content. Story attempt
// counters start at zero with the default max-attempts ceiling; the
// markdown layout does not carry run state.
func Parse(content []byte) (*prd.Document, error) {
	scanner := bufio.NewScanner(bytes.NewReader(content))

	var (
		title      string
		overview   []string
		technical  []string
		deps       []string
		stories    []prd.UserStory
		current    = sectionNone
		inCriteria bool
	)

	flushStory := func() {
		if len(stories) > 0 {
			last := &stories[len(stories)-1]
			last.Description = strings.TrimSpace(last.Description)
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "### "):
			if current == sectionStories {
				flushStory()
				stories = append(stories, prd.UserStory{
					Title:    strings.TrimSpace(trimmed[4:]),
					Priority: prd.PriorityMedium,
				})
				inCriteria = false
			}

		case strings.HasPrefix(trimmed, "## "):
			flushStory()
			inCriteria = false
			switch strings.TrimSpace(trimmed[3:]) {
			case headingOverview:
				current = sectionOverview
			case headingStories:
				current = sectionStories
			case headingTechnical:
				current = sectionTechnical
			case headingDependencies:
				current = sectionDependencies
			default:
				current = sectionNone
			}

		case strings.HasPrefix(trimmed, "# "):
			title = strings.TrimSpace(trimmed[2:])

		case trimmed == criteriaMarker:
			inCriteria = true

		case strings.HasPrefix(trimmed, "- "):
			item := strings.TrimSpace(trimmed[2:])
			switch current {
			case sectionTechnical:
				technical = append(technical, item)
			case sectionDependencies:
				deps = append(deps, item)
			case sectionStories:
				if inCriteria && len(stories) > 0 {
					last := &stories[len(stories)-1]
					last.AcceptanceCriteria = append(last.AcceptanceCriteria, item)
				}
			}

		case trimmed == "":
			// Paragraph break; description lines accumulate around it.

		default:
			switch current {
			case sectionOverview:
				overview = append(overview, trimmed)
			case sectionStories:
				if len(stories) > 0 && !inCriteria {
					last := &stories[len(stories)-1]
					if last.Description != "" {
						last.Description += "\n"
					}
					last.Description += trimmed
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flushStory()

	doc := prd.New(title, strings.TrimSpace(strings.Join(overview, "\n")), stories)
	doc.TechnicalRequirements = technical
	doc.Dependencies = deps
	return doc, nil
}
