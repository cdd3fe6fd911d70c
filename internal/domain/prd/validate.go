package prd

import "fmt"

// ValidationResult carries structural validation findings. Problems are
// reported as messages, never as errors, so a caller can show all of them
// at once.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Validate checks a document for structural completeness: non-empty title
// and description, at least one story, and every story carrying a title,
// description and at least one acceptance criterion.
func Validate(doc *Document) ValidationResult {
	var errs []string

	if doc.Title == "" {
		errs = append(errs, "title is required")
	}
	if doc.Description == "" {
		errs = append(errs, "description is required")
	}
	if len(doc.UserStories) == 0 {
		errs = append(errs, "at least one user story is required")
	}

	for i := range doc.UserStories {
		s := &doc.UserStories[i]
		if s.Title == "" {
			errs = append(errs, fmt.Sprintf("story %d: title is required", i+1))
		}
		if s.Description == "" {
			errs = append(errs, fmt.Sprintf("story %d: description is required", i+1))
		}
		if len(s.AcceptanceCriteria) == 0 {
			errs = append(errs, fmt.Sprintf("story %d: at least one acceptance criterion is required", i+1))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
