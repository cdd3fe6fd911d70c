package prd

// Progress aggregates story outcomes for a document. It is derived on every
// call; there are no separate counters to keep in sync.
type Progress struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"` // exhausted: attempts >= max without passing
	Pending int `json:"pending"`
}

// Complete reports whether every story has passed.
func (p Progress) Complete() bool { return p.Total > 0 && p.Passed == p.Total }

// GetProgress derives pass/fail/pending counts from the document's stories.
// Passed + Failed + Pending always equals Total.
func GetProgress(doc *Document) Progress {
	p := Progress{Total: len(doc.UserStories)}
	for i := range doc.UserStories {
		s := &doc.UserStories[i]
		switch {
		case s.Resolved():
			p.Passed++
		case s.Exhausted():
			p.Failed++
		default:
			p.Pending++
		}
	}
	return p
}
