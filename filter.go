package edgelog

// Filter decides whether an entry is written. A logger applies its filters
// in order and drops the entry on the first false.
type Filter interface {
	Allow(e *Entry) bool
}

// EdgeEndFilter suppresses the START edge of smart request/response entries
// so each exchange is logged once, at its END. Plain entries and non-smart
// events always pass.
type EdgeEndFilter struct{}

// Allow reports whether the entry should be written.
func (EdgeEndFilter) Allow(e *Entry) bool {
	if !e.Smart {
		return true
	}

	return e.Edge == EdgeEnd
}
