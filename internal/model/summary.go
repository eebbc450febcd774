package model

// Verdict is the overall outcome of a run.
type Verdict string

const (
	// VerdictPassed means the run met every invariant.
	VerdictPassed Verdict = "passed"

	// VerdictFailed means at least one invariant was violated.
	VerdictFailed Verdict = "failed"
)

// Summary is a compact view of a report used by the text report, the
// history database and the compare command.
type Summary struct {
	// Verdict is the pass/fail outcome.
	Verdict Verdict `json:"verdict"`

	// TotalPages is the size of the catalog.
	TotalPages int `json:"total_pages"`

	// ModulePages is the size of the module subset.
	ModulePages int `json:"module_pages"`

	// CheckedPages is the number of pages that were visited.
	CheckedPages int `json:"checked_pages"`

	// PassedPages is the number of visited pages without violations.
	PassedPages int `json:"passed_pages"`

	// FailedPages is the number of visited pages with violations or errors.
	FailedPages int `json:"failed_pages"`

	// Counts maps each kind to its number of violations.
	Counts map[Kind]int `json:"counts"`

	// TotalViolations is the sum of Counts.
	TotalViolations int `json:"total_violations"`

	// Violations are all violations of the run in report order.
	Violations []Violation `json:"violations,omitempty"`
}

// NewSummary computes the summary of a report.
func NewSummary(r *Report) *Summary {
	s := &Summary{
		Verdict:     VerdictFailed,
		TotalPages:  len(r.Catalog),
		ModulePages: len(r.ModulePages),
		Counts:      make(map[Kind]int, len(Kinds)),
	}
	for _, k := range Kinds {
		s.Counts[k] = 0
	}

	for _, p := range r.Pages {
		s.CheckedPages++
		if p.Failed() {
			s.FailedPages++
		} else {
			s.PassedPages++
		}
	}

	s.Violations = r.Violations()
	for _, v := range s.Violations {
		s.Counts[v.Kind]++
	}
	s.TotalViolations = len(s.Violations)

	if r.Passed() {
		s.Verdict = VerdictPassed
	}
	return s
}

// Count returns the number of violations of a kind.
func (s *Summary) Count(kind Kind) int {
	if s == nil || s.Counts == nil {
		return 0
	}
	return s.Counts[kind]
}

// HasViolations reports whether the summary contains any violation.
func (s *Summary) HasViolations() bool {
	return s != nil && s.TotalViolations > 0
}

// ViolationsByKind returns the violations of one kind in report order.
func (s *Summary) ViolationsByKind(kind Kind) []Violation {
	var out []Violation
	for _, v := range s.Violations {
		if v.Kind == kind {
			out = append(out, v)
		}
	}
	return out
}
