// Package validate grades profile conformance as a list of issues.
//
// Validation is advisory: nothing here returns an error for a finding. Only
// Error-severity issues block a final submit, and that decision belongs to
// the caller through Issues.Blocking.
package validate

import (
	"fmt"
	"strings"
)

// Severity is the grade of an issue.
type Severity int

const (
	// SeverityError blocks a final submit.
	SeverityError Severity = iota
	// SeverityWarning must be surfaced but never blocks.
	SeverityWarning
	// SeveritySuggestion is an optional enhancement.
	SeveritySuggestion
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeveritySuggestion:
		return "suggestion"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// Why tags name the rule behind an issue.
const (
	WhyRequired     = "required"
	WhyMinCount     = "min_count"
	WhyMaxCount     = "max_count"
	WhyCoercion     = "coercion"
	WhyAllowedItems = "allowed_items"
	WhyStaleList    = "stale_list"
	WhyFormat       = "format"
	WhyOptional     = "optional"
	WhyNoReference  = "no_reference"
)

// NoInstance marks an issue about a statement as a whole.
const NoInstance = -1

// Issue is one finding.
type Issue struct {
	Severity Severity
	// StatementID is the statement spec id, or "label:<lang>",
	// "description:<lang>", "sitelink:<site>" for term issues.
	StatementID string
	Instance    int
	Message     string
	Why         string
}

func (i Issue) String() string {
	subject := i.StatementID
	if i.Instance != NoInstance {
		subject = fmt.Sprintf("%s[%d]", i.StatementID, i.Instance)
	}
	return fmt.Sprintf("%s %s: %s (%s)", i.Severity, subject, i.Message, i.Why)
}

// Issues is the complete ordered result of one validation pass.
type Issues []Issue

// Blocking reports whether any issue has Error severity.
func (is Issues) Blocking() bool {
	for _, i := range is {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Filter returns the issues of one severity, in order.
func (is Issues) Filter(sev Severity) Issues {
	var out Issues
	for _, i := range is {
		if i.Severity == sev {
			out = append(out, i)
		}
	}
	return out
}

// Counts returns the number of errors, warnings and suggestions.
func (is Issues) Counts() (errs, warnings, suggestions int) {
	for _, i := range is {
		switch i.Severity {
		case SeverityError:
			errs++
		case SeverityWarning:
			warnings++
		case SeveritySuggestion:
			suggestions++
		}
	}
	return errs, warnings, suggestions
}

// Group holds the issues of one subject.
type Group struct {
	StatementID string
	Issues      Issues
}

// Grouped groups issues by statement id in order of first appearance.
func (is Issues) Grouped() []Group {
	index := make(map[string]int)
	var groups []Group
	for _, i := range is {
		n, ok := index[i.StatementID]
		if !ok {
			n = len(groups)
			index[i.StatementID] = n
			groups = append(groups, Group{StatementID: i.StatementID})
		}
		groups[n].Issues = append(groups[n].Issues, i)
	}
	return groups
}

func (is Issues) String() string {
	lines := make([]string, 0, len(is))
	for _, i := range is {
		lines = append(lines, i.String())
	}
	return strings.Join(lines, "\n")
}
