package assemble

import "fmt"

// CardinalityError is returned when a record yields more instances of a
// statement than its max_count allows. It fails the whole record.
type CardinalityError struct {
	StatementID string
	Property    string
	Count       int
	Max         int
}

func (e *CardinalityError) Error() string {
	return fmt.Sprintf("statement %s (%s): %d instance(s) exceed max_count %d",
		e.StatementID, e.Property, e.Count, e.Max)
}

// InstanceFailure records a statement instance dropped from assembly because
// one of its values could not be coerced. Assembly of the record continues.
type InstanceFailure struct {
	StatementID string
	Property    string
	// Instance is the zero-based position of the instance within the statement.
	Instance int
	// Field is "value", or "qualifiers.<P>" / "references.<P>" for a snak.
	Field string
	Input any
	Err   error
}

func (f InstanceFailure) Error() string {
	return fmt.Sprintf("statement %s[%d] %s: %v", f.StatementID, f.Instance, f.Field, f.Err)
}

func (f InstanceFailure) Unwrap() error {
	return f.Err
}
